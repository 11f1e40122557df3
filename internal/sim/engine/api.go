package engine

import (
	"errors"
	"fmt"

	"driftscape.app/internal/persistence/prefs"
	"driftscape.app/internal/persistence/snapshot"
	"driftscape.app/internal/sim/config"
)

var (
	ErrClosed          = errors.New("engine: shut down")
	ErrInvalidViewport = errors.New("invalid viewport")
)

// SetParam validates and applies one parameter. Live parameters take effect
// immediately; restart-required ones are applied by a restart on the next tick.
func (e *Engine) SetParam(d config.Domain, name string, value any) (config.Effect, error) {
	if e.closed {
		return 0, ErrClosed
	}
	entry := ConfigLogEntry{Op: OpSetParam, Domain: string(d), Name: name, Value: value}
	eff, err := e.mgr.SetParam(d, name, value)
	if err != nil {
		entry.Quality = e.mgr.Quality()
		entry.Error = err.Error()
		e.logConfig(entry)
		return 0, err
	}
	if eff == config.LiveApply {
		e.applyLive()
	}
	entry.Effect = eff.String()
	entry.Quality = e.mgr.Quality()
	e.logConfig(entry)
	e.committed()
	return eff, nil
}

func (e *Engine) SetTerrainParam(name string, value any) (config.Effect, error) {
	return e.SetParam(config.DomainTerrain, name, value)
}

func (e *Engine) SetStarParam(name string, value any) (config.Effect, error) {
	return e.SetParam(config.DomainStar, name, value)
}

// ApplyQualityPreset switches to a named preset; the restart runs on the next tick.
func (e *Engine) ApplyQualityPreset(name string) error {
	if e.closed {
		return ErrClosed
	}
	entry := ConfigLogEntry{Op: OpApplyPreset, Name: name}
	if err := e.mgr.ApplyPreset(name); err != nil {
		entry.Quality = e.mgr.Quality()
		entry.Error = err.Error()
		e.logConfig(entry)
		return err
	}
	entry.Effect = config.RequiresRestart.String()
	entry.Quality = e.mgr.Quality()
	e.logConfig(entry)
	e.committed()
	return nil
}

// ResetToDefaults restores the startup configuration and forgets saved preferences.
func (e *Engine) ResetToDefaults() error {
	if e.closed {
		return ErrClosed
	}
	e.mgr.ResetToDefaults()
	e.applyLive()
	e.logConfig(ConfigLogEntry{Op: OpResetDefaults, Effect: config.RequiresRestart.String(), Quality: e.mgr.Quality()})
	if e.prefs != nil {
		if err := e.prefs.Delete(prefs.Key); err != nil {
			e.logger.Printf("reset preferences: %v", err)
			e.notice("Saved settings could not be cleared.")
		}
	}
	e.publishConfig()
	return nil
}

func (e *Engine) applyLive() {
	cfg := e.mgr.Config()
	e.terrain.ApplyLive(cfg.Terrain)
	e.stars.ApplyLive(cfg.Star)
}

// committed persists the configuration and announces it. Save failures are
// advisory only.
func (e *Engine) committed() {
	if e.prefs != nil {
		if err := prefs.Save(e.prefs, e.mgr.Config()); err != nil {
			e.logger.Printf("save preferences: %v", err)
			e.notice("Settings could not be saved; changes apply to this session only.")
		}
	}
	e.publishConfig()
}

func (e *Engine) publishConfig() {
	c := e.mgr.Config()
	e.publish(Event{Kind: EventConfig, Tick: e.tick, Config: &c})
}

func (e *Engine) OpenSettingsPanel()  { e.setSettingsPanel(true) }
func (e *Engine) CloseSettingsPanel() { e.setSettingsPanel(false) }

func (e *Engine) setSettingsPanel(open bool) {
	if e.settingsOpen == open {
		return
	}
	e.settingsOpen = open
	e.publish(Event{Kind: EventSettingsPanel, Tick: e.tick, Open: &open})
}

func (e *Engine) SettingsPanelOpen() bool { return e.settingsOpen }

// Resize schedules a viewport change. Bursts are coalesced: the last size is
// applied once no further resize arrived for the debounce interval.
func (e *Engine) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w %dx%d", ErrInvalidViewport, width, height)
	}
	e.pendingResize = &Viewport{Width: width, Height: height}
	e.resizeAt = e.now().Add(e.tune.ResizeDebounce())
	return nil
}

func (e *Engine) Viewport() Viewport { return e.viewport }

func (e *Engine) Config() config.Config { return e.mgr.Config() }
func (e *Engine) Presets() []string     { return e.mgr.PresetNames() }
func (e *Engine) CurrentTick() uint64   { return e.tick }
func (e *Engine) Halted() bool          { return e.halted }

// Notices returns recent advisory messages, including those raised during New.
func (e *Engine) Notices() []string {
	return append([]string(nil), e.notices...)
}

// Snapshot captures the live terrain heightfield.
func (e *Engine) Snapshot() snapshot.HeightfieldV1 {
	p := e.cam.Position
	return snapshot.HeightfieldV1{
		Header:  snapshot.Header{Tick: e.tick, Seed: e.field.Seed()},
		Terrain: e.terrain.ExportTerrain(),
		Camera:  [3]float64{p.X(), p.Y(), p.Z()},
		Quality: e.mgr.Quality(),
		Chunks:  e.terrain.ExportChunks(),
	}
}
