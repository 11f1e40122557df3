// Package config owns the live-tunable terrain and star parameters and classifies
// every mutation as live-apply or restart-required.
package config

import (
	"fmt"
	"sort"
)

// Manager is the single writer of an engine's configuration. Not safe for
// concurrent use; the engine loop owns it.
type Manager struct {
	defaults Config
	presets  map[string]Preset

	cur          Config
	needsRestart bool
}

func NewManager(defaults Config, presets []Preset) (*Manager, error) {
	m := &Manager{
		defaults: defaults,
		presets:  map[string]Preset{},
	}
	for _, p := range presets {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.presets[p.Name]; dup {
			return nil, fmt.Errorf("duplicate quality preset %q", p.Name)
		}
		m.presets[p.Name] = p
	}
	if err := m.checkQuality(defaults.Quality); err != nil {
		return nil, err
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	m.cur = defaults
	return m, nil
}

func (m *Manager) Config() Config         { return m.cur }
func (m *Manager) Terrain() TerrainConfig { return m.cur.Terrain }
func (m *Manager) Star() StarConfig       { return m.cur.Star }
func (m *Manager) Quality() string        { return m.cur.Quality }
func (m *Manager) Defaults() Config       { return m.defaults }
func (m *Manager) NeedsRestart() bool     { return m.needsRestart }

func (m *Manager) HasPreset(name string) bool {
	_, ok := m.presets[name]
	return ok
}

// PresetNames lists the configured presets, sorted.
func (m *Manager) PresetNames() []string {
	out := make([]string, 0, len(m.presets))
	for name := range m.presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TakeRestart reports and clears a pending restart request.
func (m *Manager) TakeRestart() bool {
	r := m.needsRestart
	m.needsRestart = false
	return r
}

// SetParam validates and applies one parameter. On error nothing changes.
func (m *Manager) SetParam(d Domain, name string, value any) (Effect, error) {
	p, ok := paramTable[d][name]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnknownParam, d, name)
	}
	next := m.cur
	if err := p.set(&next, value); err != nil {
		return 0, &ValidationError{Domain: d, Name: name, Reason: err.Error()}
	}
	if err := next.Validate(); err != nil {
		return 0, err
	}
	if p.effect == RequiresRestart {
		next.Quality = QualityCustom
		m.needsRestart = true
	}
	m.cur = next
	return p.effect, nil
}

// ApplyPreset overwrites the quality fields from a named preset.
func (m *Manager) ApplyPreset(name string) error {
	p, ok := m.presets[name]
	if !ok {
		return &ValidationError{Domain: DomainQuality, Name: name, Reason: "unknown preset"}
	}
	next := m.cur
	p.applyTo(&next.Terrain)
	if err := next.Validate(); err != nil {
		return err
	}
	next.Quality = name
	m.cur = next
	m.needsRestart = true
	return nil
}

// Replace swaps in a whole configuration, e.g. one loaded from preferences.
func (m *Manager) Replace(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := m.checkQuality(c.Quality); err != nil {
		return err
	}
	m.cur = c
	m.needsRestart = true
	return nil
}

// ResetToDefaults restores the startup defaults.
func (m *Manager) ResetToDefaults() {
	m.cur = m.defaults
	m.needsRestart = true
}

func (m *Manager) checkQuality(q string) error {
	if q == QualityCustom {
		return nil
	}
	if _, ok := m.presets[q]; !ok {
		return &ValidationError{Domain: DomainQuality, Name: q, Reason: "unknown preset"}
	}
	return nil
}
