package engine

import (
	"log"
	"time"

	"driftscape.app/internal/persistence/prefs"
	"driftscape.app/internal/persistence/snapshot"
	"driftscape.app/internal/render"
	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/grid"
	"driftscape.app/internal/sim/tuning"
)

type Options struct {
	// Tuning defaults to tuning.Defaults() when nil.
	Tuning  *tuning.Tuning
	Backend render.Backend

	// Prefs is optional; without it nothing is loaded or saved.
	Prefs prefs.Store

	Logger       *log.Logger
	TickLogger   TickLogger
	ConfigLogger ConfigLogger

	// SnapshotSink receives heightfield snapshots requested through RequestSnapshot.
	SnapshotSink chan<- snapshot.HeightfieldV1

	Viewport Viewport
	Clock    func() time.Time
}

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type TickLogger interface {
	WriteTick(TickLogEntry) error
}

type ConfigLogger interface {
	WriteConfig(ConfigLogEntry) error
}

// TickLogEntry describes one tick that changed the streamed set.
type TickLogEntry struct {
	Tick   uint64        `json:"tick"`
	Camera [3]float64    `json:"camera"`
	Center grid.ChunkKey `json:"center"`

	TerrainGenerated []grid.ChunkKey `json:"terrain_generated,omitempty"`
	StarGenerated    []grid.ChunkKey `json:"star_generated,omitempty"`
	TerrainEvicted   int             `json:"terrain_evicted,omitempty"`
	StarEvicted      int             `json:"star_evicted,omitempty"`

	TerrainQueue int `json:"terrain_queue"`
	StarQueue    int `json:"star_queue"`

	Recomputed bool `json:"recomputed,omitempty"`
	Restarted  bool `json:"restarted,omitempty"`
	Ready      bool `json:"ready,omitempty"`
}

func (e TickLogEntry) active() bool {
	return len(e.TerrainGenerated) > 0 || len(e.StarGenerated) > 0 ||
		e.TerrainEvicted > 0 || e.StarEvicted > 0 ||
		e.Recomputed || e.Restarted || e.Ready
}

const (
	OpSetParam      = "set_param"
	OpApplyPreset   = "apply_preset"
	OpResetDefaults = "reset_defaults"
	OpLoad          = "load"
)

// ConfigLogEntry records one configuration mutation, accepted or not.
type ConfigLogEntry struct {
	Tick    uint64 `json:"tick"`
	Op      string `json:"op"`
	Domain  string `json:"domain,omitempty"`
	Name    string `json:"name,omitempty"`
	Value   any    `json:"value,omitempty"`
	Effect  string `json:"effect,omitempty"`
	Quality string `json:"quality"`
	Error   string `json:"error,omitempty"`
}

type EventKind string

const (
	EventReady         EventKind = "READY"
	EventNotice        EventKind = "NOTICE"
	EventConfig        EventKind = "CONFIG"
	EventSettingsPanel EventKind = "SETTINGS_PANEL"
)

type Event struct {
	Kind    EventKind      `json:"kind"`
	Tick    uint64         `json:"tick"`
	Message string         `json:"message,omitempty"`
	Config  *config.Config `json:"config,omitempty"`
	Open    *bool          `json:"open,omitempty"`
}
