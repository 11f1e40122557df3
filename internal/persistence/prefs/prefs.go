// Package prefs serializes the user-tunable configuration to a key-value store.
// Camera placement is deliberately left out so a new session always starts from
// the tuning defaults.
package prefs

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"driftscape.app/internal/sim/config"
)

// Key is the store key holding the preferences document.
const Key = "driftscape.preferences"

//go:embed prefs.schema.json
var schemaText string

var schema = jsonschema.MustCompileString("prefs.schema.json", schemaText)

// TerrainPrefs is config.TerrainConfig without the camera fields.
type TerrainPrefs struct {
	ChunkSize        int         `json:"chunkSize"`
	Segments         int         `json:"segments"`
	RenderDistance   int         `json:"renderDistance"`
	Overlap          int         `json:"overlap"`
	UpdateThreshold  float64     `json:"updateThreshold"`
	HeightScale      float64     `json:"heightScale"`
	NoiseScale       float64     `json:"noiseScale"`
	FogNear          float64     `json:"fogNear"`
	FogFar           float64     `json:"fogFar"`
	MoveSpeed        config.Vec3 `json:"moveSpeed"`
	InitialChunks    int         `json:"initialChunks"`
	BatchSize        int         `json:"batchSize"`
	Wireframe        bool        `json:"wireframe"`
	WireframeOpacity float64     `json:"wireframeOpacity"`
	Antialias        bool        `json:"antialias"`
	PixelRatio       float64     `json:"pixelRatio"`
	TerrainColor     string      `json:"terrainColor"`
}

type Preferences struct {
	TerrainConfig  TerrainPrefs      `json:"terrainConfig"`
	StarConfig     config.StarConfig `json:"starConfig"`
	CurrentQuality string            `json:"currentQuality"`
}

func fromTerrain(t config.TerrainConfig) TerrainPrefs {
	return TerrainPrefs{
		ChunkSize:        t.ChunkSize,
		Segments:         t.Segments,
		RenderDistance:   t.RenderDistance,
		Overlap:          t.Overlap,
		UpdateThreshold:  t.UpdateThreshold,
		HeightScale:      t.HeightScale,
		NoiseScale:       t.NoiseScale,
		FogNear:          t.FogNear,
		FogFar:           t.FogFar,
		MoveSpeed:        t.MoveSpeed,
		InitialChunks:    t.InitialChunks,
		BatchSize:        t.BatchSize,
		Wireframe:        t.Wireframe,
		WireframeOpacity: t.WireframeOpacity,
		Antialias:        t.Antialias,
		PixelRatio:       t.PixelRatio,
		TerrainColor:     t.TerrainColor,
	}
}

// toTerrain rebuilds a full terrain config, taking camera fields from base.
func (p TerrainPrefs) toTerrain(base config.TerrainConfig) config.TerrainConfig {
	t := base
	t.ChunkSize = p.ChunkSize
	t.Segments = p.Segments
	t.RenderDistance = p.RenderDistance
	t.Overlap = p.Overlap
	t.UpdateThreshold = p.UpdateThreshold
	t.HeightScale = p.HeightScale
	t.NoiseScale = p.NoiseScale
	t.FogNear = p.FogNear
	t.FogFar = p.FogFar
	t.MoveSpeed = p.MoveSpeed
	t.InitialChunks = p.InitialChunks
	t.BatchSize = p.BatchSize
	t.Wireframe = p.Wireframe
	t.WireframeOpacity = p.WireframeOpacity
	t.Antialias = p.Antialias
	t.PixelRatio = p.PixelRatio
	t.TerrainColor = p.TerrainColor
	return t
}

func FromConfig(c config.Config) Preferences {
	return Preferences{
		TerrainConfig:  fromTerrain(c.Terrain),
		StarConfig:     c.Star,
		CurrentQuality: c.Quality,
	}
}

func Encode(c config.Config) ([]byte, error) {
	return json.Marshal(FromConfig(c))
}

// Decode overlays a stored document on defaults. Fields missing from the
// document keep their default values; camera fields always come from defaults.
func Decode(raw []byte, defaults config.Config) (config.Config, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return defaults, fmt.Errorf("decode preferences: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return defaults, fmt.Errorf("validate preferences: %w", err)
	}
	p := FromConfig(defaults)
	if err := json.Unmarshal(raw, &p); err != nil {
		return defaults, fmt.Errorf("decode preferences: %w", err)
	}
	out := config.Config{
		Terrain: p.TerrainConfig.toTerrain(defaults.Terrain),
		Star:    p.StarConfig,
		Quality: strings.TrimSpace(p.CurrentQuality),
	}
	if err := out.Validate(); err != nil {
		return defaults, err
	}
	return out, nil
}

// PersistenceError wraps a failed load or save.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("preferences %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Save writes the persisted subset of c.
func Save(s Store, c config.Config) error {
	b, err := Encode(c)
	if err != nil {
		return &PersistenceError{Op: "save", Key: Key, Err: err}
	}
	if err := s.Put(Key, b); err != nil {
		return &PersistenceError{Op: "save", Key: Key, Err: err}
	}
	return nil
}

// Load reads preferences merged over defaults. On any failure defaults are
// returned together with the error; ErrNotFound means nothing was saved yet.
func Load(s Store, defaults config.Config) (config.Config, error) {
	raw, err := s.Get(Key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return defaults, err
		}
		return defaults, &PersistenceError{Op: "load", Key: Key, Err: err}
	}
	c, err := Decode(raw, defaults)
	if err != nil {
		return defaults, &PersistenceError{Op: "load", Key: Key, Err: err}
	}
	return c, nil
}
