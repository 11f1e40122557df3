package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/mathx"
)

// Tuning is the engine-level configuration loaded from tuning.yaml. Fields here
// are fixed for the process lifetime; the user-tunable subset lives in Defaults
// and flows through config.Manager.
type Tuning struct {
	FrameRateHz      int `yaml:"frame_rate_hz"`
	ResizeDebounceMS int `yaml:"resize_debounce_ms"`

	Noise  Noise  `yaml:"noise"`
	Camera Camera `yaml:"camera"`
	Stars  Stars  `yaml:"stars"`

	Defaults config.Config   `yaml:"defaults"`
	Presets  []config.Preset `yaml:"presets"`
}

type Noise struct {
	// Seed 0 picks a time-derived seed at startup.
	Seed        int64   `yaml:"seed"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity"`
	CacheLimit  int     `yaml:"cache_limit"`
}

type Camera struct {
	VelocityLerp float64 `yaml:"velocity_lerp"`
	PositionLerp float64 `yaml:"position_lerp"`
	LookY        float64 `yaml:"look_y"`
}

type Stars struct {
	TextureVariants []string `yaml:"texture_variants"`
}

func Defaults() Tuning {
	return Tuning{
		FrameRateHz:      60,
		ResizeDebounceMS: 150,
		Noise: Noise{
			Octaves:     4,
			Persistence: 0.5,
			Lacunarity:  2,
			CacheLimit:  100000,
		},
		Camera: Camera{
			VelocityLerp: 0.02,
			PositionLerp: 0.05,
			LookY:        0,
		},
		Stars: Stars{
			TextureVariants: []string{"star-soft", "star-sharp"},
		},
		Defaults: config.Defaults(),
		Presets:  config.DefaultPresets(),
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills zero values left by a partial file and clamps the camera
// lerp factors to [0, 1].
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.FrameRateHz <= 0 {
		t.FrameRateHz = d.FrameRateHz
	}
	if t.ResizeDebounceMS < 0 {
		t.ResizeDebounceMS = 0
	}
	if t.Noise.Octaves <= 0 {
		t.Noise.Octaves = d.Noise.Octaves
	}
	if t.Noise.Persistence <= 0 {
		t.Noise.Persistence = d.Noise.Persistence
	}
	if t.Noise.Lacunarity <= 0 {
		t.Noise.Lacunarity = d.Noise.Lacunarity
	}
	if t.Camera.VelocityLerp <= 0 {
		t.Camera.VelocityLerp = d.Camera.VelocityLerp
	}
	if t.Camera.PositionLerp <= 0 {
		t.Camera.PositionLerp = d.Camera.PositionLerp
	}
	t.Camera.VelocityLerp = mathx.Clamp(t.Camera.VelocityLerp, 0, 1)
	t.Camera.PositionLerp = mathx.Clamp(t.Camera.PositionLerp, 0, 1)
	variants := t.Stars.TextureVariants[:0]
	for _, v := range t.Stars.TextureVariants {
		if v = strings.TrimSpace(v); v != "" {
			variants = append(variants, v)
		}
	}
	t.Stars.TextureVariants = variants
	if len(t.Stars.TextureVariants) == 0 {
		t.Stars.TextureVariants = d.Stars.TextureVariants
	}
	if len(t.Presets) == 0 {
		t.Presets = d.Presets
	}
	if strings.TrimSpace(t.Defaults.Quality) == "" {
		t.Defaults.Quality = d.Defaults.Quality
	}
}

func (t Tuning) Validate() error {
	if t.FrameRateHz > 240 {
		return fmt.Errorf("frame_rate_hz %d exceeds 240", t.FrameRateHz)
	}
	if err := t.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	_, err := config.NewManager(t.Defaults, t.Presets)
	return err
}

// Seed resolves the configured noise seed, substituting a time-derived one for 0.
func (t Tuning) Seed() int64 {
	if t.Noise.Seed != 0 {
		return t.Noise.Seed
	}
	return time.Now().UnixNano()
}

func (t Tuning) FrameInterval() time.Duration {
	return time.Second / time.Duration(t.FrameRateHz)
}

func (t Tuning) ResizeDebounce() time.Duration {
	return time.Duration(t.ResizeDebounceMS) * time.Millisecond
}
