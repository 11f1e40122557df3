package config

import (
	"fmt"
	"math"
	"sort"
)

type Domain string

const (
	DomainTerrain Domain = "terrain"
	DomainStar    Domain = "star"
	DomainQuality Domain = "quality"
)

// Effect says how a change reaches the running engine.
type Effect int

const (
	// LiveApply changes take effect on the next tick without touching chunks.
	LiveApply Effect = iota + 1
	// RequiresRestart changes only take effect after every chunk is rebuilt.
	RequiresRestart
)

func (e Effect) String() string {
	switch e {
	case LiveApply:
		return "live"
	case RequiresRestart:
		return "restart"
	default:
		return "none"
	}
}

type param struct {
	effect Effect
	set    func(c *Config, v any) error
}

var paramTable = map[Domain]map[string]param{
	DomainTerrain: {
		"chunkSize":        {RequiresRestart, intField(func(c *Config) *int { return &c.Terrain.ChunkSize })},
		"segments":         {RequiresRestart, intField(func(c *Config) *int { return &c.Terrain.Segments })},
		"renderDistance":   {RequiresRestart, intField(func(c *Config) *int { return &c.Terrain.RenderDistance })},
		"overlap":          {RequiresRestart, intField(func(c *Config) *int { return &c.Terrain.Overlap })},
		"heightScale":      {RequiresRestart, floatField(func(c *Config) *float64 { return &c.Terrain.HeightScale })},
		"noiseScale":       {RequiresRestart, floatField(func(c *Config) *float64 { return &c.Terrain.NoiseScale })},
		"fogNear":          {RequiresRestart, floatField(func(c *Config) *float64 { return &c.Terrain.FogNear })},
		"fogFar":           {RequiresRestart, floatField(func(c *Config) *float64 { return &c.Terrain.FogFar })},
		"moveSpeed":        {RequiresRestart, vecField(func(c *Config) *Vec3 { return &c.Terrain.MoveSpeed })},
		"initialChunks":    {RequiresRestart, intField(func(c *Config) *int { return &c.Terrain.InitialChunks })},
		"batchSize":        {RequiresRestart, intField(func(c *Config) *int { return &c.Terrain.BatchSize })},
		"antialias":        {RequiresRestart, boolField(func(c *Config) *bool { return &c.Terrain.Antialias })},
		"pixelRatio":       {RequiresRestart, floatField(func(c *Config) *float64 { return &c.Terrain.PixelRatio })},
		"updateThreshold":  {LiveApply, floatField(func(c *Config) *float64 { return &c.Terrain.UpdateThreshold })},
		"cameraHeight":     {LiveApply, floatField(func(c *Config) *float64 { return &c.Terrain.CameraHeight })},
		"cameraDistance":   {LiveApply, floatField(func(c *Config) *float64 { return &c.Terrain.CameraDistance })},
		"wireframe":        {LiveApply, boolField(func(c *Config) *bool { return &c.Terrain.Wireframe })},
		"wireframeOpacity": {LiveApply, floatField(func(c *Config) *float64 { return &c.Terrain.WireframeOpacity })},
		"terrainColor":     {LiveApply, stringField(func(c *Config) *string { return &c.Terrain.TerrainColor })},
	},
	DomainStar: {
		"chunkSize":      {RequiresRestart, intField(func(c *Config) *int { return &c.Star.ChunkSize })},
		"renderDistance": {RequiresRestart, intField(func(c *Config) *int { return &c.Star.RenderDistance })},
		"starsPerChunk":  {RequiresRestart, intField(func(c *Config) *int { return &c.Star.StarsPerChunk })},
		"batchSize":      {RequiresRestart, intField(func(c *Config) *int { return &c.Star.BatchSize })},
		"yRange":         {RequiresRestart, rangeField(func(c *Config) *Range { return &c.Star.YRange })},
		"enabled":        {LiveApply, boolField(func(c *Config) *bool { return &c.Star.Enabled })},
		"starSize":       {LiveApply, floatField(func(c *Config) *float64 { return &c.Star.StarSize })},
		"starOpacity":    {LiveApply, floatField(func(c *Config) *float64 { return &c.Star.StarOpacity })},
	},
}

// EffectOf looks up the effect class of a parameter.
func EffectOf(d Domain, name string) (Effect, bool) {
	p, ok := paramTable[d][name]
	if !ok {
		return 0, false
	}
	return p.effect, true
}

// Params lists the parameter names of a domain, sorted.
func Params(d Domain) []string {
	out := make([]string, 0, len(paramTable[d]))
	for name := range paramTable[d] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func intField(field func(*Config) *int) func(*Config, any) error {
	return func(c *Config, v any) error {
		n, err := toInt(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatField(field func(*Config) *float64) func(*Config, any) error {
	return func(c *Config, v any) error {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func boolField(field func(*Config) *bool) func(*Config, any) error {
	return func(c *Config, v any) error {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
		*field(c) = b
		return nil
	}
}

func stringField(field func(*Config) *string) func(*Config, any) error {
	return func(c *Config, v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		*field(c) = s
		return nil
	}
}

func vecField(field func(*Config) *Vec3) func(*Config, any) error {
	return func(c *Config, v any) error {
		switch vv := v.(type) {
		case Vec3:
			*field(c) = vv
			return nil
		case map[string]any:
			cur := *field(c)
			for axis, dst := range map[string]*float64{"x": &cur.X, "y": &cur.Y, "z": &cur.Z} {
				raw, ok := vv[axis]
				if !ok {
					continue
				}
				f, err := toFloat(raw)
				if err != nil {
					return fmt.Errorf("%s: %w", axis, err)
				}
				*dst = f
			}
			*field(c) = cur
			return nil
		default:
			return fmt.Errorf("expected {x,y,z}, got %T", v)
		}
	}
}

func rangeField(field func(*Config) *Range) func(*Config, any) error {
	return func(c *Config, v any) error {
		switch vv := v.(type) {
		case Range:
			*field(c) = vv
			return nil
		case []any:
			if len(vv) != 2 {
				return fmt.Errorf("expected [min,max], got %d values", len(vv))
			}
			lo, err := toFloat(vv[0])
			if err != nil {
				return err
			}
			hi, err := toFloat(vv[1])
			if err != nil {
				return err
			}
			*field(c) = Range{Min: lo, Max: hi}
			return nil
		case map[string]any:
			lo, err := toFloat(vv["min"])
			if err != nil {
				return fmt.Errorf("min: %w", err)
			}
			hi, err := toFloat(vv["max"])
			if err != nil {
				return fmt.Errorf("max: %w", err)
			}
			*field(c) = Range{Min: lo, Max: hi}
			return nil
		default:
			return fmt.Errorf("expected {min,max}, got %T", v)
		}
	}
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected finite number")
	}
	return f, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	return int(f), nil
}
