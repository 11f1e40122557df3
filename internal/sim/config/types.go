package config

import "github.com/go-gl/mathgl/mgl64"

// QualityCustom marks a configuration whose quality fields were edited by hand.
const QualityCustom = "custom"

type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (v Vec3) Mgl() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

type TerrainConfig struct {
	ChunkSize        int     `json:"chunkSize" yaml:"chunk_size"`
	Segments         int     `json:"segments" yaml:"segments"`
	RenderDistance   int     `json:"renderDistance" yaml:"render_distance"`
	Overlap          int     `json:"overlap" yaml:"overlap"`
	UpdateThreshold  float64 `json:"updateThreshold" yaml:"update_threshold"`
	HeightScale      float64 `json:"heightScale" yaml:"height_scale"`
	NoiseScale       float64 `json:"noiseScale" yaml:"noise_scale"`
	FogNear          float64 `json:"fogNear" yaml:"fog_near"`
	FogFar           float64 `json:"fogFar" yaml:"fog_far"`
	CameraHeight     float64 `json:"cameraHeight" yaml:"camera_height"`
	CameraDistance   float64 `json:"cameraDistance" yaml:"camera_distance"`
	MoveSpeed        Vec3    `json:"moveSpeed" yaml:"move_speed"`
	InitialChunks    int     `json:"initialChunks" yaml:"initial_chunks"`
	BatchSize        int     `json:"batchSize" yaml:"batch_size"`
	Wireframe        bool    `json:"wireframe" yaml:"wireframe"`
	WireframeOpacity float64 `json:"wireframeOpacity" yaml:"wireframe_opacity"`
	Antialias        bool    `json:"antialias" yaml:"antialias"`
	PixelRatio       float64 `json:"pixelRatio" yaml:"pixel_ratio"`
	TerrainColor     string  `json:"terrainColor" yaml:"terrain_color"`
}

type StarConfig struct {
	ChunkSize      int     `json:"chunkSize" yaml:"chunk_size"`
	RenderDistance int     `json:"renderDistance" yaml:"render_distance"`
	StarsPerChunk  int     `json:"starsPerChunk" yaml:"stars_per_chunk"`
	BatchSize      int     `json:"batchSize" yaml:"batch_size"`
	YRange         Range   `json:"yRange" yaml:"y_range"`
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	StarSize       float64 `json:"starSize" yaml:"star_size"`
	StarOpacity    float64 `json:"starOpacity" yaml:"star_opacity"`
}

// Preset is a named bundle of the quality-related terrain fields.
type Preset struct {
	Name           string  `json:"name" yaml:"name"`
	Segments       int     `json:"segments" yaml:"segments"`
	RenderDistance int     `json:"renderDistance" yaml:"render_distance"`
	Antialias      bool    `json:"antialias" yaml:"antialias"`
	PixelRatio     float64 `json:"pixelRatio" yaml:"pixel_ratio"`
}

func (p Preset) applyTo(t *TerrainConfig) {
	t.Segments = p.Segments
	t.RenderDistance = p.RenderDistance
	t.Antialias = p.Antialias
	t.PixelRatio = p.PixelRatio
}

// Config is the full tunable state of one engine.
type Config struct {
	Terrain TerrainConfig `json:"terrain" yaml:"terrain"`
	Star    StarConfig    `json:"star" yaml:"star"`
	Quality string        `json:"quality" yaml:"quality"`
}

func DefaultTerrain() TerrainConfig {
	return TerrainConfig{
		ChunkSize:        30,
		Segments:         40,
		RenderDistance:   4,
		Overlap:          1,
		UpdateThreshold:  10,
		HeightScale:      8,
		NoiseScale:       0.02,
		FogNear:          60,
		FogFar:           150,
		CameraHeight:     15,
		CameraDistance:   40,
		MoveSpeed:        Vec3{X: 0, Y: 0, Z: -0.3},
		InitialChunks:    20,
		BatchSize:        2,
		Wireframe:        true,
		WireframeOpacity: 0.35,
		Antialias:        true,
		PixelRatio:       1,
		TerrainColor:     "#4fd1c5",
	}
}

func DefaultStar() StarConfig {
	return StarConfig{
		ChunkSize:      200,
		RenderDistance: 2,
		StarsPerChunk:  150,
		BatchSize:      1,
		YRange:         Range{Min: 40, Max: 120},
		Enabled:        true,
		StarSize:       1.5,
		StarOpacity:    0.8,
	}
}

func DefaultPresets() []Preset {
	return []Preset{
		{Name: "low", Segments: 24, RenderDistance: 3, Antialias: false, PixelRatio: 0.75},
		{Name: "medium", Segments: 40, RenderDistance: 4, Antialias: true, PixelRatio: 1},
		{Name: "high", Segments: 60, RenderDistance: 5, Antialias: true, PixelRatio: 1.5},
		{Name: "ultra", Segments: 80, RenderDistance: 7, Antialias: true, PixelRatio: 2},
	}
}

func Defaults() Config {
	return Config{
		Terrain: DefaultTerrain(),
		Star:    DefaultStar(),
		Quality: "medium",
	}
}
