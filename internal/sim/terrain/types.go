// Package terrain owns the live heightfield chunks around the camera.
package terrain

import (
	"driftscape.app/internal/render"
	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/grid"
	"driftscape.app/internal/sim/noise"
)

type Chunk struct {
	Key grid.ChunkKey
	// Samples is row-major, Side*Side entries; rows run along Z.
	Samples []float32
	Side    int
	Order   uint64

	Geometry render.Handle
	Mesh     render.Handle
}

func (c *Chunk) index(col, row int) int {
	return col + row*c.Side
}

func (c *Chunk) Height(col, row int) float32 {
	return c.Samples[c.index(col, row)]
}

// FractalParams are the octave settings used for every height sample.
type FractalParams struct {
	Octaves     int
	Persistence float64
	Lacunarity  float64
}

type shapeKey struct {
	chunkSize int
	overlap   int
	segments  int
}

// template is the height-independent vertex grid shared by every chunk with the
// same shape. Y components are zero.
type template struct {
	side      int
	positions []float32
}

// Store is the set of live terrain chunks. Not safe for concurrent use.
type Store struct {
	cfg     config.TerrainConfig
	field   *noise.Field
	cache   *noise.Cache
	fractal FractalParams
	backend render.Backend

	material  render.Handle
	templates map[shapeKey]*template

	Chunks map[grid.ChunkKey]*Chunk

	order          uint64
	generated      uint64
	templateBuilds uint64
}

func NewStore(cfg config.TerrainConfig, field *noise.Field, cache *noise.Cache, fp FractalParams, backend render.Backend) *Store {
	s := &Store{
		cfg:       cfg,
		field:     field,
		cache:     cache,
		fractal:   fp,
		backend:   backend,
		templates: map[shapeKey]*template{},
		Chunks:    map[grid.ChunkKey]*Chunk{},
	}
	s.material = backend.NewMaterial(s.materialSpec())
	return s
}

func (s *Store) materialSpec() render.MaterialSpec {
	return render.MaterialSpec{
		Color:       s.cfg.TerrainColor,
		Wireframe:   s.cfg.Wireframe,
		Opacity:     s.cfg.WireframeOpacity,
		Transparent: s.cfg.Wireframe,
		Fog:         true,
	}
}

func (s *Store) Config() config.TerrainConfig { return s.cfg }
func (s *Store) Material() render.Handle      { return s.material }
func (s *Store) Len() int                     { return len(s.Chunks) }
func (s *Store) Generated() uint64            { return s.generated }
func (s *Store) TemplateBuilds() uint64       { return s.templateBuilds }
func (s *Store) TemplateCount() int           { return len(s.templates) }
