// Package stars streams ambient point clusters on a grid independent of the terrain.
package stars

import (
	"errors"
	"fmt"
	"math/rand"

	"driftscape.app/internal/render"
	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/grid"
	"driftscape.app/internal/sim/mathx"
)

type Chunk struct {
	Key grid.ChunkKey
	// Positions holds StarsPerChunk xyz triples in world space.
	Positions []float32
	Variant   string
	Visible   bool

	Material render.Handle
	Points   render.Handle
}

func (c *Chunk) Count() int { return len(c.Positions) / 3 }

// Store is the set of live star chunks. Textures are shared across chunks by
// variant; materials belong to one chunk each. Not safe for concurrent use.
type Store struct {
	cfg      config.StarConfig
	seed     int64
	variants []string
	backend  render.Backend

	textures map[string]render.Handle

	Chunks map[grid.ChunkKey]*Chunk

	generated uint64
}

func NewStore(cfg config.StarConfig, seed int64, variants []string, backend render.Backend) *Store {
	if len(variants) == 0 {
		variants = []string{"star-soft", "star-sharp"}
	}
	return &Store{
		cfg:      cfg,
		seed:     seed,
		variants: append([]string(nil), variants...),
		backend:  backend,
		textures: map[string]render.Handle{},
		Chunks:   map[grid.ChunkKey]*Chunk{},
	}
}

func (s *Store) Config() config.StarConfig { return s.cfg }
func (s *Store) Len() int                  { return len(s.Chunks) }
func (s *Store) Generated() uint64         { return s.generated }
func (s *Store) TextureCount() int         { return len(s.textures) }

func (s *Store) Has(k grid.ChunkKey) bool {
	_, ok := s.Chunks[k]
	return ok
}

func (s *Store) textureFor(variant string) render.Handle {
	if h, ok := s.textures[variant]; ok {
		return h
	}
	h := s.backend.NewTexture(variant)
	s.textures[variant] = h
	return h
}

func (s *Store) materialSpec(tex render.Handle) render.MaterialSpec {
	return render.MaterialSpec{
		Color:       "#ffffff",
		Opacity:     s.cfg.StarOpacity,
		Transparent: true,
		Size:        s.cfg.StarSize,
		Texture:     tex,
	}
}

// Scatter places the stars of chunk k. The layout is a pure function of the store
// seed and the chunk key.
func (s *Store) Scatter(k grid.ChunkKey) ([]float32, string) {
	rng := rand.New(rand.NewSource(int64(mathx.Hash2(s.seed, k.CX, k.CZ))))
	size := float64(s.cfg.ChunkSize)
	baseX := float64(k.CX) * size
	baseZ := float64(k.CZ) * size
	span := s.cfg.YRange.Max - s.cfg.YRange.Min

	out := make([]float32, 0, s.cfg.StarsPerChunk*3)
	for i := 0; i < s.cfg.StarsPerChunk; i++ {
		x := baseX + rng.Float64()*size
		y := s.cfg.YRange.Min + rng.Float64()*span
		z := baseZ + rng.Float64()*size
		out = append(out, float32(x), float32(y), float32(z))
	}
	return out, s.variants[rng.Intn(len(s.variants))]
}

// Ensure creates the star chunk at k unless it is already live.
func (s *Store) Ensure(k grid.ChunkKey) bool {
	if _, ok := s.Chunks[k]; ok {
		return false
	}
	positions, variant := s.Scatter(k)
	tex := s.textureFor(variant)
	mat := s.backend.NewMaterial(s.materialSpec(tex))
	pts := s.backend.NewPoints(positions, mat)
	s.backend.SetVisible(pts, s.cfg.Enabled)
	s.backend.AddPrimitive(pts)

	s.Chunks[k] = &Chunk{
		Key:       k,
		Positions: positions,
		Variant:   variant,
		Visible:   s.cfg.Enabled,
		Material:  mat,
		Points:    pts,
	}
	s.generated++
	return true
}

func (s *Store) dispose(ch *Chunk) error {
	s.backend.RemovePrimitive(ch.Points)
	if err := s.backend.DisposeMaterial(ch.Material); err != nil {
		return fmt.Errorf("star chunk %d,%d: %w", ch.Key.CX, ch.Key.CZ, err)
	}
	return nil
}

// Evict disposes every live chunk outside required.
func (s *Store) Evict(required grid.KeySet) (evicted int, err error) {
	var errs []error
	for k, ch := range s.Chunks {
		if required.Has(k) {
			continue
		}
		if e := s.dispose(ch); e != nil {
			errs = append(errs, e)
		}
		delete(s.Chunks, k)
		evicted++
	}
	return evicted, errors.Join(errs...)
}

// DisposeAll removes every live chunk and resets the generated counter.
func (s *Store) DisposeAll() error {
	var errs []error
	for k, ch := range s.Chunks {
		if e := s.dispose(ch); e != nil {
			errs = append(errs, e)
		}
		delete(s.Chunks, k)
	}
	s.generated = 0
	return errors.Join(errs...)
}

// ClearTextures releases the shared texture cache. Callers dispose chunks first.
func (s *Store) ClearTextures() error {
	var errs []error
	for v, h := range s.textures {
		if e := s.backend.DisposeTexture(h); e != nil {
			errs = append(errs, fmt.Errorf("star texture %s: %w", v, e))
		}
		delete(s.textures, v)
	}
	return errors.Join(errs...)
}

func (s *Store) Reconfigure(cfg config.StarConfig) { s.cfg = cfg }

// ApplyLive updates visibility, size and opacity of every live chunk in place.
func (s *Store) ApplyLive(cfg config.StarConfig) {
	s.cfg.Enabled = cfg.Enabled
	s.cfg.StarSize = cfg.StarSize
	s.cfg.StarOpacity = cfg.StarOpacity
	for _, ch := range s.Chunks {
		ch.Visible = cfg.Enabled
		s.backend.SetVisible(ch.Points, cfg.Enabled)
		s.backend.UpdateMaterial(ch.Material, s.materialSpec(s.textures[ch.Variant]))
	}
}

// Shutdown releases every chunk and the texture cache.
func (s *Store) Shutdown() error {
	return errors.Join(s.DisposeAll(), s.ClearTextures())
}
