package terrain

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/grid"
)

func originOf(k grid.ChunkKey, chunkSize int) mgl64.Vec3 {
	return mgl64.Vec3{float64(k.CX * chunkSize), 0, float64(k.CZ * chunkSize)}
}

func (s *Store) Has(k grid.ChunkKey) bool {
	_, ok := s.Chunks[k]
	return ok
}

func (s *Store) LoadedChunkKeys() []grid.ChunkKey {
	keys := make([]grid.ChunkKey, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	grid.SortKeys(keys)
	return keys
}

func (s *Store) dispose(ch *Chunk) error {
	s.backend.RemovePrimitive(ch.Mesh)
	if err := s.backend.DisposeGeometry(ch.Geometry); err != nil {
		return fmt.Errorf("terrain chunk %d,%d: %w", ch.Key.CX, ch.Key.CZ, err)
	}
	return nil
}

// Evict disposes every live chunk outside required. Disposal failures do not
// stop the sweep; they are joined into the returned error.
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
	for _, k := range s.LoadedChunkKeys() {
		if e := s.dispose(s.Chunks[k]); e != nil {
			errs = append(errs, e)
		}
		delete(s.Chunks, k)
	}
	s.generated = 0
	return errors.Join(errs...)
}

// Reconfigure adopts a new configuration between restarts. Geometry templates for
// shapes other than the new one are dropped.
func (s *Store) Reconfigure(cfg config.TerrainConfig) {
	s.cfg = cfg
	keep := s.shape()
	for k := range s.templates {
		if k != keep {
			delete(s.templates, k)
		}
	}
	s.backend.UpdateMaterial(s.material, s.materialSpec())
}

// ApplyLive pushes material-only changes without touching chunks.
func (s *Store) ApplyLive(cfg config.TerrainConfig) {
	s.cfg.Wireframe = cfg.Wireframe
	s.cfg.WireframeOpacity = cfg.WireframeOpacity
	s.cfg.TerrainColor = cfg.TerrainColor
	s.backend.UpdateMaterial(s.material, s.materialSpec())
}

// Shutdown releases every chunk, the shared material and the template cache.
func (s *Store) Shutdown() error {
	err := s.DisposeAll()
	if s.material != 0 {
		if e := s.backend.DisposeMaterial(s.material); e != nil {
			err = errors.Join(err, fmt.Errorf("terrain material: %w", e))
		}
		s.material = 0
	}
	s.templates = map[shapeKey]*template{}
	return err
}
