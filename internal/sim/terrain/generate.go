package terrain

import (
	"driftscape.app/internal/render"
	"driftscape.app/internal/sim/grid"
)

// SideFor is the number of samples per axis, including overlap rows on both edges.
func SideFor(segments, overlap int) int {
	return segments + 2*overlap + 1
}

func (s *Store) shape() shapeKey {
	return shapeKey{chunkSize: s.cfg.ChunkSize, overlap: s.cfg.Overlap, segments: s.cfg.Segments}
}

func (s *Store) templateFor(k shapeKey) *template {
	if t, ok := s.templates[k]; ok {
		return t
	}
	side := SideFor(k.segments, k.overlap)
	step := float64(k.chunkSize) / float64(k.segments)
	t := &template{side: side, positions: make([]float32, side*side*3)}
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			i := (col + row*side) * 3
			t.positions[i] = float32(float64(col-k.overlap) * step)
			t.positions[i+2] = float32(float64(row-k.overlap) * step)
		}
	}
	s.templates[k] = t
	s.templateBuilds++
	return t
}

// GenerateSamples fills a chunk's heightfield. Overlap rows extend past the chunk
// edge so neighbours compute identical heights along shared borders.
func (s *Store) GenerateSamples(k grid.ChunkKey) ([]float32, int) {
	side := SideFor(s.cfg.Segments, s.cfg.Overlap)
	step := float64(s.cfg.ChunkSize) / float64(s.cfg.Segments)
	baseX := float64(k.CX * s.cfg.ChunkSize)
	baseZ := float64(k.CZ * s.cfg.ChunkSize)

	out := make([]float32, side*side)
	for row := 0; row < side; row++ {
		wz := baseZ + float64(row-s.cfg.Overlap)*step
		for col := 0; col < side; col++ {
			wx := baseX + float64(col-s.cfg.Overlap)*step
			h := s.field.FractalCached(s.cache, wx*s.cfg.NoiseScale, wz*s.cfg.NoiseScale,
				s.fractal.Octaves, s.fractal.Persistence, s.fractal.Lacunarity)
			out[col+row*side] = float32(h * s.cfg.HeightScale)
		}
	}
	return out, side
}

// Ensure creates the chunk at k unless it is already live. It reports whether a
// chunk was created.
func (s *Store) Ensure(k grid.ChunkKey) bool {
	if _, ok := s.Chunks[k]; ok {
		return false
	}
	samples, side := s.GenerateSamples(k)

	tmpl := s.templateFor(s.shape())
	positions := make([]float32, len(tmpl.positions))
	copy(positions, tmpl.positions)
	for i, h := range samples {
		positions[i*3+1] = h
	}

	geom := s.backend.NewGeometry(render.GeometryData{
		Positions: positions,
		Origin:    originOf(k, s.cfg.ChunkSize),
	})
	mesh := s.backend.NewMesh(geom, s.material)
	s.backend.AddPrimitive(mesh)

	s.order++
	s.Chunks[k] = &Chunk{
		Key:      k,
		Samples:  samples,
		Side:     side,
		Order:    s.order,
		Geometry: geom,
		Mesh:     mesh,
	}
	s.generated++
	return true
}
