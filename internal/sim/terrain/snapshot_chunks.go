package terrain

import "driftscape.app/internal/persistence/snapshot"

// ExportChunks copies the live heightfield in key order.
func (s *Store) ExportChunks() []snapshot.ChunkV1 {
	keys := s.LoadedChunkKeys()
	out := make([]snapshot.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := s.Chunks[k]
		out = append(out, snapshot.ChunkV1{
			CX:      k.CX,
			CZ:      k.CZ,
			Side:    ch.Side,
			Samples: append([]float32(nil), ch.Samples...),
		})
	}
	return out
}

// ExportTerrain records the generation parameters the samples depend on.
func (s *Store) ExportTerrain() snapshot.TerrainV1 {
	return snapshot.TerrainV1{
		ChunkSize:   s.cfg.ChunkSize,
		Segments:    s.cfg.Segments,
		Overlap:     s.cfg.Overlap,
		HeightScale: s.cfg.HeightScale,
		NoiseScale:  s.cfg.NoiseScale,
		Octaves:     s.fractal.Octaves,
		Persistence: s.fractal.Persistence,
		Lacunarity:  s.fractal.Lacunarity,
	}
}
