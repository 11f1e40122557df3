package terrain

import (
	"testing"

	"driftscape.app/internal/render"
	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/grid"
	"driftscape.app/internal/sim/noise"
)

func testConfig() config.TerrainConfig {
	c := config.DefaultTerrain()
	c.ChunkSize = 30
	c.Segments = 10
	c.Overlap = 1
	return c
}

func newTestStore(t *testing.T, cfg config.TerrainConfig) (*Store, *render.Recorder) {
	t.Helper()
	rec := render.NewRecorder()
	s := NewStore(cfg, noise.NewField(5), noise.NewCache(0), FractalParams{Octaves: 3, Persistence: 0.5, Lacunarity: 2}, rec)
	return s, rec
}

func TestEnsureBuildsChunkOnce(t *testing.T) {
	s, rec := newTestStore(t, testConfig())
	k := grid.ChunkKey{CX: 2, CZ: -1}
	if !s.Ensure(k) {
		t.Fatalf("first ensure should create")
	}
	if s.Ensure(k) {
		t.Fatalf("second ensure should be a no-op")
	}
	ch := s.Chunks[k]
	if ch.Side != 13 || len(ch.Samples) != 13*13 {
		t.Fatalf("side=%d samples=%d want 13, 169", ch.Side, len(ch.Samples))
	}
	if s.Generated() != 1 || s.Len() != 1 {
		t.Fatalf("generated=%d len=%d", s.Generated(), s.Len())
	}
	if rec.Live(render.KindGeometry) != 1 || rec.InScene() != 1 {
		t.Fatalf("backend state: geom=%d scene=%d", rec.Live(render.KindGeometry), rec.InScene())
	}
}

func TestSamplesMatchNoise(t *testing.T) {
	cfg := testConfig()
	s, _ := newTestStore(t, cfg)
	samples, side := s.GenerateSamples(grid.ChunkKey{CX: 1, CZ: 2})
	f := noise.NewField(5)
	step := float64(cfg.ChunkSize) / float64(cfg.Segments)
	row, col := 4, 7
	wx := float64(cfg.ChunkSize) + float64(col-cfg.Overlap)*step
	wz := float64(2*cfg.ChunkSize) + float64(row-cfg.Overlap)*step
	want := float32(f.Fractal(wx*cfg.NoiseScale, wz*cfg.NoiseScale, 3, 0.5, 2) * cfg.HeightScale)
	if got := samples[col+row*side]; got != want {
		t.Fatalf("sample=%v want %v", got, want)
	}
}

func TestNeighbourChunksShareBorder(t *testing.T) {
	cfg := testConfig()
	s, _ := newTestStore(t, cfg)
	s.Ensure(grid.ChunkKey{CX: 0, CZ: 0})
	s.Ensure(grid.ChunkKey{CX: 1, CZ: 0})
	a := s.Chunks[grid.ChunkKey{CX: 0, CZ: 0}]
	b := s.Chunks[grid.ChunkKey{CX: 1, CZ: 0}]
	// Column overlap+segments of chunk 0 sits on x=chunkSize, column overlap of chunk 1 too.
	for row := 0; row < a.Side; row++ {
		if a.Height(cfg.Overlap+cfg.Segments, row) != b.Height(cfg.Overlap, row) {
			t.Fatalf("seam mismatch on row %d", row)
		}
		// Overlap columns duplicate the neighbour's interior samples.
		if a.Height(cfg.Overlap+cfg.Segments+1, row) != b.Height(cfg.Overlap+1, row) {
			t.Fatalf("overlap mismatch on row %d", row)
		}
	}
}

func TestTemplateSharedByShape(t *testing.T) {
	s, _ := newTestStore(t, testConfig())
	for i := 0; i < 5; i++ {
		s.Ensure(grid.ChunkKey{CX: i, CZ: 0})
	}
	if s.TemplateBuilds() != 1 || s.TemplateCount() != 1 {
		t.Fatalf("template builds=%d count=%d want 1", s.TemplateBuilds(), s.TemplateCount())
	}
	cfg := testConfig()
	cfg.Segments = 20
	s.Reconfigure(cfg)
	if s.TemplateCount() != 0 {
		t.Fatalf("stale template kept after reshape")
	}
	s.Ensure(grid.ChunkKey{CX: 9, CZ: 9})
	if s.TemplateBuilds() != 2 {
		t.Fatalf("template builds=%d want 2", s.TemplateBuilds())
	}
}

func TestEvictKeepsIntersection(t *testing.T) {
	s, rec := newTestStore(t, testConfig())
	for x := -2; x <= 2; x++ {
		for z := -2; z <= 2; z++ {
			s.Ensure(grid.ChunkKey{CX: x, CZ: z})
		}
	}
	prior := map[grid.ChunkKey]bool{}
	for k := range s.Chunks {
		prior[k] = true
	}
	required := grid.RequiredSet(grid.ChunkKey{CX: 1, CZ: 0}, 2)
	evicted, err := s.Evict(required)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	want := 0
	for k := range prior {
		if required.Has(k) {
			want++
			if !s.Has(k) {
				t.Fatalf("required chunk %+v evicted", k)
			}
		}
	}
	if s.Len() != want || evicted != len(prior)-want {
		t.Fatalf("len=%d want %d evicted=%d", s.Len(), want, evicted)
	}
	for k := range s.Chunks {
		if !required.Has(k) || !prior[k] {
			t.Fatalf("unexpected chunk %+v", k)
		}
	}
	if rec.Live(render.KindGeometry) != want || rec.InScene() != want {
		t.Fatalf("backend not released: geom=%d scene=%d", rec.Live(render.KindGeometry), rec.InScene())
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	s, rec := newTestStore(t, testConfig())
	s.Ensure(grid.ChunkKey{})
	s.Ensure(grid.ChunkKey{CX: 1})
	if err := s.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if rec.Live(render.KindGeometry) != 0 || rec.Live(render.KindMaterial) != 0 || rec.InScene() != 0 {
		t.Fatalf("leaked resources")
	}
	if s.Generated() != 0 || s.Len() != 0 || s.TemplateCount() != 0 {
		t.Fatalf("store not cleared")
	}
}

func TestApplyLiveUpdatesSharedMaterial(t *testing.T) {
	s, rec := newTestStore(t, testConfig())
	s.Ensure(grid.ChunkKey{})
	cfg := testConfig()
	cfg.Wireframe = false
	cfg.TerrainColor = "#112233"
	s.ApplyLive(cfg)
	m, ok := rec.Material(s.Material())
	if !ok || m.Wireframe || m.Color != "#112233" {
		t.Fatalf("material not updated: %+v", m)
	}
	if s.Len() != 1 {
		t.Fatalf("live apply touched chunks")
	}
}

func TestExportChunksCopiesSamples(t *testing.T) {
	s, _ := newTestStore(t, testConfig())
	s.Ensure(grid.ChunkKey{CX: 1, CZ: 0})
	s.Ensure(grid.ChunkKey{CX: -1, CZ: 0})

	out := s.ExportChunks()
	if len(out) != 2 || out[0].CX != -1 || out[1].CX != 1 {
		t.Fatalf("export order: %+v", out)
	}
	out[0].Samples[0] = 1e6
	if s.Chunks[grid.ChunkKey{CX: -1}].Samples[0] == 1e6 {
		t.Fatalf("export aliases live samples")
	}
	if tv := s.ExportTerrain(); tv.Segments != 10 || tv.Octaves != 3 {
		t.Fatalf("terrain params: %+v", tv)
	}
}
