package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "42.snap.zst")
	in := HeightfieldV1{
		Header:  Header{Tick: 42, Seed: 1337},
		Terrain: TerrainV1{ChunkSize: 30, Segments: 2, Overlap: 0, HeightScale: 8, NoiseScale: 0.02, Octaves: 4, Persistence: 0.5, Lacunarity: 2},
		Camera:  [3]float64{1, 15, -3},
		Quality: "medium",
		Chunks: []ChunkV1{
			{CX: 0, CZ: -1, Side: 3, Samples: []float32{0, 1, 2, 3, 4, 5, 6, 7, 8}},
			{CX: 1, CZ: 0, Side: 3, Samples: []float32{-1, -1, -1, 0, 0, 0, 1, 1, 1}},
		},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.Version != Version || h.Tick != 42 || h.Chunks != 2 {
		t.Fatalf("header: %+v", h)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Header.Seed != 1337 || out.Quality != "medium" || out.Terrain != in.Terrain || out.Camera != in.Camera {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if len(out.Chunks) != 2 || out.Chunks[1].CX != 1 || out.Chunks[0].Samples[8] != 8 {
		t.Fatalf("chunks mismatch: %+v", out.Chunks)
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error")
	}
}
