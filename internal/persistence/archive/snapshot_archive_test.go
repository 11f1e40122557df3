package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"driftscape.app/internal/persistence/snapshot"
)

func writeDummy(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("dummy"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestArchiveVariantSnapshot_FirstPerVariantOnly(t *testing.T) {
	dataDir := t.TempDir()
	snap := snapshot.HeightfieldV1{
		Header:  snapshot.Header{Tick: 10, Seed: 42},
		Terrain: snapshot.TerrainV1{ChunkSize: 30, Segments: 40},
		Quality: "medium",
	}
	first := filepath.Join(dataDir, "snapshots", "10.snap.zst")
	writeDummy(t, first)

	archivedPath, ok, err := ArchiveVariantSnapshot(dataDir, first, snap)
	if err != nil || !ok {
		t.Fatalf("archive: ok=%v err=%v", ok, err)
	}
	got, err := os.ReadFile(archivedPath)
	if err != nil || string(got) != "dummy" {
		t.Fatalf("archived content=%q err=%v", got, err)
	}
	b, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	var meta VariantMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Seed != 42 || meta.Tick != 10 || meta.Terrain.Segments != 40 {
		t.Fatalf("meta=%+v", meta)
	}

	snap.Header.Tick = 20
	second := filepath.Join(dataDir, "snapshots", "20.snap.zst")
	writeDummy(t, second)
	if _, ok, err := ArchiveVariantSnapshot(dataDir, second, snap); err != nil || ok {
		t.Fatalf("same variant archived again: ok=%v err=%v", ok, err)
	}

	snap.Terrain.Segments = 60
	if _, ok, err := ArchiveVariantSnapshot(dataDir, second, snap); err != nil || !ok {
		t.Fatalf("new variant not archived: ok=%v err=%v", ok, err)
	}
}

func TestPruneSnapshotsKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"5.snap.zst", "40.snap.zst", "12.snap.zst", "readme.txt"} {
		writeDummy(t, filepath.Join(dir, name))
	}
	removed, err := PruneSnapshots(dir, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(removed) != 1 || filepath.Base(removed[0]) != "5.snap.zst" {
		t.Fatalf("removed=%v", removed)
	}
	for _, name := range []string{"40.snap.zst", "12.snap.zst", "readme.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s missing: %v", name, err)
		}
	}
	if removed, err := PruneSnapshots(filepath.Join(dir, "absent"), 2); err != nil || removed != nil {
		t.Fatalf("missing dir: removed=%v err=%v", removed, err)
	}
}
