package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"driftscape.app/internal/sim/engine"
	"driftscape.app/internal/sim/grid"
)

func readTicks(t *testing.T, path string) []engine.TickLogEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()
	var got []engine.TickLogEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e engine.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, e)
	}
	return got
}

func TestTickLogger_WritesCompressedJSONL(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir, "run1")
	for i := 1; i <= 3; i++ {
		e := engine.TickLogEntry{Tick: uint64(i), Center: grid.ChunkKey{CX: i}, TerrainGenerated: []grid.ChunkKey{{CX: i, CZ: -i}}}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "ticks", "ticks-run1-*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	got := readTicks(t, files[0])
	if len(got) != 3 || got[2].Tick != 3 || got[2].TerrainGenerated[0] != (grid.ChunkKey{CX: 3, CZ: -3}) {
		t.Fatalf("entries: %+v", got)
	}
}

func TestSegmentWriter_SplitsByTickRange(t *testing.T) {
	dir := t.TempDir()
	w := NewSegmentWriter(dir, "ticks", "r", 10)
	for _, tick := range []uint64{0, 9, 10, 25, 3} {
		if err := w.WriteAt(tick, engine.TickLogEntry{Tick: tick}); err != nil {
			t.Fatalf("write %d: %v", tick, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	want := map[uint64][]uint64{0: {0, 9, 3}, 10: {10}, 20: {25}}
	for first, ticks := range want {
		got := readTicks(t, w.PathFor(first))
		if len(got) != len(ticks) {
			t.Fatalf("segment %d: %+v", first, got)
		}
		for i, e := range got {
			if e.Tick != ticks[i] {
				t.Fatalf("segment %d entry %d: tick %d want %d", first, i, e.Tick, ticks[i])
			}
		}
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if len(files) != 3 {
		t.Fatalf("files=%v", files)
	}
}

func TestSegmentWriter_RunsDoNotShareFiles(t *testing.T) {
	dir := t.TempDir()
	a := NewSegmentWriter(dir, "ticks", RunID(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)), 0)
	b := NewSegmentWriter(dir, "ticks", RunID(time.Date(2026, 1, 2, 3, 9, 0, 0, time.UTC)), 0)
	if a.PathFor(0) == b.PathFor(0) {
		t.Fatalf("runs share segment path %s", a.PathFor(0))
	}
	if !(filepath.Base(a.PathFor(0)) < filepath.Base(b.PathFor(0))) {
		t.Fatalf("run order not lexical: %s %s", a.PathFor(0), b.PathFor(0))
	}
	if filepath.Base(a.PathFor(DefaultSegmentTicks)) != "ticks-20260102T030405Z-000000020000.jsonl.zst" {
		t.Fatalf("path=%s", a.PathFor(DefaultSegmentTicks))
	}
}

func TestConfigLogger_CloseWithoutWrites(t *testing.T) {
	l := NewConfigLogger(t.TempDir(), "")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
