package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"driftscape.app/internal/sim/engine"
)

// DefaultSegmentTicks is how many engine ticks one log segment covers.
const DefaultSegmentTicks = 20000

// SegmentWriter appends JSON lines to zstd-compressed segment files. A segment
// covers a fixed tick range within one run; tick counters restart with the
// process, so every writer names its files with the run id it was opened with.
//
// File layout: <baseDir>/<prefix>-<run>-<firstTick>.jsonl.zst, where firstTick is
// zero padded so lexical order is run order then tick order.
type SegmentWriter struct {
	baseDir string
	prefix  string
	run     string
	span    uint64

	mu     sync.Mutex
	segOK  bool
	segCur uint64
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewSegmentWriter(baseDir, prefix, run string, span uint64) *SegmentWriter {
	if span == 0 {
		span = DefaultSegmentTicks
	}
	if run == "" {
		run = RunID(time.Now())
	}
	return &SegmentWriter{
		baseDir: baseDir,
		prefix:  prefix,
		run:     run,
		span:    span,
	}
}

// RunID formats a process start time as a sortable run identifier.
func RunID(t time.Time) string { return t.UTC().Format("20060102T150405Z") }

func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// WriteAt appends v to the segment holding tick. Ticks may arrive out of order
// across a segment boundary; the writer then reopens the earlier segment.
func (w *SegmentWriter) WriteAt(tick uint64, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	seg := tick - tick%w.span
	if !w.segOK || seg != w.segCur {
		if err := w.rotateLocked(seg); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *SegmentWriter) rotateLocked(seg uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.PathFor(seg), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.segCur = seg
	w.segOK = true
	return nil
}

func (w *SegmentWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.segOK = false
	return err1
}

// PathFor returns the file that holds the segment starting at firstTick.
func (w *SegmentWriter) PathFor(firstTick uint64) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s-%012d.jsonl.zst", w.prefix, w.run, firstTick))
}

// TickLogger writes one JSONL entry per streaming tick that did work.
type TickLogger struct{ w *SegmentWriter }

func NewTickLogger(dataDir, run string) *TickLogger {
	return &TickLogger{w: NewSegmentWriter(filepath.Join(dataDir, "ticks"), "ticks", run, DefaultSegmentTicks)}
}

func (l *TickLogger) WriteTick(v engine.TickLogEntry) error { return l.w.WriteAt(v.Tick, v) }
func (l *TickLogger) Close() error                          { return l.w.Close() }

// ConfigLogger records every configuration mutation, accepted or rejected.
type ConfigLogger struct{ w *SegmentWriter }

func NewConfigLogger(dataDir, run string) *ConfigLogger {
	return &ConfigLogger{w: NewSegmentWriter(filepath.Join(dataDir, "config"), "config", run, DefaultSegmentTicks)}
}

func (l *ConfigLogger) WriteConfig(v engine.ConfigLogEntry) error { return l.w.WriteAt(v.Tick, v) }
func (l *ConfigLogger) Close() error                              { return l.w.Close() }
