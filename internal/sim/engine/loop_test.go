package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"driftscape.app/internal/persistence/snapshot"
	"driftscape.app/internal/render"
	"driftscape.app/internal/sim/config"
)

func TestRun_ServesCallsAndSnapshots(t *testing.T) {
	sink := make(chan snapshot.HeightfieldV1, 1)
	h := newHarness(t, func(o *Options) { o.SnapshotSink = sink })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.e.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for h.e.Metrics().TerrainChunks < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("engine loop did not stream chunks")
		}
		time.Sleep(10 * time.Millisecond)
	}

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	var eff config.Effect
	var setErr error
	if err := h.e.Do(callCtx, func(e *Engine) { eff, setErr = e.SetStarParam("starSize", 3.0) }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if setErr != nil || eff != config.LiveApply {
		t.Fatalf("starSize: eff=%v err=%v", eff, setErr)
	}

	tick, err := h.e.RequestSnapshot(callCtx)
	if err != nil {
		t.Fatalf("RequestSnapshot: %v", err)
	}
	snap := <-sink
	if snap.Header.Tick != tick || len(snap.Chunks) == 0 || snap.Header.Seed != 7 {
		t.Fatalf("snapshot: tick=%d chunks=%d seed=%d", snap.Header.Tick, len(snap.Chunks), snap.Header.Seed)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
}

func TestRun_RejectsSecondLoop(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.e.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !h.e.running.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("loop did not start")
		}
		time.Sleep(time.Millisecond)
	}
	if err := h.e.Run(ctx); err == nil {
		t.Fatalf("second Run should fail")
	}
	h.e.Stop()
}

func TestRequestSnapshot_WithoutSink(t *testing.T) {
	e, err := New(Options{Tuning: testTuning(), Backend: render.NewRecorder()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.RequestSnapshot(context.Background()); err == nil {
		t.Fatalf("expected error without sink")
	}
}
