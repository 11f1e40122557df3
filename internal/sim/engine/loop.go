package engine

import (
	"context"
	"errors"
	"time"
)

type call struct {
	fn   func(*Engine)
	done chan struct{}
}

// Run drives the engine at the tuned frame rate until ctx is done or Stop is
// called. Calls submitted through Do run between ticks on this goroutine.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine: already running")
	}
	defer e.running.Store(false)

	ticker := time.NewTicker(e.tune.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case c := <-e.calls:
			c.fn(e)
			close(c.done)
		case <-ticker.C:
			e.Tick()
		}
	}
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Do runs fn on the engine goroutine and waits for it to finish. It requires Run
// to be active.
func (e *Engine) Do(ctx context.Context, fn func(*Engine)) error {
	c := call{fn: fn, done: make(chan struct{})}
	select {
	case e.calls <- c:
	case <-e.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestSnapshot asks the engine goroutine to hand the current heightfield to
// the snapshot sink.
func (e *Engine) RequestSnapshot(ctx context.Context) (uint64, error) {
	if e.snapshotSink == nil {
		return 0, errors.New("snapshot sink not configured")
	}
	type queued struct {
		tick uint64
		err  error
	}
	ch := make(chan queued, 1)
	if err := e.Do(ctx, func(e *Engine) {
		snap := e.Snapshot()
		q := queued{tick: snap.Header.Tick}
		select {
		case e.snapshotSink <- snap:
		default:
			q.err = errors.New("snapshot queue full")
		}
		ch <- q
	}); err != nil {
		return 0, err
	}
	q := <-ch
	return q.tick, q.err
}
