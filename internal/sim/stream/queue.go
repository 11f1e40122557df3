// Package stream schedules chunk generation in bounded per-tick batches.
package stream

import "driftscape.app/internal/sim/grid"

// Generator is a chunk store the scheduler feeds.
type Generator interface {
	Has(grid.ChunkKey) bool
	Ensure(grid.ChunkKey) bool
}

// Queue is a FIFO of chunk keys awaiting generation. A key is held at most once.
type Queue struct {
	items   []grid.ChunkKey
	pending grid.KeySet
}

func NewQueue() *Queue {
	return &Queue{pending: grid.KeySet{}}
}

func (q *Queue) Len() int { return len(q.items) }

func (q *Queue) Pending(k grid.ChunkKey) bool { return q.pending.Has(k) }

// Enqueue appends keys that are neither pending nor already live in gen, keeping
// the caller's order. It returns the number of keys added.
func (q *Queue) Enqueue(gen Generator, keys []grid.ChunkKey) int {
	added := 0
	for _, k := range keys {
		if q.pending.Has(k) || gen.Has(k) {
			continue
		}
		q.items = append(q.items, k)
		q.pending[k] = struct{}{}
		added++
	}
	return added
}

func (q *Queue) Pop() (grid.ChunkKey, bool) {
	if len(q.items) == 0 {
		return grid.ChunkKey{}, false
	}
	k := q.items[0]
	q.items = q.items[1:]
	delete(q.pending, k)
	return k, true
}

// Keys returns a copy of the queued keys in drain order.
func (q *Queue) Keys() []grid.ChunkKey {
	return append([]grid.ChunkKey(nil), q.items...)
}

func (q *Queue) Clear() {
	q.items = nil
	q.pending = grid.KeySet{}
}
