package stream

import "driftscape.app/internal/sim/grid"

// TerrainGenerator also reports how many chunks it has built since the last restart.
type TerrainGenerator interface {
	Generator
	Generated() uint64
}

type Limits struct {
	TerrainBatch  int
	StarBatch     int
	InitialChunks int
}

type DrainResult struct {
	Terrain     int
	Star        int
	BecameReady bool

	// Keys created this tick, in drain order.
	TerrainKeys []grid.ChunkKey
	StarKeys    []grid.ChunkKey
}

// Scheduler owns the terrain and star generation queues.
type Scheduler struct {
	terrain TerrainGenerator
	star    Generator

	TerrainQueue *Queue
	StarQueue    *Queue

	ready bool
}

func NewScheduler(terrain TerrainGenerator, star Generator) *Scheduler {
	return &Scheduler{
		terrain:      terrain,
		star:         star,
		TerrainQueue: NewQueue(),
		StarQueue:    NewQueue(),
	}
}

func (s *Scheduler) EnqueueTerrain(keys []grid.ChunkKey) int {
	return s.TerrainQueue.Enqueue(s.terrain, keys)
}

func (s *Scheduler) EnqueueStar(keys []grid.ChunkKey) int {
	return s.StarQueue.Enqueue(s.star, keys)
}

// DrainTick runs one tick of generation. Terrain has strict priority: star
// entries are only drained on ticks that start with an empty terrain queue.
func (s *Scheduler) DrainTick(lim Limits) DrainResult {
	var res DrainResult
	if s.TerrainQueue.Len() > 0 {
		for i := 0; i < max(lim.TerrainBatch, 1); i++ {
			k, ok := s.TerrainQueue.Pop()
			if !ok {
				break
			}
			if s.terrain.Ensure(k) {
				res.Terrain++
				res.TerrainKeys = append(res.TerrainKeys, k)
			}
		}
	} else if s.StarQueue.Len() > 0 {
		for i := 0; i < max(lim.StarBatch, 1); i++ {
			k, ok := s.StarQueue.Pop()
			if !ok {
				break
			}
			if s.star.Ensure(k) {
				res.Star++
				res.StarKeys = append(res.StarKeys, k)
			}
		}
	}
	if !s.ready && s.terrain.Generated() >= uint64(max(lim.InitialChunks, 0)) {
		s.ready = true
		res.BecameReady = true
	}
	return res
}

// IsReady latches true once and never reverts, including across Reset.
func (s *Scheduler) IsReady() bool { return s.ready }

// Reset empties both queues.
func (s *Scheduler) Reset() {
	s.TerrainQueue.Clear()
	s.StarQueue.Clear()
}
