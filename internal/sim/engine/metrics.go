package engine

import "driftscape.app/internal/sim/noise"

// Metrics is a read-only view of engine state, published by the engine goroutine
// after every tick and safe to read from HTTP handlers.
type Metrics struct {
	Tick    uint64 `json:"tick"`
	Ready   bool   `json:"ready"`
	Halted  bool   `json:"halted"`
	Quality string `json:"quality"`

	TerrainChunks int `json:"terrain_chunks"`
	StarChunks    int `json:"star_chunks"`

	QueueDepths QueueDepths `json:"queue_depths"`

	TerrainGenerated uint64 `json:"terrain_generated"`
	StarGenerated    uint64 `json:"star_generated"`
	Restarts         uint64 `json:"restarts"`
	Recomputes       uint64 `json:"recomputes"`
	DisposalErrors   uint64 `json:"disposal_errors"`

	NoiseCache noise.CacheStats `json:"noise_cache"`

	Camera   [3]float64 `json:"camera"`
	Viewport Viewport   `json:"viewport"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Terrain int `json:"terrain"`
	Star    int `json:"star"`
}

func (e *Engine) Metrics() Metrics {
	if e == nil {
		return Metrics{}
	}
	m, _ := e.metrics.Load().(Metrics)
	return m
}

func (e *Engine) publishMetrics() {
	p := e.cam.Position
	e.metrics.Store(Metrics{
		Tick:             e.tick,
		Ready:            e.sched.IsReady(),
		Halted:           e.halted,
		Quality:          e.mgr.Quality(),
		TerrainChunks:    e.terrain.Len(),
		StarChunks:       e.stars.Len(),
		QueueDepths:      QueueDepths{Terrain: e.sched.TerrainQueue.Len(), Star: e.sched.StarQueue.Len()},
		TerrainGenerated: e.terrain.Generated(),
		StarGenerated:    e.stars.Generated(),
		Restarts:         e.restarts,
		Recomputes:       e.recomputes,
		DisposalErrors:   e.disposals,
		NoiseCache:       e.cache.Stats(),
		Camera:           [3]float64{p.X(), p.Y(), p.Z()},
		Viewport:         e.viewport,
		StepMS:           e.lastStepMS,
	})
}
