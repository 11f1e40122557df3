package main

import (
	"fmt"
	"io"

	"driftscape.app/internal/persistence/indexdb"
	"driftscape.app/internal/sim/engine"
)

func writeMetrics(w io.Writer, m engine.Metrics) {
	fmt.Fprintf(w, "# HELP driftscape_tick Current engine tick.\n")
	fmt.Fprintf(w, "# TYPE driftscape_tick gauge\n")
	fmt.Fprintf(w, "driftscape_tick %d\n", m.Tick)

	fmt.Fprintf(w, "# HELP driftscape_ready Whether the first terrain batch has been generated.\n")
	fmt.Fprintf(w, "# TYPE driftscape_ready gauge\n")
	fmt.Fprintf(w, "driftscape_ready %d\n", boolGauge(m.Ready))

	fmt.Fprintf(w, "# HELP driftscape_halted Whether the frame loop stopped after a fault.\n")
	fmt.Fprintf(w, "# TYPE driftscape_halted gauge\n")
	fmt.Fprintf(w, "driftscape_halted %d\n", boolGauge(m.Halted))

	fmt.Fprintf(w, "# HELP driftscape_loaded_chunks Live chunk count.\n")
	fmt.Fprintf(w, "# TYPE driftscape_loaded_chunks gauge\n")
	fmt.Fprintf(w, "driftscape_loaded_chunks{grid=%q} %d\n", "terrain", m.TerrainChunks)
	fmt.Fprintf(w, "driftscape_loaded_chunks{grid=%q} %d\n", "star", m.StarChunks)

	fmt.Fprintf(w, "# HELP driftscape_queue_depth Pending generation requests.\n")
	fmt.Fprintf(w, "# TYPE driftscape_queue_depth gauge\n")
	fmt.Fprintf(w, "driftscape_queue_depth{grid=%q} %d\n", "terrain", m.QueueDepths.Terrain)
	fmt.Fprintf(w, "driftscape_queue_depth{grid=%q} %d\n", "star", m.QueueDepths.Star)

	fmt.Fprintf(w, "# HELP driftscape_chunks_generated_total Chunks generated since start.\n")
	fmt.Fprintf(w, "# TYPE driftscape_chunks_generated_total counter\n")
	fmt.Fprintf(w, "driftscape_chunks_generated_total{grid=%q} %d\n", "terrain", m.TerrainGenerated)
	fmt.Fprintf(w, "driftscape_chunks_generated_total{grid=%q} %d\n", "star", m.StarGenerated)

	fmt.Fprintf(w, "# HELP driftscape_restarts_total Full chunk rebuilds.\n")
	fmt.Fprintf(w, "# TYPE driftscape_restarts_total counter\n")
	fmt.Fprintf(w, "driftscape_restarts_total %d\n", m.Restarts)

	fmt.Fprintf(w, "# HELP driftscape_recomputes_total Required-set recomputations after threshold crossings.\n")
	fmt.Fprintf(w, "# TYPE driftscape_recomputes_total counter\n")
	fmt.Fprintf(w, "driftscape_recomputes_total %d\n", m.Recomputes)

	fmt.Fprintf(w, "# HELP driftscape_disposal_errors_total Renderer resource releases that failed.\n")
	fmt.Fprintf(w, "# TYPE driftscape_disposal_errors_total counter\n")
	fmt.Fprintf(w, "driftscape_disposal_errors_total %d\n", m.DisposalErrors)

	fmt.Fprintf(w, "# HELP driftscape_noise_cache_entries Memoized noise samples.\n")
	fmt.Fprintf(w, "# TYPE driftscape_noise_cache_entries gauge\n")
	fmt.Fprintf(w, "driftscape_noise_cache_entries %d\n", m.NoiseCache.Entries)
	fmt.Fprintf(w, "# TYPE driftscape_noise_cache_lookups_total counter\n")
	fmt.Fprintf(w, "driftscape_noise_cache_lookups_total{result=%q} %d\n", "hit", m.NoiseCache.Hits)
	fmt.Fprintf(w, "driftscape_noise_cache_lookups_total{result=%q} %d\n", "miss", m.NoiseCache.Misses)

	fmt.Fprintf(w, "# HELP driftscape_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(w, "# TYPE driftscape_step_ms gauge\n")
	fmt.Fprintf(w, "driftscape_step_ms %.3f\n", m.StepMS)
}

func writeIndexMetrics(w io.Writer, idx *indexdb.SQLiteIndex) {
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(w, "# HELP driftscape_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(w, "# TYPE driftscape_index_queue_depth gauge\n")
	fmt.Fprintf(w, "driftscape_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(w, "# HELP driftscape_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(w, "# TYPE driftscape_index_dropped_total counter\n")
	fmt.Fprintf(w, "driftscape_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
	fmt.Fprintf(w, "driftscape_index_dropped_total{kind=%q} %d\n", "config", s.DropConfigTotal)
	fmt.Fprintf(w, "driftscape_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
