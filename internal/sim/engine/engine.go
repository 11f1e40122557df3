// Package engine streams terrain and star chunks around a forward-moving camera.
//
// An Engine is single-threaded: Tick and the configuration methods must be called
// from one goroutine. Run provides that goroutine and Do marshals calls onto it;
// Metrics, Subscribe and OnReady are safe from anywhere.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"driftscape.app/internal/persistence/prefs"
	"driftscape.app/internal/persistence/snapshot"
	"driftscape.app/internal/render"
	"driftscape.app/internal/sim/camera"
	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/grid"
	"driftscape.app/internal/sim/noise"
	"driftscape.app/internal/sim/stars"
	"driftscape.app/internal/sim/stream"
	"driftscape.app/internal/sim/terrain"
	"driftscape.app/internal/sim/tuning"
)

const fogColor = "#000000"

type Engine struct {
	tune    tuning.Tuning
	backend render.Backend
	prefs   prefs.Store
	logger  *log.Logger
	now     func() time.Time

	tickLogger   TickLogger
	configLogger ConfigLogger
	snapshotSink chan<- snapshot.HeightfieldV1

	mgr     *config.Manager
	field   *noise.Field
	cache   *noise.Cache
	terrain *terrain.Store
	stars   *stars.Store
	sched   *stream.Scheduler
	cam     *camera.State

	tick       uint64
	lastUpdate mgl64.Vec3
	restarts   uint64
	recomputes uint64
	disposals  uint64
	lastStepMS float64

	halted bool
	closed bool

	settingsOpen  bool
	viewport      Viewport
	pendingResize *Viewport
	resizeAt      time.Time

	notices []string

	// beforeReseed runs inside Restart between teardown and reseeding.
	beforeReseed func()

	eventMu  sync.Mutex
	readyFns []func()
	ready    bool
	subs     map[int]chan Event
	nextSub  int

	metrics atomic.Value

	calls    chan call
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// New builds an engine: it merges persisted preferences over the tuning defaults,
// allocates the shared render state and seeds both generation queues around the
// starting camera.
func New(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, errors.New("engine: nil render backend")
	}
	tune := tuning.Defaults()
	if opts.Tuning != nil {
		tune = *opts.Tuning
	}
	tune.Normalize()
	if err := tune.Validate(); err != nil {
		return nil, fmt.Errorf("engine tuning: %w", err)
	}
	mgr, err := config.NewManager(tune.Defaults, tune.Presets)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	vp := opts.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = Viewport{Width: 1280, Height: 720}
	}

	e := &Engine{
		tune:         tune,
		backend:      opts.Backend,
		prefs:        opts.Prefs,
		logger:       logger,
		now:          now,
		tickLogger:   opts.TickLogger,
		configLogger: opts.ConfigLogger,
		snapshotSink: opts.SnapshotSink,
		mgr:          mgr,
		viewport:     vp,
		subs:         map[int]chan Event{},
		calls:        make(chan call, 64),
		stop:         make(chan struct{}),
	}
	e.loadPreferences()

	cfg := mgr.Config()
	e.field = noise.NewField(tune.Seed())
	e.cache = noise.NewCache(tune.Noise.CacheLimit)
	e.terrain = terrain.NewStore(cfg.Terrain, e.field, e.cache, terrain.FractalParams{
		Octaves:     tune.Noise.Octaves,
		Persistence: tune.Noise.Persistence,
		Lacunarity:  tune.Noise.Lacunarity,
	}, e.backend)
	e.stars = stars.NewStore(cfg.Star, e.field.Seed(), tune.Stars.TextureVariants, e.backend)
	e.sched = stream.NewScheduler(e.terrain, e.stars)
	e.cam = camera.New(camera.Params{
		VelocityLerp: tune.Camera.VelocityLerp,
		PositionLerp: tune.Camera.PositionLerp,
		LookY:        tune.Camera.LookY,
	}, cfg.Terrain)

	e.configureRenderer(cfg.Terrain)
	e.reseed()
	e.publishMetrics()
	return e, nil
}

func (e *Engine) loadPreferences() {
	if e.prefs == nil {
		return
	}
	loaded, err := prefs.Load(e.prefs, e.mgr.Defaults())
	switch {
	case errors.Is(err, prefs.ErrNotFound):
		return
	case err == nil:
		err = e.mgr.Replace(loaded)
	}
	e.mgr.TakeRestart()
	entry := ConfigLogEntry{Op: OpLoad, Quality: e.mgr.Quality()}
	if err != nil {
		e.logger.Printf("load preferences: %v", err)
		e.notice("Saved settings could not be loaded; defaults are in use.")
		entry.Error = err.Error()
	}
	e.logConfig(entry)
}

func (e *Engine) configureRenderer(t config.TerrainConfig) {
	e.backend.Configure(render.RendererOptions{
		Antialias:  t.Antialias,
		PixelRatio: t.PixelRatio,
		FogNear:    t.FogNear,
		FogFar:     t.FogFar,
		FogColor:   fogColor,
	})
	e.backend.SetViewport(e.viewport.Width, e.viewport.Height, t.PixelRatio)
}

// reseed fills both queues with the full spiral around the camera's current chunks.
func (e *Engine) reseed() {
	pos := e.cam.Position
	tc, sc := e.mgr.Terrain(), e.mgr.Star()
	e.sched.EnqueueTerrain(spiralKeys(grid.WorldToChunk(pos.X(), pos.Z(), float64(tc.ChunkSize)), tc.RenderDistance))
	e.sched.EnqueueStar(spiralKeys(grid.WorldToChunk(pos.X(), pos.Z(), float64(sc.ChunkSize)), sc.RenderDistance))
	e.lastUpdate = pos
}

func spiralKeys(center grid.ChunkKey, r int) []grid.ChunkKey {
	offs := grid.SpiralOffsets(r)
	keys := make([]grid.ChunkKey, len(offs))
	for i, o := range offs {
		keys[i] = center.Add(o)
	}
	return keys
}

// Restart disposes every chunk and cache, re-applies the current configuration to
// the shared render state and reseeds both queues. Calling it repeatedly leaves
// the same state as calling it once.
func (e *Engine) Restart() {
	if e.closed {
		return
	}
	e.noteDisposal(e.terrain.DisposeAll())
	e.noteDisposal(e.stars.DisposeAll())
	e.noteDisposal(e.stars.ClearTextures())
	e.sched.Reset()
	e.cache.Clear()
	e.mgr.TakeRestart()

	cfg := e.mgr.Config()
	e.terrain.Reconfigure(cfg.Terrain)
	e.stars.Reconfigure(cfg.Star)
	e.configureRenderer(cfg.Terrain)
	e.cam.Reseed(cfg.Terrain)

	if e.beforeReseed != nil {
		e.beforeReseed()
	}
	e.reseed()
	e.restarts++
}

// Tick advances one frame: pending restart, camera motion, bounded generation,
// chunk recomputation on threshold crossings, the ready edge and rendering.
// A panic inside a tick halts streaming; later ticks are no-ops.
func (e *Engine) Tick() {
	if e.closed || e.halted {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.halted = true
			e.logger.Printf("engine halted at tick %d: %v\n%s", e.tick, r, debug.Stack())
			e.notice("Terrain streaming stopped after an internal error.")
			e.publishMetrics()
		}
	}()
	start := time.Now()
	e.step()
	e.lastStepMS = float64(time.Since(start).Microseconds()) / 1000
	e.publishMetrics()
}

func (e *Engine) step() {
	e.tick++
	entry := TickLogEntry{Tick: e.tick}

	if e.mgr.NeedsRestart() {
		e.Restart()
		entry.Restarted = true
	}

	tc, sc := e.mgr.Terrain(), e.mgr.Star()
	e.cam.Advance(tc)

	res := e.sched.DrainTick(stream.Limits{
		TerrainBatch:  tc.BatchSize,
		StarBatch:     sc.BatchSize,
		InitialChunks: tc.InitialChunks,
	})
	entry.TerrainGenerated = res.TerrainKeys
	entry.StarGenerated = res.StarKeys

	if e.cam.CrossedThreshold(e.lastUpdate, tc.UpdateThreshold) {
		entry.TerrainEvicted, entry.StarEvicted = e.updateChunks()
		entry.Recomputed = true
	}
	if res.BecameReady {
		entry.Ready = true
		e.fireReady()
	}

	e.applyPendingResize()
	e.backend.SetCameraTransform(e.cam.Position, e.cam.LookAt)
	e.backend.RenderFrame()

	pos := e.cam.Position
	entry.Camera = [3]float64{pos.X(), pos.Y(), pos.Z()}
	entry.Center = grid.WorldToChunk(pos.X(), pos.Z(), float64(tc.ChunkSize))
	entry.TerrainQueue = e.sched.TerrainQueue.Len()
	entry.StarQueue = e.sched.StarQueue.Len()
	if e.tickLogger != nil && entry.active() {
		if err := e.tickLogger.WriteTick(entry); err != nil {
			e.logger.Printf("tick log: %v", err)
		}
	}
}

// updateChunks recomputes the required sets around the camera, queues what is
// missing in spiral order and evicts what fell out of range.
func (e *Engine) updateChunks() (terrainEvicted, starEvicted int) {
	pos := e.cam.Position
	tc, sc := e.mgr.Terrain(), e.mgr.Star()

	tCenter := grid.WorldToChunk(pos.X(), pos.Z(), float64(tc.ChunkSize))
	e.sched.EnqueueTerrain(grid.RequiredInSpiralOrder(tCenter, tc.RenderDistance))
	n, err := e.terrain.Evict(grid.RequiredSet(tCenter, tc.RenderDistance))
	e.noteDisposal(err)
	terrainEvicted = n

	sCenter := grid.WorldToChunk(pos.X(), pos.Z(), float64(sc.ChunkSize))
	e.sched.EnqueueStar(grid.RequiredInSpiralOrder(sCenter, sc.RenderDistance))
	n, err = e.stars.Evict(grid.RequiredSet(sCenter, sc.RenderDistance))
	e.noteDisposal(err)
	starEvicted = n

	e.lastUpdate = pos
	e.recomputes++
	return terrainEvicted, starEvicted
}

// noteDisposal logs and counts invariant violations reported by the backend.
func (e *Engine) noteDisposal(err error) {
	if err == nil {
		return
	}
	errs := []error{err}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	}
	for _, one := range errs {
		e.disposals++
		e.logger.Printf("disposal invariant violated: %v", one)
	}
}

func (e *Engine) applyPendingResize() {
	if e.pendingResize == nil || e.now().Before(e.resizeAt) {
		return
	}
	e.viewport = *e.pendingResize
	e.pendingResize = nil
	e.backend.SetViewport(e.viewport.Width, e.viewport.Height, e.mgr.Terrain().PixelRatio)
}

// Shutdown releases every render resource and cache, in order: terrain chunks and
// the shared terrain material, star chunks and textures, generation queues, the
// noise cache, and finally event subscriptions. It is safe to call twice.
func (e *Engine) Shutdown() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.Stop()

	err := errors.Join(
		e.terrain.Shutdown(),
		e.stars.Shutdown(),
	)
	e.sched.Reset()
	e.cache.Clear()
	e.noteDisposal(err)
	e.publishMetrics()
	e.closeSubscribers()
	return err
}

func (e *Engine) notice(msg string) {
	e.notices = append(e.notices, msg)
	if len(e.notices) > 32 {
		e.notices = e.notices[len(e.notices)-32:]
	}
	e.publish(Event{Kind: EventNotice, Tick: e.tick, Message: msg})
}

func (e *Engine) logConfig(entry ConfigLogEntry) {
	if e.configLogger == nil {
		return
	}
	entry.Tick = e.tick
	if err := e.configLogger.WriteConfig(entry); err != nil {
		e.logger.Printf("config log: %v", err)
	}
}
