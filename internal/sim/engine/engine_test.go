package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"driftscape.app/internal/persistence/prefs"
	"driftscape.app/internal/render"
	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/grid"
	"driftscape.app/internal/sim/tuning"
)

func testTuning() *tuning.Tuning {
	t := tuning.Defaults()
	t.Noise.Seed = 7
	t.ResizeDebounceMS = 150
	d := &t.Defaults
	d.Terrain.ChunkSize = 30
	d.Terrain.Segments = 4
	d.Terrain.Overlap = 1
	d.Terrain.RenderDistance = 2
	d.Terrain.InitialChunks = 3
	d.Terrain.BatchSize = 1
	d.Terrain.MoveSpeed = config.Vec3{}
	d.Star.ChunkSize = 200
	d.Star.RenderDistance = 1
	d.Star.StarsPerChunk = 5
	d.Star.BatchSize = 1
	return &t
}

type harness struct {
	e     *Engine
	rec   *render.Recorder
	store *prefs.MemoryStore
}

func newHarness(t *testing.T, mutate func(*Options)) harness {
	t.Helper()
	rec := render.NewRecorder()
	store := prefs.NewMemoryStore()
	opts := Options{Tuning: testTuning(), Backend: rec, Prefs: store}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return harness{e: e, rec: rec, store: store}
}

func ticks(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.Tick()
	}
}

// placeCamera parks the camera at x,z with no motion.
func placeCamera(e *Engine, x, z float64) {
	h := e.mgr.Terrain().CameraHeight
	e.cam.Position = mgl64.Vec3{x, h, z}
	e.cam.Target = e.cam.Position
	e.cam.Velocity = mgl64.Vec3{}
}

func TestNew_SeedsQueuesWithFullSpiral(t *testing.T) {
	h := newHarness(t, nil)
	if got := h.e.sched.TerrainQueue.Len(); got != 25 {
		t.Fatalf("terrain queue=%d want 25", got)
	}
	if got := h.e.sched.StarQueue.Len(); got != 9 {
		t.Fatalf("star queue=%d want 9", got)
	}
	first := h.e.sched.TerrainQueue.Keys()[0]
	if first != (grid.ChunkKey{CX: 0, CZ: 1}) {
		t.Fatalf("first queued chunk=%+v want camera chunk {0 1}", first)
	}
	if h.e.terrain.Len() != 0 || h.e.stars.Len() != 0 {
		t.Fatalf("no chunk should exist before the first tick")
	}
	if h.rec.Live(render.KindMaterial) != 1 {
		t.Fatalf("only the shared terrain material should be allocated, got %d", h.rec.Live(render.KindMaterial))
	}
}

func TestTick_TerrainDrainsBeforeStars(t *testing.T) {
	h := newHarness(t, nil)
	h.e.Tick()
	if h.e.terrain.Len() != 1 || h.e.stars.Len() != 0 {
		t.Fatalf("after 1 tick: terrain=%d stars=%d", h.e.terrain.Len(), h.e.stars.Len())
	}
	ticks(h.e, 24)
	if h.e.terrain.Len() != 25 || h.e.stars.Len() != 0 {
		t.Fatalf("after 25 ticks: terrain=%d stars=%d", h.e.terrain.Len(), h.e.stars.Len())
	}
	ticks(h.e, 9)
	if h.e.stars.Len() != 9 || h.e.sched.StarQueue.Len() != 0 {
		t.Fatalf("stars=%d queue=%d", h.e.stars.Len(), h.e.sched.StarQueue.Len())
	}
	if h.rec.Frames != 34 {
		t.Fatalf("frames=%d want 34", h.rec.Frames)
	}
}

func TestRestart_EmptiesThenReseeds(t *testing.T) {
	h := newHarness(t, nil)
	ticks(h.e, 30)

	checked := 0
	h.e.beforeReseed = func() {
		checked++
		if h.e.terrain.Len() != 0 || h.e.stars.Len() != 0 {
			t.Fatalf("live chunks before reseed: terrain=%d stars=%d", h.e.terrain.Len(), h.e.stars.Len())
		}
		if h.e.sched.TerrainQueue.Len() != 0 || h.e.sched.StarQueue.Len() != 0 {
			t.Fatalf("queues not empty before reseed")
		}
		if h.e.terrain.Generated() != 0 {
			t.Fatalf("generated count not reset")
		}
	}
	h.e.Restart()
	first := h.e.sched.TerrainQueue.Keys()
	if len(first) != 25 || h.e.sched.StarQueue.Len() != 9 {
		t.Fatalf("after restart: terrain=%d star=%d", len(first), h.e.sched.StarQueue.Len())
	}
	if h.rec.Live(render.KindGeometry) != 0 || h.rec.Live(render.KindTexture) != 0 || h.rec.InScene() != 0 {
		t.Fatalf("restart leaked render resources")
	}

	h.e.Restart()
	second := h.e.sched.TerrainQueue.Keys()
	if len(second) != len(first) {
		t.Fatalf("second restart queue=%d", len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("restart not idempotent at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
	if checked != 2 {
		t.Fatalf("reseed hook ran %d times", checked)
	}
}

func TestReady_FiresExactlyOnce(t *testing.T) {
	h := newHarness(t, nil)
	events, cancel := h.e.Subscribe()
	defer cancel()

	fired := 0
	h.e.OnReady(func() { fired++ })

	ticks(h.e, 2)
	if fired != 0 || h.e.Metrics().Ready {
		t.Fatalf("ready too early")
	}
	h.e.Tick()
	if fired != 1 || !h.e.Metrics().Ready {
		t.Fatalf("ready not fired at initialChunks: fired=%d", fired)
	}
	ticks(h.e, 10)
	h.e.Restart()
	ticks(h.e, 10)
	if fired != 1 {
		t.Fatalf("ready fired %d times", fired)
	}

	late := 0
	h.e.OnReady(func() { late++ })
	if late != 1 {
		t.Fatalf("late OnReady should run immediately")
	}

	readyEvents := 0
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventReady {
				readyEvents++
			}
			continue
		default:
		}
		break
	}
	if readyEvents != 1 {
		t.Fatalf("READY events=%d want 1", readyEvents)
	}
}

func TestThresholdCrossing_RecomputesOncePerDisplacement(t *testing.T) {
	h := newHarness(t, nil)
	ticks(h.e, 40)
	if h.e.recomputes != 0 {
		t.Fatalf("stationary camera recomputed %d times", h.e.recomputes)
	}
	start := h.e.cam.Position

	placeCamera(h.e, start.X()+9, start.Z())
	h.e.Tick()
	if h.e.recomputes != 0 {
		t.Fatalf("9 units should not cross a threshold of 10")
	}

	placeCamera(h.e, start.X()+11, start.Z())
	ticks(h.e, 5)
	if h.e.recomputes != 1 {
		t.Fatalf("recomputes=%d want 1", h.e.recomputes)
	}
}

func TestMove_EvictsOutsideRequiredSet(t *testing.T) {
	h := newHarness(t, nil)
	ticks(h.e, 40)

	placeCamera(h.e, 95, 40)
	h.e.Tick()
	center := grid.WorldToChunk(95, 40, 30)
	required := grid.RequiredSet(center, 2)
	for k := range h.e.terrain.Chunks {
		if !required.Has(k) {
			t.Fatalf("chunk %+v outside required set survived", k)
		}
	}
	for _, k := range h.e.sched.TerrainQueue.Keys() {
		if h.e.terrain.Has(k) {
			t.Fatalf("chunk %+v both queued and live", k)
		}
	}
	if h.rec.Live(render.KindGeometry) != h.e.terrain.Len() {
		t.Fatalf("geometry=%d chunks=%d", h.rec.Live(render.KindGeometry), h.e.terrain.Len())
	}
}

func TestLiveParam_LeavesChunksAlone(t *testing.T) {
	h := newHarness(t, nil)
	ticks(h.e, 34)
	before := map[grid.ChunkKey]render.Handle{}
	for k, ch := range h.e.terrain.Chunks {
		before[k] = ch.Geometry
	}

	eff, err := h.e.SetTerrainParam("wireframe", false)
	if err != nil || eff != config.LiveApply {
		t.Fatalf("wireframe: eff=%v err=%v", eff, err)
	}
	if _, err := h.e.SetStarParam("enabled", false); err != nil {
		t.Fatalf("enabled: %v", err)
	}
	h.e.Tick()

	if h.e.restarts != 0 {
		t.Fatalf("live change restarted the engine")
	}
	if h.e.Config().Quality != "medium" {
		t.Fatalf("live change altered quality: %q", h.e.Config().Quality)
	}
	for k, geom := range before {
		ch, ok := h.e.terrain.Chunks[k]
		if !ok || ch.Geometry != geom {
			t.Fatalf("chunk %+v rebuilt", k)
		}
	}
	if spec, _ := h.rec.Material(h.e.terrain.Material()); spec.Wireframe {
		t.Fatalf("material still wireframe")
	}
	for _, ch := range h.e.stars.Chunks {
		if h.rec.Visible(ch.Points) {
			t.Fatalf("star chunk %+v still visible", ch.Key)
		}
	}
}

func TestRestartParam_AppliesOnNextTick(t *testing.T) {
	h := newHarness(t, nil)
	ticks(h.e, 5)

	eff, err := h.e.SetTerrainParam("segments", 8)
	if err != nil || eff != config.RequiresRestart {
		t.Fatalf("segments: eff=%v err=%v", eff, err)
	}
	if h.e.Config().Quality != config.QualityCustom {
		t.Fatalf("quality=%q want custom", h.e.Config().Quality)
	}
	if h.e.terrain.Len() != 5 || h.e.restarts != 0 {
		t.Fatalf("restart ran before the next tick")
	}

	h.e.Tick()
	if h.e.restarts != 1 {
		t.Fatalf("restarts=%d", h.e.restarts)
	}
	if h.e.terrain.Len() != 1 {
		t.Fatalf("terrain=%d want 1 after restart tick", h.e.terrain.Len())
	}
	for _, ch := range h.e.terrain.Chunks {
		if ch.Side != 11 {
			t.Fatalf("side=%d want 11", ch.Side)
		}
	}
}

func TestApplyQualityPreset(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.e.ApplyQualityPreset("ultra-plus"); err == nil {
		t.Fatalf("unknown preset accepted")
	}
	if err := h.e.ApplyQualityPreset("low"); err != nil {
		t.Fatalf("low: %v", err)
	}
	h.e.Tick()
	c := h.e.Config()
	if c.Quality != "low" || c.Terrain.Segments != 24 || c.Terrain.RenderDistance != 3 {
		t.Fatalf("preset not applied: %+v", c)
	}
	if got := h.e.sched.TerrainQueue.Len(); got != 48 {
		t.Fatalf("terrain queue=%d want 49-1", got)
	}
	if h.rec.Options.Antialias {
		t.Fatalf("renderer not reconfigured")
	}
}

func TestInvalidParam_Rejected(t *testing.T) {
	h := newHarness(t, nil)
	before := h.e.Config()

	_, err := h.e.SetTerrainParam("segments", 0)
	var ve *config.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, v := range []float64{20000, 257} {
		if _, err := h.e.SetTerrainParam("segments", v); !errors.As(err, &ve) {
			t.Fatalf("segments=%v: expected ValidationError, got %v", v, err)
		}
	}
	if _, err := h.e.SetTerrainParam("gravity", 1); !errors.Is(err, config.ErrUnknownParam) {
		t.Fatalf("expected ErrUnknownParam, got %v", err)
	}
	if h.e.Config() != before || h.e.mgr.NeedsRestart() {
		t.Fatalf("rejected mutation changed state")
	}
	if _, err := h.store.Get(prefs.Key); !errors.Is(err, prefs.ErrNotFound) {
		t.Fatalf("rejected mutation was persisted")
	}
}

func TestPreferences_RoundTripAcrossEngines(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.e.SetStarParam("starSize", 2.5); err != nil {
		t.Fatalf("starSize: %v", err)
	}
	if _, err := h.e.SetTerrainParam("cameraHeight", 22); err != nil {
		t.Fatalf("cameraHeight: %v", err)
	}
	if _, err := h.e.SetTerrainParam("segments", 6); err != nil {
		t.Fatalf("segments: %v", err)
	}

	e2, err := New(Options{Tuning: testTuning(), Backend: render.NewRecorder(), Prefs: h.store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := e2.Config()
	if c.Star.StarSize != 2.5 || c.Terrain.Segments != 6 || c.Quality != config.QualityCustom {
		t.Fatalf("preferences not restored: %+v", c)
	}
	if c.Terrain.CameraHeight != testTuning().Defaults.Terrain.CameraHeight {
		t.Fatalf("camera height persisted: %v", c.Terrain.CameraHeight)
	}
	if len(e2.Notices()) != 0 {
		t.Fatalf("unexpected notices: %v", e2.Notices())
	}
	if e2.terrain.Config().Segments != 6 {
		t.Fatalf("stores not built from loaded config")
	}
}

func TestPreferences_MalformedFallsBackWithNotice(t *testing.T) {
	store := prefs.NewMemoryStore()
	_ = store.Put(prefs.Key, []byte(`{"terrainConfig":`))
	e, err := New(Options{Tuning: testTuning(), Backend: render.NewRecorder(), Prefs: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Config() != testTuning().Defaults {
		t.Fatalf("expected defaults")
	}
	if len(e.Notices()) != 1 {
		t.Fatalf("notices=%v", e.Notices())
	}
}

func TestPreferences_SaveFailureIsAdvisory(t *testing.T) {
	h := newHarness(t, nil)
	h.store.FailPut = errors.New("quota exceeded")
	events, cancel := h.e.Subscribe()
	defer cancel()

	if _, err := h.e.SetStarParam("starOpacity", 0.5); err != nil {
		t.Fatalf("save failure surfaced as error: %v", err)
	}
	if h.e.Config().Star.StarOpacity != 0.5 {
		t.Fatalf("change not applied")
	}
	ev := <-events
	if ev.Kind != EventNotice {
		t.Fatalf("first event=%s want NOTICE", ev.Kind)
	}
}

func TestResetToDefaults(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.e.SetTerrainParam("terrainColor", "#ff0000"); err != nil {
		t.Fatalf("terrainColor: %v", err)
	}
	if _, err := h.store.Get(prefs.Key); err != nil {
		t.Fatalf("preferences not saved: %v", err)
	}
	if err := h.e.ResetToDefaults(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if h.e.Config() != testTuning().Defaults {
		t.Fatalf("config not reset")
	}
	if _, err := h.store.Get(prefs.Key); !errors.Is(err, prefs.ErrNotFound) {
		t.Fatalf("preferences not cleared: %v", err)
	}
	if spec, _ := h.rec.Material(h.e.terrain.Material()); spec.Color != "#4fd1c5" {
		t.Fatalf("material color=%q", spec.Color)
	}
}

func TestShutdown_ReleasesEverything(t *testing.T) {
	h := newHarness(t, nil)
	events, _ := h.e.Subscribe()
	ticks(h.e, 40)

	if err := h.e.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	for _, k := range []render.Kind{render.KindGeometry, render.KindMaterial, render.KindTexture, render.KindMesh, render.KindPoints} {
		if n := h.rec.Live(k); n != 0 {
			t.Fatalf("%s leaked: %d", k, n)
		}
	}
	if h.rec.InScene() != 0 || h.e.cache.Len() != 0 || h.e.sched.TerrainQueue.Len() != 0 {
		t.Fatalf("state left after shutdown")
	}
	if h.e.Metrics().DisposalErrors != 0 {
		t.Fatalf("disposal errors: %d", h.e.Metrics().DisposalErrors)
	}
	if err := h.e.Shutdown(); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if _, err := h.e.SetStarParam("starSize", 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	for range events {
	}
}

func TestDisposalError_CountedNotFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.e.Tick()
	for _, ch := range h.e.terrain.Chunks {
		if err := h.rec.DisposeGeometry(ch.Geometry); err != nil {
			t.Fatalf("manual dispose: %v", err)
		}
	}
	h.e.Restart()
	h.e.Tick()
	m := h.e.Metrics()
	if m.DisposalErrors != 1 {
		t.Fatalf("disposal errors=%d want 1", m.DisposalErrors)
	}
	if m.Halted || h.e.terrain.Len() != 1 {
		t.Fatalf("engine stopped streaming after a disposal error")
	}
}

type panicBackend struct{ *render.Recorder }

func (panicBackend) RenderFrame() { panic("device lost") }

func TestPanic_HaltsStreaming(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Backend = panicBackend{render.NewRecorder()} })
	h.e.Tick()
	if !h.e.Halted() || !h.e.Metrics().Halted {
		t.Fatalf("engine not halted")
	}
	tick := h.e.CurrentTick()
	h.e.Tick()
	if h.e.CurrentTick() != tick {
		t.Fatalf("halted engine kept ticking")
	}
	if len(h.e.Notices()) != 1 {
		t.Fatalf("notices=%v", h.e.Notices())
	}
}

func TestResize_Debounced(t *testing.T) {
	now := time.Unix(1000, 0)
	h := newHarness(t, func(o *Options) { o.Clock = func() time.Time { return now } })
	sets := h.rec.ViewportSets

	if err := h.e.Resize(0, 10); err == nil {
		t.Fatalf("zero width accepted")
	}
	_ = h.e.Resize(800, 600)
	now = now.Add(100 * time.Millisecond)
	_ = h.e.Resize(1024, 768)
	h.e.Tick()
	now = now.Add(100 * time.Millisecond)
	h.e.Tick()
	if h.rec.ViewportSets != sets {
		t.Fatalf("viewport applied before debounce elapsed")
	}
	now = now.Add(100 * time.Millisecond)
	h.e.Tick()
	if h.rec.ViewportSets != sets+1 || h.rec.ViewportW != 1024 || h.rec.ViewportH != 768 {
		t.Fatalf("viewport=%dx%d sets=%d", h.rec.ViewportW, h.rec.ViewportH, h.rec.ViewportSets-sets)
	}
	if h.e.Viewport() != (Viewport{Width: 1024, Height: 768}) {
		t.Fatalf("engine viewport=%+v", h.e.Viewport())
	}
}

func TestSettingsPanel_EventsOnChange(t *testing.T) {
	h := newHarness(t, nil)
	events, cancel := h.e.Subscribe()
	defer cancel()

	h.e.OpenSettingsPanel()
	h.e.OpenSettingsPanel()
	h.e.CloseSettingsPanel()
	if h.e.SettingsPanelOpen() {
		t.Fatalf("panel still open")
	}
	var got []bool
	for len(events) > 0 {
		ev := <-events
		if ev.Kind == EventSettingsPanel {
			got = append(got, *ev.Open)
		}
	}
	if len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("panel events=%v", got)
	}
}

type tickRecorder struct{ entries []TickLogEntry }

func (r *tickRecorder) WriteTick(e TickLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func TestTickLog_RecordsActiveTicks(t *testing.T) {
	tl := &tickRecorder{}
	h := newHarness(t, func(o *Options) { o.TickLogger = tl })
	ticks(h.e, 34)
	// Every tick generates one chunk.
	if len(tl.entries) != 34 {
		t.Fatalf("entries=%d", len(tl.entries))
	}
	h.e.Tick()
	if len(tl.entries) != 34 {
		t.Fatalf("idle tick was logged")
	}
	first := tl.entries[0]
	if len(first.TerrainGenerated) != 1 || first.TerrainGenerated[0] != (grid.ChunkKey{CX: 0, CZ: 1}) {
		t.Fatalf("first entry=%+v", first)
	}
	if !tl.entries[2].Ready {
		t.Fatalf("ready edge not logged on tick 3")
	}
}
