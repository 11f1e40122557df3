package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"driftscape.app/internal/persistence/archive"
	"driftscape.app/internal/persistence/indexdb"
	persistlog "driftscape.app/internal/persistence/log"
	"driftscape.app/internal/persistence/prefs"
	"driftscape.app/internal/persistence/snapshot"
	"driftscape.app/internal/render"
	"driftscape.app/internal/sim/engine"
	"driftscape.app/internal/sim/tuning"
	"driftscape.app/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "noise seed override (0 keeps the tuning value)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (preferences fall back to -prefs_dir)")
		prefsDir   = flag.String("prefs_dir", "", "directory for file-backed preferences (default: <data>/prefs)")
		width      = flag.Int("width", 1280, "initial viewport width")
		height     = flag.Int("height", 720, "initial viewport height")
		keepSnaps  = flag.Int("snapshot_keep", 8, "snapshots retained under <data>/snapshots (0 keeps all)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Noise.Seed = *seed
	}

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}

	var store prefs.Store
	if idx != nil {
		store = idx
	} else {
		dir := strings.TrimSpace(*prefsDir)
		if dir == "" {
			dir = filepath.Join(*dataDir, "prefs")
		}
		fs, err := prefs.NewFileStore(dir)
		if err != nil {
			logger.Fatalf("open prefs dir: %v", err)
		}
		store = fs
	}

	run := persistlog.RunID(time.Now())
	tickLog := persistlog.NewTickLogger(*dataDir, run)
	configLog := persistlog.NewConfigLogger(*dataDir, run)
	logger.Printf("log run id: %s", run)
	defer tickLog.Close()
	defer configLog.Close()
	ticks := multiTickLogger{tickLog}
	configs := multiConfigLogger{configLog}
	if idx != nil {
		ticks = append(ticks, idx)
		configs = append(configs, idx)
	}

	snapCh := make(chan snapshot.HeightfieldV1, 2)
	e, err := engine.New(engine.Options{
		Tuning:       &tune,
		Backend:      render.NewRecorder(),
		Prefs:        store,
		Logger:       log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lmicroseconds),
		TickLogger:   ticks,
		ConfigLogger: configs,
		SnapshotSink: snapCh,
		Viewport:     engine.Viewport{Width: *width, Height: *height},
	})
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}
	e.OnReady(func() { logger.Printf("first terrain batch ready") })

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(*dataDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
				logger.Printf("snapshot written: %s chunks=%d", path, len(snap.Chunks))

				if archivedPath, ok, err := archive.ArchiveVariantSnapshot(*dataDir, path, snap); err != nil {
					logger.Printf("archive snapshot: %v", err)
				} else if ok {
					logger.Printf("archived new terrain variant: %s", archivedPath)
				}
				if _, err := archive.PruneSnapshots(filepath.Dir(path), *keepSnaps); err != nil {
					logger.Printf("prune snapshots: %v", err)
				}
			}
		}
	}()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := e.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("engine stopped: %v", err)
		}
	}()

	enableAdminHTTP := envBool("DS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("DS_ENABLE_PPROF_HTTP", false)
	if !enableAdminHTTP {
		logger.Printf("admin endpoints disabled (DS_ENABLE_ADMIN_HTTP=false)")
	}
	if !enablePprofHTTP {
		logger.Printf("pprof endpoints disabled (DS_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(e, idx, logger, enableAdminHTTP, enablePprofHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}

	<-engineDone
	if err := e.Shutdown(); err != nil {
		logger.Printf("engine shutdown: %v", err)
	}
	if idx != nil {
		if err := idx.Close(); err != nil {
			logger.Printf("index close: %v", err)
		}
	}
}

func newMux(e *engine.Engine, idx *indexdb.SQLiteIndex, logger *log.Logger, admin, pprofOn bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		if e.Metrics().Halted {
			http.Error(rw, "halted", http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		// Minimal Prometheus exposition format.
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, e.Metrics())
		writeIndexMetrics(rw, idx)
	})

	if admin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			m := e.Metrics()
			resp := struct {
				Tick    uint64         `json:"tick"`
				Metrics engine.Metrics `json:"metrics"`
			}{
				Tick:    m.Tick,
				Metrics: m,
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			tick, err := e.RequestSnapshot(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
		})
	}
	if pprofOn {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(e, logger).Handler())
	return mux
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
