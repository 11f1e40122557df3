package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"driftscape.app/internal/persistence/indexdb"
	"driftscape.app/internal/persistence/prefs"
	"driftscape.app/internal/persistence/snapshot"
	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/engine"
	"driftscape.app/internal/sim/tuning"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "prefs":
			prefsCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "ticks":
			ticksCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	for _, path := range listSnapshots(filepath.Join(*dataDir, "snapshots")) {
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			continue
		}
		fmt.Printf("%s tick=%d seed=%d chunks=%d\n", filepath.Base(path), h.Tick, h.Seed, h.Chunks)
	}
}

func prefsCmd(args []string) {
	fs := flag.NewFlagSet("prefs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/driftscape.sqlite)")
	prefsDir := fs.String("prefs_dir", "", "file-backed preferences directory (used instead of the db when set)")
	tuningPath := fs.String("tuning", "./configs/tuning.yaml", "tuning file supplying defaults")
	_ = fs.Parse(args)

	action := "show"
	if fs.NArg() > 0 {
		action = strings.TrimSpace(fs.Arg(0))
	}

	store, closeStore, err := openPrefsStore(*dataDir, *dbPath, *prefsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open prefs:", err)
		os.Exit(1)
	}
	defer closeStore()

	switch action {
	case "show":
		defaults, err := loadDefaults(*tuningPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		cfg, err := prefs.Load(store, defaults)
		stored := true
		if err != nil {
			if !errors.Is(err, prefs.ErrNotFound) {
				fmt.Fprintln(os.Stderr, "warning:", err)
			}
			stored = false
		}
		printJSON(struct {
			Stored bool          `json:"stored"`
			Config config.Config `json:"config"`
		}{stored, cfg})
	case "reset":
		if err := store.Delete(prefs.Key); err != nil {
			fmt.Fprintln(os.Stderr, "reset:", err)
			os.Exit(1)
		}
		fmt.Println("preferences cleared")
	default:
		fmt.Fprintln(os.Stderr, "unknown prefs action:", action, "(want show|reset)")
		os.Exit(2)
	}
}

func openPrefsStore(dataDir, dbPath, prefsDir string) (prefs.Store, func(), error) {
	if dir := strings.TrimSpace(prefsDir); dir != "" {
		fs, err := prefs.NewFileStore(dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
	idx, err := indexdb.OpenSQLite(indexPath(dataDir, dbPath))
	if err != nil {
		return nil, nil, err
	}
	return idx, func() { _ = idx.Close() }, nil
}

func loadDefaults(path string) (config.Config, error) {
	tune, err := tuning.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return config.Config{}, err
		}
		tune = tuning.Defaults()
	}
	return tune.Defaults, nil
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	path := strings.TrimSpace(fs.Arg(0))
	if path == "" {
		snaps := listSnapshots(filepath.Join(*dataDir, "snapshots"))
		if len(snaps) == 0 {
			fmt.Fprintln(os.Stderr, "no snapshot found; pass a path or request one via the admin endpoint")
			os.Exit(2)
		}
		path = snaps[len(snaps)-1]
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(summarize(snap))
}

type snapSummary struct {
	Tick      uint64     `json:"tick"`
	Seed      int64      `json:"seed"`
	Quality   string     `json:"quality"`
	Chunks    int        `json:"chunks"`
	Samples   int        `json:"samples"`
	MinHeight float64    `json:"min_height"`
	MaxHeight float64    `json:"max_height"`
	Camera    [3]float64 `json:"camera"`
	Bounds    [4]int     `json:"bounds"` // min cx, min cz, max cx, max cz
}

func summarize(snap snapshot.HeightfieldV1) snapSummary {
	s := snapSummary{
		Tick:    snap.Header.Tick,
		Seed:    snap.Header.Seed,
		Quality: snap.Quality,
		Chunks:  len(snap.Chunks),
		Camera:  snap.Camera,
	}
	if len(snap.Chunks) == 0 {
		return s
	}
	s.MinHeight, s.MaxHeight = math.Inf(1), math.Inf(-1)
	s.Bounds = [4]int{math.MaxInt, math.MaxInt, math.MinInt, math.MinInt}
	for _, c := range snap.Chunks {
		s.Bounds[0] = min(s.Bounds[0], c.CX)
		s.Bounds[1] = min(s.Bounds[1], c.CZ)
		s.Bounds[2] = max(s.Bounds[2], c.CX)
		s.Bounds[3] = max(s.Bounds[3], c.CZ)
		for _, v := range c.Samples {
			s.MinHeight = math.Min(s.MinHeight, float64(v))
			s.MaxHeight = math.Max(s.MaxHeight, float64(v))
		}
		s.Samples += len(c.Samples)
	}
	if s.Samples == 0 {
		s.MinHeight, s.MaxHeight = 0, 0
	}
	return s
}

func ticksCmd(args []string) {
	fs := flag.NewFlagSet("ticks", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	since := fs.Uint64("since_tick", 0, "only entries at or after this tick")
	restartsOnly := fs.Bool("restarts", false, "only ticks that rebuilt every chunk")
	run := fs.String("run", "", "only segments written by this run id")
	_ = fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		var err error
		files, err = listLogFiles(filepath.Join(*dataDir, "ticks"), *run)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}
	for _, path := range files {
		entries, err := readTickLog(path, *since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
		for _, e := range entries {
			if *restartsOnly && !e.Restarted {
				continue
			}
			printJSON(e)
		}
	}
}

// listLogFiles returns segment files in run then tick order, optionally
// restricted to one run id.
func listLogFiles(dir, run string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		if run != "" && !strings.Contains(e.Name(), "-"+run+"-") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func readTickLog(path string, sinceTick uint64) ([]engine.TickLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out []engine.TickLogEntry
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e engine.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("decode tick entry: %w", err)
		}
		if e.Tick < sinceTick {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// listSnapshots returns snapshot files ordered by tick.
func listSnapshots(dir string) []string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	type snapFile struct {
		path string
		tick uint64
	}
	var files []snapFile
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapFile{filepath.Join(dir, name), tick})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].tick < files[j].tick })
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out
}
