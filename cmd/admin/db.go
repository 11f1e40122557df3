package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/driftscape.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	since := fs.Uint64("since_tick", 0, "only rows at or after this tick")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	db, err := sql.Open("sqlite", indexPath(*dataDir, *dbPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,seed,chunks,quality FROM snapshots WHERE tick>=? ORDER BY tick DESC LIMIT ?`, *since, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick    int64  `json:"tick"`
				Path    string `json:"path"`
				Seed    int64  `json:"seed"`
				Chunks  int    `json:"chunks"`
				Quality string `json:"quality"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Seed, &r.Chunks, &r.Quality); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		exitOnRowsErr(rows)

	case "ticks":
		rows, err := db.Query(`SELECT tick,center_cx,center_cz,terrain_generated,star_generated,terrain_evicted,star_evicted,restarted FROM ticks WHERE tick>=? ORDER BY tick DESC LIMIT ?`, *since, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick             int64 `json:"tick"`
				CenterCX         int   `json:"center_cx"`
				CenterCZ         int   `json:"center_cz"`
				TerrainGenerated int   `json:"terrain_generated"`
				StarGenerated    int   `json:"star_generated"`
				TerrainEvicted   int   `json:"terrain_evicted"`
				StarEvicted      int   `json:"star_evicted"`
				Restarted        bool  `json:"restarted"`
			}
			if err := rows.Scan(&r.Tick, &r.CenterCX, &r.CenterCZ, &r.TerrainGenerated, &r.StarGenerated, &r.TerrainEvicted, &r.StarEvicted, &r.Restarted); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		exitOnRowsErr(rows)

	case "changes":
		rows, err := db.Query(`SELECT raw_json FROM config_changes WHERE tick>=? ORDER BY seq DESC LIMIT ?`, *since, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			fmt.Println(raw)
		}
		exitOnRowsErr(rows)

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want snapshots|ticks|changes)")
		os.Exit(2)
	}
}

func indexPath(dataDir, override string) string {
	if p := strings.TrimSpace(override); p != "" {
		return p
	}
	return filepath.Join(dataDir, "index", "driftscape.sqlite")
}

func exitOnRowsErr(rows *sql.Rows) {
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
