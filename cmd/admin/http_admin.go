package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"driftscape.app/internal/sim/engine"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	raw := fs.Bool("raw", false, "print the response body unchanged")
	_ = fs.Parse(args)

	b, ok := adminRequest(http.MethodGet, *baseURL, "/admin/v1/state", 5*time.Second)
	if *raw || !ok {
		fmt.Println(string(b))
		if !ok {
			os.Exit(1)
		}
		return
	}
	var resp struct {
		Metrics engine.Metrics `json:"metrics"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	fmt.Println(formatState(resp.Metrics))
}

func formatState(m engine.Metrics) string {
	status := "loading"
	switch {
	case m.Halted:
		status = "halted"
	case m.Ready:
		status = "ready"
	}
	return fmt.Sprintf("tick=%d status=%s quality=%s terrain=%d(q%d) stars=%d(q%d) restarts=%d disposal_errors=%d step_ms=%.2f",
		m.Tick, status, m.Quality, m.TerrainChunks, m.QueueDepths.Terrain, m.StarChunks, m.QueueDepths.Star,
		m.Restarts, m.DisposalErrors, m.StepMS)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	b, ok := adminRequest(http.MethodPost, *baseURL, "/admin/v1/snapshot", 10*time.Second)
	fmt.Println(string(b))
	if !ok {
		os.Exit(1)
	}
}

func adminRequest(method, baseURL, path string, timeout time.Duration) ([]byte, bool) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, _ := http.NewRequest(method, u, nil)
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return b, resp.StatusCode/100 == 2
}
