package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"driftscape.app/internal/persistence/indexdb"
	"driftscape.app/internal/sim/engine"
)

func openRuntimeIndex(dataDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("DS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "driftscape.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported DS_INDEX_BACKEND: %s", backend)
	}
}

type multiTickLogger []engine.TickLogger

func (m multiTickLogger) WriteTick(entry engine.TickLogEntry) error {
	for _, l := range m {
		_ = l.WriteTick(entry)
	}
	return nil
}

type multiConfigLogger []engine.ConfigLogger

func (m multiConfigLogger) WriteConfig(entry engine.ConfigLogEntry) error {
	for _, l := range m {
		_ = l.WriteConfig(entry)
	}
	return nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
