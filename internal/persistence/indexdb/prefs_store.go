package indexdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"driftscape.app/internal/persistence/prefs"
	"driftscape.app/internal/sim/engine"
)

var _ prefs.Store = (*SQLiteIndex)(nil)

// Get returns the latest value for key, including writes still queued for the
// writer goroutine.
func (s *SQLiteIndex) Get(key string) ([]byte, error) {
	s.prefsMu.Lock()
	v, ok := s.prefs[key]
	s.prefsMu.Unlock()
	if ok {
		if v == nil {
			return nil, prefs.ErrNotFound
		}
		return append([]byte(nil), v...), nil
	}

	var out []byte
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key=?`, key).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, prefs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read prefs %s: %w", key, err)
	}
	return out, nil
}

// Put is applied asynchronously; the value is visible to Get immediately.
func (s *SQLiteIndex) Put(key string, value []byte) error {
	if s.closed.Load() {
		return errors.New("index closed")
	}
	v := append([]byte(nil), value...)
	select {
	case s.ch <- req{kind: reqPrefPut, key: key, value: v}:
	default:
		return errors.New("index writer queue full")
	}
	s.prefsMu.Lock()
	s.prefs[key] = v
	s.prefsMu.Unlock()
	return nil
}

func (s *SQLiteIndex) Delete(key string) error {
	if s.closed.Load() {
		return errors.New("index closed")
	}
	select {
	case s.ch <- req{kind: reqPrefDelete, key: key}:
	default:
		return errors.New("index writer queue full")
	}
	s.prefsMu.Lock()
	s.prefs[key] = nil
	s.prefsMu.Unlock()
	return nil
}

// ConfigChanges returns the most recent configuration mutations, newest first.
func (s *SQLiteIndex) ConfigChanges(limit int) ([]engine.ConfigLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT raw_json FROM config_changes ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.ConfigLogEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e engine.ConfigLogEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode config change: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
