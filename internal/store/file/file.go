// Package file persists the room→history mapping as a single pretty-printed
// JSON document, e.g. chat-history/history.json.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/framepoint/relaychat/internal/core"
)

// Store implements core.Persister on top of one JSON file.
type Store struct {
	path string
	log  *zerolog.Logger
}

// New creates the history directory if needed and returns the store.
func New(path string, logger *zerolog.Logger) (*Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	return &Store{path: path, log: logger}, nil
}

// Load reads the document from disk. Read errors never propagate: a missing
// or corrupt file yields {default: []}. A legacy bare-array file is migrated
// to {default: array}.
func (s *Store) Load(context.Context) (map[string][]core.Event, error) {
	fallback := map[string][]core.Event{core.DefaultRoom: {}}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("history unreadable, starting empty")
		}
		return fallback, nil
	}

	var state map[string][]core.Event
	if err := json.Unmarshal(raw, &state); err == nil && state != nil {
		if _, ok := state[core.DefaultRoom]; !ok {
			state[core.DefaultRoom] = []core.Event{}
		}
		return state, nil
	}

	// Back-compat: the old format was a single array of events.
	var legacy []core.Event
	if err := json.Unmarshal(raw, &legacy); err == nil {
		s.log.Info().Str("path", s.path).Msg("migrating legacy history format")
		return map[string][]core.Event{core.DefaultRoom: legacy}, nil
	}

	s.log.Warn().Str("path", s.path).Msg("history corrupt, starting empty")
	return fallback, nil
}

// Save serializes the entire mapping, overwriting prior content.
func (s *Store) Save(_ context.Context, state map[string][]core.Event) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Close implements core.Persister; the file store holds no open handles.
func (s *Store) Close() error { return nil }
