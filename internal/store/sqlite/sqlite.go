// Package sqlite persists the room→history mapping in an embedded SQLite
// database. It is an alternative to the JSON file store for deployments
// that outgrow a single flat document.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/framepoint/relaychat/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS events (
	room TEXT NOT NULL,
	seq  INTEGER NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (room, seq)
);
`

// Store implements core.Persister for SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Load reads every room and its ordered events.
func (s *Store) Load(ctx context.Context) (map[string][]core.Event, error) {
	state := map[string][]core.Event{core.DefaultRoom: {}}

	rooms, err := s.db.QueryContext(ctx, `SELECT name FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rooms.Close()
	for rooms.Next() {
		var name string
		if err := rooms.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		if _, ok := state[name]; !ok {
			state[name] = []core.Event{}
		}
	}
	if err := rooms.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT room, body FROM events ORDER BY room, seq`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var room, body string
		if err := rows.Scan(&room, &body); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(body), &ev); err != nil {
			return nil, fmt.Errorf("decode event in %q: %w", room, err)
		}
		state[room] = append(state[room], ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return state, nil
}

// Save replaces the stored state with the given mapping in one transaction,
// mirroring the whole-document overwrite of the file store.
func (s *Store) Save(ctx context.Context, state map[string][]core.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms`); err != nil {
		return fmt.Errorf("clear rooms: %w", err)
	}

	for room, history := range state {
		if _, err := tx.ExecContext(ctx, `INSERT INTO rooms (name) VALUES (?)`, room); err != nil {
			return fmt.Errorf("insert room %q: %w", room, err)
		}
		for seq, ev := range history {
			body, err := json.Marshal(ev)
			if err != nil {
				return fmt.Errorf("encode event in %q: %w", room, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO events (room, seq, body) VALUES (?, ?, ?)`,
				room, seq, string(body)); err != nil {
				return fmt.Errorf("insert event in %q: %w", room, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
