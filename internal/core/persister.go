package core

import "context"

// Persister loads and saves the full room→history mapping. The hub persists
// the entire state before every broadcast, so durable always implies visible
// to future joiners.
type Persister interface {
	Load(ctx context.Context) (map[string][]Event, error)
	Save(ctx context.Context, state map[string][]Event) error
	Close() error
}
