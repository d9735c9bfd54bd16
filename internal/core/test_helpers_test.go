package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func mustOutbound(t *testing.T, ch <-chan *Outbound, kind OutboundKind) *Outbound {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case out, ok := <-ch:
			if !ok {
				t.Fatalf("outbound channel closed while waiting for kind %v", kind)
			}
			if out.Kind == kind {
				return out
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected outbound kind %v not received", kind)
	return nil
}

func noOutbound(t *testing.T, ch <-chan *Outbound, kind OutboundKind) {
	t.Helper()

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case out, ok := <-ch:
			if !ok {
				return
			}
			if out.Kind == kind {
				t.Fatalf("unexpected outbound kind %v: %+v", kind, out)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// fakePersister records saved states in memory.
type fakePersister struct {
	mu     sync.Mutex
	saves  int
	latest map[string][]Event
	seed   map[string][]Event
}

func (p *fakePersister) Load(context.Context) (map[string][]Event, error) {
	if p.seed == nil {
		return map[string][]Event{DefaultRoom: {}}, nil
	}
	return p.seed, nil
}

func (p *fakePersister) Save(_ context.Context, state map[string][]Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.latest = make(map[string][]Event, len(state))
	for room, history := range state {
		copied := make([]Event, len(history))
		copy(copied, history)
		p.latest[room] = copied
	}
	return nil
}

func (p *fakePersister) Close() error { return nil }

func (p *fakePersister) snapshot() (int, map[string][]Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves, p.latest
}

func startHub(t *testing.T, persister Persister) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(persister, nil)
	go hub.Run(ctx)
	return hub
}

func joinRoom(t *testing.T, hub *Hub, connID, clientID, room string) *Client {
	t.Helper()

	c := NewClient(connID)
	hub.RegisterClient(c)
	mustOutbound(t, c.Out, OutSnapshot)
	c.Commands <- Command{Kind: CommandJoin, Room: room, ClientID: clientID}
	mustOutbound(t, c.Out, OutRoomHistory)
	return c
}
