package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultRoom always exists and can never be deleted.
	DefaultRoom = "default"
	// ClearAllRooms is the room name that targets every room in a clear.
	ClearAllRooms = "_all"
)

type envelope struct {
	client *Client
	cmd    Command
}

type stateRequest struct {
	reply chan stateReply
}

type stateReply struct {
	rooms     []string
	histories map[string][]Event
}

// Hub owns all room state. Every mutation is serialized through Run's
// goroutine, so command handling never races between connections.
type Hub struct {
	log       *zerolog.Logger
	persister Persister

	register   chan *Client
	unregister chan *Client
	commands   chan envelope
	state      chan stateRequest

	clients   map[*Client]struct{}
	rooms     map[string]*Room
	histories map[string][]Event
}

// NewHub constructs a hub, loading persisted histories through the given
// persister. A nil persister keeps the hub purely in-memory (tests).
func NewHub(persister Persister, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	histories := map[string][]Event{DefaultRoom: {}}
	if persister != nil {
		loaded, err := persister.Load(context.Background())
		if err != nil {
			logger.Warn().Err(err).Msg("load history failed, starting empty")
		} else if loaded != nil {
			histories = loaded
		}
	}
	if _, ok := histories[DefaultRoom]; !ok {
		histories[DefaultRoom] = []Event{}
	}

	return &Hub{
		log:        logger,
		persister:  persister,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan envelope),
		state:      make(chan stateRequest),
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]*Room),
		histories:  histories,
	}
}

// Run processes registrations, commands, and state queries until the
// context is cancelled. It must be running before clients are registered.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case env := <-h.commands:
			h.handleCommand(ctx, env.client, env.cmd)
		case req := <-h.state:
			req.reply <- stateReply{rooms: h.roomNames(), histories: h.cloneHistories()}
		case <-ctx.Done():
			return
		}
	}
}

// RegisterClient announces a new connection. The client immediately
// receives a snapshot of every room and history, before any join.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
	go h.pump(c)
}

// UnregisterClient removes a connection from every room and closes its
// outbound channel.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// State returns a deep copy of room names and histories, answered by the
// hub goroutine.
func (h *Hub) State(ctx context.Context) ([]string, map[string][]Event, error) {
	req := stateRequest{reply: make(chan stateReply, 1)}
	select {
	case h.state <- req:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.rooms, rep.histories, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// pump forwards a client's commands into the hub loop. It exits when the
// transport closes the client's command channel.
func (h *Hub) pump(c *Client) {
	for cmd := range c.Commands {
		h.commands <- envelope{client: c, cmd: cmd}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = struct{}{}
	h.send(c, &Outbound{
		Kind:      OutSnapshot,
		Rooms:     h.roomNames(),
		Histories: h.cloneHistories(),
	})
	h.log.Debug().Str("conn_id", c.ConnID).Msg("client registered")
}

func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for name, room := range h.rooms {
		if room.RemoveConn(c) {
			h.log.Debug().Str("conn_id", c.ConnID).Str("room", name).Int("size", room.Size()).Msg("client left room")
		}
	}
	close(c.Out)
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd Command) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	switch cmd.Kind {
	case CommandJoin:
		h.handleJoin(c, cmd)
	case CommandCreateRoom:
		h.handleCreateRoom(ctx, cmd)
	case CommandDeleteRoom:
		h.handleDeleteRoom(ctx, cmd)
	case CommandResetRooms:
		h.handleResetRooms(ctx)
	case CommandClear:
		h.handleClear(ctx, cmd)
	case CommandGetHistory:
		h.handleGetHistory(c, cmd)
	case CommandPublish:
		h.handlePublish(ctx, cmd)
	default:
		// Unknown commands are dropped, same as unknown frame types.
	}
}

func (h *Hub) handleJoin(c *Client, cmd Command) {
	room := roomOrDefault(cmd.Room)
	c.id = cmd.ClientID
	h.liveRoom(room).AddMember(cmd.ClientID, c)
	// Joining an unknown room materializes it in memory; it is not
	// persisted until a real event or create lands.
	if _, ok := h.histories[room]; !ok {
		h.histories[room] = []Event{}
	}
	h.send(c, &Outbound{Kind: OutRoomHistory, Room: room, History: h.cloneHistory(room)})
}

func (h *Hub) handleCreateRoom(ctx context.Context, cmd Command) {
	room := strings.TrimSpace(cmd.Room)
	if room == "" {
		return
	}
	if _, exists := h.histories[room]; exists {
		return
	}
	h.histories[room] = []Event{}
	h.persist(ctx)
	h.broadcastAll(&Outbound{Kind: OutRoomCreated, Room: room})
	h.log.Info().Str("room", room).Msg("room created")
}

func (h *Hub) handleDeleteRoom(ctx context.Context, cmd Command) {
	room := strings.TrimSpace(cmd.Room)
	if room == "" || room == DefaultRoom {
		return
	}
	if _, exists := h.histories[room]; !exists {
		return
	}
	delete(h.histories, room)
	delete(h.rooms, room)
	h.persist(ctx)
	h.broadcastAll(&Outbound{Kind: OutRoomDeleted, Room: room})
	h.log.Info().Str("room", room).Msg("room deleted")
}

func (h *Hub) handleResetRooms(ctx context.Context) {
	h.histories = map[string][]Event{DefaultRoom: {}}
	for name := range h.rooms {
		if name != DefaultRoom {
			delete(h.rooms, name)
		}
	}
	h.persist(ctx)
	h.broadcastAll(&Outbound{
		Kind:      OutRoomsReset,
		Rooms:     h.roomNames(),
		Histories: h.cloneHistories(),
	})
	h.log.Info().Msg("rooms reset")
}

func (h *Hub) handleClear(ctx context.Context, cmd Command) {
	room := strings.TrimSpace(cmd.Room)
	if room == "" || room == ClearAllRooms || strings.EqualFold(room, "all") {
		for name := range h.histories {
			h.histories[name] = []Event{}
		}
		h.persist(ctx)
		h.broadcastAll(&Outbound{Kind: OutClear, Room: ClearAllRooms})
		h.log.Info().Msg("all rooms cleared")
		return
	}

	h.histories[room] = []Event{}
	h.persist(ctx)
	if live, ok := h.rooms[room]; ok {
		live.Broadcast(&Outbound{Kind: OutClear, Room: room}, nil)
	}
	h.log.Info().Str("room", room).Msg("room cleared")
}

func (h *Hub) handleGetHistory(c *Client, cmd Command) {
	room := roomOrDefault(cmd.Room)
	if _, ok := h.histories[room]; !ok {
		h.histories[room] = []Event{}
	}
	h.send(c, &Outbound{Kind: OutRoomHistory, Room: room, History: h.cloneHistory(room)})
}

func (h *Hub) handlePublish(ctx context.Context, cmd Command) {
	if cmd.Event == nil {
		return
	}
	ev := *cmd.Event
	room := roomOrDefault(ev.Room)
	ev.Stamp(room, time.Now())
	h.histories[room] = append(h.histories[room], ev)
	// Persist before broadcast: a crash between the two can lose a
	// broadcast but never already-acknowledged history.
	h.persist(ctx)
	h.liveRoom(room).Broadcast(&Outbound{Kind: OutEvent, Room: room, Event: &ev}, nil)
}

func (h *Hub) persist(ctx context.Context) {
	if h.persister == nil {
		return
	}
	if err := h.persister.Save(ctx, h.histories); err != nil {
		h.log.Warn().Err(err).Msg("persist history failed")
	}
}

func (h *Hub) broadcastAll(out *Outbound) {
	for c := range h.clients {
		h.send(c, out)
	}
}

func (h *Hub) send(c *Client, out *Outbound) {
	select {
	case c.Out <- out:
	default:
		h.log.Warn().Str("conn_id", c.ConnID).Msg("dropping outbound for slow consumer")
	}
}

func (h *Hub) liveRoom(name string) *Room {
	room, ok := h.rooms[name]
	if !ok {
		room = NewRoom(name)
		h.rooms[name] = room
	}
	return room
}

func (h *Hub) roomNames() []string {
	names := make([]string, 0, len(h.histories))
	for name := range h.histories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Hub) cloneHistory(room string) []Event {
	history := h.histories[room]
	out := make([]Event, len(history))
	copy(out, history)
	return out
}

func (h *Hub) cloneHistories() map[string][]Event {
	out := make(map[string][]Event, len(h.histories))
	for name := range h.histories {
		out[name] = h.cloneHistory(name)
	}
	return out
}

func roomOrDefault(room string) string {
	room = strings.TrimSpace(room)
	if room == "" {
		return DefaultRoom
	}
	return room
}
