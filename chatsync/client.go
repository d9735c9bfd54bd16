package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrClosed is returned when the client was explicitly closed.
	ErrClosed = errors.New("client closed")
	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("already connected")
)

// Client is the synchronization engine. All exported methods are safe for
// concurrent use; none of them block on the network. Sends are queued and
// rendering happens later, through dispatcher callbacks, when the server
// answers.
type Client struct {
	cfg        Config
	log        zerolog.Logger
	dispatcher Dispatcher

	writeCh chan Frame

	mu            sync.Mutex
	conn          *websocket.Conn
	cancel        context.CancelFunc
	closed        bool
	identity      Identity
	currentRoom   string
	roomHistories map[string][]Event
}

// NewClient constructs an engine from the given config, loading (or
// minting) the persisted client identity.
func NewClient(cfg Config) *Client {
	if cfg.Nickname == "" {
		cfg.Nickname = "Guest"
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1500 * time.Millisecond
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	identity := loadIdentity(cfg.StatePath)
	if identity.Nickname == "" {
		identity.Nickname = cfg.Nickname
	}
	if err := identity.save(cfg.StatePath); err != nil {
		logger.Warn().Err(err).Msg("persist identity failed")
	}

	return &Client{
		cfg:           cfg,
		log:           logger,
		writeCh:       make(chan Frame, 64),
		identity:      identity,
		currentRoom:   identity.Room,
		roomHistories: make(map[string][]Event),
	}
}

// OnRoomsChanged registers a callback for room list updates.
func (c *Client) OnRoomsChanged(fn func([]string)) { c.dispatcher.SetOnRoomsChanged(fn) }

// OnRoomChanged registers a callback for current-room switches.
func (c *Client) OnRoomChanged(fn func(string)) { c.dispatcher.SetOnRoomChanged(fn) }

// OnHistoryReplaced registers a callback fired when the current room's
// history was replaced wholesale and should be re-rendered.
func (c *Client) OnHistoryReplaced(fn func(string, []Event)) { c.dispatcher.SetOnHistoryReplaced(fn) }

// OnEventAppended registers a callback for single events in the current room.
func (c *Client) OnEventAppended(fn func(Event)) { c.dispatcher.SetOnEventAppended(fn) }

// OnCleared registers a callback for clear notifications.
func (c *Client) OnCleared(fn func(string)) { c.dispatcher.SetOnCleared(fn) }

// OnStateChanged registers a callback for connection state transitions.
func (c *Client) OnStateChanged(fn func(ConnectionState)) { c.dispatcher.SetOnStateChanged(fn) }

// OnError registers a callback for errors.
func (c *Client) OnError(fn func(error)) { c.dispatcher.SetOnError(fn) }

// ClientID returns the stable persisted client identifier.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity.ClientID
}

// CurrentRoom returns the room the engine is joined to.
func (c *Client) CurrentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentRoom
}

// Rooms returns the locally known room names.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomNamesLocked()
}

// History returns a copy of the cached history for a room.
func (c *Client) History(room string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEvents(c.roomHistories[room])
}

// Connect dials the server and starts the engine. Later connection drops
// are retried automatically (when AutoReconnect is set); a failed first
// dial is returned to the caller instead.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	if c.cfg.URL == "" {
		return errors.New("empty URL")
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx, conn)
	return nil
}

// Close shuts down the engine and closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client close")
	}
	c.dispatcher.fireStateChanged(StateClosed)
	return err
}

// SwitchRoom changes the current room. Unknown rooms are optimistically
// created; join and get_history are always sent, even when already joined,
// so the freshly switched room reflects authoritative server state rather
// than a possibly stale cache. Never blocks.
func (c *Client) SwitchRoom(name string) {
	room := roomOrDefault(name)

	c.mu.Lock()
	_, known := c.roomHistories[room]
	if !known {
		c.roomHistories[room] = []Event{}
	}
	c.currentRoom = room
	c.identity.Room = room
	if err := c.identity.save(c.cfg.StatePath); err != nil {
		c.log.Warn().Err(err).Msg("persist current room failed")
	}
	clientID := c.identity.ClientID
	history := cloneEvents(c.roomHistories[room])
	c.mu.Unlock()

	if !known {
		c.enqueue(Frame{Type: typeCreateRoom, Room: room})
	}
	c.enqueue(Frame{Type: typeJoin, Room: room, ClientID: clientID})
	c.enqueue(Frame{Type: typeGetHistory, Room: room})

	c.dispatcher.fireRoomChanged(room)
	c.dispatcher.fireHistoryReplaced(room, history)
	c.log.Debug().Str("room", room).Msg("switched room")
}

// SendMessage publishes a text message to the current room. The timestamp
// is assigned by the server.
func (c *Client) SendMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty message")
	}

	c.mu.Lock()
	f := Frame{
		Type:     TypeText,
		ID:       uuid.NewString(),
		Text:     text,
		ClientID: c.identity.ClientID,
		Nickname: c.identity.Nickname,
		Room:     c.currentRoom,
	}
	c.mu.Unlock()

	c.enqueue(f)
	return nil
}

// SendImageMessage publishes an image event to the current room.
func (c *Client) SendImageMessage(payload ImagePayload) error {
	if payload.ImageURL == "" {
		return errors.New("empty image url")
	}

	c.mu.Lock()
	f := Frame{
		Type:     TypeImage,
		ID:       uuid.NewString(),
		ClientID: c.identity.ClientID,
		Nickname: c.identity.Nickname,
		Room:     c.currentRoom,
		Payload:  &payload,
	}
	c.mu.Unlock()

	c.enqueue(f)
	return nil
}

// CreateRoom asks the server to create a room.
func (c *Client) CreateRoom(name string) {
	c.enqueue(Frame{Type: typeCreateRoom, Room: strings.TrimSpace(name)})
}

// DeleteRoom asks the server to delete a room. Deleting "default" is
// rejected server-side.
func (c *Client) DeleteRoom(name string) {
	c.enqueue(Frame{Type: typeDeleteRoom, Room: strings.TrimSpace(name)})
}

// DeleteAllRooms resets the server to a single empty default room.
func (c *Client) DeleteAllRooms() {
	c.enqueue(Frame{Type: typeDeleteAllRooms})
}

// Clear empties one room's history for everyone, or every room's when room
// is "_all", "all", or empty.
func (c *Client) Clear(room string) {
	c.enqueue(Frame{Type: typeClear, Room: strings.TrimSpace(room)})
}

// RequestHistory re-fetches a room's history from the server.
func (c *Client) RequestHistory(room string) {
	c.enqueue(Frame{Type: typeGetHistory, Room: roomOrDefault(room)})
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}
	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	return conn, err
}

// run owns the connection lifecycle: join on every (re)connect, pump reads
// and queued writes, and retry after a fixed delay when the link drops.
func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	for {
		c.setConn(conn)
		c.dispatcher.fireStateChanged(StateConnected)

		// Re-join before anything queued: membership is rebuilt from
		// scratch on every reconnection.
		join := Frame{Type: typeJoin, Room: c.CurrentRoom(), ClientID: c.ClientID()}
		if err := wsjson.Write(ctx, conn, join); err != nil {
			c.log.Warn().Err(err).Msg("join on connect failed")
		}

		connCtx, connCancel := context.WithCancel(ctx)
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			c.writeLoop(connCtx, conn)
		}()

		err := c.readLoop(connCtx, conn)
		connCancel()
		<-writeDone
		conn.Close(websocket.StatusNormalClosure, "closing")
		c.setConn(nil)

		if ctx.Err() != nil || c.isClosed() {
			return
		}
		if !c.cfg.AutoReconnect {
			c.dispatcher.fireStateChanged(StateDisconnected)
			if err != nil && !isExpectedDisconnect(ctx, err) {
				c.dispatcher.fireError(err)
			}
			return
		}

		c.dispatcher.fireStateChanged(StateReconnecting)
		next, ok := c.redial(ctx)
		if !ok {
			return
		}
		conn = next
	}
}

// redial retries the connection after a fixed delay until it succeeds or
// the engine stops.
func (c *Client) redial(ctx context.Context) (*websocket.Conn, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(c.cfg.ReconnectDelay):
		}

		conn, err := c.dial(ctx)
		if err == nil {
			return conn, true
		}
		c.log.Debug().Err(err).Msg("reconnect attempt failed")
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if !isExpectedDisconnect(ctx, err) {
				c.log.Warn().Err(err).Msg("read loop exit")
				c.dispatcher.fireError(err)
			}
			return err
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		c.handleFrame(f)
	}
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.writeCh:
			wctx := ctx
			var cancel context.CancelFunc
			if c.cfg.WriteTimeout > 0 {
				wctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
			}
			err := wsjson.Write(wctx, conn, f)
			if cancel != nil {
				cancel()
			}
			if err != nil {
				if !isExpectedDisconnect(ctx, err) {
					c.log.Warn().Err(err).Msg("write loop exit")
					c.dispatcher.fireError(err)
				}
				return
			}
		}
	}
}

// handleFrame applies one server frame to the local cache and notifies the
// renderer. Re-renders are gated on the current room, so out-of-order
// responses from a rapid double switch settle correctly.
func (c *Client) handleFrame(f Frame) {
	switch f.Type {
	case typeSnapshot:
		c.handleSnapshot(f)
	case typeRoomHistory:
		c.handleRoomHistory(f)
	case typeRoomCreated:
		c.handleRoomCreated(f)
	case typeRoomDeleted:
		c.handleRoomDeleted(f)
	case typeRoomsReset:
		c.handleRoomsReset(f)
	case typeClear:
		c.handleClear(f)
	case TypeText, TypeImage:
		c.handleEvent(f)
	}
}

func (c *Client) handleSnapshot(f Frame) {
	c.mu.Lock()
	for _, room := range f.Rooms {
		c.roomHistories[room] = Normalize(f.Histories[room])
	}
	current := c.currentRoom
	clientID := c.identity.ClientID
	_, known := c.roomHistories[current]
	if !known {
		c.roomHistories[current] = []Event{}
	}
	rooms := c.roomNamesLocked()
	history := cloneEvents(c.roomHistories[current])
	c.mu.Unlock()

	if !known {
		c.enqueue(Frame{Type: typeCreateRoom, Room: current})
	}
	// Always request fresh history for the current room: the snapshot may
	// lag events broadcast while it was in flight.
	c.enqueue(Frame{Type: typeJoin, Room: current, ClientID: clientID})
	c.enqueue(Frame{Type: typeGetHistory, Room: current})

	c.dispatcher.fireRoomsChanged(rooms)
	c.dispatcher.fireHistoryReplaced(current, history)
}

func (c *Client) handleRoomHistory(f Frame) {
	room := roomOrDefault(f.Room)

	c.mu.Lock()
	c.roomHistories[room] = Normalize(f.History)
	isCurrent := room == c.currentRoom
	history := cloneEvents(c.roomHistories[room])
	c.mu.Unlock()

	if isCurrent {
		c.dispatcher.fireHistoryReplaced(room, history)
	}
}

func (c *Client) handleRoomCreated(f Frame) {
	c.mu.Lock()
	if _, ok := c.roomHistories[f.Room]; !ok {
		c.roomHistories[f.Room] = []Event{}
	}
	rooms := c.roomNamesLocked()
	c.mu.Unlock()

	c.dispatcher.fireRoomsChanged(rooms)
}

func (c *Client) handleRoomDeleted(f Frame) {
	c.mu.Lock()
	delete(c.roomHistories, f.Room)
	fellBack := false
	if c.currentRoom == f.Room {
		c.currentRoom = DefaultRoom
		c.identity.Room = DefaultRoom
		if err := c.identity.save(c.cfg.StatePath); err != nil {
			c.log.Warn().Err(err).Msg("persist current room failed")
		}
		fellBack = true
	}
	if _, ok := c.roomHistories[DefaultRoom]; !ok {
		c.roomHistories[DefaultRoom] = []Event{}
	}
	current := c.currentRoom
	clientID := c.identity.ClientID
	rooms := c.roomNamesLocked()
	history := cloneEvents(c.roomHistories[current])
	c.mu.Unlock()

	if fellBack {
		c.enqueue(Frame{Type: typeJoin, Room: DefaultRoom, ClientID: clientID})
		c.dispatcher.fireRoomChanged(DefaultRoom)
	}
	c.dispatcher.fireRoomsChanged(rooms)
	c.dispatcher.fireHistoryReplaced(current, history)
}

func (c *Client) handleRoomsReset(f Frame) {
	c.mu.Lock()
	c.roomHistories = make(map[string][]Event, len(f.Rooms))
	for _, room := range f.Rooms {
		c.roomHistories[room] = Normalize(f.Histories[room])
	}
	if _, ok := c.roomHistories[DefaultRoom]; !ok {
		c.roomHistories[DefaultRoom] = []Event{}
	}
	c.currentRoom = DefaultRoom
	c.identity.Room = DefaultRoom
	if err := c.identity.save(c.cfg.StatePath); err != nil {
		c.log.Warn().Err(err).Msg("persist current room failed")
	}
	clientID := c.identity.ClientID
	rooms := c.roomNamesLocked()
	history := cloneEvents(c.roomHistories[DefaultRoom])
	c.mu.Unlock()

	// Re-join default and fetch fresh history.
	c.enqueue(Frame{Type: typeJoin, Room: DefaultRoom, ClientID: clientID})
	c.enqueue(Frame{Type: typeGetHistory, Room: DefaultRoom})

	c.dispatcher.fireRoomsChanged(rooms)
	c.dispatcher.fireRoomChanged(DefaultRoom)
	c.dispatcher.fireHistoryReplaced(DefaultRoom, history)
}

func (c *Client) handleClear(f Frame) {
	if f.Room == AllRooms {
		c.mu.Lock()
		for room := range c.roomHistories {
			c.roomHistories[room] = []Event{}
		}
		c.mu.Unlock()

		c.dispatcher.fireCleared(AllRooms)
		return
	}

	c.mu.Lock()
	c.roomHistories[f.Room] = []Event{}
	isCurrent := f.Room == c.currentRoom
	c.mu.Unlock()

	if isCurrent {
		c.dispatcher.fireCleared(f.Room)
	}
}

func (c *Client) handleEvent(f Frame) {
	ev := f.event()
	room := roomOrDefault(ev.Room)

	c.mu.Lock()
	c.roomHistories[room] = append(c.roomHistories[room], ev)
	isCurrent := room == c.currentRoom
	c.mu.Unlock()

	if isCurrent {
		c.dispatcher.fireEventAppended(ev)
	}
}

// enqueue queues a frame for the write loop. The queue is bounded; while
// disconnected it buffers so that re-joins fired during an outage apply on
// reconnect, and overflow is dropped; consistency is restored by the next
// successful round trip.
func (c *Client) enqueue(f Frame) {
	select {
	case c.writeCh <- f:
	default:
		c.log.Warn().Str("type", f.Type).Msg("write queue full, dropping frame")
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) roomNamesLocked() []string {
	names := make([]string, 0, len(c.roomHistories))
	for name := range c.roomHistories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func roomOrDefault(room string) string {
	room = strings.TrimSpace(room)
	if room == "" {
		return DefaultRoom
	}
	return room
}

func cloneEvents(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
