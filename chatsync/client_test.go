package chatsync

import (
	"path/filepath"
	"testing"
)

// newTestClient builds an engine with a temp identity file and no network.
// Frames are injected through handleFrame and outgoing traffic is observed
// on the write queue.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = "ws://localhost:3001/ws"
	cfg.StatePath = filepath.Join(t.TempDir(), "identity.json")
	return NewClient(cfg)
}

// drainFrames empties the write queue and returns the frame types in order.
func drainFrames(t *testing.T, c *Client) []Frame {
	t.Helper()
	var out []Frame
	for {
		select {
		case f := <-c.writeCh:
			out = append(out, f)
		default:
			return out
		}
	}
}

func frameTypes(frames []Frame) []string {
	types := make([]string, len(frames))
	for i, f := range frames {
		types[i] = f.Type
	}
	return types
}

func TestSnapshotPopulatesCacheAndRequestsCurrentHistory(t *testing.T) {
	c := newTestClient(t)

	var gotRooms []string
	var replaced string
	c.OnRoomsChanged(func(rooms []string) { gotRooms = rooms })
	c.OnHistoryReplaced(func(room string, _ []Event) { replaced = room })

	c.handleFrame(Frame{
		Type:  typeSnapshot,
		Rooms: []string{"default", "design"},
		Histories: map[string][]Event{
			"default": {{Type: TypeText, ID: "a", TS: 2}, {Type: TypeText, ID: "a", TS: 2}},
			"design":  {},
		},
	})

	if len(gotRooms) != 2 {
		t.Fatalf("expected 2 rooms, got %v", gotRooms)
	}
	if replaced != DefaultRoom {
		t.Fatalf("expected history replace for %q, got %q", DefaultRoom, replaced)
	}
	if h := c.History(DefaultRoom); len(h) != 1 {
		t.Fatalf("snapshot history should be normalized, got %d events", len(h))
	}

	types := frameTypes(drainFrames(t, c))
	if len(types) != 2 || types[0] != typeJoin || types[1] != typeGetHistory {
		t.Fatalf("expected join then get_history, got %v", types)
	}
}

func TestSnapshotRecreatesMissingCurrentRoom(t *testing.T) {
	c := newTestClient(t)
	c.mu.Lock()
	c.currentRoom = "design"
	c.mu.Unlock()

	c.handleFrame(Frame{
		Type:      typeSnapshot,
		Rooms:     []string{"default"},
		Histories: map[string][]Event{"default": {}},
	})

	types := frameTypes(drainFrames(t, c))
	if len(types) != 3 || types[0] != typeCreateRoom {
		t.Fatalf("expected create_room before join and get_history, got %v", types)
	}
	found := false
	for _, room := range c.Rooms() {
		if room == "design" {
			found = true
		}
	}
	if !found {
		t.Fatal("current room should be recreated locally")
	}
}

func TestRoomHistoryOnlyRerendersCurrentRoom(t *testing.T) {
	c := newTestClient(t)

	fired := 0
	c.OnHistoryReplaced(func(string, []Event) { fired++ })

	c.handleFrame(Frame{
		Type:    typeRoomHistory,
		Room:    "design",
		History: []Event{{Type: TypeText, ID: "a", TS: 1}},
	})
	if fired != 0 {
		t.Fatal("history for another room must not trigger a re-render")
	}
	if h := c.History("design"); len(h) != 1 {
		t.Fatalf("history should still be cached, got %d events", len(h))
	}

	c.handleFrame(Frame{
		Type:    typeRoomHistory,
		Room:    DefaultRoom,
		History: []Event{{Type: TypeText, ID: "b", TS: 2}},
	})
	if fired != 1 {
		t.Fatalf("expected exactly one re-render, got %d", fired)
	}
}

func TestEventAppendGatesOnCurrentRoom(t *testing.T) {
	c := newTestClient(t)

	var appended []Event
	c.OnEventAppended(func(ev Event) { appended = append(appended, ev) })

	c.handleFrame(Frame{Type: TypeText, ID: "a", TS: 1, Room: "design", Text: "elsewhere"})
	c.handleFrame(Frame{Type: TypeText, ID: "b", TS: 2, Room: DefaultRoom, Text: "here"})

	if len(appended) != 1 || appended[0].ID != "b" {
		t.Fatalf("expected only the current-room event, got %+v", appended)
	}
	if h := c.History("design"); len(h) != 1 {
		t.Fatal("background room event should still land in the cache")
	}
}

func TestRoomDeletedFallsBackToDefault(t *testing.T) {
	c := newTestClient(t)
	c.handleFrame(Frame{Type: typeRoomCreated, Room: "design"})
	c.SwitchRoom("design")
	drainFrames(t, c)

	var roomChanged string
	c.OnRoomChanged(func(room string) { roomChanged = room })

	c.handleFrame(Frame{Type: typeRoomDeleted, Room: "design"})

	if roomChanged != DefaultRoom {
		t.Fatalf("expected fallback to %q, got %q", DefaultRoom, roomChanged)
	}
	if c.CurrentRoom() != DefaultRoom {
		t.Fatalf("current room should be %q, got %q", DefaultRoom, c.CurrentRoom())
	}
	types := frameTypes(drainFrames(t, c))
	if len(types) != 1 || types[0] != typeJoin {
		t.Fatalf("expected a re-join of default, got %v", types)
	}

	// Fallback survives a restart through the identity file.
	reloaded := loadIdentity(c.cfg.StatePath)
	if reloaded.Room != DefaultRoom {
		t.Fatalf("persisted room should be %q, got %q", DefaultRoom, reloaded.Room)
	}
}

func TestRoomDeletedElsewhereKeepsCurrentRoom(t *testing.T) {
	c := newTestClient(t)
	c.handleFrame(Frame{Type: typeRoomCreated, Room: "design"})

	var roomChanged string
	c.OnRoomChanged(func(room string) { roomChanged = room })

	c.handleFrame(Frame{Type: typeRoomDeleted, Room: "design"})

	if roomChanged != "" {
		t.Fatalf("unexpected room change to %q", roomChanged)
	}
	for _, room := range c.Rooms() {
		if room == "design" {
			t.Fatal("deleted room should be dropped from the cache")
		}
	}
}

func TestRoomsResetReplacesCacheAndMovesToDefault(t *testing.T) {
	c := newTestClient(t)
	c.handleFrame(Frame{Type: typeRoomCreated, Room: "design"})
	c.SwitchRoom("design")
	drainFrames(t, c)

	c.handleFrame(Frame{
		Type:      typeRoomsReset,
		Rooms:     []string{"default"},
		Histories: map[string][]Event{"default": {}},
	})

	if c.CurrentRoom() != DefaultRoom {
		t.Fatalf("expected %q after reset, got %q", DefaultRoom, c.CurrentRoom())
	}
	if rooms := c.Rooms(); len(rooms) != 1 || rooms[0] != DefaultRoom {
		t.Fatalf("expected only the default room, got %v", rooms)
	}
	types := frameTypes(drainFrames(t, c))
	if len(types) != 2 || types[0] != typeJoin || types[1] != typeGetHistory {
		t.Fatalf("expected join then get_history, got %v", types)
	}
}

func TestClearAllEmptiesEveryRoom(t *testing.T) {
	c := newTestClient(t)
	c.handleFrame(Frame{Type: TypeText, ID: "a", TS: 1, Room: DefaultRoom})
	c.handleFrame(Frame{Type: TypeText, ID: "b", TS: 2, Room: "design"})

	var cleared string
	c.OnCleared(func(room string) { cleared = room })

	c.handleFrame(Frame{Type: typeClear, Room: AllRooms})

	if cleared != AllRooms {
		t.Fatalf("expected cleared %q, got %q", AllRooms, cleared)
	}
	if len(c.History(DefaultRoom)) != 0 || len(c.History("design")) != 0 {
		t.Fatal("all cached histories should be empty")
	}
}

func TestClearOtherRoomDoesNotNotify(t *testing.T) {
	c := newTestClient(t)
	c.handleFrame(Frame{Type: TypeText, ID: "a", TS: 1, Room: "design"})

	fired := false
	c.OnCleared(func(string) { fired = true })

	c.handleFrame(Frame{Type: typeClear, Room: "design"})

	if fired {
		t.Fatal("clearing a background room must not notify the renderer")
	}
	if len(c.History("design")) != 0 {
		t.Fatal("cleared room cache should be empty")
	}
}

func TestSwitchRoomToUnknownRoomCreatesIt(t *testing.T) {
	c := newTestClient(t)

	var roomChanged string
	c.OnRoomChanged(func(room string) { roomChanged = room })

	c.SwitchRoom("design")

	types := frameTypes(drainFrames(t, c))
	want := []string{typeCreateRoom, typeJoin, typeGetHistory}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, types)
		}
	}
	if roomChanged != "design" {
		t.Fatalf("expected room change callback, got %q", roomChanged)
	}

	reloaded := loadIdentity(c.cfg.StatePath)
	if reloaded.Room != "design" {
		t.Fatalf("switch should persist the room, got %q", reloaded.Room)
	}
}

func TestSwitchRoomAlwaysRefetchesEvenWhenKnown(t *testing.T) {
	c := newTestClient(t)
	c.handleFrame(Frame{Type: typeRoomCreated, Room: "design"})

	c.SwitchRoom("design")

	types := frameTypes(drainFrames(t, c))
	if len(types) != 2 || types[0] != typeJoin || types[1] != typeGetHistory {
		t.Fatalf("known room still needs join and get_history, got %v", types)
	}
}

func TestSendMessageFillsIdentityAndRoom(t *testing.T) {
	c := newTestClient(t)

	if err := c.SendMessage("  hello  "); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := c.SendMessage("   "); err == nil {
		t.Fatal("blank message should be rejected")
	}

	frames := drainFrames(t, c)
	if len(frames) != 1 {
		t.Fatalf("expected one queued frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Type != TypeText || f.Text != "hello" {
		t.Fatalf("unexpected frame %+v", f)
	}
	if f.ID == "" || f.ClientID != c.ClientID() || f.Room != DefaultRoom {
		t.Fatalf("frame missing identity fields: %+v", f)
	}
	if f.TS != 0 {
		t.Fatal("timestamp is assigned by the server, not the client")
	}
}

func TestSendImageMessageCarriesPayload(t *testing.T) {
	c := newTestClient(t)

	err := c.SendImageMessage(ImagePayload{
		ImageURL:    "http://example.com/frame_0042.jpg",
		FolderName:  "shoot-01",
		Keyframe:    "frame_0042.jpg",
		VideoID:     "vid-7",
		FrameNumber: 42,
	})
	if err != nil {
		t.Fatalf("send image: %v", err)
	}
	if err := c.SendImageMessage(ImagePayload{}); err == nil {
		t.Fatal("empty image url should be rejected")
	}

	frames := drainFrames(t, c)
	if len(frames) != 1 {
		t.Fatalf("expected one queued frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Type != TypeImage || f.Payload == nil || f.Payload.FrameNumber != 42 {
		t.Fatalf("unexpected frame %+v", f)
	}
}

func TestIdentityPersistsAcrossClients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")

	cfg := DefaultConfig()
	cfg.StatePath = path
	first := NewClient(cfg)
	second := NewClient(cfg)

	if first.ClientID() == "" {
		t.Fatal("client id should be minted")
	}
	if first.ClientID() != second.ClientID() {
		t.Fatalf("client id should be stable: %q vs %q", first.ClientID(), second.ClientID())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := newTestClient(t)

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := c.Connect(nil); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
