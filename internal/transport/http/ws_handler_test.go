package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/framepoint/relaychat/internal/config"
	"github.com/framepoint/relaychat/internal/core"
	"github.com/framepoint/relaychat/internal/proto"
)

// frame is a superset of every outbound shape, for test decoding.
type frame struct {
	Type      string                  `json:"type"`
	Room      string                  `json:"room"`
	Rooms     []string                `json:"rooms"`
	History   []core.Event            `json:"history"`
	Histories map[string][]core.Event `json:"histories"`
	ID        string                  `json:"id"`
	TS        int64                   `json:"ts"`
	Text      string                  `json:"text"`
	ClientID  string                  `json:"clientId"`
	Nickname  string                  `json:"nickname"`
}

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	hub := core.NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := config.Default()
	cfg.Port = 0
	server := NewServer(hub, cfg, testLogger())

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func readFrameOfType(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string) frame {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if f.Type == frameType {
			return f
		}
	}
	t.Fatalf("frame type %q not received", frameType)
	return frame{}
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestSnapshotSentOnConnect(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)

	snap := readFrameOfType(t, ctx, conn, proto.TypeSnapshot)
	if len(snap.Rooms) != 1 || snap.Rooms[0] != core.DefaultRoom {
		t.Fatalf("unexpected snapshot rooms: %v", snap.Rooms)
	}
	if _, ok := snap.Histories[core.DefaultRoom]; !ok {
		t.Fatalf("snapshot missing default history: %+v", snap.Histories)
	}
}

func TestJoinAndMessageRoundTrip(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts)
	connB := dialWS(t, ctx, ts)

	readFrameOfType(t, ctx, connA, proto.TypeSnapshot)
	readFrameOfType(t, ctx, connB, proto.TypeSnapshot)

	join := func(conn *websocket.Conn, clientID string) {
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.TypeJoin, Room: "teamX", ClientID: clientID}); err != nil {
			t.Fatalf("write join: %v", err)
		}
		history := readFrameOfType(t, ctx, conn, proto.TypeRoomHistory)
		if history.Room != "teamX" {
			t.Fatalf("unexpected history room: %q", history.Room)
		}
	}
	join(connA, "alice")
	join(connB, "bob")

	msg := proto.Inbound{
		Type:     proto.TypeMessage,
		Room:     "teamX",
		ClientID: "alice",
		Nickname: "Alice",
		ID:       "m1",
		TS:       1, // must be overwritten server-side
		Text:     "hi there",
	}
	if err := wsjson.Write(ctx, connA, msg); err != nil {
		t.Fatalf("write message: %v", err)
	}

	for _, conn := range []*websocket.Conn{connA, connB} {
		got := readFrameOfType(t, ctx, conn, proto.TypeMessage)
		if got.ID != "m1" || got.Text != "hi there" || got.Room != "teamX" {
			t.Fatalf("unexpected message frame: %+v", got)
		}
		if got.TS <= 1 {
			t.Fatalf("timestamp not server-stamped: %d", got.TS)
		}
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	readFrameOfType(t, ctx, conn, proto.TypeSnapshot)

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write malformed: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"warp_drive"}`)); err != nil {
		t.Fatalf("write unknown type: %v", err)
	}

	// The connection must survive both; a join still works.
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.TypeJoin, Room: "teamX", ClientID: "c1"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	history := readFrameOfType(t, ctx, conn, proto.TypeRoomHistory)
	if history.Room != "teamX" {
		t.Fatalf("unexpected history room: %q", history.Room)
	}
}

func TestRoomLifecycleBroadcastToAll(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts)
	connB := dialWS(t, ctx, ts)
	readFrameOfType(t, ctx, connA, proto.TypeSnapshot)
	readFrameOfType(t, ctx, connB, proto.TypeSnapshot)

	// B never joins teamX, but still sees its lifecycle.
	if err := wsjson.Write(ctx, connA, proto.Inbound{Type: proto.TypeCreateRoom, Room: "teamX"}); err != nil {
		t.Fatalf("write create_room: %v", err)
	}
	created := readFrameOfType(t, ctx, connB, proto.TypeRoomCreated)
	if created.Room != "teamX" {
		t.Fatalf("unexpected created room: %q", created.Room)
	}

	if err := wsjson.Write(ctx, connB, proto.Inbound{Type: proto.TypeDeleteRoom, Room: "teamX"}); err != nil {
		t.Fatalf("write delete_room: %v", err)
	}
	deleted := readFrameOfType(t, ctx, connA, proto.TypeRoomDeleted)
	if deleted.Room != "teamX" {
		t.Fatalf("unexpected deleted room: %q", deleted.Room)
	}
}
