// Package proto defines the JSON frames exchanged with clients. Each frame
// is one flat JSON object tagged by "type"; message boundaries rely on the
// WebSocket's own framing.
package proto

import "github.com/framepoint/relaychat/internal/core"

// Inbound frame types (client → server).
const (
	TypeJoin           = "join"
	TypeCreateRoom     = "create_room"
	TypeDeleteRoom     = "delete_room"
	TypeDeleteAllRooms = "delete_all_rooms"
	TypeClear          = "clear"
	TypeGetHistory     = "get_history"
	TypeMessage        = "message"
	TypeImageMessage   = "image_message"
)

// Outbound frame types (server → client). Message and image_message frames
// reuse the inbound tags.
const (
	TypeSnapshot    = "snapshot"
	TypeRoomHistory = "room_history"
	TypeRoomCreated = "room_created"
	TypeRoomDeleted = "room_deleted"
	TypeRoomsReset  = "rooms_reset"
)

// Inbound is the superset of every client frame; fields are populated
// according to Type.
type Inbound struct {
	Type     string             `json:"type"`
	Room     string             `json:"room,omitempty"`
	ClientID string             `json:"clientId,omitempty"`
	ID       string             `json:"id,omitempty"`
	TS       int64              `json:"ts,omitempty"`
	Text     string             `json:"text,omitempty"`
	Nickname string             `json:"nickname,omitempty"`
	Payload  *core.ImagePayload `json:"payload,omitempty"`
}

// Snapshot is sent once, immediately on connect, before any join.
type Snapshot struct {
	Type      string                  `json:"type"`
	Rooms     []string                `json:"rooms"`
	Histories map[string][]core.Event `json:"histories"`
}

// RoomHistory answers a join or get_history request.
type RoomHistory struct {
	Type    string       `json:"type"`
	Room    string       `json:"room"`
	History []core.Event `json:"history"`
}

// RoomNotice announces room_created, room_deleted, and clear.
type RoomNotice struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// RoomsReset announces that state collapsed back to the default room.
type RoomsReset struct {
	Type      string                  `json:"type"`
	Rooms     []string                `json:"rooms"`
	Histories map[string][]core.Event `json:"histories"`
}
