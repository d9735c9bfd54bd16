// Package chatsync is the client-side synchronization engine for the relay
// server. It maintains a local cache of room histories, reconciles it with
// the server on connect, room switch, and reconnection, and notifies a
// renderer adapter through callbacks. It never touches any UI.
package chatsync

import "strconv"

// Frame type tags, shared with the server protocol.
const (
	typeJoin           = "join"
	typeCreateRoom     = "create_room"
	typeDeleteRoom     = "delete_room"
	typeDeleteAllRooms = "delete_all_rooms"
	typeClear          = "clear"
	typeGetHistory     = "get_history"
	typeSnapshot       = "snapshot"
	typeRoomHistory    = "room_history"
	typeRoomCreated    = "room_created"
	typeRoomDeleted    = "room_deleted"
	typeRoomsReset     = "rooms_reset"

	// TypeText and TypeImage tag chat events.
	TypeText  = "message"
	TypeImage = "image_message"
)

const (
	// DefaultRoom is where every client starts and falls back to.
	DefaultRoom = "default"
	// AllRooms targets every room in a clear.
	AllRooms = "_all"
)

// ImagePayload carries the frame reference attached to an image event.
type ImagePayload struct {
	ImageURL    string `json:"imageUrl"`
	FolderName  string `json:"folderName,omitempty"`
	Keyframe    string `json:"keyframe,omitempty"`
	VideoID     string `json:"videoId,omitempty"`
	FrameNumber int    `json:"frameNumber,omitempty"`
}

// Event is one chat action as cached and rendered by the client.
type Event struct {
	Type     string        `json:"type"`
	ID       string        `json:"id,omitempty"`
	TS       int64         `json:"ts,omitempty"`
	Text     string        `json:"text,omitempty"`
	ClientID string        `json:"clientId,omitempty"`
	Nickname string        `json:"nickname,omitempty"`
	Room     string        `json:"room,omitempty"`
	Payload  *ImagePayload `json:"payload,omitempty"`
}

// DedupKey identifies an event for duplicate suppression: the id, falling
// back to the timestamp. Renderers should key DOM nodes (or their
// equivalent) by it so replayed deliveries are no-ops.
func (e *Event) DedupKey() string {
	if e.ID != "" {
		return e.ID
	}
	if e.TS != 0 {
		return strconv.FormatInt(e.TS, 10)
	}
	return ""
}

// Frame is the superset of every protocol frame, inbound and outbound;
// fields are populated according to Type.
type Frame struct {
	Type      string             `json:"type"`
	Room      string             `json:"room,omitempty"`
	ClientID  string             `json:"clientId,omitempty"`
	Rooms     []string           `json:"rooms,omitempty"`
	History   []Event            `json:"history,omitempty"`
	Histories map[string][]Event `json:"histories,omitempty"`
	ID        string             `json:"id,omitempty"`
	TS        int64              `json:"ts,omitempty"`
	Text      string             `json:"text,omitempty"`
	Nickname  string             `json:"nickname,omitempty"`
	Payload   *ImagePayload      `json:"payload,omitempty"`
}

// event extracts the chat event carried by a message or image_message frame.
func (f *Frame) event() Event {
	return Event{
		Type:     f.Type,
		ID:       f.ID,
		TS:       f.TS,
		Text:     f.Text,
		ClientID: f.ClientID,
		Nickname: f.Nickname,
		Room:     f.Room,
		Payload:  f.Payload,
	}
}
