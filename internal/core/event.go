package core

import (
	"strconv"
	"time"
)

// Event type tags as they appear on the wire and on disk.
const (
	EventTypeText  = "message"
	EventTypeImage = "image_message"
)

// ImagePayload carries the frame reference attached to an image event.
type ImagePayload struct {
	ImageURL    string `json:"imageUrl"`
	FolderName  string `json:"folderName,omitempty"`
	Keyframe    string `json:"keyframe,omitempty"`
	VideoID     string `json:"videoId,omitempty"`
	FrameNumber int    `json:"frameNumber,omitempty"`
}

// Event is one chat action in a room's history. The same shape is used on
// the wire and in the persisted document: text events carry Text, image
// events carry Payload.
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
// back to the timestamp. Empty means the event cannot be deduplicated.
func (e *Event) DedupKey() string {
	if e.ID != "" {
		return e.ID
	}
	if e.TS != 0 {
		return strconv.FormatInt(e.TS, 10)
	}
	return ""
}

// Stamp overwrites the client-supplied timestamp with the authoritative
// server time (Unix milliseconds) and pins the event to its room.
func (e *Event) Stamp(room string, now time.Time) {
	e.TS = now.UnixMilli()
	e.Room = room
}
