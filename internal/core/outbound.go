package core

// OutboundKind is a notification the hub emits to connections.
type OutboundKind int

const (
	// OutSnapshot delivers every known room and history, sent once on connect.
	OutSnapshot OutboundKind = iota
	// OutRoomHistory delivers one room's full history to a single connection.
	OutRoomHistory
	// OutRoomCreated announces a new room to every client.
	OutRoomCreated
	// OutRoomDeleted announces a removed room to every client.
	OutRoomDeleted
	// OutRoomsReset announces that state collapsed back to the default room.
	OutRoomsReset
	// OutClear announces an emptied room, or "_all" for a global wipe.
	OutClear
	// OutEvent delivers a chat event to a room's members.
	OutEvent
)

// Outbound is sent to connections to describe what happened.
type Outbound struct {
	Kind      OutboundKind
	Room      string
	Event     *Event
	History   []Event
	Rooms     []string
	Histories map[string][]Event
}
