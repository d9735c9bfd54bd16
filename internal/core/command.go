package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin subscribes the connection to a room and replies with its history.
	CommandJoin CommandKind = iota
	// CommandCreateRoom adds an empty room and announces it to every client.
	CommandCreateRoom
	// CommandDeleteRoom removes a room and announces it to every client.
	CommandDeleteRoom
	// CommandResetRooms drops every room except default.
	CommandResetRooms
	// CommandClear empties one room's history, or every room's for "_all".
	CommandClear
	// CommandGetHistory replies to the requester with a room's history.
	CommandGetHistory
	// CommandPublish appends a text or image event and broadcasts it.
	CommandPublish
)

// Command represents an action requested by a client connection.
type Command struct {
	Kind     CommandKind
	Room     string
	ClientID string
	Event    *Event // set for CommandPublish
}
