package core

// Room tracks the live member sockets of one channel, keyed by clientId so
// that a repeated join from the same client replaces its old socket.
type Room struct {
	Name    string
	members map[string]*Client
}

// NewRoom constructs a room with no members.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		members: make(map[string]*Client),
	}
}

// AddMember registers a client under its clientId. Re-joining is idempotent.
func (r *Room) AddMember(clientID string, c *Client) {
	if clientID == "" {
		clientID = c.ConnID
	}
	r.members[clientID] = c
}

// RemoveConn drops every membership entry backed by the given connection.
// Returns true if anything was removed.
func (r *Room) RemoveConn(c *Client) bool {
	removed := false
	for id, member := range r.members {
		if member == c {
			delete(r.members, id)
			removed = true
		}
	}
	return removed
}

// Broadcast sends an outbound to all members except exclude. Delivery is
// fire-and-forget: slow consumers are dropped rather than blocking the hub.
func (r *Room) Broadcast(out *Outbound, exclude *Client) {
	for _, member := range r.members {
		if member == exclude {
			continue
		}
		select {
		case member.Out <- out:
		default:
			// Drop if slow consumer.
		}
	}
}

// Size returns the number of member entries.
func (r *Room) Size() int {
	return len(r.members)
}
