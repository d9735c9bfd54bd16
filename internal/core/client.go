package core

// Client is one live connection as seen by the hub. It is transient: the
// hub never persists clients, and membership is rebuilt on reconnect.
type Client struct {
	// ConnID identifies the underlying socket for logging.
	ConnID string
	// Commands carries inbound actions into the hub.
	Commands chan Command
	// Out carries hub notifications back to the socket. The hub closes it
	// when the client unregisters.
	Out chan *Outbound

	// id is the clientId announced by the last join. Owned by the hub
	// goroutine after registration.
	id string
}

// NewClient constructs a client with initialized channels.
func NewClient(connID string) *Client {
	return &Client{
		ConnID:   connID,
		Commands: make(chan Command, 8),
		Out:      make(chan *Outbound, 64),
	}
}
