package chatsync

import (
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the engine connects and reconnects.
type Config struct {
	// URL is the WebSocket endpoint, e.g. ws://localhost:3001/ws.
	URL string
	// Nickname shown on outgoing events. Defaults to "Guest".
	Nickname string
	// StatePath is where the client identity (clientId, nickname, last
	// room) is persisted as JSON. Empty keeps identity in memory only.
	StatePath string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReconnectDelay is the fixed wait before every reconnect attempt.
	ReconnectDelay time.Duration
	// AutoReconnect keeps retrying after a dropped connection until Close.
	AutoReconnect bool

	// Logger is optional; nil discards logs.
	Logger *zerolog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Nickname:         "Guest",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReconnectDelay:   1500 * time.Millisecond,
		AutoReconnect:    true,
	}
}
