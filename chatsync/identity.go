package chatsync

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Identity is the client's persisted state: a stable clientId plus the
// nickname and last room, so a new session resumes where the old one left
// off.
type Identity struct {
	ClientID string `json:"clientId"`
	Nickname string `json:"nickname,omitempty"`
	Room     string `json:"room,omitempty"`
}

// loadIdentity reads the identity file, minting a fresh clientId when the
// file is missing or unreadable.
func loadIdentity(path string) Identity {
	fresh := Identity{ClientID: uuid.NewString(), Room: DefaultRoom}
	if path == "" {
		return fresh
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fresh
	}
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil || id.ClientID == "" {
		return fresh
	}
	if id.Room == "" {
		id.Room = DefaultRoom
	}
	return id
}

// save writes the identity file, creating parent directories as needed.
func (i Identity) save(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
