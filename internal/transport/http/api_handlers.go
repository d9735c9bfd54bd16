package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/framepoint/relaychat/internal/core"
)

// RoomHandlers provides read-only REST mirrors of the hub state. Mutation
// goes through the WebSocket protocol only.
type RoomHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{hub: hub, log: logger}
}

// RoomListResponse is the body of GET /api/rooms.
type RoomListResponse struct {
	Rooms []string `json:"rooms"`
}

// RoomHistoryResponse is the body of GET /api/rooms/:room/history.
type RoomHistoryResponse struct {
	Room    string       `json:"room"`
	History []core.Event `json:"history"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListRooms handles GET /api/rooms.
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, _, err := h.hub.State(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("hub state query failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, RoomListResponse{Rooms: rooms})
}

// RoomHistory handles GET /api/rooms/:room/history.
func (h *RoomHandlers) RoomHistory(c *gin.Context) {
	room := c.Param("room")

	_, histories, err := h.hub.State(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("hub state query failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	history, ok := histories[room]
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	c.JSON(http.StatusOK, RoomHistoryResponse{Room: room, History: history})
}
