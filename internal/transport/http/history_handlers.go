package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

// HistoryHandlers serves the room history endpoint.
type HistoryHandlers struct {
	gateway *core.Gateway
	log     *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(gateway *core.Gateway, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{gateway: gateway, log: logger}
}

// HistoryQuery holds the optional query parameters of the history endpoint.
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListMessages returns the most recent messages of a room, newest first.
// GET /api/messages/:room?limit=N
func (h *HistoryHandlers) ListMessages(c *gin.Context) {
	room := c.Param("room")

	var query HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.log.Debug().Err(err).Str("room", room).Msg("invalid history query")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		return
	}

	messages, err := h.gateway.History(c.Request.Context(), room, query.Limit)
	if err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error().Err(err).Str("room", room).Msg("failed to fetch messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "error fetching messages"})
		return
	}

	response := make([]proto.MessagePayload, 0, len(messages))
	for _, msg := range messages {
		response = append(response, messagePayload(msg))
	}
	c.JSON(http.StatusOK, response)
}
