package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rundezvous/backend/internal/models"
)

type postMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// PostMessage appends a chat message to the user's active rundezvous.
func (h *Handler) PostMessage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Sessions.PostMessage(user, req.Text)
	switch {
	case errors.Is(err, models.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty or too long"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "you are not in any chatroom"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
	default:
		c.JSON(http.StatusOK, gin.H{"message_id": msg.ID, "sent_at": msg.SentAt})
	}
}

// GetMessages is the polling endpoint: returns the room's messages after the
// client's cursor, oldest first.
func (h *Handler) GetMessages(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	afterID, err := strconv.ParseUint(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	rdv, err := h.Storage.GetActiveRundezvousForUser(user.ID)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "you are not in any chatroom"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chatroom"})
		return
	}

	messages, err := h.Storage.GetMessagesSince(rdv.ID, uint(afterID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
