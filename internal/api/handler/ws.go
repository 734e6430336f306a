package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"rundezvous/backend/internal/chathub"
	"rundezvous/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Lock down in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the HTTP connection and attaches the client to the
// chat hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := &chathub.WebSocketClient{
		Hub:    h.Hub,
		UserID: user.ID,
		Conn:   conn,
		Send:   make(chan models.ChatEvent, 256),
	}

	h.Hub.RegisterCh <- client
	client.Run()
}
