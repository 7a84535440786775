package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OnlineUsersSource reports which users currently hold a live connection.
type OnlineUsersSource interface {
	OnlineUsers() []int
}

// PresenceHandler exposes a read-only snapshot of the presence registry.
type PresenceHandler struct {
	registry OnlineUsersSource
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(registry OnlineUsersSource) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

// OnlineUsers returns the ids of currently reachable users.
func (h *PresenceHandler) OnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_ids": h.registry.OnlineUsers()})
}
