package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dm-service/internal/services"
	"dm-service/internal/telemetry"
)

// MessageHandler exposes the send/fetch surface of the conversation service.
type MessageHandler struct {
	messaging services.Messaging
	emitter   *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messaging services.Messaging, emitter *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{messaging: messaging, emitter: emitter}
}

// SendMessage persists a message to the peer and returns the stored record.
// Real-time delivery already happened (or was skipped) by the time the
// response goes out; its outcome is invisible here.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	receiverID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := c.GetInt("userID")
	if userID == receiverID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		return
	}

	// Body is required but may be the empty string.
	var req struct {
		Body *string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messaging.Send(c.Request.Context(), userID, receiverID, *req.Body)
	if err != nil {
		h.auditSendFailure(c, userID, receiverID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetMessages returns the full conversation with the given user, oldest
// first. No conversation yet means an empty list.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	peerID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := c.GetInt("userID")
	msgs, err := h.messaging.Fetch(c.Request.Context(), userID, peerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ListConversations returns the caller's conversations, newest first.
func (h *MessageHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	convs, err := h.messaging.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *MessageHandler) auditSendFailure(c *gin.Context, senderID, receiverID int, err error) {
	if h.emitter == nil {
		return
	}
	sender := strconv.Itoa(senderID)
	h.emitter.Emit(c.Request.Context(), "ERROR",
		"message send failed to user "+strconv.Itoa(receiverID)+": "+err.Error(),
		requestIDFromContext(c), &sender)
}
