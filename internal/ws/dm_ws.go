package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"dm-service/internal/middleware"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/services"
)

// Handler owns the websocket side of the service: it upgrades connections,
// feeds inbound events to the messaging service and dispatcher, and keeps the
// presence registry in step with the connection lifecycle.
type Handler struct {
	registry   *Registry
	dispatcher *Dispatcher
	messaging  services.Messaging
	jwtSecret  string
}

// NewHandler constructs a websocket Handler.
func NewHandler(registry *Registry, dispatcher *Dispatcher, messaging services.Messaging, jwtSecret string) *Handler {
	return &Handler{registry: registry, dispatcher: dispatcher, messaging: messaging, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and runs its read loop. A connection is not
// online until the client sends announce_online; transport-connected and
// user-present are separate states.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("dm-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)
	client.Start()

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycleEvent(ctx, "ws_connect", client, "")

	go h.readLoop(ctx, client)
}

func (h *Handler) readLoop(ctx context.Context, client *Client) {
	var closeReason string
	defer func() {
		h.registry.MarkOffline(client)
		client.Close(websocket.CloseNormalClosure, "")
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycleEvent(ctx, "ws_disconnect", client, closeReason)
	}()

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycleEvent(ctx, "ws_error", client, closeReason)
			}
			return
		}

		var event models.ClientEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Printf("bad ws frame user=%d conn=%s: %v", client.Info.UserID, client.ID, err)
			continue
		}
		h.handleEvent(client, event)
	}
}

func (h *Handler) handleEvent(client *Client, event models.ClientEvent) {
	userID := client.Info.UserID

	switch event.Type {
	case models.EventAnnounceOnline:
		// The authenticated identity wins over whatever the frame claims.
		if event.UserID != 0 && event.UserID != userID {
			log.Printf("announce for foreign user ignored auth=%d claimed=%d", userID, event.UserID)
			return
		}
		h.registry.MarkOnline(userID, client)

	case models.EventSendMessage:
		if event.ReceiverID == userID {
			log.Printf("self-send rejected user=%d", userID)
			return
		}
		// Sends keep running even if the connection drops mid-flight; a
		// disconnect triggers cleanup, it does not cancel persistence.
		if _, err := h.messaging.Send(context.Background(), userID, event.ReceiverID, event.Body); err != nil {
			log.Printf("ws send failed sender=%d receiver=%d: %v", userID, event.ReceiverID, err)
		}

	case models.EventTypingStart:
		h.dispatcher.DeliverTyping(userID, event.ReceiverID, true)

	case models.EventTypingStop:
		h.dispatcher.DeliverTyping(userID, event.ReceiverID, false)

	default:
		log.Printf("unknown ws event type %q user=%d", event.Type, userID)
	}
}

func (h *Handler) publishLifecycleEvent(ctx context.Context, name string, client *Client, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.dm", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       name,
				"conn_id":     client.ID,
				"duration_ms": time.Since(client.Info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   client.Info.UserID,
				"device_id": client.Info.DeviceID,
				"ip":        client.Info.IP,
			},
		},
	}, observability.BuildHeaders(client.Info.RequestID, client.Info.TraceID))
}

func (h *Handler) validateToken(header string) (int, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return middleware.ParseToken(h.jwtSecret, parts[1])
	}
	return 0, middleware.ErrInvalidToken
}
