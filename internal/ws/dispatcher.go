package ws

import (
	"encoding/json"
	"log"

	"dm-service/internal/models"
	"dm-service/internal/observability"
)

// Dispatcher fans inbound events out to live receiver connections. Delivery
// is one attempt per event: an offline receiver is skipped, a stale handle is
// logged and dropped. There is no queueing and no retry; the durable store is
// the fallback channel.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher constructs a Dispatcher over the presence registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// DeliverMessage pushes a stored message to its receiver's connection, if the
// receiver is currently online.
func (d *Dispatcher) DeliverMessage(msg models.Message) models.DeliveryResult {
	event := models.NewMessageEvent{
		Type:     models.EventNewMessage,
		SenderID: msg.SenderID,
		Body:     msg.Body,
		SentAt:   msg.SentAt,
	}
	return d.push(msg.ReceiverID, "message", event)
}

// DeliverTyping pushes a typing-state change to the receiver. Best effort,
// nothing persisted.
func (d *Dispatcher) DeliverTyping(senderID int, receiverID int, typing bool) models.DeliveryResult {
	eventType := models.EventUserTyping
	if !typing {
		eventType = models.EventUserStoppedTyping
	}
	event := models.TypingEvent{Type: eventType, SenderID: senderID}
	return d.push(receiverID, "typing", event)
}

func (d *Dispatcher) push(receiverID int, kind string, event interface{}) models.DeliveryResult {
	client, ok := d.registry.Resolve(receiverID)
	if !ok {
		observability.IncDelivery(kind, string(models.ReceiverOffline))
		return models.ReceiverOffline
	}

	payload, _ := json.Marshal(event)
	if err := client.Send(payload); err != nil {
		// The connection died between resolve and push. Its disconnect path
		// cleans the registry; nothing to do here but record it.
		log.Printf("push dropped kind=%s receiver=%d conn=%s: %v", kind, receiverID, client.ID, err)
		observability.IncDelivery(kind, string(models.StaleHandle))
		return models.StaleHandle
	}

	observability.IncDelivery(kind, string(models.Delivered))
	return models.Delivered
}
