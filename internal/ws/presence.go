package ws

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"github.com/samber/lo"

	"dm-service/internal/models"
	"dm-service/internal/observability"
)

// Registry is the process-wide presence table: user id to the single live
// connection for that user. All access goes through the mutex; the map is
// never handed out.
type Registry struct {
	mu     sync.RWMutex
	online map[int]*Client
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{online: make(map[int]*Client)}
}

// MarkOnline records client as the live connection for userID,
// unconditionally replacing any existing entry. A replaced connection is
// closed with a session-replaced frame so the evicted device learns it no
// longer receives fan-out. Every change broadcasts the updated roster.
func (r *Registry) MarkOnline(userID int, client *Client) {
	r.mu.Lock()
	previous := r.online[userID]
	r.online[userID] = client
	observability.SetPresenceOnline(len(r.online))
	r.mu.Unlock()

	if previous != nil && previous != client {
		previous.Close(4001, "session replaced")
	}

	r.broadcastRoster()
	r.publishPresenceEvent("presence.online", userID, client)
}

// MarkOffline removes the entry holding this exact client. When the client
// has already been superseded by a newer MarkOnline for the same user, the
// registry holds a different handle and this is a silent no-op; a late
// disconnect must never knock the newer connection offline.
func (r *Registry) MarkOffline(client *Client) {
	removedUser := 0
	removed := false

	r.mu.Lock()
	for userID, current := range r.online {
		if current == client {
			delete(r.online, userID)
			removedUser = userID
			removed = true
			break
		}
	}
	observability.SetPresenceOnline(len(r.online))
	r.mu.Unlock()

	if !removed {
		return
	}

	r.broadcastRoster()
	r.publishPresenceEvent("presence.offline", removedUser, client)
}

// Resolve returns the live connection for userID, if any. No side effects;
// an absent entry is a normal outcome, not an error.
func (r *Registry) Resolve(userID int) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.online[userID]
	return client, ok
}

// OnlineUsers returns a sorted snapshot of the online user ids.
func (r *Registry) OnlineUsers() []int {
	r.mu.RLock()
	ids := lo.Keys(r.online)
	r.mu.RUnlock()

	sort.Ints(ids)
	return ids
}

// broadcastRoster pushes the current online-user list to every tracked
// connection. A connection that fails the enqueue is stale; it is dropped
// from the registry on its own disconnect path.
func (r *Registry) broadcastRoster() {
	event := models.OnlineUsersEvent{Type: models.EventOnlineUsers, UserIDs: r.OnlineUsers()}
	payload, _ := json.Marshal(event)

	r.mu.RLock()
	clients := lo.Values(r.online)
	r.mu.RUnlock()

	for _, client := range clients {
		if err := client.Send(payload); err != nil {
			log.Printf("roster push failed user=%d conn=%s: %v", client.Info.UserID, client.ID, err)
		}
	}
}

func (r *Registry) publishPresenceEvent(routingKey string, userID int, client *Client) {
	headers := observability.BuildHeaders(client.Info.RequestID, client.Info.TraceID)
	_ = observability.PublishEvent(context.Background(), routingKey, observability.EventEnvelope{
		EventType: "presence",
		EventName: routingKey,
		Payload: map[string]interface{}{
			"user_id": userID,
			"conn_id": client.ID,
			"ip":      client.Info.IP,
		},
	}, headers)
}
