package models

import "time"

// Event types exchanged over the websocket, client to server.
const (
	EventAnnounceOnline = "announce_online"
	EventSendMessage    = "send_message"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
)

// Event types pushed server to client.
const (
	EventOnlineUsers       = "online_users"
	EventNewMessage        = "new_message"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
)

// ClientEvent is the inbound websocket frame. Fields are populated depending
// on Type.
type ClientEvent struct {
	Type       string `json:"type"`
	UserID     int    `json:"user_id,omitempty"`
	ReceiverID int    `json:"receiver_id,omitempty"`
	Body       string `json:"body"`
}

// OnlineUsersEvent carries the full roster after every presence change.
type OnlineUsersEvent struct {
	Type    string `json:"type"`
	UserIDs []int  `json:"user_ids"`
}

// NewMessageEvent is pushed to the receiver of a freshly stored message.
type NewMessageEvent struct {
	Type     string    `json:"type"`
	SenderID int       `json:"sender_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// TypingEvent signals typing state to the receiver.
type TypingEvent struct {
	Type     string `json:"type"`
	SenderID int    `json:"sender_id"`
}
