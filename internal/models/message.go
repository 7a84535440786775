package models

import "time"

// Message is a single direct message. Rows are append-only; nothing ever
// mutates a message after the insert.
type Message struct {
	ID             int       `db:"id" json:"id"`
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	SenderID       int       `db:"sender_id" json:"sender_id"`
	ReceiverID     int       `db:"receiver_id" json:"receiver_id"`
	Body           string    `db:"body" json:"body"`
	SentAt         time.Time `db:"sent_at" json:"sent_at"`
}
