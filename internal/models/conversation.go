package models

import "time"

// Conversation links exactly two users. The pair is stored normalized
// (user1_id < user2_id) so each unordered pair maps to a single row.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	User1ID   int       `db:"user1_id" json:"user1_id"`
	User2ID   int       `db:"user2_id" json:"user2_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ConversationSummary is the per-caller view of a conversation.
type ConversationSummary struct {
	ConversationID int       `db:"id" json:"conversation_id"`
	PeerID         int       `json:"peer_id"`
	Created        time.Time `db:"created_at" json:"created_at"`
}
