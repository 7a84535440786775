package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"dm-service/internal/models"
)

// MessageRepository defines interactions with the append-only message store.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID int, senderID int, receiverID int, body string) (models.Message, error)
	ListConversationMessages(ctx context.Context, conversationID int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage appends a message to a conversation.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID int, senderID int, receiverID int, body string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, receiver_id, body) VALUES ($1, $2, $3, $4)
        RETURNING id, conversation_id, sender_id, receiver_id, body, sent_at`, conversationID, senderID, receiverID, body).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID, &msg.Body, &msg.SentAt)
	return msg, err
}

// ListConversationMessages returns the conversation's messages in send order.
func (r *MessageRepo) ListConversationMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, receiver_id, body, sent_at
        FROM messages
        WHERE conversation_id=$1
        ORDER BY sent_at ASC, id ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, conversationID)
	return msgs, err
}
