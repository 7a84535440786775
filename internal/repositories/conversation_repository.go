package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"dm-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	FindOrCreate(ctx context.Context, userID int, peerID int) (models.Conversation, error)
	Find(ctx context.Context, userID int, peerID int) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func normalizePair(userID, peerID int) (int, int) {
	pair := []int{userID, peerID}
	sort.Ints(pair)
	return pair[0], pair[1]
}

// FindOrCreate returns the single conversation for the unordered pair,
// creating it on first contact. Two concurrent calls for a never-before-seen
// pair are serialized by the UNIQUE(user1_id, user2_id) constraint: the loser
// of the insert race falls through to the re-select and both callers observe
// the same row.
func (r *ConversationRepo) FindOrCreate(ctx context.Context, userID int, peerID int) (models.Conversation, error) {
	user1, user2 := normalizePair(userID, peerID)

	var conv models.Conversation
	query := `SELECT id, user1_id, user2_id, created_at FROM conversations WHERE user1_id=$1 AND user2_id=$2`
	err := r.db.GetContext(ctx, &conv, query, user1, user2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	err = r.db.QueryRowxContext(ctx, `INSERT INTO conversations (user1_id, user2_id) VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO NOTHING
        RETURNING id, user1_id, user2_id, created_at`, user1, user2).
		Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.CreatedAt)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	// Lost the race; the row exists now.
	if err := r.db.GetContext(ctx, &conv, query, user1, user2); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Find returns the conversation for the pair or ErrConversationNotFound.
func (r *ConversationRepo) Find(ctx context.Context, userID int, peerID int) (models.Conversation, error) {
	user1, user2 := normalizePair(userID, peerID)

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, user1_id, user2_id, created_at FROM conversations WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns the conversations the user participates in, newest first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	query := `SELECT id, user1_id, user2_id, created_at FROM conversations
        WHERE user1_id=$1 OR user2_id=$1
        ORDER BY created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ConversationSummary
	for rows.Next() {
		var conv models.Conversation
		if err := rows.StructScan(&conv); err != nil {
			return nil, err
		}
		peerID := conv.User1ID
		if peerID == userID {
			peerID = conv.User2ID
		}
		result = append(result, models.ConversationSummary{ConversationID: conv.ID, PeerID: peerID, Created: conv.CreatedAt})
	}
	return result, rows.Err()
}
