package services

import (
	"context"
	"errors"
	"fmt"

	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

// Messaging is the conversation service contract consumed by the HTTP and
// websocket layers.
type Messaging interface {
	Send(ctx context.Context, senderID int, receiverID int, body string) (models.Message, error)
	Fetch(ctx context.Context, userID int, peerID int) ([]models.Message, error)
	ListConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error)
}

// Dispatcher is the fan-out hook the service hands persisted messages to.
type Dispatcher interface {
	DeliverMessage(msg models.Message) models.DeliveryResult
}

// MessagingService orchestrates the conversation and message stores and asks
// the dispatcher to notify the receiver when it is reachable.
type MessagingService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	dispatcher    Dispatcher
}

// NewMessagingService builds a MessagingService.
func NewMessagingService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, dispatcher Dispatcher) *MessagingService {
	return &MessagingService{
		conversations: conversations,
		messages:      messages,
		dispatcher:    dispatcher,
	}
}

// Send stores a message in the pair's single conversation, creating the
// conversation on first contact, then hands the stored message to the
// dispatcher. The conversation is written before the message, so a failure
// between the two leaves an empty conversation rather than an unlinked
// message. Fan-out happens after persistence succeeded and its outcome never
// affects the result.
func (s *MessagingService) Send(ctx context.Context, senderID int, receiverID int, body string) (models.Message, error) {
	conv, err := s.conversations.FindOrCreate(ctx, senderID, receiverID)
	if err != nil {
		return models.Message{}, fmt.Errorf("find or create conversation: %w", err)
	}

	msg, err := s.messages.CreateMessage(ctx, conv.ID, senderID, receiverID, body)
	if err != nil {
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.DeliverMessage(msg)
	}
	return msg, nil
}

// Fetch returns the pair's conversation in send order. A pair that never
// exchanged a message yields an empty list, not an error.
func (s *MessagingService) Fetch(ctx context.Context, userID int, peerID int) ([]models.Message, error) {
	conv, err := s.conversations.Find(ctx, userID, peerID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	msgs, err := s.messages.ListConversationMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// ListConversations returns the caller's conversations, newest first.
func (s *MessagingService) ListConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if convs == nil {
		convs = []models.ConversationSummary{}
	}
	return convs, nil
}

var _ Messaging = (*MessagingService)(nil)
