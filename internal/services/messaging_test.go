package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/mocks"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

type dispatcherRecorder struct {
	delivered []models.Message
	result    models.DeliveryResult
}

func (d *dispatcherRecorder) DeliverMessage(msg models.Message) models.DeliveryResult {
	d.delivered = append(d.delivered, msg)
	return d.result
}

func TestSendPersistsThenDispatches(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	dispatcher := &dispatcherRecorder{result: models.Delivered}
	svc := NewMessagingService(convRepo, msgRepo, dispatcher)

	conv := models.Conversation{ID: 10, User1ID: 1, User2ID: 2}
	stored := models.Message{ID: 5, ConversationID: 10, SenderID: 1, ReceiverID: 2, Body: "hello", SentAt: time.Now()}

	convRepo.On("FindOrCreate", mock.Anything, 1, 2).Return(conv, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, 10, 1, 2, "hello").Return(stored, nil).Once()

	msg, err := svc.Send(context.Background(), 1, 2, "hello")
	require.NoError(t, err)
	assert.Equal(t, stored, msg)

	require.Len(t, dispatcher.delivered, 1)
	assert.Equal(t, stored, dispatcher.delivered[0])

	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
}

func TestSendDeliveryOutcomeInvisibleToSender(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	dispatcher := &dispatcherRecorder{result: models.ReceiverOffline}
	svc := NewMessagingService(convRepo, msgRepo, dispatcher)

	convRepo.On("FindOrCreate", mock.Anything, 1, 2).Return(models.Conversation{ID: 10}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, 10, 1, 2, "hi").Return(models.Message{ID: 1, Body: "hi"}, nil).Once()

	_, err := svc.Send(context.Background(), 1, 2, "hi")
	require.NoError(t, err)
	require.Len(t, dispatcher.delivered, 1)
}

func TestSendConversationStorageFailure(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	dispatcher := &dispatcherRecorder{}
	svc := NewMessagingService(convRepo, msgRepo, dispatcher)

	convRepo.On("FindOrCreate", mock.Anything, 1, 2).Return(models.Conversation{}, assert.AnError).Once()

	_, err := svc.Send(context.Background(), 1, 2, "hello")
	require.Error(t, err)
	assert.Empty(t, dispatcher.delivered)
	msgRepo.AssertNotCalled(t, "CreateMessage")
}

func TestSendMessageStorageFailureSkipsDispatch(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	dispatcher := &dispatcherRecorder{}
	svc := NewMessagingService(convRepo, msgRepo, dispatcher)

	convRepo.On("FindOrCreate", mock.Anything, 1, 2).Return(models.Conversation{ID: 10}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, 10, 1, 2, "hello").Return(models.Message{}, assert.AnError).Once()

	_, err := svc.Send(context.Background(), 1, 2, "hello")
	require.Error(t, err)
	assert.Empty(t, dispatcher.delivered)
}

func TestSendAllowsEmptyBody(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := NewMessagingService(convRepo, msgRepo, &dispatcherRecorder{})

	convRepo.On("FindOrCreate", mock.Anything, 1, 2).Return(models.Conversation{ID: 10}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, 10, 1, 2, "").Return(models.Message{ID: 1}, nil).Once()

	_, err := svc.Send(context.Background(), 1, 2, "")
	require.NoError(t, err)
}

func TestFetchReturnsMessagesInOrder(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := NewMessagingService(convRepo, msgRepo, nil)

	msgs := []models.Message{
		{ID: 1, Body: "first"},
		{ID: 2, Body: "second"},
	}
	convRepo.On("Find", mock.Anything, 2, 1).Return(models.Conversation{ID: 10}, nil).Once()
	msgRepo.On("ListConversationMessages", mock.Anything, 10).Return(msgs, nil).Once()

	got, err := svc.Fetch(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, msgs, got)
}

func TestFetchNoConversationYieldsEmptyList(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := NewMessagingService(convRepo, msgRepo, nil)

	convRepo.On("Find", mock.Anything, 1, 2).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	got, err := svc.Fetch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	msgRepo.AssertNotCalled(t, "ListConversationMessages")
}

func TestFetchStorageFailure(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	svc := NewMessagingService(convRepo, new(mocks.MessageRepositoryMock), nil)

	convRepo.On("Find", mock.Anything, 1, 2).Return(models.Conversation{}, assert.AnError).Once()

	_, err := svc.Fetch(context.Background(), 1, 2)
	require.Error(t, err)
}

func TestListConversations(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	svc := NewMessagingService(convRepo, new(mocks.MessageRepositoryMock), nil)

	summaries := []models.ConversationSummary{{ConversationID: 10, PeerID: 2}}
	convRepo.On("ListForUser", mock.Anything, 1).Return(summaries, nil).Once()

	got, err := svc.ListConversations(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, summaries, got)
}
