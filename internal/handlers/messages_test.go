package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/mocks"
	"dm-service/internal/models"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.GET("/messages/:user_id", handler.GetMessages)
	r.POST("/messages/:user_id", handler.SendMessage)
	return r
}

func TestSendMessageSuccess(t *testing.T) {
	messaging := new(mocks.MessagingMock)
	handler := NewMessageHandler(messaging, nil)
	router := setupMessageRouter(handler)

	messaging.On("Send", mock.Anything, 1, 2, "hello").Return(models.Message{ID: 7, SenderID: 1, ReceiverID: 2, Body: "hello"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/2", bytes.NewBufferString(`{"body":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, 7, msg.ID)
	messaging.AssertExpectations(t)
}

func TestSendMessageEmptyBodyAllowed(t *testing.T) {
	messaging := new(mocks.MessagingMock)
	handler := NewMessageHandler(messaging, nil)
	router := setupMessageRouter(handler)

	messaging.On("Send", mock.Anything, 1, 2, "").Return(models.Message{ID: 8}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/2", bytes.NewBufferString(`{"body":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messaging.AssertExpectations(t)
}

func TestSendMessageMissingBody(t *testing.T) {
	messaging := new(mocks.MessagingMock)
	router := setupMessageRouter(NewMessageHandler(messaging, nil))

	req := httptest.NewRequest(http.MethodPost, "/messages/2", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messaging.AssertNotCalled(t, "Send")
}

func TestSendMessageToSelfRejected(t *testing.T) {
	messaging := new(mocks.MessagingMock)
	router := setupMessageRouter(NewMessageHandler(messaging, nil))

	req := httptest.NewRequest(http.MethodPost, "/messages/1", bytes.NewBufferString(`{"body":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messaging.AssertNotCalled(t, "Send")
}

func TestSendMessageInvalidUserID(t *testing.T) {
	router := setupMessageRouter(NewMessageHandler(new(mocks.MessagingMock), nil))

	req := httptest.NewRequest(http.MethodPost, "/messages/abc", bytes.NewBufferString(`{"body":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageStorageError(t *testing.T) {
	messaging := new(mocks.MessagingMock)
	router := setupMessageRouter(NewMessageHandler(messaging, nil))

	messaging.On("Send", mock.Anything, 1, 2, "hi").Return(models.Message{}, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/2", bytes.NewBufferString(`{"body":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	messaging.AssertExpectations(t)
}

func TestGetMessagesSuccess(t *testing.T) {
	messaging := new(mocks.MessagingMock)
	router := setupMessageRouter(NewMessageHandler(messaging, nil))

	messaging.On("Fetch", mock.Anything, 1, 2).Return([]models.Message{{ID: 1, Body: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hi", resp.Messages[0].Body)
	messaging.AssertExpectations(t)
}

func TestGetMessagesEmptyConversation(t *testing.T) {
	messaging := new(mocks.MessagingMock)
	router := setupMessageRouter(NewMessageHandler(messaging, nil))

	messaging.On("Fetch", mock.Anything, 1, 9).Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestGetMessagesInvalidUserID(t *testing.T) {
	router := setupMessageRouter(NewMessageHandler(new(mocks.MessagingMock), nil))

	req := httptest.NewRequest(http.MethodGet, "/messages/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListConversationsSuccess(t *testing.T) {
	messaging := new(mocks.MessagingMock)
	router := setupMessageRouter(NewMessageHandler(messaging, nil))

	messaging.On("ListConversations", mock.Anything, 1).Return([]models.ConversationSummary{{ConversationID: 3, PeerID: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messaging.AssertExpectations(t)
}

func TestListConversationsError(t *testing.T) {
	messaging := new(mocks.MessagingMock)
	router := setupMessageRouter(NewMessageHandler(messaging, nil))

	messaging.On("ListConversations", mock.Anything, 1).Return(([]models.ConversationSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
