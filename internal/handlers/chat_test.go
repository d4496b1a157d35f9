package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"course-chat-service/internal/mocks"
	"course-chat-service/internal/models"
	"course-chat-service/internal/ws"
)

func setupChatRouter(handler *ChatHandler, userID int, accountType string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("accountType", accountType)
		c.Next()
	})
	r.POST("/chats", handler.StartChat)
	r.GET("/chats", handler.ListChats)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.POST("/chats/:chat_id/messages", handler.PostChatMessage)
	r.POST("/chats/:chat_id/read", handler.MarkRead)
	return r
}

func newHandler(sessionRepo *mocks.SessionRepositoryMock, messageRepo *mocks.MessageRepositoryMock, userRepo *mocks.UserRepositoryMock) *ChatHandler {
	return NewChatHandler(sessionRepo, messageRepo, userRepo, ws.NewBroker(ws.NewRegistry()), nil)
}

func studentSession() models.Session {
	return models.Session{ID: 10, StudentID: 1, InstructorID: 2, CourseID: 9}
}

func TestStartChatSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := newHandler(sessionRepo, new(mocks.MessageRepositoryMock), userRepo)
	router := setupChatRouter(handler, 1, models.AccountTypeStudent)

	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, AccountType: models.AccountTypeInstructor}, nil).Once()
	sessionRepo.On("CreateOrGetSession", mock.Anything, 1, 2, 9).Return(studentSession(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{"instructor_id":2,"course_id":9}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 10, resp["session_id"])
	sessionRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestStartChatIdempotent(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := newHandler(sessionRepo, new(mocks.MessageRepositoryMock), userRepo)
	router := setupChatRouter(handler, 1, models.AccountTypeStudent)

	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, AccountType: models.AccountTypeInstructor}, nil).Twice()
	sessionRepo.On("CreateOrGetSession", mock.Anything, 1, 2, 9).Return(studentSession(), nil).Twice()

	var ids []int
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{"instructor_id":2,"course_id":9}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]int
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		ids = append(ids, resp["session_id"])
	}
	require.Equal(t, ids[0], ids[1])
}

func TestStartChatRejectsNonStudent(t *testing.T) {
	handler := newHandler(new(mocks.SessionRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler, 2, models.AccountTypeInstructor)

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{"instructor_id":3,"course_id":9}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartChatRejectsInvalidInstructor(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := newHandler(new(mocks.SessionRepositoryMock), new(mocks.MessageRepositoryMock), userRepo)
	router := setupChatRouter(handler, 1, models.AccountTypeStudent)

	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, AccountType: models.AccountTypeStudent}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{"instructor_id":2,"course_id":9}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestPostChatMessageSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := newHandler(sessionRepo, messageRepo, userRepo)
	router := setupChatRouter(handler, 1, models.AccountTypeStudent)

	msg := models.Message{ID: 7, SessionID: 10, SenderID: 1, Type: models.MessageTypeText, Content: sql.NullString{String: "hi", Valid: true}, CreatedAt: time.Now()}
	sessionRepo.On("GetSession", mock.Anything, 10).Return(studentSession(), nil).Once()
	messageRepo.On("AppendMessage", mock.Anything, 10, 1, models.MessageTypeText, "hi", "").Return(msg, nil).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, FirstName: "Ada"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/10/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.MessageJSON
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 7, resp.ID)
	require.Equal(t, "hi", resp.Content)
	sessionRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostChatMessageNonParticipant(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(sessionRepo, messageRepo, new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler, 5, models.AccountTypeStudent)

	sessionRepo.On("GetSession", mock.Anything, 10).Return(studentSession(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/10/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostChatMessageNeedsContentOrImage(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := newHandler(sessionRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler, 1, models.AccountTypeStudent)

	sessionRepo.On("GetSession", mock.Anything, 10).Return(studentSession(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/10/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostChatMessageRejectsSystemType(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := newHandler(sessionRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler, 1, models.AccountTypeStudent)

	sessionRepo.On("GetSession", mock.Anything, 10).Return(studentSession(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/10/messages", bytes.NewBufferString(`{"type":"system","content":"x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChatMessagesSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := newHandler(sessionRepo, messageRepo, userRepo)
	router := setupChatRouter(handler, 1, models.AccountTypeStudent)

	msgs := []models.Message{
		{ID: 1, SessionID: 10, SenderID: 1, Type: models.MessageTypeText, Content: sql.NullString{String: "Hi", Valid: true}},
		{ID: 2, SessionID: 10, SenderID: 2, Type: models.MessageTypeText, Content: sql.NullString{String: "Hello", Valid: true}},
	}
	sessionRepo.On("GetSession", mock.Anything, 10).Return(studentSession(), nil).Once()
	messageRepo.On("ListMessages", mock.Anything, 10, time.Time{}, 0, 50).Return(msgs, nil).Once()
	messageRepo.On("ReadsForSession", mock.Anything, 10).Return([]models.ReadReceipt{{MessageID: 1, UserID: 2}}, nil).Once()
	userRepo.On("BulkUsers", mock.Anything, []int{1, 2}).Return([]models.User{{ID: 1, FirstName: "Ada"}, {ID: 2, FirstName: "Max"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/10/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []struct {
			models.MessageJSON
			Sender models.Identity      `json:"sender"`
			ReadBy []models.ReadReceipt `json:"read_by"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "Ada", resp.Messages[0].Sender.FirstName)
	assert.Len(t, resp.Messages[0].ReadBy, 1)
	messageRepo.AssertExpectations(t)
}

func TestGetChatMessagesAdminAllowed(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := newHandler(sessionRepo, messageRepo, userRepo)
	router := setupChatRouter(handler, 99, models.AccountTypeAdmin)

	sessionRepo.On("GetSession", mock.Anything, 10).Return(studentSession(), nil).Once()
	messageRepo.On("ListMessages", mock.Anything, 10, time.Time{}, 0, 50).Return([]models.Message{}, nil).Once()
	messageRepo.On("ReadsForSession", mock.Anything, 10).Return([]models.ReadReceipt{}, nil).Once()
	userRepo.On("BulkUsers", mock.Anything, []int{}).Return([]models.User{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/10/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetChatMessagesInvalidCursor(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := newHandler(sessionRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler, 1, models.AccountTypeStudent)

	sessionRepo.On("GetSession", mock.Anything, 10).Return(studentSession(), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/10/messages?before=nonsense", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChatMessagesInvalidID(t *testing.T) {
	handler := newHandler(new(mocks.SessionRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler, 1, models.AccountTypeStudent)

	req := httptest.NewRequest(http.MethodGet, "/chats/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newHandler(sessionRepo, messageRepo, new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler, 1, models.AccountTypeStudent)

	sessionRepo.On("GetSession", mock.Anything, 10).Return(studentSession(), nil).Once()
	messageRepo.On("MarkRead", mock.Anything, 10, 1, 7).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/10/read", bytes.NewBufferString(`{"message_id":7}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)
}
