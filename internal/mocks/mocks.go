package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"course-chat-service/internal/models"
	"course-chat-service/internal/repositories"
)

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) CreateOrGetSession(ctx context.Context, studentID, instructorID, courseID int) (models.Session, error) {
	args := m.Called(ctx, studentID, instructorID, courseID)
	var session models.Session
	if val := args.Get(0); val != nil {
		session = val.(models.Session)
	}
	return session, args.Error(1)
}

func (m *SessionRepositoryMock) GetSession(ctx context.Context, sessionID int) (models.Session, error) {
	args := m.Called(ctx, sessionID)
	var session models.Session
	if val := args.Get(0); val != nil {
		session = val.(models.Session)
	}
	return session, args.Error(1)
}

func (m *SessionRepositoryMock) IsParticipant(ctx context.Context, sessionID, userID int) (bool, error) {
	args := m.Called(ctx, sessionID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *SessionRepositoryMock) ListSessionsForUser(ctx context.Context, userID int) ([]models.SessionSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.SessionSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.SessionSummary)
	}
	return list, args.Error(1)
}

func (m *SessionRepositoryMock) SetArchived(ctx context.Context, sessionID int, archived bool) error {
	args := m.Called(ctx, sessionID, archived)
	return args.Error(0)
}

func (m *SessionRepositoryMock) SetFlagged(ctx context.Context, sessionID int, flagged bool, reason string) error {
	args := m.Called(ctx, sessionID, flagged, reason)
	return args.Error(0)
}

func (m *SessionRepositoryMock) DeleteSession(ctx context.Context, sessionID int) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) AppendMessage(ctx context.Context, sessionID, senderID int, msgType, content, imageURL string) (models.Message, error) {
	args := m.Called(ctx, sessionID, senderID, msgType, content, imageURL)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, sessionID int, before time.Time, beforeID, limit int) ([]models.Message, error) {
	args := m.Called(ctx, sessionID, before, beforeID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, sessionID, readerID, uptoMessageID int) error {
	args := m.Called(ctx, sessionID, readerID, uptoMessageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ReadsForSession(ctx context.Context, sessionID int) ([]models.ReadReceipt, error) {
	args := m.Called(ctx, sessionID)
	var reads []models.ReadReceipt
	if val := args.Get(0); val != nil {
		reads = val.([]models.ReadReceipt)
	}
	return reads, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) BulkUsers(ctx context.Context, ids []int) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

var _ repositories.SessionRepository = (*SessionRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
