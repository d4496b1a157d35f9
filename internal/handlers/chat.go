package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"course-chat-service/internal/models"
	"course-chat-service/internal/repositories"
	"course-chat-service/internal/telemetry"
	"course-chat-service/internal/ws"
)

// ChatHandler manages session and message endpoints.
type ChatHandler struct {
	sessionRepo repositories.SessionRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	broker      *ws.Broker
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(sessionRepo repositories.SessionRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, broker *ws.Broker, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		broker:      broker,
		audit:       audit,
	}
}

// StartChat creates or returns the session for (student, instructor, course).
// Only the student side may initiate.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		InstructorID int `json:"instructor_id" binding:"required"`
		CourseID     int `json:"course_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	userID := c.GetInt("userID")
	if c.GetString("accountType") != models.AccountTypeStudent {
		errorJSON(c, http.StatusBadRequest, "validation", "only students can initiate chats")
		return
	}
	if req.InstructorID == userID {
		errorJSON(c, http.StatusBadRequest, "validation", "cannot chat with yourself")
		return
	}

	instructor, err := h.userRepo.GetUser(c.Request.Context(), req.InstructorID)
	if err != nil || instructor.AccountType != models.AccountTypeInstructor {
		errorJSON(c, http.StatusBadRequest, "validation", "invalid instructor reference")
		return
	}

	session, err := h.sessionRepo.CreateOrGetSession(c.Request.Context(), userID, req.InstructorID, req.CourseID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "internal", "could not create chat")
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": session.ID})
}

// ListChats returns the caller's sessions with last-message summary and
// unread count.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	sessions, err := h.sessionRepo.ListSessionsForUser(c.Request.Context(), userID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "internal", "failed to load chats")
		return
	}

	partnerIDs := make([]int, 0, len(sessions))
	for _, s := range sessions {
		partnerIDs = append(partnerIDs, s.PartnerID)
	}

	users, err := h.userRepo.BulkUsers(c.Request.Context(), partnerIDs)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "internal", "failed to load user info")
		return
	}
	identityByID := map[int]models.Identity{}
	for _, u := range users {
		identityByID[u.ID] = u.Identity()
	}

	type sessionResponse struct {
		models.SessionSummary
		Partner models.Identity `json:"partner"`
	}

	responses := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		responses = append(responses, sessionResponse{SessionSummary: s, Partner: identityByID[s.PartnerID]})
	}

	c.JSON(http.StatusOK, gin.H{"chats": responses})
}

// GetChatMessages returns a chronological page of messages with sender
// identity and read receipts.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	session, err := h.sessionRepo.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		sessionError(c, err)
		return
	}
	if !session.IsParticipant(userID) && c.GetString("accountType") != models.AccountTypeAdmin {
		errorJSON(c, http.StatusForbidden, "authorization", "not a chat participant")
		return
	}

	var before time.Time
	if raw := c.Query("before"); raw != "" {
		before, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "validation", "invalid before cursor")
			return
		}
	}
	beforeID, _ := strconv.Atoi(c.Query("before_id"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), sessionID, before, beforeID, limit)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "internal", "failed to load messages")
		return
	}

	reads, err := h.messageRepo.ReadsForSession(c.Request.Context(), sessionID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "internal", "failed to load read receipts")
		return
	}
	readsByMessage := map[int][]models.ReadReceipt{}
	for _, r := range reads {
		readsByMessage[r.MessageID] = append(readsByMessage[r.MessageID], r)
	}

	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok && m.SenderID != models.SystemSenderID {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	users, err := h.userRepo.BulkUsers(c.Request.Context(), senderIDs)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "internal", "failed to load senders")
		return
	}
	identityByID := map[int]models.Identity{}
	for _, u := range users {
		identityByID[u.ID] = u.Identity()
	}

	type messageResponse struct {
		models.MessageJSON
		Sender models.Identity      `json:"sender"`
		ReadBy []models.ReadReceipt `json:"read_by"`
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{
			MessageJSON: m.JSON(),
			Sender:      identityByID[m.SenderID],
			ReadBy:      readsByMessage[m.ID],
		})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// PostChatMessage stores a message, updates the session summary and unread
// counter, and hands the message to the delivery broker.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	session, err := h.sessionRepo.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		sessionError(c, err)
		return
	}
	if !session.IsParticipant(userID) {
		errorJSON(c, http.StatusForbidden, "authorization", "not a chat participant")
		return
	}

	var req struct {
		Type     string `json:"type"`
		Content  string `json:"content"`
		ImageURL string `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if req.Type == "" {
		req.Type = models.MessageTypeText
	}
	if req.Type == models.MessageTypeSystem {
		errorJSON(c, http.StatusBadRequest, "validation", "system messages are server-generated")
		return
	}
	if err := models.ValidateNewMessage(req.Type, req.Content, req.ImageURL); err != nil {
		errorJSON(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	msg, err := h.messageRepo.AppendMessage(c.Request.Context(), sessionID, userID, req.Type, req.Content, req.ImageURL)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "internal", "failed to store message")
		return
	}

	sender := models.Identity{ID: userID}
	if user, err := h.userRepo.GetUser(c.Request.Context(), userID); err == nil {
		sender = user.Identity()
	}

	h.broker.DeliverMessage(session, msg, sender)
	c.JSON(http.StatusCreated, msg.JSON())
}

// MarkRead records read receipts up to a message and resets the caller's
// unread counter.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	session, err := h.sessionRepo.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		sessionError(c, err)
		return
	}
	if !session.IsParticipant(userID) {
		errorJSON(c, http.StatusForbidden, "authorization", "not a chat participant")
		return
	}

	var req struct {
		MessageID int `json:"message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	if err := h.messageRepo.MarkRead(c.Request.Context(), sessionID, userID, req.MessageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			errorJSON(c, http.StatusNotFound, "not_found", "message not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "internal", "failed to mark read")
		return
	}

	c.Status(http.StatusNoContent)
}

func parseSessionID(c *gin.Context) (int, bool) {
	sessionID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "validation", "invalid chat id")
		return 0, false
	}
	return sessionID, true
}

func sessionError(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrSessionNotFound) {
		errorJSON(c, http.StatusNotFound, "not_found", "chat not found")
		return
	}
	errorJSON(c, http.StatusInternalServerError, "internal", "failed to load chat")
}

func errorJSON(c *gin.Context, status int, kind, msg string) {
	c.JSON(status, gin.H{"kind": kind, "error": msg})
}
