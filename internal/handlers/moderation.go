package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"course-chat-service/internal/models"
)

// ArchiveChat archives the session and posts a system notice into it.
// Allowed to the session's instructor or an admin.
func (h *ChatHandler) ArchiveChat(c *gin.Context) {
	session, ok := h.authorizeModerator(c)
	if !ok {
		return
	}

	if err := h.sessionRepo.SetArchived(c.Request.Context(), session.ID, true); err != nil {
		sessionError(c, err)
		return
	}

	h.postSystemMessage(c, session, "This conversation has been archived by a moderator.")
	h.emitAudit(c, fmt.Sprintf("chat %d archived", session.ID))
	c.Status(http.StatusNoContent)
}

// UnarchiveChat clears the archived flag.
func (h *ChatHandler) UnarchiveChat(c *gin.Context) {
	session, ok := h.authorizeModerator(c)
	if !ok {
		return
	}

	if err := h.sessionRepo.SetArchived(c.Request.Context(), session.ID, false); err != nil {
		sessionError(c, err)
		return
	}

	h.emitAudit(c, fmt.Sprintf("chat %d unarchived", session.ID))
	c.Status(http.StatusNoContent)
}

// FlagChat marks the session for review with a reason and posts a system
// notice into it.
func (h *ChatHandler) FlagChat(c *gin.Context) {
	session, ok := h.authorizeModerator(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	if err := h.sessionRepo.SetFlagged(c.Request.Context(), session.ID, true, req.Reason); err != nil {
		sessionError(c, err)
		return
	}

	h.postSystemMessage(c, session, "This conversation has been flagged for review.")
	h.emitAudit(c, fmt.Sprintf("chat %d flagged: %s", session.ID, req.Reason))
	c.Status(http.StatusNoContent)
}

// UnflagChat clears the flagged state and its reason.
func (h *ChatHandler) UnflagChat(c *gin.Context) {
	session, ok := h.authorizeModerator(c)
	if !ok {
		return
	}

	if err := h.sessionRepo.SetFlagged(c.Request.Context(), session.ID, false, ""); err != nil {
		sessionError(c, err)
		return
	}

	h.emitAudit(c, fmt.Sprintf("chat %d unflagged", session.ID))
	c.Status(http.StatusNoContent)
}

// DeleteChat hard-deletes the session and everything in it. Admin only.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	if c.GetString("accountType") != models.AccountTypeAdmin {
		errorJSON(c, http.StatusForbidden, "authorization", "admin only")
		return
	}

	if err := h.sessionRepo.DeleteSession(c.Request.Context(), sessionID); err != nil {
		sessionError(c, err)
		return
	}

	h.emitAudit(c, fmt.Sprintf("chat %d deleted", sessionID))
	c.Status(http.StatusNoContent)
}

// authorizeModerator loads the session and checks the caller is the
// session's instructor or an admin.
func (h *ChatHandler) authorizeModerator(c *gin.Context) (models.Session, bool) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return models.Session{}, false
	}

	session, err := h.sessionRepo.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		sessionError(c, err)
		return models.Session{}, false
	}

	userID := c.GetInt("userID")
	if session.InstructorID != userID && c.GetString("accountType") != models.AccountTypeAdmin {
		errorJSON(c, http.StatusForbidden, "authorization", "instructor or admin only")
		return models.Session{}, false
	}
	return session, true
}

// postSystemMessage appends a system notice and fans it out to both
// participants. Best effort: the moderation action has already succeeded,
// so a failed notice does not fail the request.
func (h *ChatHandler) postSystemMessage(c *gin.Context, session models.Session, text string) {
	msg, err := h.messageRepo.AppendMessage(c.Request.Context(), session.ID, models.SystemSenderID, models.MessageTypeSystem, text, "")
	if err != nil {
		return
	}
	h.broker.DeliverMessage(session, msg, models.Identity{ID: models.SystemSenderID, FirstName: "System"})
}

func (h *ChatHandler) emitAudit(c *gin.Context, text string) {
	userID := userIDFromContext(c)
	h.audit.Emit(c.Request.Context(), "INFO", text, requestIDFromContext(c), userID)
}
