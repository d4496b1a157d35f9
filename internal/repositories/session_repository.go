package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"course-chat-service/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotParticipant  = errors.New("user is not a session participant")
)

// SessionRepository abstracts chat session persistence.
type SessionRepository interface {
	CreateOrGetSession(ctx context.Context, studentID, instructorID, courseID int) (models.Session, error)
	GetSession(ctx context.Context, sessionID int) (models.Session, error)
	IsParticipant(ctx context.Context, sessionID, userID int) (bool, error)
	ListSessionsForUser(ctx context.Context, userID int) ([]models.SessionSummary, error)
	SetArchived(ctx context.Context, sessionID int, archived bool) error
	SetFlagged(ctx context.Context, sessionID int, flagged bool, reason string) error
	DeleteSession(ctx context.Context, sessionID int) error
}

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

const sessionColumns = `id, student_id, instructor_id, course_id, archived, flagged, flag_reason,
    last_message_text, last_message_type, last_message_at, student_unread, instructor_unread, created_at`

// CreateOrGetSession returns the existing session for the triple or creates
// one. Idempotent: calling it twice yields the same session id.
func (r *SessionRepo) CreateOrGetSession(ctx context.Context, studentID, instructorID, courseID int) (models.Session, error) {
	var session models.Session
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions
        WHERE student_id=$1 AND instructor_id=$2 AND course_id=$3`
	err := r.db.GetContext(ctx, &session, query, studentID, instructorID, courseID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, err
	}

	insert := `INSERT INTO chat_sessions (student_id, instructor_id, course_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (student_id, instructor_id, course_id) DO UPDATE SET student_id = EXCLUDED.student_id
        RETURNING ` + sessionColumns
	err = r.db.GetContext(ctx, &session, insert, studentID, instructorID, courseID)
	return session, err
}

// GetSession fetches a session by id.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID int) (models.Session, error) {
	var session models.Session
	err := r.db.GetContext(ctx, &session, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	return session, err
}

// IsParticipant checks whether a user belongs to the session.
func (r *SessionRepo) IsParticipant(ctx context.Context, sessionID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_sessions WHERE id=$1 AND (student_id=$2 OR instructor_id=$2))`,
		sessionID, userID)
	return exists, err
}

// ListSessionsForUser returns the user's sessions with last-message summary
// and that user's unread counter, most recently active first.
func (r *SessionRepo) ListSessionsForUser(ctx context.Context, userID int) ([]models.SessionSummary, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions
        WHERE student_id=$1 OR instructor_id=$1
        ORDER BY COALESCE(last_message_at, created_at) DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.SessionSummary
	for rows.Next() {
		var s models.Session
		if err := rows.StructScan(&s); err != nil {
			return nil, err
		}
		summary := models.SessionSummary{
			SessionID:       s.ID,
			PartnerID:       s.OtherParticipant(userID),
			CourseID:        s.CourseID,
			Archived:        s.Archived,
			Flagged:         s.Flagged,
			LastMessageText: s.LastMessageText.String,
			LastMessageType: s.LastMessageType.String,
			Unread:          s.UnreadFor(userID),
			CreatedAt:       s.CreatedAt,
		}
		if s.LastMessageAt.Valid {
			at := s.LastMessageAt.Time
			summary.LastMessageAt = &at
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}

// SetArchived toggles the archived flag.
func (r *SessionRepo) SetArchived(ctx context.Context, sessionID int, archived bool) error {
	return r.exec(ctx, `UPDATE chat_sessions SET archived=$2 WHERE id=$1`, sessionID, archived)
}

// SetFlagged toggles the flagged flag; the reason is cleared on unflag.
func (r *SessionRepo) SetFlagged(ctx context.Context, sessionID int, flagged bool, reason string) error {
	if !flagged {
		return r.exec(ctx, `UPDATE chat_sessions SET flagged=FALSE, flag_reason=NULL WHERE id=$1`, sessionID)
	}
	return r.exec(ctx, `UPDATE chat_sessions SET flagged=TRUE, flag_reason=$2 WHERE id=$1`, sessionID, reason)
}

// DeleteSession hard-deletes the session; messages and read receipts cascade.
func (r *SessionRepo) DeleteSession(ctx context.Context, sessionID int) error {
	return r.exec(ctx, `DELETE FROM chat_sessions WHERE id=$1`, sessionID)
}

func (r *SessionRepo) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrSessionNotFound
	}
	return nil
}
