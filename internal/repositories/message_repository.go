package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"course-chat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	AppendMessage(ctx context.Context, sessionID, senderID int, msgType, content, imageURL string) (models.Message, error)
	ListMessages(ctx context.Context, sessionID int, before time.Time, beforeID, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	MarkRead(ctx context.Context, sessionID, readerID, uptoMessageID int) error
	ReadsForSession(ctx context.Context, sessionID int) ([]models.ReadReceipt, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, session_id, sender_id, type, content, image_url, created_at`

// AppendMessage stores a message and, in the same transaction, refreshes the
// session's last-message summary and bumps the other participant's unread
// counter. The counter update is a single statement so concurrent sends in
// one session serialize on the session row.
func (r *MessageRepo) AppendMessage(ctx context.Context, sessionID, senderID int, msgType, content, imageURL string) (models.Message, error) {
	if err := models.ValidateNewMessage(msgType, content, imageURL); err != nil {
		return models.Message{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO chat_messages (session_id, sender_id, type, content, image_url)
         VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
         RETURNING `+messageColumns,
		sessionID, senderID, msgType, content, imageURL).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	// System messages (sender 0) match neither CASE arm and bump nobody.
	_, err = tx.ExecContext(ctx,
		`UPDATE chat_sessions SET
            last_message_text = $2,
            last_message_type = $3,
            last_message_at = $4,
            student_unread = student_unread + CASE WHEN instructor_id = $5 THEN 1 ELSE 0 END,
            instructor_unread = instructor_unread + CASE WHEN student_id = $5 THEN 1 ELSE 0 END
         WHERE id = $1`,
		sessionID, msg.Preview(), msg.Type, msg.CreatedAt, senderID)
	if err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListMessages returns up to limit messages strictly older than the
// (before, beforeID) cursor, in chronological ascending order. The composite
// cursor keeps paging exact when several messages share a timestamp. A zero
// before means the latest page.
func (r *MessageRepo) ListMessages(ctx context.Context, sessionID int, before time.Time, beforeID, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	cursor := before
	if cursor.IsZero() {
		cursor = time.Now().Add(time.Hour)
	}
	query := `SELECT ` + messageColumns + ` FROM (
            SELECT ` + messageColumns + ` FROM chat_messages
            WHERE session_id=$1 AND (created_at, id) < ($2, $3)
            ORDER BY created_at DESC, id DESC
            LIMIT $4
        ) page ORDER BY created_at ASC, id ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, sessionID, cursor, beforeID, limit)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM chat_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkRead appends the reader's receipt to every message from the other side
// up to and including uptoMessageID, and resets the reader's unread counter.
func (r *MessageRepo) MarkRead(ctx context.Context, sessionID, readerID, uptoMessageID int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var upto models.Message
	err = tx.GetContext(ctx, &upto,
		`SELECT `+messageColumns+` FROM chat_messages WHERE id=$1 AND session_id=$2`,
		uptoMessageID, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id)
         SELECT id, $1 FROM chat_messages
         WHERE session_id=$2 AND sender_id <> $1 AND (created_at, id) <= ($3, $4)
         ON CONFLICT (message_id, user_id) DO NOTHING`,
		readerID, sessionID, upto.CreatedAt, upto.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE chat_sessions SET
            student_unread = CASE WHEN student_id = $2 THEN 0 ELSE student_unread END,
            instructor_unread = CASE WHEN instructor_id = $2 THEN 0 ELSE instructor_unread END
         WHERE id = $1`,
		sessionID, readerID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ReadsForSession returns all read receipts for a session's messages.
func (r *MessageRepo) ReadsForSession(ctx context.Context, sessionID int) ([]models.ReadReceipt, error) {
	var reads []models.ReadReceipt
	err := r.db.SelectContext(ctx, &reads,
		`SELECT mr.message_id, mr.user_id, mr.read_at
         FROM message_reads mr
         JOIN chat_messages m ON m.id = mr.message_id
         WHERE m.session_id = $1`, sessionID)
	return reads, err
}
