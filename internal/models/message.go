package models

import (
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"
)

// Message types. Exactly one of Content or ImageURL is required for text and
// image messages; system messages always carry Content.
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeSystem = "system"
)

// SystemSenderID is the synthetic sender used for moderation notices.
const SystemSenderID = 0

var ErrInvalidMessage = errors.New("message needs content or image url")

// Message belongs to exactly one session. Messages are append-only; the only
// mutation after insert is the accumulation of read receipts.
type Message struct {
	ID        int            `db:"id" json:"id"`
	SessionID int            `db:"session_id" json:"session_id"`
	SenderID  int            `db:"sender_id" json:"sender_id"`
	Type      string         `db:"type" json:"type"`
	Content   sql.NullString `db:"content" json:"-"`
	ImageURL  sql.NullString `db:"image_url" json:"-"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// MessageJSON is the wire form of a message; the nullable columns serialize
// as plain optional strings.
type MessageJSON struct {
	ID        int       `json:"id"`
	SessionID int       `json:"session_id"`
	SenderID  int       `json:"sender_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// JSON converts the stored row into its wire form.
func (m Message) JSON() MessageJSON {
	return MessageJSON{
		ID:        m.ID,
		SessionID: m.SessionID,
		SenderID:  m.SenderID,
		Type:      m.Type,
		Content:   m.Content.String,
		ImageURL:  m.ImageURL.String,
		CreatedAt: m.CreatedAt,
	}
}

// Preview returns the short text shown in out-of-context notifications and
// session lists.
func (m Message) Preview() string {
	if m.Type == MessageTypeImage && m.Content.String == "" {
		return "Sent an image"
	}
	return truncateRunes(m.Content.String, 80)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

// ValidateNewMessage enforces the per-type required fields before a message
// reaches the store.
func ValidateNewMessage(msgType, content, imageURL string) error {
	switch msgType {
	case MessageTypeText, MessageTypeSystem:
		if content == "" {
			return ErrInvalidMessage
		}
	case MessageTypeImage:
		if imageURL == "" {
			return ErrInvalidMessage
		}
	default:
		return errors.New("unknown message type")
	}
	return nil
}

// ReadReceipt records that a user has read a message.
type ReadReceipt struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}
