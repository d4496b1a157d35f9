package models

import (
	"database/sql"
	"time"
)

// Session represents one student-instructor conversation scoped to a course.
// At most one session exists per (student, instructor, course) triple.
type Session struct {
	ID               int            `db:"id" json:"id"`
	StudentID        int            `db:"student_id" json:"student_id"`
	InstructorID     int            `db:"instructor_id" json:"instructor_id"`
	CourseID         int            `db:"course_id" json:"course_id"`
	Archived         bool           `db:"archived" json:"archived"`
	Flagged          bool           `db:"flagged" json:"flagged"`
	FlagReason       sql.NullString `db:"flag_reason" json:"-"`
	LastMessageText  sql.NullString `db:"last_message_text" json:"-"`
	LastMessageType  sql.NullString `db:"last_message_type" json:"-"`
	LastMessageAt    sql.NullTime   `db:"last_message_at" json:"-"`
	StudentUnread    int            `db:"student_unread" json:"student_unread"`
	InstructorUnread int            `db:"instructor_unread" json:"instructor_unread"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// IsParticipant reports whether the user is one of the session's two sides.
func (s Session) IsParticipant(userID int) bool {
	return s.StudentID == userID || s.InstructorID == userID
}

// OtherParticipant returns the participant that is not userID. For the
// system sender (0) the student is returned; system fan-out addresses both
// sides in the broker instead.
func (s Session) OtherParticipant(userID int) int {
	if s.StudentID == userID {
		return s.InstructorID
	}
	return s.StudentID
}

// UnreadFor returns the stored unread counter for the given participant.
func (s Session) UnreadFor(userID int) int {
	if s.StudentID == userID {
		return s.StudentUnread
	}
	if s.InstructorID == userID {
		return s.InstructorUnread
	}
	return 0
}

// SessionSummary is the API-friendly view of a session for one user.
type SessionSummary struct {
	SessionID       int        `json:"session_id"`
	PartnerID       int        `json:"partner_id"`
	CourseID        int        `json:"course_id"`
	Archived        bool       `json:"archived"`
	Flagged         bool       `json:"flagged"`
	LastMessageText string     `json:"last_message_text,omitempty"`
	LastMessageType string     `json:"last_message_type,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	Unread          int        `json:"unread"`
	CreatedAt       time.Time  `json:"created_at"`
}
