package models

// Client-to-server websocket event types.
const (
	ClientEventAuthenticate = "authenticate"
	ClientEventJoinChat     = "join_chat"
	ClientEventLeaveChat    = "leave_chat"
	ClientEventTypingStart  = "typing_start"
	ClientEventTypingStop   = "typing_stop"
)

// Server-to-client websocket event types.
const (
	ServerEventAuthenticated = "authenticated"
	ServerEventJoinedChat    = "joined_chat"
	ServerEventNewMessage    = "new_message"
	ServerEventNotification  = "new_notification"
	ServerEventUserTyping    = "user_typing"
	ServerEventError         = "error"
	ServerEventAuthError     = "authentication_error"
)

// ClientEvent is a frame read from a websocket client.
type ClientEvent struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	SessionID int    `json:"session_id,omitempty"`
}

// ServerEvent is a frame pushed to a websocket client.
type ServerEvent struct {
	Type         string               `json:"type"`
	Message      *MessageJSON         `json:"message,omitempty"`
	Sender       *Identity            `json:"sender,omitempty"`
	Notification *NotificationPayload `json:"notification,omitempty"`
	Typing       *TypingPayload       `json:"typing,omitempty"`
	SessionID    int                  `json:"session_id,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// NotificationPayload is the lightweight toast alert delivered to a
// participant's connections that have not joined the room.
type NotificationPayload struct {
	SessionID  int    `json:"session_id"`
	Preview    string `json:"preview"`
	SenderName string `json:"sender_name"`
}

// TypingPayload signals a transient typing indicator; never persisted.
type TypingPayload struct {
	SessionID int  `json:"session_id"`
	UserID    int  `json:"user_id"`
	Typing    bool `json:"typing"`
}
