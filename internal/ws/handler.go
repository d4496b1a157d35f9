package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"course-chat-service/internal/auth"
	"course-chat-service/internal/models"
	"course-chat-service/internal/observability"
	"course-chat-service/internal/repositories"
)

// SocketHandler owns the realtime endpoint: handshake, the authenticate /
// join_chat / leave_chat / typing event protocol, and connection cleanup.
type SocketHandler struct {
	registry    *Registry
	broker      *Broker
	sessionRepo repositories.SessionRepository
	verifier    *auth.Verifier
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(registry *Registry, broker *Broker, sessionRepo repositories.SessionRepository, verifier *auth.Verifier) *SocketHandler {
	return &SocketHandler{registry: registry, broker: broker, sessionRepo: sessionRepo, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and runs its event loop. A token supplied
// at handshake time (Authorization header or token query param)
// authenticates immediately; otherwise the client must send an authenticate
// event before anything else.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("course-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(newConnID(), 0, "", conn)
	client.DeviceID = observability.DeviceIDFromRequest(c.Request)
	client.IP = observability.IPFromRequest(c.Request)
	client.RequestID = observability.RequestIDFromRequest(c.Request)
	client.TraceID = span.SpanContext().TraceID().String()

	// The request context is cancelled as soon as this handler returns, but
	// the read loop outlives it. Give the connection its own context, still
	// linked to the handshake span, cancelled when the socket closes.
	connCtx, cancel := context.WithCancel(trace.ContextWithSpanContext(context.Background(), span.SpanContext()))

	authed := false
	if token != "" {
		authed = h.authenticate(connCtx, client, token)
	}

	go h.readLoop(connCtx, cancel, conn, client, authed)
}

func (h *SocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, client *Client, authed bool) {
	var closeReason string
	defer func() {
		if h.registry.Unregister(client.ConnID) != nil {
			observability.DecWSActive("chat")
			observability.IncWSEvent("chat", "ws_disconnect")
			h.publishLifecycle(ctx, client, "ws_disconnect", closeReason)
		}
		conn.Close()
		cancel()
	}()

	for {
		var event models.ClientEvent
		if err := conn.ReadJSON(&event); err != nil {
			closeReason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("chat", "ws_error")
			}
			return
		}

		switch event.Type {
		case models.ClientEventAuthenticate:
			authed = h.authenticate(ctx, client, event.Token)

		case models.ClientEventJoinChat:
			if !h.requireAuth(client, authed) {
				continue
			}
			h.joinChat(ctx, client, event.SessionID)

		case models.ClientEventLeaveChat:
			if !h.requireAuth(client, authed) {
				continue
			}
			h.registry.LeaveRoom(client.ConnID, event.SessionID)

		case models.ClientEventTypingStart, models.ClientEventTypingStop:
			if !h.requireAuth(client, authed) {
				continue
			}
			if !h.registry.InRoom(client.ConnID, event.SessionID) {
				client.Send(models.ServerEvent{Type: models.ServerEventError, Error: "join the chat first"})
				continue
			}
			h.broker.DeliverTyping(event.SessionID, client.UserID, event.Type == models.ClientEventTypingStart)

		default:
			client.Send(models.ServerEvent{Type: models.ServerEventError, Error: "unknown event type"})
		}
	}
}

// authenticate verifies the token and registers the connection. A failed
// attempt drops any previously authenticated state but keeps the socket
// open so the client can retry.
func (h *SocketHandler) authenticate(ctx context.Context, client *Client, token string) bool {
	userID, accountType, err := h.verifier.Verify(token)
	if err != nil {
		if h.registry.Unregister(client.ConnID) != nil {
			observability.DecWSActive("chat")
		}
		client.Send(models.ServerEvent{Type: models.ServerEventAuthError, Error: "invalid token"})
		return false
	}

	// Re-authentication replaces the connection's identity: drop the old
	// registration (and its room memberships) so fan-out for the previous
	// user can never reach this socket.
	if h.registry.Unregister(client.ConnID) != nil {
		observability.DecWSActive("chat")
	}
	client.UserID = userID
	client.AccountType = accountType
	h.registry.Register(client)

	observability.IncWSActive("chat")
	observability.IncWSEvent("chat", "ws_connect")
	h.publishLifecycle(ctx, client, "ws_connect", "")

	client.Send(models.ServerEvent{Type: models.ServerEventAuthenticated})
	return true
}

func (h *SocketHandler) joinChat(ctx context.Context, client *Client, sessionID int) {
	session, err := h.sessionRepo.GetSession(ctx, sessionID)
	if err != nil {
		msg := "failed to load chat"
		if errors.Is(err, repositories.ErrSessionNotFound) {
			msg = "chat not found"
		}
		client.Send(models.ServerEvent{Type: models.ServerEventError, Error: msg})
		return
	}
	if !session.IsParticipant(client.UserID) && client.AccountType != models.AccountTypeAdmin {
		client.Send(models.ServerEvent{Type: models.ServerEventError, Error: "not authorized for chat"})
		return
	}

	h.registry.JoinRoom(client.ConnID, sessionID)
	client.Send(models.ServerEvent{Type: models.ServerEventJoinedChat, SessionID: sessionID})
}

func (h *SocketHandler) requireAuth(client *Client, authed bool) bool {
	if authed {
		return true
	}
	client.Send(models.ServerEvent{Type: models.ServerEventError, Error: "authenticate first"})
	return false
}

func (h *SocketHandler) publishLifecycle(ctx context.Context, client *Client, event, reason string) {
	headers := observability.BuildHeaders(client.RequestID, client.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":    "chat",
				"event":   event,
				"conn_id": client.ConnID,
				"reason":  reason,
			},
			"identity": map[string]interface{}{
				"user_id":   client.UserID,
				"device_id": client.DeviceID,
				"ip":        client.IP,
			},
		},
	}, headers)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
