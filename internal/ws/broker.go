package ws

import (
	"context"
	"log"
	"strings"
	"time"

	"course-chat-service/internal/models"
	"course-chat-service/internal/observability"
)

// Broker fans a stored message out to live connections. It never retries:
// the persisted message is the authoritative record and offline recipients
// catch up on their next fetch.
type Broker struct {
	registry *Registry
}

// NewBroker constructs a Broker over the registry.
func NewBroker(registry *Registry) *Broker {
	return &Broker{registry: registry}
}

// DeliverMessage pushes new_message to every connection joined to the
// session's room and new_notification to the recipient's remaining
// connections. Room delivery includes the sender's other devices; the client
// timeline deduplicates the echo.
func (b *Broker) DeliverMessage(session models.Session, msg models.Message, sender models.Identity) {
	payload := msg.JSON()
	event := models.ServerEvent{
		Type:    models.ServerEventNewMessage,
		Message: &payload,
		Sender:  &sender,
	}

	inRoom := map[string]bool{}
	for _, client := range b.registry.RoomMembers(session.ID) {
		inRoom[client.ConnID] = true
		if b.push(client, session.ID, event) {
			observability.IncMessageDelivered()
		}
	}

	notification := models.ServerEvent{
		Type: models.ServerEventNotification,
		Notification: &models.NotificationPayload{
			SessionID:  session.ID,
			Preview:    msg.Preview(),
			SenderName: strings.TrimSpace(sender.FirstName + " " + sender.LastName),
		},
	}
	for _, recipientID := range b.recipients(session, msg.SenderID) {
		for _, client := range b.registry.ConnectionsFor(recipientID) {
			if inRoom[client.ConnID] {
				continue
			}
			if b.push(client, session.ID, notification) {
				observability.IncNotificationDelivered()
			}
		}
	}
}

// DeliverTyping pushes a transient typing indicator to room members,
// excluding all of the sender's own connections. Nothing is persisted.
func (b *Broker) DeliverTyping(sessionID, senderID int, typing bool) {
	event := models.ServerEvent{
		Type: models.ServerEventUserTyping,
		Typing: &models.TypingPayload{
			SessionID: sessionID,
			UserID:    senderID,
			Typing:    typing,
		},
	}
	for _, client := range b.registry.RoomMembers(sessionID) {
		if client.UserID == senderID {
			continue
		}
		b.push(client, sessionID, event)
	}
}

// recipients returns the participants addressed by a message: the other
// side for participant senders, both sides for system messages.
func (b *Broker) recipients(session models.Session, senderID int) []int {
	if senderID == models.SystemSenderID {
		return []int{session.StudentID, session.InstructorID}
	}
	return []int{session.OtherParticipant(senderID)}
}

// push writes one event. A failed write evicts only that connection; the
// remaining connections still receive the event.
func (b *Broker) push(client *Client, sessionID int, event models.ServerEvent) bool {
	if err := client.Send(event); err != nil {
		log.Printf("websocket write error: %v", err)
		client.Close()
		b.registry.Unregister(client.ConnID)
		observability.DecWSActive("chat")
		observability.IncDeliveryFailure()
		b.publishWSError(client, sessionID, err)
		return false
	}
	return true
}

func (b *Broker) publishWSError(client *Client, sessionID int, err error) {
	observability.IncWSEvent("chat", "ws_error")
	headers := observability.BuildHeaders(client.RequestID, client.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "chat",
				"resource_id": sessionID,
				"event":       "ws_error",
				"conn_id":     client.ConnID,
				"duration_ms": time.Since(client.ConnectedAt).Milliseconds(),
				"reason":      err.Error(),
			},
			"identity": map[string]interface{}{
				"user_id":   client.UserID,
				"device_id": client.DeviceID,
				"ip":        client.IP,
			},
		},
	}, headers)
}
