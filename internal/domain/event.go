package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an event on the live notification stream.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventNotification EventType = "notification"
	EventHeartbeat    EventType = "heartbeat"
	EventDisconnected EventType = "disconnected"
)

func (e EventType) IsValid() bool {
	switch e {
	case EventConnected, EventNotification, EventHeartbeat, EventDisconnected:
		return true
	}
	return false
}

type Event struct {
	Type EventType `json:"-"`
	Data any       `json:"data"`
}

type ConnectedPayload struct {
	RecipientID uuid.UUID `json:"recipientId"`
}

type NotificationPayload struct {
	ID        uuid.UUID        `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"createdAt"`
}

type HeartbeatPayload struct {
	Time time.Time `json:"time"`
}

type DisconnectedPayload struct {
	Reason string `json:"reason"`
}

func NewConnectedEvent(recipientID uuid.UUID) Event {
	return Event{Type: EventConnected, Data: ConnectedPayload{RecipientID: recipientID}}
}

func NewNotificationEvent(n *Notification) Event {
	return Event{Type: EventNotification, Data: NotificationPayload{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		CreatedAt: n.CreatedAt,
	}}
}

func NewHeartbeatEvent(at time.Time) Event {
	return Event{Type: EventHeartbeat, Data: HeartbeatPayload{Time: at}}
}

func NewDisconnectedEvent(reason string) Event {
	return Event{Type: EventDisconnected, Data: DisconnectedPayload{Reason: reason}}
}
