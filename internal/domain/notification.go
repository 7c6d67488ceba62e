package domain

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID            uuid.UUID                `json:"id" db:"id"`
	UserID        uuid.UUID                `json:"user_id" db:"user_id"`
	Type          NotificationType         `json:"type" db:"type"`
	Title         string                   `json:"title" db:"title"`
	Message       string                   `json:"message" db:"message"`
	Channels      []Channel                `json:"channels" db:"-"`
	ChannelStatus map[Channel]ChannelState `json:"channel_status" db:"-"`
	Metadata      map[string]any           `json:"metadata,omitempty" db:"-"`
	TemplateKey   string                   `json:"template_key,omitempty" db:"template_key"`
	IsRead        bool                     `json:"is_read" db:"is_read"`
	ReadAt        *time.Time               `json:"read_at,omitempty" db:"read_at"`
	CreatedAt     time.Time                `json:"created_at" db:"created_at"`
}

type NotificationType string

const (
	NotifInfo    NotificationType = "info"
	NotifSuccess NotificationType = "success"
	NotifWarning NotificationType = "warning"
	NotifDanger  NotificationType = "danger"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case NotifInfo, NotifSuccess, NotifWarning, NotifDanger:
		return true
	default:
		return false
	}
}

// Channel identifies a delivery transport.
type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelEmail    Channel = "email"
	ChannelPush     Channel = "push"
	ChannelSMS      Channel = "sms"
	ChannelSlack    Channel = "slack"
	ChannelTelegram Channel = "telegram"
)

type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
)

type ChannelState struct {
	Status DeliveryStatus `json:"status"`
	Reason string         `json:"reason,omitempty"`
}

// NewNotification builds an unpersisted record with every requested channel
// pending. Duplicate channels are collapsed, keeping the first occurrence.
func NewNotification(userID uuid.UUID, notifType NotificationType, title, message string, channels []Channel) *Notification {
	if !notifType.IsValid() {
		notifType = NotifInfo
	}

	ordered := make([]Channel, 0, len(channels))
	status := make(map[Channel]ChannelState, len(channels))
	for _, ch := range channels {
		if _, dup := status[ch]; dup {
			continue
		}
		ordered = append(ordered, ch)
		status[ch] = ChannelState{Status: StatusPending}
	}

	return &Notification{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          notifType,
		Title:         title,
		Message:       message,
		Channels:      ordered,
		ChannelStatus: status,
	}
}

// Resolve moves a pending channel to sent or failed. It reports false when
// the channel was not requested or is no longer pending.
func (n *Notification) Resolve(ch Channel, status DeliveryStatus, reason string) bool {
	if status != StatusSent && status != StatusFailed {
		return false
	}
	current, ok := n.ChannelStatus[ch]
	if !ok || current.Status != StatusPending {
		return false
	}
	if status == StatusSent {
		reason = ""
	}
	n.ChannelStatus[ch] = ChannelState{Status: status, Reason: reason}
	return true
}

// MarkRead flips the read flag once; later calls are no-ops.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.IsRead {
		return false
	}
	n.IsRead = true
	n.ReadAt = &at
	return true
}

// Clone returns a deep copy so callers can hand records out of a store
// without sharing the status map.
func (n *Notification) Clone() *Notification {
	out := *n
	out.Channels = append([]Channel(nil), n.Channels...)
	out.ChannelStatus = make(map[Channel]ChannelState, len(n.ChannelStatus))
	for ch, st := range n.ChannelStatus {
		out.ChannelStatus[ch] = st
	}
	if n.Metadata != nil {
		out.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			out.Metadata[k] = v
		}
	}
	if n.ReadAt != nil {
		readAt := *n.ReadAt
		out.ReadAt = &readAt
	}
	return &out
}
