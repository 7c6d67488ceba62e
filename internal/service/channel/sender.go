// Package channel holds the per-transport senders a dispatch fans out to.
//
// A Sender performs one delivery attempt through one transport. The
// Registry maps channel identifiers to senders, so adding a transport means
// registering a new Sender; the dispatcher never switches on channel names.
package channel

import (
	"context"
	"sort"
	"sync"

	"taskhub-notify/internal/domain"
)

// Delivery is everything a sender needs for one attempt. Subject and
// Content are already resolved (template output or the stored title and
// message); Notification itself is never modified by senders.
type Delivery struct {
	Notification *domain.Notification
	Contact      *domain.Contact
	Subject      string
	Content      string
	// Rendered is set when Content came from a template and is already in
	// the channel's format. Otherwise Content is caller-supplied plain text.
	Rendered bool
}

type Sender interface {
	Send(ctx context.Context, d Delivery) error
}

// MailTransport delivers a rendered HTML email.
type MailTransport interface {
	SendMail(ctx context.Context, to, subject, htmlBody string) error
}

// Notifier delivers plain content to a channel-specific recipient token
// (device token, phone number, chat id).
type Notifier interface {
	Notify(ctx context.Context, recipientToken string, ch domain.Channel, content string) error
}

type templateSkipper interface {
	SkipsTemplates() bool
}

// UsesTemplates reports whether the dispatcher should render the
// notification's template before calling s.
func UsesTemplates(s Sender) bool {
	if ts, ok := s.(templateSkipper); ok {
		return !ts.SkipsTemplates()
	}
	return true
}

type Registry struct {
	mu      sync.RWMutex
	senders map[domain.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[domain.Channel]Sender)}
}

// Register adds or replaces the sender for ch.
func (r *Registry) Register(ch domain.Channel, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[ch] = s
}

func (r *Registry) Lookup(ch domain.Channel) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[ch]
	return s, ok
}

func (r *Registry) Channels() []domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Channel, 0, len(r.senders))
	for ch := range r.senders {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
