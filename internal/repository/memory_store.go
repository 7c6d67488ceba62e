package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskhub-notify/internal/domain"
)

// MemoryStore is an in-process NotificationRepository and
// RecipientRepository. It backs memory:// deployments and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*domain.Notification
	order    []uuid.UUID
	contacts map[uuid.UUID]domain.Contact
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[uuid.UUID]*domain.Notification),
		contacts: make(map[uuid.UUID]domain.Contact),
		now:      time.Now,
	}
}

// SetClock replaces the clock used to stamp created_at and read_at.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// PutContact registers contact data for a user.
func (m *MemoryStore) PutContact(contact domain.Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[contact.UserID] = contact
}

func (m *MemoryStore) GetContact(_ context.Context, userID uuid.UUID) (*domain.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	contact, ok := m.contacts[userID]
	if !ok {
		return nil, nil
	}
	return &contact, nil
}

func (m *MemoryStore) Create(_ context.Context, notif *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[notif.ID]; exists {
		return fmt.Errorf("notification %s already exists", notif.ID)
	}

	notif.CreatedAt = stamp(m.now())
	notif.IsRead = false
	notif.ReadAt = nil

	m.byID[notif.ID] = notif.Clone()
	m.order = append(m.order, notif.ID)
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	notif, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return notif.Clone(), nil
}

func (m *MemoryStore) QuerySince(_ context.Context, userID uuid.UUID, since time.Time, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	matched := make([]*domain.Notification, 0)
	for _, id := range m.order {
		notif := m.byID[id]
		if notif.UserID != userID || notif.IsRead || !notif.CreatedAt.After(since) {
			continue
		}
		matched = append(matched, notif.Clone())
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]domain.Notification, len(matched))
	for i, notif := range matched {
		out[i] = *notif
	}
	return out, nil
}

func (m *MemoryStore) UpdateChannelStatus(_ context.Context, id uuid.UUID, channel domain.Channel, status domain.DeliveryStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	notif, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if _, requested := notif.ChannelStatus[channel]; !requested {
		return domain.ErrNotFound
	}
	if !notif.Resolve(channel, status, reason) {
		return fmt.Errorf("%w: %s of %s", domain.ErrInvalidTransition, channel, id)
	}
	return nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, params domain.PaginationParams) ([]domain.Notification, int64, error) {
	params.Validate()

	m.mu.RLock()
	var matched []domain.Notification
	for i := len(m.order) - 1; i >= 0; i-- {
		notif := m.byID[m.order[i]]
		if notif.UserID != userID || (unreadOnly && notif.IsRead) {
			continue
		}
		matched = append(matched, *notif.Clone())
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := params.Offset()
	if start >= len(matched) {
		return []domain.Notification{}, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MemoryStore) MarkAsRead(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	notif, ok := m.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	return notif.MarkRead(stamp(m.now())), nil
}

func (m *MemoryStore) MarkAllAsRead(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := stamp(m.now())
	var updated int64
	for _, id := range m.order {
		notif := m.byID[id]
		if notif.UserID == userID && notif.MarkRead(at) {
			updated++
		}
	}
	return updated, nil
}

func (m *MemoryStore) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, notif := range m.byID {
		if notif.UserID == userID && !notif.IsRead {
			count++
		}
	}
	return count, nil
}

var (
	_ NotificationRepository = (*MemoryStore)(nil)
	_ RecipientRepository    = (*MemoryStore)(nil)
)
