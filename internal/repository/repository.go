package repository

import (
	"github.com/jmoiron/sqlx"
)

type Repositories struct {
	Notification NotificationRepository
	Recipient    RecipientRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Notification: NewNotificationRepository(db),
		Recipient:    NewRecipientRepository(db),
	}
}

// NewMemoryRepositories backs both repositories with one MemoryStore.
func NewMemoryRepositories(store *MemoryStore) *Repositories {
	return &Repositories{
		Notification: store,
		Recipient:    store,
	}
}
