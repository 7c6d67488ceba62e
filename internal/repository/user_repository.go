package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"taskhub-notify/internal/domain"
)

// RecipientRepository reads delivery contact data from the users table.
// User CRUD lives in the user service; this is a read-only projection.
type RecipientRepository interface {
	// GetContact returns nil, nil when the user does not exist.
	GetContact(ctx context.Context, userID uuid.UUID) (*domain.Contact, error)
}

type recipientRepository struct {
	db *sqlx.DB
}

func NewRecipientRepository(db *sqlx.DB) RecipientRepository {
	return &recipientRepository{db: db}
}

func (r *recipientRepository) GetContact(ctx context.Context, userID uuid.UUID) (*domain.Contact, error) {
	var contact domain.Contact
	query := r.db.Rebind(`
		SELECT user_id,
			full_name,
			COALESCE(email, '') AS email,
			COALESCE(phone, '') AS phone,
			COALESCE(device_token, '') AS device_token,
			COALESCE(slack_user_id, '') AS slack_user_id,
			COALESCE(telegram_chat_id, '') AS telegram_chat_id
		FROM users
		WHERE user_id = ? AND deleted_at IS NULL`)

	err := r.db.GetContext(ctx, &contact, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}
