package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"taskhub-notify/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, notif *domain.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	// QuerySince returns unread notifications for userID created strictly
	// after since, oldest first, at most limit rows.
	QuerySince(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]domain.Notification, error)
	UpdateChannelStatus(ctx context.Context, id uuid.UUID, channel domain.Channel, status domain.DeliveryStatus, reason string) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, params domain.PaginationParams) ([]domain.Notification, int64, error)
	// MarkAsRead reports whether this call flipped the flag.
	MarkAsRead(ctx context.Context, id uuid.UUID) (bool, error)
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}

const notificationColumns = `id, user_id, type, title, message, template_key, metadata, is_read, read_at, created_at`

type notificationRow struct {
	ID          uuid.UUID `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	Type        string    `db:"type"`
	Title       string    `db:"title"`
	Message     string    `db:"message"`
	TemplateKey string    `db:"template_key"`
	Metadata    string    `db:"metadata"`
	IsRead      bool      `db:"is_read"`
	ReadAt      sqlTime   `db:"read_at"`
	CreatedAt   sqlTime   `db:"created_at"`
}

type channelRow struct {
	NotificationID uuid.UUID `db:"notification_id"`
	Channel        string    `db:"channel"`
	Position       int       `db:"position"`
	Status         string    `db:"status"`
	Reason         string    `db:"reason"`
}

type notificationRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewNotificationRepository works against PostgreSQL (lib/pq) and SQLite
// (modernc); queries are written with ? placeholders and rebound per driver.
func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db, now: time.Now}
}

func (r *notificationRepository) Create(ctx context.Context, notif *domain.Notification) error {
	metadata, err := encodeMetadata(notif.Metadata)
	if err != nil {
		return err
	}

	createdAt := stamp(r.now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO notifications (id, user_id, type, title, message, template_key, metadata, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, ?)`),
		notif.ID, notif.UserID, string(notif.Type), notif.Title, notif.Message,
		notif.TemplateKey, metadata, newSQLTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	insertChannel := r.db.Rebind(`
		INSERT INTO notification_channels (notification_id, channel, position, status, reason, updated_at)
		VALUES (?, ?, ?, ?, '', ?)`)
	for i, ch := range notif.Channels {
		if _, err := tx.ExecContext(ctx, insertChannel,
			notif.ID, string(ch), i, string(domain.StatusPending), newSQLTime(createdAt),
		); err != nil {
			return fmt.Errorf("inserting channel %s: %w", ch, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notification: %w", err)
	}

	notif.CreatedAt = createdAt
	notif.IsRead = false
	notif.ReadAt = nil
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var row notificationRow
	query := r.db.Rebind(`SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`)
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}

	notifs, err := r.hydrate(ctx, []notificationRow{row})
	if err != nil {
		return nil, err
	}
	return &notifs[0], nil
}

func (r *notificationRepository) QuerySince(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows []notificationRow
	query := r.db.Rebind(`
		SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = ? AND is_read = FALSE AND created_at > ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`)
	if err := r.db.SelectContext(ctx, &rows, query, userID, newSQLTime(since), limit); err != nil {
		return nil, fmt.Errorf("querying notifications since %s: %w", since.Format(time.RFC3339Nano), err)
	}
	return r.hydrate(ctx, rows)
}

func (r *notificationRepository) UpdateChannelStatus(ctx context.Context, id uuid.UUID, channel domain.Channel, status domain.DeliveryStatus, reason string) error {
	if status != domain.StatusSent && status != domain.StatusFailed {
		return fmt.Errorf("%w: to %s", domain.ErrInvalidTransition, status)
	}
	if status == domain.StatusSent {
		reason = ""
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE notification_channels SET status = ?, reason = ?, updated_at = ?
		WHERE notification_id = ? AND channel = ? AND status = ?`),
		string(status), reason, newSQLTime(stamp(r.now())), id, string(channel), string(domain.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("updating channel %s of %s: %w", channel, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var count int
	err = r.db.GetContext(ctx, &count, r.db.Rebind(
		`SELECT COUNT(*) FROM notification_channels WHERE notification_id = ? AND channel = ?`), id, string(channel))
	if err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %s of %s is no longer pending", domain.ErrInvalidTransition, channel, id)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, params domain.PaginationParams) ([]domain.Notification, int64, error) {
	params.Validate()

	filter := `WHERE user_id = ?`
	if unreadOnly {
		filter += ` AND is_read = FALSE`
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM notifications `+filter), userID); err != nil {
		return nil, 0, err
	}

	var rows []notificationRow
	query := r.db.Rebind(`
		SELECT ` + notificationColumns + ` FROM notifications ` + filter + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, query, userID, params.PageSize, params.Offset()); err != nil {
		return nil, 0, err
	}

	notifs, err := r.hydrate(ctx, rows)
	return notifs, total, err
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE notifications SET is_read = TRUE, read_at = ? WHERE id = ? AND is_read = FALSE`),
		newSQLTime(stamp(r.now())), id,
	)
	if err != nil {
		return false, fmt.Errorf("marking %s read: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE id = ?`), id); err != nil {
		return false, err
	}
	if count == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// MarkAllAsRead snapshots the unread set once and updates only those rows;
// notifications created after the snapshot stay unread.
func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var ids []uuid.UUID
	if err := tx.SelectContext(ctx, &ids, r.db.Rebind(
		`SELECT id FROM notifications WHERE user_id = ? AND is_read = FALSE`), userID); err != nil {
		return 0, fmt.Errorf("snapshotting unread set: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`UPDATE notifications SET is_read = TRUE, read_at = ? WHERE is_read = FALSE AND id IN (?)`,
		newSQLTime(stamp(r.now())), ids)
	if err != nil {
		return 0, err
	}
	result, err := tx.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("marking unread set read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, r.db.Rebind(
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`), userID)
	return count, err
}

// hydrate converts rows and attaches their channel statuses in one query.
func (r *notificationRepository) hydrate(ctx context.Context, rows []notificationRow) ([]domain.Notification, error) {
	if len(rows) == 0 {
		return []domain.Notification{}, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	query, args, err := sqlx.In(`
		SELECT notification_id, channel, position, status, reason FROM notification_channels
		WHERE notification_id IN (?)
		ORDER BY position ASC`, ids)
	if err != nil {
		return nil, err
	}
	var channels []channelRow
	if err := r.db.SelectContext(ctx, &channels, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("loading channel statuses: %w", err)
	}

	byID := make(map[uuid.UUID][]channelRow, len(rows))
	for _, ch := range channels {
		byID[ch.NotificationID] = append(byID[ch.NotificationID], ch)
	}

	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		notif := domain.Notification{
			ID:            row.ID,
			UserID:        row.UserID,
			Type:          domain.NotificationType(row.Type),
			Title:         row.Title,
			Message:       row.Message,
			TemplateKey:   row.TemplateKey,
			IsRead:        row.IsRead,
			ReadAt:        row.ReadAt.Ptr(),
			CreatedAt:     row.CreatedAt.Time,
			Channels:      []domain.Channel{},
			ChannelStatus: map[domain.Channel]domain.ChannelState{},
		}
		if err := decodeMetadata(row.Metadata, &notif.Metadata); err != nil {
			return nil, fmt.Errorf("notification %s: %w", row.ID, err)
		}
		for _, ch := range byID[row.ID] {
			channel := domain.Channel(ch.Channel)
			notif.Channels = append(notif.Channels, channel)
			notif.ChannelStatus[channel] = domain.ChannelState{
				Status: domain.DeliveryStatus(ch.Status),
				Reason: ch.Reason,
			}
		}
		out = append(out, notif)
	}
	return out, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(raw string, dst *map[string]any) error {
	if raw == "" || raw == "{}" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decoding metadata: %w", err)
	}
	return nil
}
