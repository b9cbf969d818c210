// Package history provides access to the notifications table for
// querying past device status deliveries.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Default and maximum page sizes for History queries.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// opTimeout bounds writes issued from the relay's message handler.
const opTimeout = 5 * time.Second

// Notification is one recorded status delivery.
type Notification struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	ChatID    string    `json:"chat_id"`
	Platform  string    `json:"platform"`
	Status    string    `json:"status"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines the interface for notification history operations.
type Repository interface {
	Record(ctx context.Context, n *Notification) error
	History(ctx context.Context, deviceID string, limit int) ([]Notification, error)
}

// SQLiteRepository stores notification history in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new notification history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one notification. CreatedAt is generated if zero.
func (r *SQLiteRepository) Record(ctx context.Context, n *Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (device_id, chat_id, platform, status, username, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.DeviceID, n.ChatID, n.Platform, n.Status, n.Username,
		n.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		n.ID = id
	}
	return nil
}

// History returns a device's notifications, newest first.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - deviceID: Device to query
//   - limit: Maximum rows; 0 uses the default, values above the cap
//     are clamped
//
// Returns:
//   - []Notification: Newest-first rows, empty (not nil) when none
//   - error: Query failure
func (r *SQLiteRepository) History(ctx context.Context, deviceID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, chat_id, platform, status, username, created_at
		 FROM notifications
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		var createdAt string
		if err := rows.Scan(&n.ID, &n.DeviceID, &n.ChatID, &n.Platform, &n.Status, &n.Username, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning notification row: %w", err)
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return notifications, nil
}

// RecordNotification adapts Record to the relay's recorder contract,
// which carries no context of its own.
func (r *SQLiteRepository) RecordNotification(deviceID, chatID, platform, status, username string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.Record(ctx, &Notification{
		DeviceID: deviceID,
		ChatID:   chatID,
		Platform: platform,
		Status:   status,
		Username: username,
	})
}
