package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/ccheney/problem-lifecycle/internal/application"
	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// Notification is one delivered inbox entry.
type Notification struct {
	ID        int64     `json:"id" yaml:"id"`
	UserID    string    `json:"user_id" yaml:"user_id"`
	Href      string    `json:"href" yaml:"href"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// SQLiteNotificationInbox implements NotificationDispatcherPort by writing
// one inbox row per recipient.
type SQLiteNotificationInbox struct {
	conn   *SQLiteDB
	logger application.LoggerPort
}

// NewSQLiteNotificationInbox creates a new SQLiteNotificationInbox.
func NewSQLiteNotificationInbox(conn *SQLiteDB, logger application.LoggerPort) *SQLiteNotificationInbox {
	return &SQLiteNotificationInbox{conn: conn, logger: logger}
}

// Notify writes the batch in one transaction. Failures are logged only.
func (n *SQLiteNotificationInbox) Notify(ctx context.Context, userIds []domain.ActorId, href string) {
	if len(userIds) == 0 {
		return
	}

	now := formatTime(time.Now())
	err := n.conn.inTx(ctx, "deliver notifications", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO notifications (user_id, href, created_at) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range userIds {
			if _, err := stmt.ExecContext(ctx, id.String(), href, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		n.logger.Error("notification_delivery_failed", map[string]interface{}{
			"href":       href,
			"recipients": len(userIds),
			"error":      err.Error(),
		})
	}
}

// ListForUser returns the user's notifications, newest first.
func (n *SQLiteNotificationInbox) ListForUser(ctx context.Context, userID domain.ActorId, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	var out []Notification
	err := n.conn.withRetry(ctx, "list notifications", func() error {
		out = nil
		rows, err := n.conn.db.QueryContext(ctx,
			`SELECT id, user_id, href, created_at FROM notifications WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
			userID.String(), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var entry Notification
			var createdAt string
			if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Href, &createdAt); err != nil {
				return err
			}
			entry.CreatedAt = parseTime(createdAt)
			out = append(out, entry)
		}
		return rows.Err()
	})
	return out, err
}
