package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// SQLiteUserDirectory implements UserDirectoryPort over the users table.
type SQLiteUserDirectory struct {
	conn *SQLiteDB
}

// NewSQLiteUserDirectory creates a new SQLiteUserDirectory.
func NewSQLiteUserDirectory(conn *SQLiteDB) *SQLiteUserDirectory {
	return &SQLiteUserDirectory{conn: conn}
}

// AddUser registers a user, or renames an existing one.
func (d *SQLiteUserDirectory) AddUser(ctx context.Context, id domain.ActorId, fullname string) error {
	return d.conn.withRetry(ctx, "add user", func() error {
		_, err := d.conn.db.ExecContext(ctx, `
			INSERT INTO users (id, fullname, created_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET fullname = excluded.fullname`,
			id.String(), fullname, formatTime(time.Now()))
		return err
	})
}

// AllUserIds enumerates every registered user in id order.
func (d *SQLiteUserDirectory) AllUserIds(ctx context.Context) ([]domain.ActorId, error) {
	var ids []domain.ActorId
	err := d.conn.withRetry(ctx, "list users", func() error {
		ids = nil
		rows, err := d.conn.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, domain.ActorId(id))
		}
		return rows.Err()
	})
	return ids, err
}

// FullName returns the display name of a user; unknown users have none.
func (d *SQLiteUserDirectory) FullName(ctx context.Context, id domain.ActorId) (string, error) {
	var fullname string
	err := d.conn.withRetry(ctx, "fetch user", func() error {
		err := d.conn.db.QueryRowContext(ctx, `SELECT fullname FROM users WHERE id = ?`, id.String()).Scan(&fullname)
		if err == sql.ErrNoRows {
			fullname = ""
			return nil
		}
		return err
	})
	return fullname, err
}
