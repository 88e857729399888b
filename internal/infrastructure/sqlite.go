package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

const (
	defaultBusyTimeout  = 3000 // milliseconds
	busyRetryMaxElapsed = 5 * time.Second
	maxBusyRetries      = 8

	timeLayout = "2006-01-02T15:04:05.999999-07:00"
)

const schema = `
CREATE TABLE IF NOT EXISTS problems (
	id                    TEXT PRIMARY KEY,
	summary               TEXT NOT NULL,
	description           TEXT NOT NULL DEFAULT '',
	solution              TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'open'
		CHECK (status IN ('open', 'in-progress', 'ready-for-review', 'closed')),
	created_by            TEXT NOT NULL DEFAULT '',
	created_at            TEXT NOT NULL,
	updated_at            TEXT NOT NULL,
	claimed_by            TEXT NOT NULL DEFAULT '',
	claimed               INTEGER NOT NULL DEFAULT 0,
	claimed_fullname      TEXT NOT NULL DEFAULT '',
	claimed_date_time     TEXT NOT NULL DEFAULT '',
	estimate              INTEGER NOT NULL DEFAULT 0,
	resolved              INTEGER NOT NULL DEFAULT 0,
	resolved_by           TEXT NOT NULL DEFAULT '',
	resolve_steps         TEXT NOT NULL DEFAULT '',
	has_accepted_solution INTEGER NOT NULL DEFAULT 0,
	previous_solutions    TEXT NOT NULL DEFAULT '[]',
	fyi_problem           INTEGER NOT NULL DEFAULT 0,
	dependencies          TEXT NOT NULL DEFAULT '[]',
	inv_dependencies      TEXT NOT NULL DEFAULT '[]',
	CHECK (claimed = (claimed_by != ''))
);

CREATE TABLE IF NOT EXISTS problem_members (
	problem_id TEXT NOT NULL,
	member_set TEXT NOT NULL CHECK (member_set IN ('approvals', 'subscribers')),
	actor_id   TEXT NOT NULL,
	added_at   TEXT NOT NULL,
	PRIMARY KEY (problem_id, member_set, actor_id)
);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	fullname   TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	href       TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, id);
`

// SQLiteDB is the shared connection used by every SQLite adapter.
type SQLiteDB struct {
	db          *sql.DB
	busyTimeout int
}

// OpenSQLite opens the database at dbPath. Write transactions take the
// database lock up front (_txlock=immediate) so a conditional update never
// upgrades a read lock mid-transaction.
func OpenSQLite(dbPath string, busyTimeout int) (*SQLiteDB, error) {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL&_txlock=immediate", dbPath, busyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, domain.NewStorageError(domain.ErrCodeDBNotFound, "failed to open database: "+err.Error())
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, domain.NewStorageError(domain.ErrCodeDBNotFound, "failed to connect to database: "+err.Error())
	}

	return &SQLiteDB{db: db, busyTimeout: busyTimeout}, nil
}

// EnsureSchema creates missing tables.
func (s *SQLiteDB) EnsureSchema(ctx context.Context) error {
	return s.withRetry(ctx, "create schema", func() error {
		_, err := s.db.ExecContext(ctx, schema)
		return err
	})
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// inTx runs fn in one transaction, retrying the whole transaction while the
// database is busy.
func (s *SQLiteDB) inTx(ctx context.Context, action string, fn func(tx *sql.Tx) error) error {
	return s.withRetry(ctx, action, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func newBusyBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxElapsedTime = busyRetryMaxElapsed
	return backoff.WithMaxRetries(bo, maxBusyRetries)
}

// withRetry retries op on SQLITE_BUSY only and maps the final error into a
// ProblemError.
func (s *SQLiteDB) withRetry(ctx context.Context, action string, op func() error) error {
	err := backoff.Retry(func() error {
		err := op()
		if err != nil && isBusyError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(newBusyBackoff(), ctx))
	if err == nil {
		return nil
	}
	return storageError(action, err)
}

func storageError(action string, err error) error {
	var problemErr *domain.ProblemError
	if errors.As(err, &problemErr) {
		return problemErr
	}
	if isBusyError(err) {
		return domain.NewStorageError(domain.ErrCodeSQLiteBusy, "database is busy: "+action+": "+err.Error())
	}
	return domain.NewStorageError(domain.ErrCodeStorage, "failed to "+action+": "+err.Error())
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
