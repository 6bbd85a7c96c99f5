package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Connection parameters understood by modernc.org/sqlite. Every connection in the pool
// gets them, which is why they travel in the DSN rather than as one-off PRAGMA calls.
var dsnParams = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=foreign_keys(1)",
	"_pragma=journal_mode(WAL)",
	"_pragma=synchronous(NORMAL)",
	"_txlock=immediate",
}

// DefaultTxAttempts is how many times WithTx runs a transaction that keeps failing with
// SQLITE_BUSY before giving up.
const DefaultTxAttempts = 5

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the sql.DB for connection management
type DB struct {
	conn       *sql.DB
	logger     *slog.Logger
	txAttempts int
}

// New creates a new DB connection
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := sql.Open("sqlite", BuildDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &DB{conn: conn, logger: logger, txAttempts: DefaultTxAttempts}, nil
}

// BuildDSN appends the connection parameters to a path or DSN, keeping any the caller
// already set.
func BuildDSN(dsn string) string {
	var extra []string
	for _, p := range dsnParams {
		key := p[:strings.IndexByte(p, '=')+1]
		if strings.HasPrefix(p, "_pragma=") {
			key = p[:strings.IndexByte(p, '(')]
		}
		if !strings.Contains(dsn, key) {
			extra = append(extra, p)
		}
	}
	if len(extra) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + strings.Join(extra, "&")
}

// SetTxAttempts overrides the retry budget used by WithTx. Values below 1 are ignored.
func (db *DB) SetTxAttempts(n int) {
	if n >= 1 {
		db.txAttempts = n
	}
}

// Close closes the DB connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Exec executes a query
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, query, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}

// QueryRows executes a query that returns rows
func (db *DB) QueryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

// GetConn returns the underlying sql.DB
func (db *DB) GetConn() *sql.DB {
	return db.conn
}

// WithTx runs fn inside a transaction and commits it. Transactions that fail because the
// database is busy are rolled back and run again from the start, with backoff, up to the
// configured number of attempts. Any other error rolls back and is returned as is.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= db.txAttempts; attempt++ {
		err = db.runTx(ctx, fn)
		if err == nil || !IsBusy(err) {
			return err
		}

		wait := BackoffDuration(attempt)
		db.logger.Warn("database busy, retrying transaction",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.Any("err", err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("transaction gave up after %d attempts: %w", db.txAttempts, err)
}

func (db *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// IsBusy reports whether err is SQLite telling us another writer holds the lock.
func IsBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}

	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}

	return false
}

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return 10 * time.Millisecond
	}
	d := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond
	max := 500 * time.Millisecond
	if d > max {
		return max
	}
	return d
}
