package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/garnizeh/preptrack/internal/db"
	"github.com/garnizeh/preptrack/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
// A repo returned by New talks to the pool; the one handed to a WithinTx callback is
// bound to that transaction.
type SQLiteRepo struct {
	conn   *db.DB
	q      db.Querier
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.QuestionProgressRepo = (*SQLiteRepo)(nil)
var _ repository.ProjectCompletionRepo = (*SQLiteRepo)(nil)
var _ repository.AggregateRepo = (*SQLiteRepo)(nil)
var _ repository.TxStore = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, q: conn.GetConn(), logger: logger}
}

// WithinTx runs fn with a repo bound to one transaction. Busy transactions are retried
// from the start by the DB wrapper, so fn must not keep state across calls.
func (r *SQLiteRepo) WithinTx(ctx context.Context, fn func(s repository.Store) error) error {
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&SQLiteRepo{conn: r.conn, q: tx, logger: r.logger})
	})
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func toMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func optBool(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return int64(1)
	}
	return int64(0)
}

func optInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func optInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func optString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
