package db_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	dbpkg "github.com/garnizeh/preptrack/internal/db"
)

func openTemp(t *testing.T) *dbpkg.DB {
	t.Helper()
	d, err := dbpkg.New(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestNew_Close_GetConn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Use in-memory SQLite
	d, err := dbpkg.New(ctx, "file::memory:?cache=shared", nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	conn := d.GetConn()
	if conn == nil {
		t.Fatalf("expected non-nil sql.DB from GetConn")
	}

	// Close should not error
	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestExec_QueryRow(t *testing.T) {
	ctx := context.Background()
	d := openTemp(t)

	// create table
	_, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT);`)
	if err != nil {
		t.Fatalf("Exec create table returned error: %v", err)
	}

	// insert
	res, err := d.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, "foo")
	if err != nil {
		t.Fatalf("Exec insert returned error: %v", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("LastInsertId returned error: %v", err)
	}
	if lastID == 0 {
		t.Fatalf("expected last insert id > 0")
	}

	// query
	row := d.QueryRow(ctx, `SELECT name FROM items WHERE id = ?`, lastID)
	var name string
	if err := row.Scan(&name); err != nil {
		t.Fatalf("QueryRow scan returned error: %v", err)
	}
	if name != "foo" {
		t.Fatalf("expected name 'foo' got %q", name)
	}
}

func TestBuildDSN(t *testing.T) {
	got := dbpkg.BuildDSN("prep.db")
	if !strings.HasPrefix(got, "prep.db?") {
		t.Fatalf("expected params appended with '?', got %q", got)
	}
	for _, want := range []string{"_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)", "_txlock=immediate"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}

	// caller supplied values win and existing query strings are extended with '&'
	got = dbpkg.BuildDSN("file:prep.db?cache=shared&_txlock=deferred")
	if strings.Contains(got, "_txlock=immediate") {
		t.Fatalf("caller _txlock should be kept, got %q", got)
	}
	if !strings.HasPrefix(got, "file:prep.db?cache=shared&_txlock=deferred&") {
		t.Fatalf("expected caller query kept in front, got %q", got)
	}
	for _, want := range []string{"&_pragma=busy_timeout(5000)", "&_pragma=foreign_keys(1)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q joined with '&' in %q", want, got)
		}
	}
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	d := openTemp(t)

	if _, err := d.Exec(ctx, `CREATE TABLE counters (name TEXT PRIMARY KEY, n INTEGER NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO counters (name, n) VALUES ('a', 1)`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx commit path: %v", err)
	}

	boom := errors.New("boom")
	err = d.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE counters SET n = 99 WHERE name = 'a'`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to be returned, got %v", err)
	}

	var n int
	if err := d.QueryRow(ctx, `SELECT n FROM counters WHERE name = 'a'`).Scan(&n); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected rolled back value 1, got %d", n)
	}
}

func TestWithTx_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	d := openTemp(t)

	if _, err := d.Exec(ctx, `CREATE TABLE counters (name TEXT PRIMARY KEY, n INTEGER NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := d.Exec(ctx, `INSERT INTO counters (name, n) VALUES ('a', 0)`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- d.WithTx(ctx, func(tx *sql.Tx) error {
				var n int
				if err := tx.QueryRowContext(ctx, `SELECT n FROM counters WHERE name = 'a'`).Scan(&n); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, `UPDATE counters SET n = ? WHERE name = 'a'`, n+1)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent WithTx: %v", err)
		}
	}

	var n int
	if err := d.QueryRow(ctx, `SELECT n FROM counters WHERE name = 'a'`).Scan(&n); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != writers {
		t.Fatalf("expected %d increments, got %d", writers, n)
	}
}

func TestIsBusy_NonSQLiteError(t *testing.T) {
	if dbpkg.IsBusy(errors.New("plain")) {
		t.Fatalf("plain errors are not busy errors")
	}
	if dbpkg.IsBusy(nil) {
		t.Fatalf("nil is not a busy error")
	}
}

func TestBackoffDuration(t *testing.T) {
	if got := dbpkg.BackoffDuration(0); got != 10*time.Millisecond {
		t.Fatalf("attempt 0: got %v", got)
	}
	if got := dbpkg.BackoffDuration(1); got != 20*time.Millisecond {
		t.Fatalf("attempt 1: got %v", got)
	}
	if got := dbpkg.BackoffDuration(20); got != 500*time.Millisecond {
		t.Fatalf("expected cap at 500ms, got %v", got)
	}
}
