package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
)

func openMemory(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Connect(Config{Driver: DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: fmt.Errorf("get: %w", sql.ErrNoRows), want: apperr.ErrNotFound},
		{name: "bad conn", err: driver.ErrBadConn, want: apperr.ErrStorageUnavailable},
		{name: "pg connection failure", err: &pq.Error{Code: "08006"}, want: apperr.ErrStorageUnavailable},
		{name: "sqlite busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, want: apperr.ErrStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("Classify(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("Classify = %v, want %v", got, tt.want)
			}
		})
	}

	other := errors.New("syntax error")
	if Classify(other) != other {
		t.Fatalf("unrelated errors should pass through")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := openMemory(t)
	if _, err := db.Exec(`INSERT INTO kv (k, v) VALUES ('a', '1')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := db.Exec(`INSERT INTO kv (k, v) VALUES ('a', '2')`)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if !IsUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Fatalf("pq 23505 should be a unique violation")
	}
	if IsUniqueViolation(errors.New("other")) {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	if err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES ('kept', '1')`)
		return err
	}); err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	boom := errors.New("boom")
	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES ('dropped', '1')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	var keys []string
	if err := db.Select(&keys, `SELECT k FROM kv ORDER BY k`); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(keys) != 1 || keys[0] != "kept" {
		t.Fatalf("keys = %v, want [kept]", keys)
	}
}

func TestWithTx_RetriesTransientErrors(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	oldBackoff := Backoff
	Backoff = time.Millisecond
	t.Cleanup(func() { Backoff = oldBackoff })

	calls := 0
	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		calls++
		if calls < 2 {
			return driver.ErrBadConn
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, got err=%v calls=%d", err, calls)
	}

	calls = 0
	err = WithTx(ctx, db, func(tx *sqlx.Tx) error {
		calls++
		return driver.ErrBadConn
	})
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if calls != Attempts {
		t.Fatalf("calls = %d, want %d", calls, Attempts)
	}
}
