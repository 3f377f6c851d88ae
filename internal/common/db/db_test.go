package db_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"codedrill/internal/common/db"

	"github.com/go-sql-driver/mysql"
)

func TestUniqueViolation(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantKey string
		wantDup bool
	}{
		{name: "nil", err: nil},
		{name: "other", err: errors.New("connection reset")},
		{
			name:    "mysql duplicate",
			err:     fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'uk_submission_id'"}),
			wantKey: "uk_submission_id",
			wantDup: true,
		},
		{name: "mysql other", err: &mysql.MySQLError{Number: 1045, Message: "Access denied"}},
		{name: "sqlite unique", err: errors.New("constraint failed: UNIQUE constraint failed: submission.id (2067)"), wantDup: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, dup := db.UniqueViolation(tc.err)
			if dup != tc.wantDup || key != tc.wantKey {
				t.Fatalf("expected (%q, %v), got (%q, %v)", tc.wantKey, tc.wantDup, key, dup)
			}
		})
	}
}

func TestExtractDuplicateKeyName(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "", want: ""},
		{input: "no marker here", want: ""},
		{input: "Duplicate entry 'a' for key 'PRIMARY'", want: "PRIMARY"},
		{input: "Duplicate entry 'a' for key `t.idx`", want: "t.idx"},
	}
	for _, tc := range cases {
		if got := db.ExtractDuplicateKeyName(tc.input); got != tc.want {
			t.Fatalf("%q: expected %q, got %q", tc.input, tc.want, got)
		}
	}
}

func TestSQLiteTransaction(t *testing.T) {
	ctx := context.Background()
	if _, err := db.NewSQLite(db.SQLiteConfig{}); err == nil {
		t.Fatalf("expected error for empty path")
	}

	database, err := db.NewSQLite(db.SQLiteConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	defer database.Close()
	if database.Dialect() != db.DialectSQLite {
		t.Fatalf("unexpected dialect %q", database.Dialect())
	}
	if _, err := database.Exec(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)"); err != nil {
		t.Fatalf("create table failed: %v", err)
	}

	if err := database.Transaction(ctx, func(tx db.Transaction) error {
		_, err := tx.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "a", "1")
		return err
	}); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	boom := errors.New("boom")
	if err := database.Transaction(ctx, func(tx db.Transaction) error {
		if _, err := tx.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "b", "2"); err != nil {
			return err
		}
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected rollback error, got %v", err)
	}

	var count int
	if err := database.QueryRow(ctx, "SELECT COUNT(*) FROM kv").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row after rollback, got %d", count)
	}

	var v string
	err = database.QueryRow(ctx, "SELECT v FROM kv WHERE k = ?", "missing").Scan(&v)
	if !db.IsNoRows(err) {
		t.Fatalf("expected no rows, got %v", err)
	}
}
