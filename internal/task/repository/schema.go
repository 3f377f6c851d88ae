package repository

import (
	"context"
	"fmt"

	"codedrill/internal/common/db"
)

const sqliteTaskSchema = `
CREATE TABLE IF NOT EXISTS task (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	difficulty TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	starter_code TEXT NOT NULL DEFAULT '',
	test_code TEXT NOT NULL DEFAULT '',
	solution_code TEXT NOT NULL DEFAULT '',
	sample_code TEXT NOT NULL DEFAULT '',
	review_questions TEXT NOT NULL DEFAULT '[]',
	expected_issues TEXT NOT NULL DEFAULT '[]',
	hints TEXT NOT NULL DEFAULT '[]',
	requirements TEXT NOT NULL DEFAULT '[]',
	tags TEXT NOT NULL DEFAULT '[]',
	estimated_minutes INTEGER NOT NULL DEFAULT 0
)`

const mysqlTaskSchema = `
CREATE TABLE IF NOT EXISTS task (
	id VARCHAR(128) PRIMARY KEY,
	title VARCHAR(255) NOT NULL DEFAULT '',
	difficulty VARCHAR(32) NOT NULL DEFAULT '',
	kind VARCHAR(16) NOT NULL,
	language VARCHAR(32) NOT NULL DEFAULT '',
	description TEXT NOT NULL,
	starter_code MEDIUMTEXT NOT NULL,
	test_code MEDIUMTEXT NOT NULL,
	solution_code MEDIUMTEXT NOT NULL,
	sample_code MEDIUMTEXT NOT NULL,
	review_questions JSON NOT NULL,
	expected_issues JSON NOT NULL,
	hints JSON NOT NULL,
	requirements JSON NOT NULL,
	tags JSON NOT NULL,
	estimated_minutes INT NOT NULL DEFAULT 0
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// EnsureSchema creates the task table when it is missing.
func EnsureSchema(ctx context.Context, database db.Database) error {
	var ddl string
	switch database.Dialect() {
	case db.DialectSQLite:
		ddl = sqliteTaskSchema
	case db.DialectMySQL:
		ddl = mysqlTaskSchema
	default:
		return fmt.Errorf("unsupported dialect %q", database.Dialect())
	}
	if _, err := database.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create task table failed: %w", err)
	}
	return nil
}
