package repository

import (
	"context"
	"fmt"

	"codedrill/internal/common/db"
)

// seq gives a total order even when created_at values tie.
var sqliteSubmissionSchema = []string{`
CREATE TABLE IF NOT EXISTS submission (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	task_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	code TEXT NOT NULL DEFAULT '',
	answer_payload TEXT NOT NULL DEFAULT '',
	result_payload TEXT NOT NULL DEFAULT '',
	passed INTEGER NOT NULL DEFAULT 0,
	score REAL NOT NULL DEFAULT 0,
	attempt INTEGER NOT NULL,
	time_spent_seconds INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_submission_task ON submission (task_id, seq)`,
}

var mysqlSubmissionSchema = []string{`
CREATE TABLE IF NOT EXISTS submission (
	seq BIGINT AUTO_INCREMENT PRIMARY KEY,
	id CHAR(36) NOT NULL,
	task_id VARCHAR(128) NOT NULL,
	kind VARCHAR(16) NOT NULL,
	code MEDIUMTEXT NOT NULL,
	answer_payload MEDIUMTEXT NOT NULL,
	result_payload MEDIUMTEXT NOT NULL,
	passed TINYINT(1) NOT NULL DEFAULT 0,
	score DOUBLE NOT NULL DEFAULT 0,
	attempt INT NOT NULL,
	time_spent_seconds INT NOT NULL DEFAULT 0,
	created_at DATETIME(6) NOT NULL,
	UNIQUE KEY uk_submission_id (id),
	KEY idx_submission_task (task_id, seq)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the submission table when it is missing.
func EnsureSchema(ctx context.Context, database db.Database) error {
	var ddl []string
	switch database.Dialect() {
	case db.DialectSQLite:
		ddl = sqliteSubmissionSchema
	case db.DialectMySQL:
		ddl = mysqlSubmissionSchema
	default:
		return fmt.Errorf("unsupported dialect %q", database.Dialect())
	}
	for _, stmt := range ddl {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create submission schema failed: %w", err)
		}
	}
	return nil
}
