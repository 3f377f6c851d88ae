package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteConfig configures the embedded single-node store.
type SQLiteConfig struct {
	// Path is a file path, or ":memory:" for a throwaway database.
	Path string `yaml:"path"`
}

// NewSQLite opens a SQLite database with WAL and foreign keys enabled.
func NewSQLite(cfg SQLiteConfig) (*SQLDatabase, error) {
	path := cfg.Path
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}
	// One connection that never expires: pragmas are per connection and an
	// in-memory database lives only as long as its connection.
	database, err := openSQL("sqlite", path, DialectSQLite, PoolConfig{
		MaxOpenConnections: 1,
		MaxIdleConnections: 1,
		ConnMaxLifetime:    -1,
		ConnMaxIdleTime:    -1,
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := database.db.ExecContext(context.Background(), pragma); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return database, nil
}
