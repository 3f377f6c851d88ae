package db

import (
	_ "github.com/go-sql-driver/mysql"
)

// MySQLConfig holds the configuration for a MySQL connection pool.
type MySQLConfig struct {
	// DSN format: "user:password@tcp(host:port)/dbname?parseTime=true&loc=Local"
	// parseTime is required: timestamp columns are scanned into time.Time.
	DSN  string     `yaml:"dsn"`
	Pool PoolConfig `yaml:"pool"`
}

// NewMySQL opens and pings a MySQL connection pool.
func NewMySQL(cfg MySQLConfig) (*SQLDatabase, error) {
	return openSQL("mysql", cfg.DSN, DialectMySQL, cfg.Pool)
}
