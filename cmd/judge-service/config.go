package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"codedrill/internal/common/cache"
	"codedrill/internal/common/db"
	"codedrill/internal/common/mq"
	"codedrill/internal/common/storage"
	"codedrill/internal/judge/sandbox/engine"
	"codedrill/internal/judge/sandbox/profile"
	"codedrill/internal/submit/service"
	"codedrill/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8086"
	defaultReadTimeout     = 5 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	// writeTimeoutSlack covers encoding and flushing the response.
	writeTimeoutSlack = 5 * time.Second

	defaultSQLitePath  = "data/codedrill.db"
	defaultGradedTopic = "codedrill.submission.graded"
	defaultArchivePath = "submissions"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// DatabaseConfig selects the submission store.
type DatabaseConfig struct {
	Driver string          `yaml:"driver"` // sqlite, mysql
	SQLite db.SQLiteConfig `yaml:"sqlite"`
	MySQL  db.MySQLConfig  `yaml:"mysql"`
}

// RedisConfig enables the task cache and the cross-process attempt lease.
type RedisConfig struct {
	Enabled           bool `yaml:"enabled"`
	cache.RedisConfig `yaml:",inline"`
}

// KafkaConfig enables graded-submission events.
type KafkaConfig struct {
	Enabled        bool   `yaml:"enabled"`
	GradedTopic    string `yaml:"gradedTopic"`
	mq.KafkaConfig `yaml:",inline"`
}

// ArchiveConfig enables compressed submission archives in object storage.
type ArchiveConfig struct {
	Enabled bool                `yaml:"enabled"`
	Prefix  string              `yaml:"prefix"`
	MinIO   storage.MinIOConfig `yaml:"minio"`
}

// JudgeConfig holds verification settings.
type JudgeConfig struct {
	WorkRoot       string                `yaml:"workRoot"`
	TasksFile      string                `yaml:"tasksFile"`
	MaxCodeBytes   int                   `yaml:"maxCodeBytes"`
	WorkerPoolSize int                   `yaml:"workerPoolSize"`
	ProbeTimeout   time.Duration         `yaml:"probeTimeout"`
	Engine         engine.Config         `yaml:"engine"`
	Timeouts       service.TimeoutConfig `yaml:"timeouts"`
}

// AppConfig holds judge-service configuration.
type AppConfig struct {
	Server    ServerConfig           `yaml:"server"`
	Logger    logger.Config          `yaml:"logger"`
	Database  DatabaseConfig         `yaml:"database"`
	Redis     RedisConfig            `yaml:"redis"`
	Kafka     KafkaConfig            `yaml:"kafka"`
	Archive   ArchiveConfig          `yaml:"archive"`
	Judge     JudgeConfig            `yaml:"judge"`
	Languages []profile.LanguageSpec `yaml:"languages"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = string(db.DialectSQLite)
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = defaultSQLitePath
	}

	if cfg.Kafka.GradedTopic == "" {
		cfg.Kafka.GradedTopic = defaultGradedTopic
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = defaultArchivePath
	}

	if cfg.Judge.MaxCodeBytes == 0 {
		cfg.Judge.MaxCodeBytes = 64 * 1024
	}
	if cfg.Judge.WorkerPoolSize == 0 {
		cfg.Judge.WorkerPoolSize = 4
	}
	if cfg.Judge.ProbeTimeout == 0 {
		cfg.Judge.ProbeTimeout = profile.DefaultProbeTimeout
	}
	if cfg.Judge.Timeouts.DB == 0 {
		cfg.Judge.Timeouts.DB = 3 * time.Second
	}
	if cfg.Judge.Timeouts.MQ == 0 {
		cfg.Judge.Timeouts.MQ = 3 * time.Second
	}
	if cfg.Judge.Timeouts.Storage == 0 {
		cfg.Judge.Timeouts.Storage = 5 * time.Second
	}
	if cfg.Judge.Timeouts.SlotWait == 0 {
		cfg.Judge.Timeouts.SlotWait = service.DefaultSlotWait
	}
	if cfg.Judge.Engine.WaitDelay <= 0 {
		cfg.Judge.Engine.WaitDelay = engine.DefaultWaitDelay
	}

	if len(cfg.Languages) == 0 {
		cfg.Languages = []profile.LanguageSpec{profile.GoSpec(), profile.SoliditySpec()}
	}
	for i := range cfg.Languages {
		cfg.Languages[i] = cfg.Languages[i].Normalized()
	}

	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = submitBudget(cfg) + writeTimeoutSlack
	}
}

// submitBudget is the worst-case duration of one write submission across
// all configured languages.
func submitBudget(cfg *AppConfig) time.Duration {
	var verify time.Duration
	for _, lang := range cfg.Languages {
		if d := lang.MaxVerifyDuration(cfg.Judge.Timeouts.Judge, cfg.Judge.Engine.WaitDelay); d > verify {
			verify = d
		}
	}
	return cfg.Judge.Timeouts.SubmitBudget(verify)
}

func validateConfig(cfg *AppConfig) error {
	switch db.Dialect(cfg.Database.Driver) {
	case db.DialectSQLite:
	case db.DialectMySQL:
		if cfg.Database.MySQL.DSN == "" {
			return fmt.Errorf("database mysql dsn is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}
	if cfg.Archive.Enabled && cfg.Archive.MinIO.Bucket == "" {
		return fmt.Errorf("archive minio bucket is required")
	}
	if budget := submitBudget(cfg); cfg.Server.WriteTimeout < budget {
		return fmt.Errorf("server writeTimeout %s is shorter than the worst-case submission time %s", cfg.Server.WriteTimeout, budget)
	}
	return nil
}
