package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "judge_service.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoadAppConfigDefaults(t *testing.T) {
	cfg, err := loadAppConfig(writeConfig(t, "judge:\n  workRoot: /tmp/codedrill\n"))
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.Server.Addr != defaultHTTPAddr {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	// task lookup 3s, slot 60s, go verification 71s, lock queue 10s,
	// insert 3s, event 3s, archive 5s, plus slack
	if cfg.Server.WriteTimeout != 160*time.Second {
		t.Fatalf("expected derived write timeout 160s, got %s", cfg.Server.WriteTimeout)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLite.Path != defaultSQLitePath {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Kafka.GradedTopic != defaultGradedTopic || cfg.Archive.Prefix != defaultArchivePath {
		t.Fatalf("unexpected sink defaults: %+v %+v", cfg.Kafka, cfg.Archive)
	}
	if cfg.Judge.MaxCodeBytes != 64*1024 || cfg.Judge.WorkerPoolSize != 4 {
		t.Fatalf("unexpected judge defaults: %+v", cfg.Judge)
	}
	if cfg.Judge.Timeouts.DB != 3*time.Second || cfg.Judge.Timeouts.Storage != 5*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg.Judge.Timeouts)
	}
	if len(cfg.Languages) != 2 || cfg.Languages[0].ID != "go" || cfg.Languages[1].ID != "solidity" {
		t.Fatalf("unexpected default languages: %+v", cfg.Languages)
	}
}

func TestLoadAppConfigOverrides(t *testing.T) {
	content := `
server:
  addr: 127.0.0.1:9000
database:
  driver: MySQL
  mysql:
    dsn: user:pass@tcp(localhost:3306)/codedrill
redis:
  enabled: true
  addr: localhost:6379
judge:
  workerPoolSize: 8
  timeouts:
    db: 1s
`
	cfg, err := loadAppConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "mysql" {
		t.Fatalf("expected normalized driver, got %q", cfg.Database.Driver)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.Judge.WorkerPoolSize != 8 || cfg.Judge.Timeouts.DB != time.Second {
		t.Fatalf("unexpected judge config: %+v", cfg.Judge)
	}
	if cfg.Server.WriteTimeout != submitBudget(cfg)+writeTimeoutSlack {
		t.Fatalf("expected write timeout derived from overrides, got %s", cfg.Server.WriteTimeout)
	}
}

func TestLoadAppConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "unknown driver", content: "database:\n  driver: postgres\n"},
		{name: "mysql without dsn", content: "database:\n  driver: mysql\n"},
		{name: "redis without addr", content: "redis:\n  enabled: true\n"},
		{name: "kafka without brokers", content: "kafka:\n  enabled: true\n"},
		{name: "archive without bucket", content: "archive:\n  enabled: true\n"},
		{name: "malformed yaml", content: "server: [\n"},
		{name: "write timeout below submission time", content: "server:\n  writeTimeout: 120s\n"},
		{name: "judge timeout outgrows write timeout", content: "server:\n  writeTimeout: 160s\njudge:\n  timeouts:\n    judge: 60s\n"},
		{name: "slot wait outgrows write timeout", content: "server:\n  writeTimeout: 160s\njudge:\n  timeouts:\n    slotWait: 90s\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadAppConfig(writeConfig(t, tc.content)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := loadAppConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSampleConfigLoads(t *testing.T) {
	cfg, err := loadAppConfig(filepath.Join("..", "..", "configs", "judge_service.yaml"))
	if err != nil {
		t.Fatalf("load sample config failed: %v", err)
	}
	if cfg.Redis.Enabled || cfg.Kafka.Enabled || cfg.Archive.Enabled {
		t.Fatalf("sample config should keep optional sinks disabled")
	}
	if cfg.Judge.TasksFile == "" {
		t.Fatalf("sample config should name a task catalog")
	}
	if budget := submitBudget(cfg); cfg.Server.WriteTimeout < budget {
		t.Fatalf("sample write timeout %s below submission time %s", cfg.Server.WriteTimeout, budget)
	}
}
