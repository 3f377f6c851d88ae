package repository

import (
	"context"
	"fmt"
	"os"

	"codedrill/internal/task/model"
	"codedrill/pkg/utils/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk task list loaded at startup.
type Catalog struct {
	Tasks []model.Task `yaml:"tasks"`
}

// LoadCatalog reads and validates a YAML task catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog failed: %w", err)
	}
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("decode catalog failed: %w", err)
	}
	seen := make(map[string]struct{}, len(catalog.Tasks))
	for i := range catalog.Tasks {
		task := &catalog.Tasks[i]
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("task %d (%s): %w", i, task.ID, err)
		}
		if _, dup := seen[task.ID]; dup {
			return nil, fmt.Errorf("task %s defined twice", task.ID)
		}
		seen[task.ID] = struct{}{}
	}
	return &catalog, nil
}

// Seed upserts every catalog task into repo.
func (c *Catalog) Seed(ctx context.Context, repo TaskRepository) error {
	for i := range c.Tasks {
		if err := repo.Upsert(ctx, &c.Tasks[i]); err != nil {
			return fmt.Errorf("seed task %s failed: %w", c.Tasks[i].ID, err)
		}
	}
	logger.Info(ctx, "task catalog seeded", zap.Int("tasks", len(c.Tasks)))
	return nil
}
