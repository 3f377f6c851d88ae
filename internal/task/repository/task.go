// Package repository stores authored tasks and serves them through a read-through cache.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"codedrill/internal/common/cache"
	"codedrill/internal/common/db"
	"codedrill/internal/task/model"
)

const (
	defaultTaskTTL      = 30 * time.Minute
	defaultTaskEmptyTTL = 5 * time.Minute
	taskKeyPrefix       = "task:"
)

var (
	ErrTaskNotFound = errors.New("task not found")
)

// TaskRepository is the read model the grader depends on, plus the catalog writer.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*model.Task, error)
	Upsert(ctx context.Context, task *model.Task) error
}

type SQLTaskRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewTaskRepository creates a repository. cacheClient may be nil.
func NewTaskRepository(database db.Database, cacheClient cache.Cache) *SQLTaskRepository {
	return NewTaskRepositoryWithTTL(database, cacheClient, defaultTaskTTL, defaultTaskEmptyTTL)
}

func NewTaskRepositoryWithTTL(database db.Database, cacheClient cache.Cache, ttl, emptyTTL time.Duration) *SQLTaskRepository {
	if ttl <= 0 {
		ttl = defaultTaskTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultTaskEmptyTTL
	}
	return &SQLTaskRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      ttl,
		emptyTTL: emptyTTL,
	}
}

func (r *SQLTaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	if r.cache == nil {
		return r.getFromDB(ctx, id)
	}
	task, err := cache.GetWithCached[*model.Task](
		ctx,
		r.cache,
		taskKey(id),
		cache.JitterTTL(r.ttl),
		cache.JitterTTL(r.emptyTTL),
		func(t *model.Task) bool { return t == nil },
		marshalTask,
		unmarshalTask,
		func(ctx context.Context) (*model.Task, error) {
			task, err := r.getFromDB(ctx, id)
			if errors.Is(err, ErrTaskNotFound) {
				return nil, nil
			}
			return task, err
		},
	)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// Upsert replaces the stored task and invalidates its cache entry.
func (r *SQLTaskRepository) Upsert(ctx context.Context, task *model.Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	if err := task.Validate(); err != nil {
		return err
	}
	write := func(ctx context.Context) error {
		return r.db.Transaction(ctx, func(tx db.Transaction) error {
			if _, err := tx.Exec(ctx, "DELETE FROM task WHERE id = ?", task.ID); err != nil {
				return err
			}
			return r.insert(ctx, tx, task)
		})
	}
	if r.cache == nil {
		return write(ctx)
	}
	return cache.UpdateCached(ctx, r.cache, taskKey(task.ID), write)
}

func (r *SQLTaskRepository) insert(ctx context.Context, tx db.Transaction, task *model.Task) error {
	lists, err := encodeLists(task)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO task (id, title, difficulty, kind, language, description,
			starter_code, test_code, solution_code, sample_code,
			review_questions, expected_issues, hints, requirements, tags, estimated_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.GetQuerier(r.db, tx).Exec(ctx, query,
		task.ID, task.Title, task.Difficulty, string(task.Kind), task.Language, task.Description,
		task.StarterCode, task.TestCode, task.SolutionCode, task.SampleCode,
		lists[0], lists[1], lists[2], lists[3], lists[4], task.EstimatedMinutes,
	)
	return err
}

func (r *SQLTaskRepository) getFromDB(ctx context.Context, id string) (*model.Task, error) {
	query := `
		SELECT id, title, difficulty, kind, language, description,
			starter_code, test_code, solution_code, sample_code,
			review_questions, expected_issues, hints, requirements, tags, estimated_minutes
		FROM task
		WHERE id = ?`
	task, err := scanTask(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func scanTask(scanner db.Scanner) (*model.Task, error) {
	var (
		task  model.Task
		kind  string
		lists [5]string
	)
	err := scanner.Scan(
		&task.ID, &task.Title, &task.Difficulty, &kind, &task.Language, &task.Description,
		&task.StarterCode, &task.TestCode, &task.SolutionCode, &task.SampleCode,
		&lists[0], &lists[1], &lists[2], &lists[3], &lists[4], &task.EstimatedMinutes,
	)
	if err != nil {
		return nil, err
	}
	task.Kind = model.Kind(kind)
	targets := []*[]string{&task.ReviewQuestions, &task.ExpectedIssues, &task.Hints, &task.Requirements, &task.Tags}
	for i, raw := range lists {
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), targets[i]); err != nil {
			return nil, err
		}
	}
	return &task, nil
}

func encodeLists(task *model.Task) ([5]string, error) {
	var out [5]string
	for i, list := range [][]string{task.ReviewQuestions, task.ExpectedIssues, task.Hints, task.Requirements, task.Tags} {
		if list == nil {
			list = []string{}
		}
		payload, err := json.Marshal(list)
		if err != nil {
			return out, err
		}
		out[i] = string(payload)
	}
	return out, nil
}

func taskKey(id string) string {
	return taskKeyPrefix + id
}

func marshalTask(task *model.Task) string {
	payload, err := json.Marshal(task)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalTask(data string) (*model.Task, error) {
	var task model.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

var _ TaskRepository = (*SQLTaskRepository)(nil)
