// Package repository persists graded submissions.
package repository

import (
	"context"
	"errors"
	"time"

	"codedrill/internal/common/db"
	"codedrill/internal/task/model"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

var (
	ErrSubmissionExists = errors.New("submission already exists")
)

// Submission is one graded attempt. Rows are never updated after Create.
type Submission struct {
	ID     string     `json:"id"`
	TaskID string     `json:"task_id"`
	Kind   model.Kind `json:"kind"`
	// Code is the user code for write tasks and the improved code for review tasks.
	Code string `json:"code"`
	// AnswerPayload is the JSON review answer for review tasks.
	AnswerPayload string `json:"answer_payload,omitempty"`
	// ResultPayload is the JSON outcome for write tasks or match report for review tasks.
	ResultPayload    string    `json:"result_payload"`
	Passed           bool      `json:"passed"`
	Score            float64   `json:"score"`
	Attempt          int       `json:"attempt"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

// TaskStats aggregates the submissions of one task.
type TaskStats struct {
	TaskID         string     `json:"task_id"`
	Attempts       int64      `json:"attempts"`
	PassedCount    int64      `json:"passed_count"`
	BestScore      float64    `json:"best_score"`
	LastSubmission *time.Time `json:"last_submission,omitempty"`
}

type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *Submission) error
	CountByTask(ctx context.Context, tx db.Transaction, taskID string) (int64, error)
	ListByTask(ctx context.Context, taskID string, limit int) ([]*Submission, error)
	StatsByTask(ctx context.Context, taskID string) (TaskStats, error)
}

type SQLSubmissionRepository struct {
	db  db.Database
	now func() time.Time
}

func NewSubmissionRepository(database db.Database) *SQLSubmissionRepository {
	return &SQLSubmissionRepository{db: database, now: time.Now}
}

// Create assigns the id and creation time, then inserts the row.
func (r *SQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *Submission) error {
	if submission == nil {
		return errors.New("submission is nil")
	}
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	submission.CreatedAt = r.now().UTC()

	query := `
		INSERT INTO submission (id, task_id, kind, code, answer_payload, result_payload,
			passed, score, attempt, time_spent_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.GetQuerier(r.db, tx).Exec(ctx, query,
		submission.ID,
		submission.TaskID,
		string(submission.Kind),
		submission.Code,
		submission.AnswerPayload,
		submission.ResultPayload,
		submission.Passed,
		submission.Score,
		submission.Attempt,
		submission.TimeSpentSeconds,
		submission.CreatedAt,
	)
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return ErrSubmissionExists
		}
		return err
	}
	return nil
}

func (r *SQLSubmissionRepository) CountByTask(ctx context.Context, tx db.Transaction, taskID string) (int64, error) {
	var count int64
	err := db.GetQuerier(r.db, tx).QueryRow(ctx, "SELECT COUNT(*) FROM submission WHERE task_id = ?", taskID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListByTask returns the newest submissions first.
func (r *SQLSubmissionRepository) ListByTask(ctx context.Context, taskID string, limit int) ([]*Submission, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	query := `
		SELECT id, task_id, kind, code, answer_payload, result_payload,
			passed, score, attempt, time_spent_seconds, created_at
		FROM submission
		WHERE task_id = ?
		ORDER BY seq DESC
		LIMIT ?`
	rows, err := r.db.Query(ctx, query, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*Submission, 0, limit)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLSubmissionRepository) StatsByTask(ctx context.Context, taskID string) (TaskStats, error) {
	stats := TaskStats{TaskID: taskID}
	query := `
		SELECT COUNT(*), COALESCE(SUM(passed), 0), COALESCE(MAX(score), 0)
		FROM submission
		WHERE task_id = ?`
	if err := r.db.QueryRow(ctx, query, taskID).Scan(&stats.Attempts, &stats.PassedCount, &stats.BestScore); err != nil {
		return TaskStats{}, err
	}
	if stats.Attempts == 0 {
		return stats, nil
	}
	latest, err := r.ListByTask(ctx, taskID, 1)
	if err != nil {
		return TaskStats{}, err
	}
	if len(latest) > 0 {
		created := latest[0].CreatedAt
		stats.LastSubmission = &created
	}
	return stats, nil
}

func scanSubmission(scanner db.Scanner) (*Submission, error) {
	var (
		submission Submission
		kind       string
	)
	err := scanner.Scan(
		&submission.ID,
		&submission.TaskID,
		&kind,
		&submission.Code,
		&submission.AnswerPayload,
		&submission.ResultPayload,
		&submission.Passed,
		&submission.Score,
		&submission.Attempt,
		&submission.TimeSpentSeconds,
		&submission.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	submission.Kind = model.Kind(kind)
	return &submission, nil
}

var _ SubmissionRepository = (*SQLSubmissionRepository)(nil)
