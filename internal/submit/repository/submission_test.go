package repository_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"codedrill/internal/common/db"
	"codedrill/internal/submit/repository"
	"codedrill/internal/task/model"
)

func newTestRepo(t *testing.T) (*repository.SQLSubmissionRepository, *db.SQLDatabase) {
	t.Helper()
	database, err := db.NewSQLite(db.SQLiteConfig{Path: filepath.Join(t.TempDir(), "submissions.db")})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := repository.EnsureSchema(context.Background(), database); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}
	// EnsureSchema is idempotent.
	if err := repository.EnsureSchema(context.Background(), database); err != nil {
		t.Fatalf("second ensure schema failed: %v", err)
	}
	return repository.NewSubmissionRepository(database), database
}

func TestCreateAssignsIDAndTime(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	submission := &repository.Submission{
		TaskID:        "w1",
		Kind:          model.KindWrite,
		Code:          "package main",
		ResultPayload: `{"tag":"ok"}`,
		Passed:        true,
		Score:         100,
		Attempt:       1,
	}
	if err := repo.Create(ctx, nil, submission); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if submission.ID == "" {
		t.Fatalf("expected generated id")
	}
	if submission.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}

	items, err := repo.ListByTask(ctx, "w1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	got := items[0]
	if got.ID != submission.ID || got.Kind != model.KindWrite || !got.Passed || got.Score != 100 || got.Attempt != 1 {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.ResultPayload != `{"tag":"ok"}` {
		t.Fatalf("unexpected payload: %q", got.ResultPayload)
	}

	if err := repo.Create(ctx, nil, nil); err == nil {
		t.Fatalf("expected error for nil submission")
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	first := &repository.Submission{ID: "dup", TaskID: "w1", Kind: model.KindWrite, Attempt: 1}
	if err := repo.Create(ctx, nil, first); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second := &repository.Submission{ID: "dup", TaskID: "w1", Kind: model.KindWrite, Attempt: 2}
	if err := repo.Create(ctx, nil, second); !errors.Is(err, repository.ErrSubmissionExists) {
		t.Fatalf("expected ErrSubmissionExists, got %v", err)
	}
}

func TestCreateInsideTransaction(t *testing.T) {
	ctx := context.Background()
	repo, database := newTestRepo(t)

	rollback := errors.New("rollback")
	err := database.Transaction(ctx, func(tx db.Transaction) error {
		count, err := repo.CountByTask(ctx, tx, "w1")
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, tx, &repository.Submission{TaskID: "w1", Kind: model.KindWrite, Attempt: int(count) + 1}); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	count, err := repo.CountByTask(ctx, nil, "w1")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rolled back insert, got count %d", count)
	}
}

func TestListByTaskOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	for i := 1; i <= 5; i++ {
		if err := repo.Create(ctx, nil, &repository.Submission{
			ID:      fmt.Sprintf("w-%d", i),
			TaskID:  "w1",
			Kind:    model.KindWrite,
			Attempt: i,
		}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if err := repo.Create(ctx, nil, &repository.Submission{TaskID: "other", Kind: model.KindReview, Attempt: 1}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	items, err := repo.ListByTask(ctx, "w1", 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []string{"w-5", "w-4", "w-3"} {
		if items[i].ID != want {
			t.Fatalf("item %d: expected %s, got %s", i, want, items[i].ID)
		}
	}

	all, err := repo.ListByTask(ctx, "w1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected default limit to return all 5, got %d", len(all))
	}

	none, err := repo.ListByTask(ctx, "missing", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty list, got %d", len(none))
	}
}

func TestStatsByTask(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	empty, err := repo.StatsByTask(ctx, "r1")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if empty.Attempts != 0 || empty.LastSubmission != nil || empty.TaskID != "r1" {
		t.Fatalf("unexpected empty stats: %+v", empty)
	}

	rows := []repository.Submission{
		{TaskID: "r1", Kind: model.KindReview, Score: 33.3, Attempt: 1},
		{TaskID: "r1", Kind: model.KindReview, Score: 66.7, Passed: true, Attempt: 2},
		{TaskID: "r1", Kind: model.KindReview, Score: 100, Passed: true, Attempt: 3},
	}
	for i := range rows {
		if err := repo.Create(ctx, nil, &rows[i]); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	stats, err := repo.StatsByTask(ctx, "r1")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Attempts != 3 || stats.PassedCount != 2 || stats.BestScore != 100 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.LastSubmission == nil {
		t.Fatalf("expected last submission time")
	}
}
