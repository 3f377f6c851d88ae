// Package service grades submissions against tasks and records each attempt.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"codedrill/internal/common/cache"
	"codedrill/internal/judge/sandbox"
	"codedrill/internal/judge/sandbox/result"
	"codedrill/internal/submit/repository"
	"codedrill/internal/task/model"
	taskRepo "codedrill/internal/task/repository"
	appErr "codedrill/pkg/errors"
	"codedrill/pkg/utils/contextkey"
	"codedrill/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxCodeBytes = 64 << 10
	DefaultSlotWait     = 60 * time.Second
)

// TimeoutConfig holds timeout settings for external calls.
type TimeoutConfig struct {
	DB      time.Duration `yaml:"db"`
	MQ      time.Duration `yaml:"mq"`
	Storage time.Duration `yaml:"storage"`
	// Judge bounds each verification phase; zero uses the language default.
	Judge time.Duration `yaml:"judge"`
	// SlotWait bounds the wait for a free worker slot.
	SlotWait time.Duration `yaml:"slotWait"`
}

// SubmitBudget is the longest a write submission can take end to end when
// verification itself is bounded by verify.
func (c TimeoutConfig) SubmitBudget(verify time.Duration) time.Duration {
	slotWait := c.SlotWait
	if slotWait <= 0 {
		slotWait = DefaultSlotWait
	}
	// task lookup, slot, verification, lock queue, count+insert, then the sinks
	return c.DB + slotWait + verify + attemptLockWait + c.DB + c.MQ + c.Storage
}

// Config holds submit service dependencies and settings.
type Config struct {
	Tasks       taskRepo.TaskRepository
	Submissions repository.SubmissionRepository
	Verifier    sandbox.Service
	// Cache is optional; it extends the attempt lock across processes.
	Cache cache.Cache
	// Events and Archiver are optional best-effort sinks.
	Events   EventPublisher
	Archiver Archiver

	MaxCodeBytes   int
	WorkerPoolSize int
	Timeouts       TimeoutConfig
}

// SubmitService validates, grades and persists submissions.
type SubmitService struct {
	tasks       taskRepo.TaskRepository
	submissions repository.SubmissionRepository
	verifier    sandbox.Service
	events      EventPublisher
	archiver    Archiver
	locker      *taskLocker

	maxCodeBytes int
	timeouts     TimeoutConfig
	slotWait     time.Duration
	sem          chan struct{}
}

// SubmitInput describes a submission request.
type SubmitInput struct {
	TaskID           string
	UserCode         string
	ReviewAnswers    []string
	FoundIssues      []string
	ImprovedCode     string
	TimeSpentSeconds int
}

// CompilationReport is the learner-facing compile phase summary.
type CompilationReport struct {
	Compiled bool     `json:"compiled"`
	Errors   []string `json:"errors"`
	Output   string   `json:"output"`
	Status   string   `json:"status"`
	TimeMs   int64    `json:"time_ms"`
}

// TestReport is the learner-facing test phase summary.
type TestReport struct {
	Passed      bool   `json:"passed"`
	PassedTests int    `json:"passed_tests"`
	FailedTests int    `json:"failed_tests"`
	Output      string `json:"output"`
	Divergent   bool   `json:"divergent,omitempty"`
}

// WriteResult is the response for a write task.
type WriteResult struct {
	Success         bool              `json:"success"`
	SubmissionID    string            `json:"submission_id"`
	Compilation     CompilationReport `json:"compilation"`
	TestResults     *TestReport       `json:"test_results,omitempty"`
	Attempts        int               `json:"attempts"`
	Hints           []string          `json:"hints,omitempty"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
}

// ReviewResult is the response for a review task.
type ReviewResult struct {
	Success        bool     `json:"success"`
	SubmissionID   string   `json:"submission_id"`
	Score          float64  `json:"score"`
	MatchedIssues  []string `json:"matched_issues"`
	ExpectedIssues []string `json:"expected_issues"`
	FoundIssues    []string `json:"found_issues"`
	Feedback       string   `json:"feedback"`
	Attempts       int      `json:"attempts"`
}

// SubmitResult carries exactly one of Write or Review, matching Kind.
type SubmitResult struct {
	Kind   model.Kind
	Write  *WriteResult
	Review *ReviewResult
}

// Passed reports the verdict regardless of task kind.
func (r SubmitResult) Passed() bool {
	if r.Write != nil {
		return r.Write.Success
	}
	return r.Review != nil && r.Review.Success
}

type reviewAnswer struct {
	ReviewAnswers []string `json:"review_answers"`
	FoundIssues   []string `json:"found_issues"`
}

type reviewReport struct {
	Score          float64  `json:"score"`
	MatchedIssues  []string `json:"matched_issues"`
	ExpectedIssues []string `json:"expected_issues"`
	Feedback       string   `json:"feedback"`
}

// NewSubmitService creates a new submit service.
func NewSubmitService(cfg Config) (*SubmitService, error) {
	if cfg.Tasks == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if cfg.Submissions == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	slotWait := cfg.Timeouts.SlotWait
	if slotWait <= 0 {
		slotWait = DefaultSlotWait
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	return &SubmitService{
		tasks:        cfg.Tasks,
		submissions:  cfg.Submissions,
		verifier:     cfg.Verifier,
		events:       cfg.Events,
		archiver:     cfg.Archiver,
		locker:       newTaskLocker(cfg.Cache),
		maxCodeBytes: cfg.MaxCodeBytes,
		timeouts:     cfg.Timeouts,
		slotWait:     slotWait,
		sem:          make(chan struct{}, poolSize),
	}, nil
}

// Submit grades one submission and persists exactly one record for it.
func (s *SubmitService) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	task, err := s.getTask(ctx, input.TaskID)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := s.validateInput(task, input); err != nil {
		return SubmitResult{}, err
	}

	submissionID := uuid.NewString()
	ctx = context.WithValue(ctx, contextkey.SubmissionID, submissionID)

	switch task.Kind {
	case model.KindWrite:
		res, err := s.gradeWrite(ctx, task, input, submissionID)
		return SubmitResult{Kind: model.KindWrite, Write: res}, err
	case model.KindReview:
		res, err := s.gradeReview(ctx, task, input, submissionID)
		return SubmitResult{Kind: model.KindReview, Review: res}, err
	default:
		return SubmitResult{}, appErr.New(appErr.TaskInvalid).WithMessagef("task %s has unknown kind %q", task.ID, task.Kind)
	}
}

// ListByTask returns recent submissions for a task, newest first.
func (s *SubmitService) ListByTask(ctx context.Context, taskID string, limit int) ([]*repository.Submission, error) {
	if _, err := s.getTask(ctx, taskID); err != nil {
		return nil, err
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	items, err := s.submissions.ListByTask(ctxDB.ctx, taskID, limit)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list submissions failed")
	}
	return items, nil
}

// StatsByTask returns aggregate statistics for a task.
func (s *SubmitService) StatsByTask(ctx context.Context, taskID string) (repository.TaskStats, error) {
	if _, err := s.getTask(ctx, taskID); err != nil {
		return repository.TaskStats{}, err
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	stats, err := s.submissions.StatsByTask(ctxDB.ctx, taskID)
	if err != nil {
		return repository.TaskStats{}, appErr.Wrapf(err, appErr.DatabaseError, "task stats failed")
	}
	return stats, nil
}

func (s *SubmitService) gradeWrite(ctx context.Context, task *model.Task, input SubmitInput, submissionID string) (*WriteResult, error) {
	if err := s.acquireSlot(ctx); err != nil {
		return nil, err
	}
	req := sandbox.VerifyRequest{
		SubmissionID: submissionID,
		LanguageID:   task.Language,
		Source:       input.UserCode,
		Timeout:      s.timeouts.Judge,
	}
	if task.HasTests() {
		req.TestCode = task.TestCode
	}
	outcome, err := s.verifier.Verify(ctx, req)
	s.releaseSlot()
	if err != nil {
		return nil, err
	}
	if err := infrastructureError(ctx, outcome); err != nil {
		return nil, err
	}

	passed := outcome.Passed()
	stored := outcome
	stored.Events = nil
	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SubmissionCreateFailed, "encode outcome failed")
	}
	submission := &repository.Submission{
		ID:               submissionID,
		TaskID:           task.ID,
		Kind:             model.KindWrite,
		Code:             input.UserCode,
		ResultPayload:    string(payload),
		Passed:           passed,
		TimeSpentSeconds: input.TimeSpentSeconds,
	}
	if err := s.persist(ctx, submission); err != nil {
		return nil, err
	}

	res := &WriteResult{
		Success:      passed,
		SubmissionID: submission.ID,
		Compilation: CompilationReport{
			Compiled: outcome.Compiled,
			Errors:   outcome.Errors,
			Output:   outcome.Output,
			Status:   string(outcome.Tag),
			TimeMs:   outcome.TimeMs,
		},
		Attempts:        submission.Attempt,
		Hints:           hintsFor(task.Hints, submission.Attempt, passed),
		ExecutionTimeMs: outcome.TimeMs,
	}
	if outcome.TestsRun {
		res.TestResults = &TestReport{
			Passed:      outcome.TestsPassed,
			PassedTests: outcome.PassedTests,
			FailedTests: outcome.FailedTests,
			Output:      outcome.TestOutput,
			Divergent:   outcome.Divergent,
		}
	}
	logger.Info(ctx, "write submission graded",
		zap.String("task_id", task.ID),
		zap.Bool("passed", passed),
		zap.String("tag", string(outcome.Tag)),
		zap.Int("attempt", submission.Attempt))
	return res, nil
}

func (s *SubmitService) gradeReview(ctx context.Context, task *model.Task, input SubmitInput, submissionID string) (*ReviewResult, error) {
	matched := matchIssues(task.ExpectedIssues, input.FoundIssues)
	ratio := reviewRatio(task.ExpectedIssues, matched)
	passed := ratio >= reviewPassRatio
	report := reviewReport{
		Score:          scorePercent(ratio),
		MatchedIssues:  matched,
		ExpectedIssues: nonNil(task.ExpectedIssues),
		Feedback:       reviewFeedback(task.ExpectedIssues, matched, ratio),
	}

	answerPayload, err := json.Marshal(reviewAnswer{ReviewAnswers: nonNil(input.ReviewAnswers), FoundIssues: nonNil(input.FoundIssues)})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SubmissionCreateFailed, "encode review answers failed")
	}
	resultPayload, err := json.Marshal(report)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SubmissionCreateFailed, "encode review report failed")
	}
	submission := &repository.Submission{
		ID:               submissionID,
		TaskID:           task.ID,
		Kind:             model.KindReview,
		Code:             input.ImprovedCode,
		AnswerPayload:    string(answerPayload),
		ResultPayload:    string(resultPayload),
		Passed:           passed,
		Score:            report.Score,
		TimeSpentSeconds: input.TimeSpentSeconds,
	}
	if err := s.persist(ctx, submission); err != nil {
		return nil, err
	}

	logger.Info(ctx, "review submission graded",
		zap.String("task_id", task.ID),
		zap.Bool("passed", passed),
		zap.Float64("score", report.Score),
		zap.Int("attempt", submission.Attempt))
	return &ReviewResult{
		Success:        passed,
		SubmissionID:   submission.ID,
		Score:          report.Score,
		MatchedIssues:  matched,
		ExpectedIssues: report.ExpectedIssues,
		FoundIssues:    nonNil(input.FoundIssues),
		Feedback:       report.Feedback,
		Attempts:       submission.Attempt,
	}, nil
}

// persist assigns the attempt ordinal and inserts the row under the task lock,
// then runs the best-effort sinks.
func (s *SubmitService) persist(ctx context.Context, submission *repository.Submission) error {
	ctxLock := withTimeout(ctx, attemptLockWait)
	unlock, err := s.locker.Lock(ctxLock.ctx, submission.TaskID)
	if err != nil {
		ctxLock.cancel()
		return err
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	prior, err := s.submissions.CountByTask(ctxDB.ctx, nil, submission.TaskID)
	if err == nil {
		submission.Attempt = int(prior) + 1
		err = s.submissions.Create(ctxDB.ctx, nil, submission)
	}
	ctxDB.cancel()
	unlock()
	ctxLock.cancel()
	if err != nil {
		return appErr.Wrapf(err, appErr.SubmissionCreateFailed, "create submission failed")
	}

	s.publishGraded(ctx, submission)
	s.archive(ctx, submission)
	return nil
}

func (s *SubmitService) publishGraded(ctx context.Context, submission *repository.Submission) {
	if s.events == nil {
		return
	}
	ctxMQ := withTimeout(ctx, s.timeouts.MQ)
	defer ctxMQ.cancel()
	err := s.events.PublishGraded(ctxMQ.ctx, GradedEvent{
		SubmissionID:     submission.ID,
		TaskID:           submission.TaskID,
		Kind:             submission.Kind,
		Passed:           submission.Passed,
		Score:            submission.Score,
		Attempt:          submission.Attempt,
		TimeSpentSeconds: submission.TimeSpentSeconds,
		GradedAt:         submission.CreatedAt,
	})
	if err != nil {
		logger.Warn(ctx, "publish graded event failed", zap.Error(err))
	}
}

func (s *SubmitService) archive(ctx context.Context, submission *repository.Submission) {
	if s.archiver == nil {
		return
	}
	ctxStorage := withTimeout(ctx, s.timeouts.Storage)
	defer ctxStorage.cancel()
	key, err := s.archiver.Archive(ctxStorage.ctx, submission)
	if err != nil {
		logger.Warn(ctx, "archive submission failed", zap.Error(err))
		return
	}
	logger.Debug(ctx, "submission archived", zap.String("object_key", key))
}

func (s *SubmitService) getTask(ctx context.Context, taskID string) (*model.Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, appErr.ValidationError("task_id", "required")
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	task, err := s.tasks.GetByID(ctxDB.ctx, taskID)
	if err != nil {
		if errors.Is(err, taskRepo.ErrTaskNotFound) {
			return nil, appErr.Newf(appErr.TaskNotFound, "task %s not found", taskID)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get task failed")
	}
	return task, nil
}

func (s *SubmitService) validateInput(task *model.Task, input SubmitInput) error {
	if input.TimeSpentSeconds < 0 {
		return appErr.ValidationError("time_spent_seconds", "must not be negative")
	}
	switch task.Kind {
	case model.KindWrite:
		if strings.TrimSpace(input.UserCode) == "" {
			return appErr.ValidationError("user_code", "required").WithMessage("missing user_code")
		}
		if len(input.UserCode) > s.maxCodeBytes {
			return appErr.New(appErr.CodeTooLarge).WithMessagef("user_code exceeds %d bytes", s.maxCodeBytes)
		}
	case model.KindReview:
		if !hasAny(input.ReviewAnswers) && !hasAny(input.FoundIssues) {
			return appErr.ValidationError("found_issues", "required").WithMessage("missing review_answers or found_issues")
		}
		if len(input.ImprovedCode) > s.maxCodeBytes {
			return appErr.New(appErr.CodeTooLarge).WithMessagef("improved_code exceeds %d bytes", s.maxCodeBytes)
		}
	}
	return nil
}

// infrastructureError keeps host faults out of the learner's history.
func infrastructureError(ctx context.Context, outcome result.Outcome) error {
	if !outcome.Tag.IsInfrastructure() {
		return nil
	}
	detail := strings.Join(outcome.Errors, "; ")
	logger.Error(ctx, "verification failed on the judge host", zap.String("tag", string(outcome.Tag)), zap.String("detail", detail))
	switch outcome.Tag {
	case result.TagToolchainUnavailable:
		return appErr.New(appErr.ToolchainUnavailable).WithMessage(detail)
	case result.TagCanceled:
		return appErr.New(appErr.JudgeSystemError).WithMessage("verification canceled")
	default:
		return appErr.New(appErr.JudgeSystemError).WithDetail("tag", string(outcome.Tag))
	}
}

func (s *SubmitService) acquireSlot(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return appErr.Wrapf(ctx.Err(), appErr.Timeout, "wait for judge slot canceled")
	case <-time.After(s.slotWait):
		return appErr.New(appErr.ServiceUnavailable).WithMessage("judge worker pool is full")
	}
}

func (s *SubmitService) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

func hasAny(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

type timeoutCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func withTimeout(ctx context.Context, timeout time.Duration) timeoutCtx {
	if timeout <= 0 {
		return timeoutCtx{ctx: ctx, cancel: func() {}}
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	return timeoutCtx{ctx: ctxTimeout, cancel: cancel}
}
