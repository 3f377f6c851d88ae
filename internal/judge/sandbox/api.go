// Package sandbox defines the public call interface used by the grader.
package sandbox

import (
	"context"
	"time"

	"codedrill/internal/judge/sandbox/result"
)

// Service is the high-level sandbox entrypoint used by the grading layer.
type Service interface {
	Verify(ctx context.Context, req VerifyRequest) (result.Outcome, error)
}

// VerifyRequest contains everything needed to compile and test one submission.
type VerifyRequest struct {
	SubmissionID string
	LanguageID   string
	Source       string
	// TestCode is optional; empty skips the test phase.
	TestCode string
	// Timeout bounds each phase. Zero uses the language default.
	Timeout time.Duration
}
