package sandbox

import (
	"context"
	"strings"

	"codedrill/internal/judge/sandbox/parser"
	"codedrill/internal/judge/sandbox/result"
	"codedrill/internal/judge/sandbox/runner"
	"codedrill/internal/judge/sandbox/workspace"
	appErr "codedrill/pkg/errors"
	"codedrill/pkg/utils/logger"

	"go.uber.org/zap"
)

// DriverSource resolves a language id to its driver.
type DriverSource interface {
	Get(languageID string) (runner.Driver, error)
}

// Verifier runs one submission through a driver inside a private workspace.
type Verifier struct {
	drivers    DriverSource
	workspaces workspace.Provider
}

// NewVerifier creates a verifier.
func NewVerifier(drivers DriverSource, workspaces workspace.Provider) *Verifier {
	return &Verifier{drivers: drivers, workspaces: workspaces}
}

// Verify compiles the source, runs tests when TestCode is present and returns
// the normalized outcome. Learner defects are reported in the Outcome; the
// error is reserved for requests that could not be executed at all.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (result.Outcome, error) {
	if strings.TrimSpace(req.Source) == "" {
		return result.Outcome{}, appErr.ValidationError("source", "required")
	}
	driver, err := v.drivers.Get(req.LanguageID)
	if err != nil {
		return result.Outcome{}, err
	}

	ws, err := v.workspaces.Acquire(ctx)
	if err != nil {
		return result.Outcome{}, err
	}
	defer func() {
		if relErr := v.workspaces.Release(context.WithoutCancel(ctx), ws); relErr != nil {
			logger.Warn(ctx, "workspace release failed", zap.String("workspace", ws.Dir), zap.Error(relErr))
		}
	}()

	compileRes := driver.Compile(ctx, req.Source, ws, req.Timeout)
	var testsRes *result.TestRunResult
	if compileRes.Compiled && driver.Kind() == result.KindBuildTest && strings.TrimSpace(req.TestCode) != "" {
		tr := driver.RunTests(ctx, req.Source, req.TestCode, ws, req.Timeout)
		testsRes = &tr
	}

	out := parser.Normalize(driver.Kind(), compileRes, testsRes)
	logger.Info(ctx, "verification finished",
		zap.String("language", driver.Language().ID),
		zap.String("tag", string(out.Tag)),
		zap.Bool("compiled", out.Compiled),
		zap.Bool("tests_run", out.TestsRun),
		zap.Bool("passed", out.Passed()),
		zap.Int64("time_ms", out.TimeMs))
	return out, nil
}

var _ Service = (*Verifier)(nil)
