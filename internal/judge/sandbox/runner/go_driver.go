package runner

import (
	"context"
	"os"
	"strings"
	"time"

	"codedrill/internal/judge/sandbox/engine"
	"codedrill/internal/judge/sandbox/observer"
	"codedrill/internal/judge/sandbox/parser"
	"codedrill/internal/judge/sandbox/profile"
	"codedrill/internal/judge/sandbox/result"
	"codedrill/internal/judge/sandbox/workspace"
	"codedrill/pkg/utils/logger"

	"go.uber.org/zap"
)

const goModFile = "go.mod"

// GoDriver builds a single-file program and runs its test file with the JSON reporter.
type GoDriver struct {
	baseDriver
}

// NewGoDriver creates a build-and-test driver for a Go toolchain profile.
func NewGoDriver(lang profile.LanguageSpec, eng engine.Engine, metrics observer.MetricsRecorder) *GoDriver {
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	return &GoDriver{baseDriver{lang: lang.Normalized(), eng: eng, metrics: metrics}}
}

func (d *GoDriver) Kind() result.DriverKind {
	return result.KindBuildTest
}

// Compile initializes the module if needed and builds the source.
func (d *GoDriver) Compile(ctx context.Context, source string, ws *workspace.Workspace, timeout time.Duration) result.CompileResult {
	if res, ok := d.ensureModule(ctx, ws); !ok {
		d.metrics.ObserveCompile(ctx, d.lang.ID, string(res.Tag), res.TimeMs)
		return res
	}
	return d.compileWith(ctx, source, ws, timeout)
}

// RunTests writes the test file next to the source and runs the test command.
// The exit code decides Passed; the event tally is reported alongside it.
func (d *GoDriver) RunTests(ctx context.Context, source, testCode string, ws *workspace.Workspace, timeout time.Duration) result.TestRunResult {
	if strings.TrimSpace(testCode) == "" {
		return result.TestRunResult{Passed: true, Tag: result.TagOK}
	}
	if timeout <= 0 {
		timeout = d.lang.CompileTimeout
	}
	if res, ok := d.ensureModule(ctx, ws); !ok {
		return result.TestRunResult{ExitCode: -1, Stderr: strings.Join(res.Errors, "\n"), Tag: res.Tag}
	}
	for name, content := range map[string]string{d.lang.SourceFile: source, d.lang.TestFile: testCode} {
		if err := ws.WriteFile(name, content); err != nil {
			logger.Error(ctx, "write test workspace failed", zap.String("file", name), zap.Error(err))
			return result.TestRunResult{ExitCode: -1, Stderr: "judge failed to prepare the workspace", Tag: result.TagInternalError}
		}
	}

	ph := d.exec(ctx, d.lang.ID+"-test", d.lang.TestCmdTpl, ws, timeout)
	res := result.TestRunResult{
		ExitCode: ph.run.ExitCode,
		TimeMs:   ph.run.TimeMs,
		Stdout:   ph.run.Stdout,
		Stderr:   ph.run.Stderr,
		Tag:      ph.tag,
	}
	tally := parser.ParseTestEvents(ph.run.Stdout)
	res.Events = tally.Events
	res.PassedTests = tally.Passed
	res.FailedTests = tally.Failed

	if ph.tag != result.TagOK {
		res.Stderr = strings.TrimSpace(strings.Join(ph.errors, "\n") + "\n" + ph.run.Stderr)
		d.metrics.ObserveTests(ctx, d.lang.ID, string(res.Tag), res.PassedTests, res.FailedTests, res.TimeMs)
		return res
	}

	res.Passed = ph.run.ExitCode == 0
	if !res.Passed {
		res.Tag = result.TagTestFailure
	}
	if parser.IsDivergent(res.Passed, tally) {
		res.Divergent = true
		logger.Warn(ctx, "test exit code disagrees with event tally",
			zap.Int("exit_code", res.ExitCode),
			zap.Int("passed_events", tally.Passed),
			zap.Int("failed_events", tally.Failed))
	}
	d.metrics.ObserveTests(ctx, d.lang.ID, string(res.Tag), res.PassedTests, res.FailedTests, res.TimeMs)
	return res
}

// ensureModule runs the setup template once per workspace.
func (d *GoDriver) ensureModule(ctx context.Context, ws *workspace.Workspace) (result.CompileResult, bool) {
	if d.lang.SetupCmdTpl == "" {
		return result.CompileResult{}, true
	}
	if _, err := os.Stat(ws.Path(goModFile)); err == nil {
		return result.CompileResult{}, true
	}
	ph := d.exec(ctx, d.lang.ID+"-setup", d.lang.SetupCmdTpl, ws, d.lang.SetupTimeout)
	if ph.tag == result.TagOK && ph.run.ExitCode == 0 {
		return result.CompileResult{}, true
	}
	res := result.CompileResult{
		ExitCode: ph.run.ExitCode,
		TimeMs:   ph.run.TimeMs,
		Stdout:   ph.run.Stdout,
		Tag:      ph.tag,
		Errors:   append(ph.errors, parser.DiagnosticLines(ph.run.Stderr)...),
	}
	if res.Tag == result.TagOK {
		// The learner has no influence on module setup.
		res.Tag = result.TagInternalError
		logger.Error(ctx, "module setup failed", zap.Int("exit_code", ph.run.ExitCode), zap.String("stderr", ph.run.Stderr))
	}
	return res, false
}

var _ Driver = (*GoDriver)(nil)
