package runner

import (
	"context"
	"time"

	"codedrill/internal/judge/sandbox/engine"
	"codedrill/internal/judge/sandbox/observer"
	"codedrill/internal/judge/sandbox/profile"
	"codedrill/internal/judge/sandbox/result"
	"codedrill/internal/judge/sandbox/workspace"
)

// SolidityDriver only checks that a contract compiles.
// Compiler stdout (ABI and bytecode) is kept raw in CompileResult.Stdout.
type SolidityDriver struct {
	baseDriver
}

// NewSolidityDriver creates a compile-only driver.
func NewSolidityDriver(lang profile.LanguageSpec, eng engine.Engine, metrics observer.MetricsRecorder) *SolidityDriver {
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	return &SolidityDriver{baseDriver{lang: lang.Normalized(), eng: eng, metrics: metrics}}
}

func (d *SolidityDriver) Kind() result.DriverKind {
	return result.KindCompileOnly
}

func (d *SolidityDriver) Compile(ctx context.Context, source string, ws *workspace.Workspace, timeout time.Duration) result.CompileResult {
	return d.compileWith(ctx, source, ws, timeout)
}

// RunTests has no test phase to run; it is reported as skipped and passing.
func (d *SolidityDriver) RunTests(context.Context, string, string, *workspace.Workspace, time.Duration) result.TestRunResult {
	return result.TestRunResult{Passed: true, Tag: result.TagOK, Stderr: "test phase not supported for compile-only languages"}
}

var _ Driver = (*SolidityDriver)(nil)
