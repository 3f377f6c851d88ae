// Package engine is the single boundary where the judge touches host processes.
package engine

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"codedrill/internal/judge/sandbox/result"
	"codedrill/internal/judge/sandbox/spec"
	appErr "codedrill/pkg/errors"
	"codedrill/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultStdoutStderrMaxBytes int64 = 1 << 20
	defaultTimeout                    = 30 * time.Second
	DefaultWaitDelay                  = 2 * time.Second
)

// Engine executes a RunSpec on the host under a wall-clock timeout.
// Timeouts and non-zero exits are reported in the RunResult; the returned
// error is reserved for failures to launch the command at all.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}

// Config controls engine behavior.
type Config struct {
	StdoutStderrMaxBytes int64         `yaml:"stdoutStderrMaxBytes"`
	DefaultTimeout       time.Duration `yaml:"defaultTimeout"`
	// WaitDelay bounds how long output pipes are drained after the process exits.
	WaitDelay time.Duration `yaml:"waitDelay"`
}

type processEngine struct {
	cfg Config
}

// NewEngine creates a host process engine.
func NewEngine(cfg Config) Engine {
	if cfg.StdoutStderrMaxBytes <= 0 {
		cfg.StdoutStderrMaxBytes = defaultStdoutStderrMaxBytes
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultTimeout
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = DefaultWaitDelay
	}
	return &processEngine{cfg: cfg}
}

func (e *processEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{ExitCode: -1}, err
	}
	timeout := runSpec.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}

	path, err := exec.LookPath(runSpec.Cmd[0])
	if err != nil {
		return result.RunResult{ExitCode: -1}, appErr.Wrapf(err, appErr.ToolchainUnavailable, "executable %q not found", runSpec.Cmd[0]).
			WithDetail("executable", runSpec.Cmd[0])
	}

	cmd := exec.Command(path, runSpec.Cmd[1:]...)
	cmd.Dir = runSpec.WorkDir
	cmd.Env = append(os.Environ(), runSpec.Env...)
	stdout := newCappedBuffer(e.cfg.StdoutStderrMaxBytes)
	stderr := newCappedBuffer(e.cfg.StdoutStderrMaxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.cfg.WaitDelay
	configureProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return result.RunResult{ExitCode: -1}, appErr.Wrapf(err, appErr.ToolchainUnavailable, "start %q failed", runSpec.Cmd[0]).
				WithDetail("executable", runSpec.Cmd[0])
		}
		return result.RunResult{ExitCode: -1}, appErr.Wrapf(err, appErr.JudgeSystemError, "start %q failed", runSpec.Cmd[0])
	}

	var timedOut, canceled atomic.Bool
	done := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			timedOut.Store(true)
			killProcessGroup(cmd.Process)
		case <-ctx.Done():
			canceled.Store(true)
			killProcessGroup(cmd.Process)
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	<-watcherDone
	// Background children may outlive the leader; the group dies with the call.
	killProcessGroup(cmd.Process)

	runResult := result.RunResult{
		ExitCode: exitCodeFromErr(waitErr, cmd.ProcessState),
		TimeMs:   time.Since(start).Milliseconds(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut.Load(),
		Canceled: canceled.Load() && !timedOut.Load(),
	}
	if runResult.TimedOut || runResult.Canceled {
		runResult.ExitCode = -1
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !runResult.TimedOut && !runResult.Canceled {
		logger.Warn(ctx, "process wait returned unexpected error",
			zap.String("label", runSpec.Label),
			zap.Error(waitErr),
		)
	}
	if stdout.Truncated() || stderr.Truncated() {
		logger.Warn(ctx, "process output truncated",
			zap.String("label", runSpec.Label),
			zap.Int64("maxBytes", e.cfg.StdoutStderrMaxBytes),
		)
	}
	logger.Debug(ctx, "process finished",
		zap.String("label", runSpec.Label),
		zap.Strings("cmd", runSpec.Cmd),
		zap.Int("exitCode", runResult.ExitCode),
		zap.Int64("timeMs", runResult.TimeMs),
		zap.Bool("timedOut", runResult.TimedOut),
	)
	return runResult, nil
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if len(runSpec.Cmd) == 0 || runSpec.Cmd[0] == "" {
		return appErr.ValidationError("cmd", "required")
	}
	if runSpec.WorkDir == "" {
		return appErr.ValidationError("work_dir", "required")
	}
	return nil
}
