// Package runner implements the per-language drivers that compile and test submissions.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codedrill/internal/judge/sandbox/engine"
	"codedrill/internal/judge/sandbox/observer"
	"codedrill/internal/judge/sandbox/parser"
	"codedrill/internal/judge/sandbox/profile"
	"codedrill/internal/judge/sandbox/result"
	"codedrill/internal/judge/sandbox/spec"
	"codedrill/internal/judge/sandbox/workspace"
	appErr "codedrill/pkg/errors"
	"codedrill/pkg/utils/logger"

	"github.com/google/shlex"
	"go.uber.org/zap"
)

// Driver compiles and tests source code for one language.
// Neither method returns an error: every failure is encoded in the result Tag.
type Driver interface {
	Language() profile.LanguageSpec
	Kind() result.DriverKind
	Compile(ctx context.Context, source string, ws *workspace.Workspace, timeout time.Duration) result.CompileResult
	RunTests(ctx context.Context, source, testCode string, ws *workspace.Workspace, timeout time.Duration) result.TestRunResult
}

// baseDriver holds the process plumbing shared by every driver.
type baseDriver struct {
	lang    profile.LanguageSpec
	eng     engine.Engine
	metrics observer.MetricsRecorder
}

func (b *baseDriver) Language() profile.LanguageSpec {
	return b.lang
}

// phase is the raw result of one external command with its failure classification.
type phase struct {
	run    result.RunResult
	tag    result.Tag
	errors []string
}

func (b *baseDriver) exec(ctx context.Context, label, tpl string, ws *workspace.Workspace, timeout time.Duration) phase {
	cmd, err := buildCommand(tpl, b.lang)
	if err != nil {
		logger.Error(ctx, "build driver command failed", zap.String("language", b.lang.ID), zap.String("label", label), zap.Error(err))
		return phase{run: result.RunResult{ExitCode: -1}, tag: result.TagInternalError, errors: []string{"judge configuration error"}}
	}

	runRes, err := b.eng.Run(ctx, spec.RunSpec{
		Cmd:     cmd,
		WorkDir: ws.Dir,
		Env:     b.lang.Env,
		Timeout: timeout,
		Label:   label,
	})
	if err != nil {
		if appErr.Is(err, appErr.ToolchainUnavailable) {
			logger.Error(ctx, "toolchain unavailable", zap.String("language", b.lang.ID), zap.String("executable", cmd[0]), zap.Error(err))
			return phase{
				run:    runRes,
				tag:    result.TagToolchainUnavailable,
				errors: []string{fmt.Sprintf("%s toolchain not found: make sure %q is installed and in PATH", b.lang.Name, cmd[0])},
			}
		}
		logger.Error(ctx, "driver command failed to start", zap.String("language", b.lang.ID), zap.String("label", label), zap.Error(err))
		return phase{run: runRes, tag: result.TagInternalError, errors: []string{"judge failed to start the toolchain"}}
	}

	switch {
	case runRes.TimedOut:
		return phase{run: runRes, tag: result.TagTimeout, errors: []string{fmt.Sprintf("%s timed out after %s", label, timeout)}}
	case runRes.Canceled:
		return phase{run: runRes, tag: result.TagCanceled, errors: []string{fmt.Sprintf("%s canceled", label)}}
	}
	return phase{run: runRes, tag: result.TagOK}
}

// compileWith writes the source and runs the compile template.
// A zero exit code means compiled, whatever the streams contain.
func (b *baseDriver) compileWith(ctx context.Context, source string, ws *workspace.Workspace, timeout time.Duration) result.CompileResult {
	if timeout <= 0 {
		timeout = b.lang.CompileTimeout
	}
	if err := ws.WriteFile(b.lang.SourceFile, source); err != nil {
		logger.Error(ctx, "write source failed", zap.String("language", b.lang.ID), zap.Error(err))
		return result.CompileResult{ExitCode: -1, Errors: []string{"judge failed to prepare the workspace"}, Tag: result.TagInternalError}
	}

	ph := b.exec(ctx, b.lang.ID+"-compile", b.lang.CompileCmdTpl, ws, timeout)
	res := result.CompileResult{
		ExitCode: ph.run.ExitCode,
		TimeMs:   ph.run.TimeMs,
		Stdout:   ph.run.Stdout,
		Tag:      ph.tag,
	}
	switch {
	case ph.tag != result.TagOK:
		res.Errors = append(ph.errors, parser.DiagnosticLines(ph.run.Stderr)...)
	case ph.run.ExitCode == 0:
		res.Compiled = true
		res.Errors = []string{}
	default:
		res.Tag = result.TagCompileError
		res.Errors = parser.DiagnosticLines(ph.run.Stderr)
		if len(res.Errors) == 0 {
			res.Errors = parser.DiagnosticLines(ph.run.Stdout)
		}
		if len(res.Errors) == 0 {
			res.Errors = []string{fmt.Sprintf("compiler exited with code %d", ph.run.ExitCode)}
		}
	}
	b.metrics.ObserveCompile(ctx, b.lang.ID, string(res.Tag), res.TimeMs)
	return res
}

// buildCommand expands a command template and splits it into argv.
// Placeholders expand to names relative to the workspace, which is the working directory.
func buildCommand(tpl string, lang profile.LanguageSpec) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	expanded := strings.NewReplacer(
		"{src}", lang.SourceFile,
		"{test}", lang.TestFile,
		"{bin}", lang.BinaryFile,
		"{module}", lang.ModuleName,
	).Replace(tpl)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return fields, nil
}

// VersionCommand returns the argv used to probe a language toolchain.
func VersionCommand(lang profile.LanguageSpec) ([]string, error) {
	return buildCommand(lang.VersionCmd, lang)
}
