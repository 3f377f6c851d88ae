// Package prober reports which language toolchains are reachable on the host.
package prober

import (
	"context"
	"os"
	"sync"
	"time"

	"codedrill/internal/judge/sandbox/engine"
	"codedrill/internal/judge/sandbox/profile"
	"codedrill/internal/judge/sandbox/runner"
	"codedrill/internal/judge/sandbox/spec"
	"codedrill/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Prober runs each language's version command and records whether it succeeds.
type Prober struct {
	eng     engine.Engine
	langs   []profile.LanguageSpec
	workDir string
	timeout time.Duration
}

// New creates a prober. Version commands run in workDir, or the OS temp dir when empty.
func New(eng engine.Engine, langs []profile.LanguageSpec, workDir string, timeout time.Duration) *Prober {
	if workDir == "" {
		workDir = os.TempDir()
	}
	if timeout <= 0 {
		timeout = profile.DefaultProbeTimeout
	}
	return &Prober{eng: eng, langs: langs, workDir: workDir, timeout: timeout}
}

// Probe checks all languages concurrently and returns id -> reachable.
// A probe failure only marks that language unreachable.
func (p *Prober) Probe(ctx context.Context) map[string]bool {
	status := make(map[string]bool, len(p.langs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, lang := range p.langs {
		lang := lang.Normalized()
		g.Go(func() error {
			ok := p.probeOne(gctx, lang)
			mu.Lock()
			status[lang.ID] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return status
}

func (p *Prober) probeOne(ctx context.Context, lang profile.LanguageSpec) bool {
	cmd, err := runner.VersionCommand(lang)
	if err != nil {
		logger.Warn(ctx, "no version command for language", zap.String("language", lang.ID), zap.Error(err))
		return false
	}
	res, err := p.eng.Run(ctx, spec.RunSpec{
		Cmd:     cmd,
		WorkDir: p.workDir,
		Timeout: p.timeout,
		Label:   lang.ID + "-probe",
	})
	if err != nil {
		logger.Warn(ctx, "toolchain probe failed", zap.String("language", lang.ID), zap.Error(err))
		return false
	}
	if res.TimedOut || res.Canceled || res.ExitCode != 0 {
		logger.Warn(ctx, "toolchain probe unhealthy",
			zap.String("language", lang.ID),
			zap.Int("exit_code", res.ExitCode),
			zap.Bool("timed_out", res.TimedOut))
		return false
	}
	return true
}
