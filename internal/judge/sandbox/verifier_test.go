package sandbox_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"codedrill/internal/judge/sandbox"
	"codedrill/internal/judge/sandbox/profile"
	"codedrill/internal/judge/sandbox/result"
	"codedrill/internal/judge/sandbox/runner"
	"codedrill/internal/judge/sandbox/workspace"
	appErr "codedrill/pkg/errors"
)

type fakeDriver struct {
	kind       result.DriverKind
	compile    result.CompileResult
	tests      result.TestRunResult
	testCalls  int
	compileDir string
}

func (d *fakeDriver) Language() profile.LanguageSpec {
	return profile.LanguageSpec{ID: "fake"}
}

func (d *fakeDriver) Kind() result.DriverKind {
	return d.kind
}

func (d *fakeDriver) Compile(_ context.Context, _ string, ws *workspace.Workspace, _ time.Duration) result.CompileResult {
	d.compileDir = ws.Dir
	return d.compile
}

func (d *fakeDriver) RunTests(context.Context, string, string, *workspace.Workspace, time.Duration) result.TestRunResult {
	d.testCalls++
	return d.tests
}

type fakeDrivers struct {
	driver runner.Driver
}

func (f fakeDrivers) Get(languageID string) (runner.Driver, error) {
	if languageID != "fake" {
		return nil, appErr.New(appErr.LanguageNotSupported)
	}
	return f.driver, nil
}

type fakeProvider struct {
	acquireErr error
	acquired   int
	released   int
}

func (p *fakeProvider) Acquire(context.Context) (*workspace.Workspace, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquired++
	return &workspace.Workspace{ID: "w", Dir: "/tmp/codedrill_fake"}, nil
}

func (p *fakeProvider) Release(context.Context, *workspace.Workspace) error {
	p.released++
	return errors.New("release failures are only logged")
}

func TestVerifierVerify(t *testing.T) {
	okCompile := result.CompileResult{Compiled: true, Tag: result.TagOK}

	cases := []struct {
		name          string
		driver        *fakeDriver
		testCode      string
		wantTestCalls int
		wantPassed    bool
		wantTag       result.Tag
	}{
		{
			name:          "build and test pass",
			driver:        &fakeDriver{kind: result.KindBuildTest, compile: okCompile, tests: result.TestRunResult{Passed: true, Tag: result.TagOK, PassedTests: 2}},
			testCode:      "package main",
			wantTestCalls: 1,
			wantPassed:    true,
			wantTag:       result.TagOK,
		},
		{
			name:          "tests fail",
			driver:        &fakeDriver{kind: result.KindBuildTest, compile: okCompile, tests: result.TestRunResult{Tag: result.TagTestFailure, FailedTests: 1}},
			testCode:      "package main",
			wantTestCalls: 1,
			wantTag:       result.TagTestFailure,
		},
		{
			name:     "compile failure skips tests",
			driver:   &fakeDriver{kind: result.KindBuildTest, compile: result.CompileResult{Tag: result.TagCompileError, Errors: []string{"bad"}}},
			testCode: "package main",
			wantTag:  result.TagCompileError,
		},
		{
			name:       "empty tests skip test phase",
			driver:     &fakeDriver{kind: result.KindBuildTest, compile: okCompile},
			testCode:   "   ",
			wantPassed: true,
			wantTag:    result.TagOK,
		},
		{
			name:       "compile only never runs tests",
			driver:     &fakeDriver{kind: result.KindCompileOnly, compile: okCompile},
			testCode:   "anything",
			wantPassed: true,
			wantTag:    result.TagOK,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{}
			v := sandbox.NewVerifier(fakeDrivers{driver: tc.driver}, provider)
			out, err := v.Verify(context.Background(), sandbox.VerifyRequest{LanguageID: "fake", Source: "package main", TestCode: tc.testCode})
			if err != nil {
				t.Fatalf("verify failed: %v", err)
			}
			if tc.driver.testCalls != tc.wantTestCalls {
				t.Fatalf("expected %d test calls, got %d", tc.wantTestCalls, tc.driver.testCalls)
			}
			if out.Passed() != tc.wantPassed || out.Tag != tc.wantTag {
				t.Fatalf("expected passed=%v tag=%s, got %+v", tc.wantPassed, tc.wantTag, out)
			}
			if tc.driver.compileDir != "/tmp/codedrill_fake" {
				t.Fatalf("driver did not run in the acquired workspace")
			}
			if provider.acquired != 1 || provider.released != 1 {
				t.Fatalf("expected one acquire and one release, got %d/%d", provider.acquired, provider.released)
			}
		})
	}
}

func TestVerifierVerifyErrors(t *testing.T) {
	t.Run("empty source", func(t *testing.T) {
		provider := &fakeProvider{}
		v := sandbox.NewVerifier(fakeDrivers{driver: &fakeDriver{}}, provider)
		_, err := v.Verify(context.Background(), sandbox.VerifyRequest{LanguageID: "fake", Source: "  "})
		if !appErr.Is(err, appErr.ValidationFailed) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if provider.acquired != 0 {
			t.Fatalf("no workspace should be acquired")
		}
	})

	t.Run("unknown language", func(t *testing.T) {
		provider := &fakeProvider{}
		v := sandbox.NewVerifier(fakeDrivers{driver: &fakeDriver{}}, provider)
		_, err := v.Verify(context.Background(), sandbox.VerifyRequest{LanguageID: "cobol", Source: "x"})
		if !appErr.Is(err, appErr.LanguageNotSupported) {
			t.Fatalf("expected language not supported, got %v", err)
		}
		if provider.acquired != 0 {
			t.Fatalf("no workspace should be acquired")
		}
	})

	t.Run("workspace failure", func(t *testing.T) {
		provider := &fakeProvider{acquireErr: appErr.New(appErr.JudgeSystemError)}
		v := sandbox.NewVerifier(fakeDrivers{driver: &fakeDriver{}}, provider)
		_, err := v.Verify(context.Background(), sandbox.VerifyRequest{LanguageID: "fake", Source: "x"})
		if !appErr.Is(err, appErr.JudgeSystemError) {
			t.Fatalf("expected judge system error, got %v", err)
		}
		if provider.released != 0 {
			t.Fatalf("nothing to release")
		}
	})
}

func TestVerifierWithRealWorkspaces(t *testing.T) {
	root := t.TempDir()
	mgr := workspace.NewManager(root)
	driver := &fakeDriver{kind: result.KindCompileOnly, compile: result.CompileResult{Compiled: true, Tag: result.TagOK}}
	v := sandbox.NewVerifier(fakeDrivers{driver: driver}, mgr)
	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), sandbox.VerifyRequest{LanguageID: "fake", Source: "contract C {}"}); err != nil {
			t.Fatalf("verify failed: %v", err)
		}
	}
	entries, err := readDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected all workspaces released, found %v", entries)
	}
}

func readDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
