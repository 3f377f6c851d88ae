package parser_test

import (
	"reflect"
	"testing"

	"codedrill/internal/judge/sandbox/parser"
	"codedrill/internal/judge/sandbox/result"
)

const mixedStream = `{"Action":"run","Test":"TestA"}
{"Action":"pass","Test":"TestA","Elapsed":0.01}
not json at all
{"Action":"pass","Test":"TestB"}
{"Action":"output","Test":"TestC","Output":"--- FAIL: TestC\n"}
{"Action":"fail","Test":"TestC"}
{"Test":"NoAction"}

{"Action":"pass","Test":"TestD"}
`

func TestParseTestEvents(t *testing.T) {
	tally := parser.ParseTestEvents(mixedStream)
	if tally.Passed != 3 {
		t.Fatalf("expected 3 passed, got %d", tally.Passed)
	}
	if tally.Failed != 1 {
		t.Fatalf("expected 1 failed, got %d", tally.Failed)
	}
	if len(tally.Events) != 6 {
		t.Fatalf("expected 6 recognized events, got %d", len(tally.Events))
	}
	if tally.Events[0].Action != "run" || tally.Events[0].Test != "TestA" {
		t.Fatalf("unexpected first event %+v", tally.Events[0])
	}
}

func TestParseTestEvents_Empty(t *testing.T) {
	tally := parser.ParseTestEvents("")
	if tally.Passed != 0 || tally.Failed != 0 || len(tally.Events) != 0 {
		t.Fatalf("expected empty tally, got %+v", tally)
	}
}

func TestDiagnosticLines(t *testing.T) {
	got := parser.DiagnosticLines("\n./main.go:3:1: syntax error  \n\n   \n./main.go:5:2: undefined: x\r\n")
	want := []string{"./main.go:3:1: syntax error", "./main.go:5:2: undefined: x"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if lines := parser.DiagnosticLines("   "); len(lines) != 0 {
		t.Fatalf("expected no lines, got %q", lines)
	}
}

func TestIsDivergent(t *testing.T) {
	cases := []struct {
		name   string
		passed bool
		tally  parser.TestTally
		want   bool
	}{
		{name: "pass agrees", passed: true, tally: parser.TestTally{Passed: 2}, want: false},
		{name: "pass with failures", passed: true, tally: parser.TestTally{Passed: 2, Failed: 1}, want: true},
		{name: "fail agrees", passed: false, tally: parser.TestTally{Passed: 1, Failed: 1}, want: false},
		{name: "fail with only passes", passed: false, tally: parser.TestTally{Passed: 3}, want: true},
		{name: "fail with nothing parsed", passed: false, tally: parser.TestTally{}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parser.IsDivergent(tc.passed, tc.tally); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	okCompile := result.CompileResult{Compiled: true, Tag: result.TagOK, TimeMs: 10, Stdout: "built"}

	t.Run("compile only ignores tests", func(t *testing.T) {
		out := parser.Normalize(result.KindCompileOnly, okCompile, &result.TestRunResult{Passed: false, Tag: result.TagTestFailure})
		if out.TestsRun || !out.Passed() || out.Tag != result.TagOK {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if out.Errors == nil {
			t.Fatalf("expected non-nil errors slice")
		}
	})

	t.Run("compile failure", func(t *testing.T) {
		out := parser.Normalize(result.KindBuildTest, result.CompileResult{Errors: []string{"bad"}}, nil)
		if out.Compiled || out.Tag != result.TagCompileError || out.Passed() {
			t.Fatalf("unexpected outcome %+v", out)
		}
	})

	t.Run("tests skipped", func(t *testing.T) {
		out := parser.Normalize(result.KindBuildTest, okCompile, nil)
		if out.TestsRun || !out.Passed() {
			t.Fatalf("unexpected outcome %+v", out)
		}
	})

	t.Run("tests failed", func(t *testing.T) {
		out := parser.Normalize(result.KindBuildTest, okCompile, &result.TestRunResult{
			Passed: false, Tag: result.TagTestFailure, PassedTests: 1, FailedTests: 2, TimeMs: 5,
		})
		if !out.TestsRun || out.Passed() || out.Tag != result.TagTestFailure {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if out.PassedTests != 1 || out.FailedTests != 2 || out.TimeMs != 15 {
			t.Fatalf("unexpected counters %+v", out)
		}
	})

	t.Run("test timeout marks not compiled", func(t *testing.T) {
		out := parser.Normalize(result.KindBuildTest, okCompile, &result.TestRunResult{
			Tag: result.TagTimeout, Stderr: "go test timed out after 1s",
		})
		if out.Compiled || out.Tag != result.TagTimeout || out.Passed() {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if len(out.Errors) != 1 || out.Errors[0] != "go test timed out after 1s" {
			t.Fatalf("unexpected errors %q", out.Errors)
		}
	})

	t.Run("toolchain missing during tests", func(t *testing.T) {
		out := parser.Normalize(result.KindBuildTest, okCompile, &result.TestRunResult{Tag: result.TagToolchainUnavailable})
		if out.Tag != result.TagToolchainUnavailable || !out.Tag.IsInfrastructure() {
			t.Fatalf("unexpected outcome %+v", out)
		}
	})
}
