// Package parser turns raw driver output into the language-agnostic outcome.
// Nothing in this package fails: malformed input yields fewer recognized events.
package parser

import (
	"bufio"
	"encoding/json"
	"strings"

	"codedrill/internal/judge/sandbox/result"
)

const (
	actionPass = "pass"
	actionFail = "fail"

	maxLineBytes = 1 << 20
)

// TestTally is the decoded event stream of one test run.
type TestTally struct {
	Events []result.TestEvent
	Passed int
	Failed int
}

// ParseTestEvents decodes a `go test -json` stream one line at a time.
// Lines that are not a JSON event are dropped; "pass" and "fail" actions are
// counted, every other action is kept but not tallied.
func ParseTestEvents(stream string) TestTally {
	tally := TestTally{}
	scanner := bufio.NewScanner(strings.NewReader(stream))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event result.TestEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if event.Action == "" {
			continue
		}
		tally.Events = append(tally.Events, event)
		switch event.Action {
		case actionPass:
			tally.Passed++
		case actionFail:
			tally.Failed++
		}
	}
	return tally
}

// DiagnosticLines returns the non-blank lines of a diagnostic stream, in order.
func DiagnosticLines(stream string) []string {
	lines := strings.Split(strings.TrimSpace(stream), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// IsDivergent reports whether the tally contradicts the exit-code verdict.
func IsDivergent(passed bool, tally TestTally) bool {
	if passed {
		return tally.Failed > 0
	}
	return tally.Failed == 0 && tally.Passed > 0
}

// Normalize collapses the per-phase driver results into one Outcome.
// tests is nil when the test phase was skipped.
func Normalize(kind result.DriverKind, compile result.CompileResult, tests *result.TestRunResult) result.Outcome {
	out := result.Outcome{
		Kind:     kind,
		Tag:      compile.Tag,
		Compiled: compile.Compiled,
		Errors:   compile.Errors,
		Output:   compile.Stdout,
		TimeMs:   compile.TimeMs,
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	if out.Tag == "" {
		out.Tag = result.TagOK
		if !out.Compiled {
			out.Tag = result.TagCompileError
		}
	}
	if kind == result.KindCompileOnly || tests == nil || !compile.Compiled {
		return out
	}

	out.TimeMs += tests.TimeMs
	out.TestsRun = true
	out.TestsPassed = tests.Passed
	out.PassedTests = tests.PassedTests
	out.FailedTests = tests.FailedTests
	out.TestOutput = tests.Stdout
	out.TestStderr = tests.Stderr
	out.Divergent = tests.Divergent
	out.Events = tests.Events

	switch tests.Tag {
	case result.TagTimeout:
		// A run that never finished is graded like a build that never finished.
		out.Tag = result.TagTimeout
		out.Compiled = false
		out.TestsPassed = false
		out.Errors = append(out.Errors, DiagnosticLines(tests.Stderr)...)
	case result.TagToolchainUnavailable, result.TagCanceled, result.TagInternalError:
		out.Tag = tests.Tag
		out.TestsPassed = false
		out.Errors = append(out.Errors, DiagnosticLines(tests.Stderr)...)
	default:
		if tests.Passed {
			out.Tag = result.TagOK
		} else {
			out.Tag = result.TagTestFailure
		}
	}
	return out
}
