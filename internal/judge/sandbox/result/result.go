// Package result defines raw process results and the normalized verification outcome.
package result

// Tag classifies how a verification phase ended.
type Tag string

const (
	TagOK                   Tag = "ok"
	TagCompileError         Tag = "compile_error"
	TagTestFailure          Tag = "test_failure"
	TagTimeout              Tag = "timeout"
	TagToolchainUnavailable Tag = "toolchain_unavailable"
	TagCanceled             Tag = "canceled"
	TagInternalError        Tag = "internal_error"
)

// IsInfrastructure reports whether the tag describes a host fault rather than a learner defect.
func (t Tag) IsInfrastructure() bool {
	switch t {
	case TagToolchainUnavailable, TagCanceled, TagInternalError:
		return true
	}
	return false
}

// DriverKind identifies the shape of outcome a driver produces.
type DriverKind string

const (
	KindBuildTest   DriverKind = "build_test"
	KindCompileOnly DriverKind = "compile_only"
)

// RunResult captures raw process execution data.
type RunResult struct {
	ExitCode int
	TimeMs   int64
	Stdout   string
	Stderr   string
	TimedOut bool
	Canceled bool
}

// CompileResult contains the compile phase outcome of a driver.
type CompileResult struct {
	Compiled bool
	ExitCode int
	TimeMs   int64
	Stdout   string
	Errors   []string
	Tag      Tag
}

// TestEvent is one decoded line of a test runner's JSON event stream.
type TestEvent struct {
	Time    string  `json:"Time,omitempty"`
	Action  string  `json:"Action"`
	Package string  `json:"Package,omitempty"`
	Test    string  `json:"Test,omitempty"`
	Elapsed float64 `json:"Elapsed,omitempty"`
	Output  string  `json:"Output,omitempty"`
}

// TestRunResult contains the test phase outcome of a driver.
// Passed follows the runner exit code; the counters are informational.
type TestRunResult struct {
	Passed      bool
	ExitCode    int
	TimeMs      int64
	PassedTests int
	FailedTests int
	Events      []TestEvent
	Stdout      string
	Stderr      string
	Tag         Tag
	// Divergent is set when the tally contradicts the exit code.
	Divergent bool
}

// Outcome is the language-agnostic verification record consumed by the grader.
type Outcome struct {
	Kind     DriverKind `json:"kind"`
	Tag      Tag        `json:"tag"`
	Compiled bool       `json:"compiled"`
	Errors   []string   `json:"errors"`
	Output   string     `json:"output"`
	TimeMs   int64      `json:"timeMs"`

	// Test fields are only meaningful when TestsRun is true.
	TestsRun    bool        `json:"testsRun"`
	TestsPassed bool        `json:"testsPassed"`
	PassedTests int         `json:"passedTests"`
	FailedTests int         `json:"failedTests"`
	TestOutput  string      `json:"testOutput,omitempty"`
	TestStderr  string      `json:"testStderr,omitempty"`
	Divergent   bool        `json:"divergent,omitempty"`
	Events      []TestEvent `json:"events,omitempty"`
}

// Passed reports the verdict of a write submission.
func (o Outcome) Passed() bool {
	if !o.Compiled {
		return false
	}
	if !o.TestsRun {
		return true
	}
	return o.TestsPassed
}
