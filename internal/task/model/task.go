// Package model holds the task read model shared by the grader and repositories.
package model

import (
	"strings"

	appErr "codedrill/pkg/errors"
)

// Kind distinguishes tasks graded by compilation from tasks graded by defect labels.
type Kind string

const (
	KindWrite  Kind = "write"
	KindReview Kind = "review"
)

// Task is an authored exercise. The grading engine never modifies it.
type Task struct {
	ID               string   `json:"id" yaml:"id"`
	Title            string   `json:"title" yaml:"title"`
	Difficulty       string   `json:"difficulty" yaml:"difficulty"`
	Kind             Kind     `json:"kind" yaml:"kind"`
	Language         string   `json:"language" yaml:"language"`
	Description      string   `json:"description" yaml:"description"`
	StarterCode      string   `json:"starter_code,omitempty" yaml:"starterCode"`
	TestCode         string   `json:"test_code,omitempty" yaml:"testCode"`
	SolutionCode     string   `json:"solution_code,omitempty" yaml:"solutionCode"`
	SampleCode       string   `json:"sample_code,omitempty" yaml:"sampleCode"`
	ReviewQuestions  []string `json:"review_questions,omitempty" yaml:"reviewQuestions"`
	ExpectedIssues   []string `json:"expected_issues,omitempty" yaml:"expectedIssues"`
	Hints            []string `json:"hints,omitempty" yaml:"hints"`
	Requirements     []string `json:"requirements,omitempty" yaml:"requirements"`
	Tags             []string `json:"tags,omitempty" yaml:"tags"`
	EstimatedMinutes int      `json:"estimated_minutes" yaml:"estimatedMinutes"`
}

// Validate checks that the populated fields match the task kind.
// Write tasks carry starter and test code; review tasks carry a sample and expected issues.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return appErr.ValidationError("id", "required")
	}
	switch t.Kind {
	case KindWrite:
		if strings.TrimSpace(t.Language) == "" {
			return appErr.ValidationError("language", "required for write tasks")
		}
		if strings.TrimSpace(t.StarterCode) == "" {
			return appErr.ValidationError("starter_code", "required for write tasks")
		}
		if t.SampleCode != "" || len(t.ExpectedIssues) > 0 {
			return appErr.ValidationError("sample_code", "write tasks must not define review fields")
		}
	case KindReview:
		if strings.TrimSpace(t.SampleCode) == "" {
			return appErr.ValidationError("sample_code", "required for review tasks")
		}
		if t.TestCode != "" || t.StarterCode != "" {
			return appErr.ValidationError("test_code", "review tasks must not define write fields")
		}
		if len(t.Hints) > 0 {
			return appErr.ValidationError("hints", "hints are only defined for write tasks")
		}
	default:
		return appErr.ValidationError("kind", "must be write or review")
	}
	return nil
}

// HasTests reports whether a write task has a hidden test suite.
func (t *Task) HasTests() bool {
	return strings.TrimSpace(t.TestCode) != ""
}
