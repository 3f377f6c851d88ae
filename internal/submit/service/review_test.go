package service

import (
	"reflect"
	"strings"
	"testing"
)

func TestMatchIssues(t *testing.T) {
	cases := []struct {
		name     string
		expected []string
		found    []string
		want     []string
	}{
		{name: "exact", expected: []string{"a", "b"}, found: []string{"b", "a"}, want: []string{"a", "b"}},
		{name: "case sensitive", expected: []string{"Leak"}, found: []string{"leak"}, want: []string{}},
		{name: "duplicates collapse", expected: []string{"a", "a", "b"}, found: []string{"a", "a", "a"}, want: []string{"a"}},
		{name: "extras ignored", expected: []string{"a"}, found: []string{"a", "z"}, want: []string{"a"}},
		{name: "nothing found", expected: []string{"a"}, found: nil, want: []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchIssues(tc.expected, tc.found); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestReviewScoring(t *testing.T) {
	cases := []struct {
		name       string
		expected   []string
		found      []string
		wantScore  float64
		wantPassed bool
		wantPrefix string
	}{
		{name: "full match", expected: []string{"a", "b", "c"}, found: []string{"a", "b", "c"}, wantScore: 100, wantPassed: true, wantPrefix: "Excellent!"},
		{name: "two of three", expected: []string{"a", "b", "c"}, found: []string{"a", "b"}, wantScore: 66.7, wantPassed: true, wantPrefix: "Good job!"},
		{name: "exactly sixty percent", expected: []string{"a", "b", "c", "d", "e"}, found: []string{"a", "b", "c"}, wantScore: 60, wantPassed: true, wantPrefix: "Good job!"},
		{name: "one of three", expected: []string{"a", "b", "c"}, found: []string{"a"}, wantScore: 33.3, wantPassed: false, wantPrefix: "Keep practicing."},
		{name: "none expected", expected: nil, found: []string{"a"}, wantScore: 0, wantPassed: false, wantPrefix: "This task has no expected issues"},
		{name: "duplicate expected counted once", expected: []string{"a", "a"}, found: []string{"a"}, wantScore: 100, wantPassed: true, wantPrefix: "Excellent!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			matched := matchIssues(tc.expected, tc.found)
			ratio := reviewRatio(tc.expected, matched)
			if got := scorePercent(ratio); got != tc.wantScore {
				t.Fatalf("expected score %v, got %v", tc.wantScore, got)
			}
			if passed := ratio >= reviewPassRatio; passed != tc.wantPassed {
				t.Fatalf("expected passed=%v, got %v", tc.wantPassed, passed)
			}
			feedback := reviewFeedback(tc.expected, matched, ratio)
			if !strings.HasPrefix(feedback, tc.wantPrefix) {
				t.Fatalf("expected feedback starting with %q, got %q", tc.wantPrefix, feedback)
			}
		})
	}
}

func TestReviewFeedbackNamesMissedIssues(t *testing.T) {
	expected := []string{"leak", "race", "overflow"}
	matched := matchIssues(expected, []string{"race"})
	got := reviewFeedback(expected, matched, reviewRatio(expected, matched))
	want := "Keep practicing. You found 1 of 3 issues. Look again for: leak, overflow."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	matched = matchIssues(expected, []string{"race", "leak"})
	got = reviewFeedback(expected, matched, reviewRatio(expected, matched))
	want = "Good job! You found 2 of 3 issues. Missed: overflow."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestHintsFor(t *testing.T) {
	hints := []string{"h1", "h2", "h3"}
	cases := []struct {
		name    string
		hints   []string
		attempt int
		passed  bool
		want    []string
	}{
		{name: "first attempt", hints: hints, attempt: 1, want: nil},
		{name: "second attempt", hints: hints, attempt: 2, want: []string{"h1"}},
		{name: "third attempt", hints: hints, attempt: 3, want: []string{"h1", "h2"}},
		{name: "capped at available", hints: hints, attempt: 9, want: []string{"h1", "h2", "h3"}},
		{name: "passed", hints: hints, attempt: 3, passed: true, want: nil},
		{name: "no hints", hints: nil, attempt: 3, want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := hintsFor(tc.hints, tc.attempt, tc.passed)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}

	got := hintsFor(hints, 2, false)
	got[0] = "mutated"
	if hints[0] != "h1" {
		t.Fatalf("hintsFor must not alias the task hints")
	}
}
