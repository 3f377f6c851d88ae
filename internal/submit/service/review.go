package service

import (
	"fmt"
	"math"
	"strings"
)

// reviewPassRatio is the minimum matched/expected ratio for a passing review.
const reviewPassRatio = 0.60

// matchIssues intersects found with expected using exact, case-sensitive labels.
// Duplicates collapse and the result follows the order of expected.
func matchIssues(expected, found []string) []string {
	foundSet := make(map[string]struct{}, len(found))
	for _, label := range found {
		foundSet[label] = struct{}{}
	}
	matched := make([]string, 0, len(expected))
	seen := make(map[string]struct{}, len(expected))
	for _, label := range expected {
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		if _, ok := foundSet[label]; ok {
			matched = append(matched, label)
		}
	}
	return matched
}

// missedIssues returns the distinct expected labels that were not matched.
func missedIssues(expected, matched []string) []string {
	hit := make(map[string]struct{}, len(matched))
	for _, label := range matched {
		hit[label] = struct{}{}
	}
	missed := make([]string, 0, len(expected))
	for _, label := range distinct(expected) {
		if _, ok := hit[label]; !ok {
			missed = append(missed, label)
		}
	}
	return missed
}

// reviewRatio is |matched| / |distinct expected|, or 0 when nothing is expected.
func reviewRatio(expected, matched []string) float64 {
	total := len(distinct(expected))
	if total == 0 {
		return 0
	}
	return float64(len(matched)) / float64(total)
}

// scorePercent converts a ratio to 0-100 rounded to one decimal.
func scorePercent(ratio float64) float64 {
	return math.Round(ratio*1000) / 10
}

func reviewFeedback(expected, matched []string, ratio float64) string {
	total := len(distinct(expected))
	missed := missedIssues(expected, matched)
	switch {
	case total > 0 && len(matched) == total:
		return fmt.Sprintf("Excellent! You found all %d expected issues.", total)
	case ratio >= reviewPassRatio:
		return fmt.Sprintf("Good job! You found %d of %d issues. Missed: %s.", len(matched), total, strings.Join(missed, ", "))
	case total == 0:
		return "This task has no expected issues to match against."
	default:
		return fmt.Sprintf("Keep practicing. You found %d of %d issues. Look again for: %s.", len(matched), total, strings.Join(missed, ", "))
	}
}

// hintsFor exposes one more hint per failed attempt, starting with the second attempt.
func hintsFor(hints []string, attempt int, passed bool) []string {
	if passed || attempt < 2 || len(hints) == 0 {
		return nil
	}
	n := attempt - 1
	if n > len(hints) {
		n = len(hints)
	}
	out := make([]string, n)
	copy(out, hints[:n])
	return out
}

func distinct(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
