package harness

import (
	"fmt"
	"slices"
	"strings"
)

// CheckStep compares a step's trace against its expectations and returns
// one message per failed expectation.
func CheckStep(step Step, trace StepTrace) []string {
	var errs []string

	if step.ExpectError != "" {
		switch {
		case trace.Error == "":
			errs = append(errs, fmt.Sprintf("expected error containing %q, got none", step.ExpectError))
		case !strings.Contains(trace.Error, step.ExpectError):
			errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", step.ExpectError, trace.Error))
		}
		return errs
	}
	if trace.Error != "" {
		return []string{fmt.Sprintf("unexpected error: %s", trace.Error)}
	}

	if step.Expect != nil {
		if got := trace.Output(); !slices.Equal(got, step.Expect) {
			errs = append(errs, fmt.Sprintf("expected %s, got %s", formatWords(step.Expect), formatWords(got)))
		}
	}
	if step.ExpectGroups != nil {
		errs = append(errs, checkGroups(step.ExpectGroups, trace)...)
	}
	return errs
}

// checkGroups compares labeled groups. The unmatched bucket is not a group;
// its words are covered by Expect.
func checkGroups(want []GroupExpect, trace StepTrace) []string {
	var errs []string
	if len(want) != len(trace.Groups) {
		errs = append(errs, fmt.Sprintf("expected %d groups, got %d", len(want), len(trace.Groups)))
	}
	for i := 0; i < len(want) && i < len(trace.Groups); i++ {
		got := trace.Groups[i]
		if got.Label != want[i].Label {
			errs = append(errs, fmt.Sprintf("group %d: expected label %q, got %q", i+1, want[i].Label, got.Label))
		}
		if !slices.Equal(got.Words, want[i].Words) {
			errs = append(errs, fmt.Sprintf("group %d: expected %s, got %s", i+1, formatWords(want[i].Words), formatWords(got.Words)))
		}
	}
	return errs
}

func formatWords(words []string) string {
	return "[" + strings.Join(words, " ") + "]"
}
