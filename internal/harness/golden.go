package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string      `json:"scenario_name"`
	Trace        []StepTrace `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, step := range s.Trace {
		stepMap := map[string]any{
			"seq":    step.Seq,
			"action": step.Action,
			"rule":   step.Rule,
			"input":  step.Input,
		}
		switch {
		case step.Error != "":
			stepMap["error"] = step.Error
		case step.Action == ActionMatch:
			stepMap["matched"] = nonNil(step.Matched)
		default:
			groups := make([]any, len(step.Groups))
			for j, g := range step.Groups {
				groups[j] = map[string]any{"label": g.Label, "words": nonNil(g.Words)}
			}
			stepMap["groups"] = groups
			stepMap["unmatched"] = nonNil(step.Unmatched)
		}
		traceList[i] = stepMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// CanonicalTrace renders a result's trace as canonical JSON.
func CanonicalTrace(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := CanonicalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}

func nonNil(words []string) []string {
	if words == nil {
		return []string{}
	}
	return words
}
