package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_VowelEndings(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/vowel_endings.yaml")
	require.NoError(t, err)

	// First run with -update to create golden file:
	//   go test ./internal/harness -run TestRunWithGolden_VowelEndings -update
	require.NoError(t, RunWithGolden(t, scenario))
}

func TestCanonicalTrace_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/vowel_endings.yaml")
	require.NoError(t, err)

	var outputs [][]byte
	for i := 0; i < 3; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		out, err := CanonicalTrace(scenario.Name, result)
		require.NoError(t, err)
		outputs = append(outputs, out)
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[0], outputs[2])
}

func TestCanonicalTrace_EmptyOutputs(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace,
		StepTrace{Seq: 1, Action: ActionMatch, Rule: "R", Input: 0},
		StepTrace{Seq: 2, Action: ActionApply, Rule: "R", Input: 0},
	)

	out, err := CanonicalTrace("empty", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"empty","trace":[{"action":"match","input":0,"matched":[],"rule":"R","seq":1},{"action":"apply","groups":[],"input":0,"rule":"R","seq":2,"unmatched":[]}]}`,
		string(out))
}
