package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

func TestFindCyclesNone(t *testing.T) {
	graph := dependencyGraph{
		"A": {"B"},
		"B": {"C"},
		"C": {},
	}
	assert.Empty(t, findCycles(graph))
}

func TestFindCyclesSelfLoop(t *testing.T) {
	graph := dependencyGraph{"A": {"A"}}
	cycles := findCycles(graph)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "A"}, cycles[0])
}

func TestFindCyclesThreeNodes(t *testing.T) {
	graph := dependencyGraph{
		"A": {"B"},
		"B": {"C"},
		"C": {"A"},
		"D": {"A"},
	}
	cycles := findCycles(graph)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, cycles[0])
}

func TestFindCyclesDeterministic(t *testing.T) {
	graph := dependencyGraph{
		"X": {"Y"},
		"Y": {"X"},
		"P": {"Q"},
		"Q": {"P"},
	}
	first := findCycles(graph)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, findCycles(graph))
	}
}

func TestRuleCycles(t *testing.T) {
	table := RuleMap{
		"Simple": {Name: "Simple", SpecificRule: ":V"},
		"Other":  {Name: "Other", SpecificRule: "::Loop && Simple"},
	}

	t.Run("self reference", func(t *testing.T) {
		r := &ir.Rule{Name: "Self", SpecificRule: "::Self || Simple"}
		errs := RuleCycles(r, table)
		require.Len(t, errs, 1)
		assert.Equal(t, []string{"Self", "Self"}, errs[0].Path)
		assert.Equal(t, ir.CodeCircularRule, errs[0].Code)
	})

	t.Run("through the table", func(t *testing.T) {
		r := &ir.Rule{Name: "Loop", SpecificRule: "::Other"}
		errs := RuleCycles(r, table)
		require.Len(t, errs, 1)
		assert.Equal(t, []string{"Loop", "Other", "Loop"}, errs[0].Path)
		assert.Contains(t, errs[0].Error(), "Loop → Other → Loop")
	})

	t.Run("acyclic", func(t *testing.T) {
		r := &ir.Rule{Name: "Fine", SpecificRule: "::Simple && ~Simple"}
		assert.Empty(t, RuleCycles(r, table))
	})
}
