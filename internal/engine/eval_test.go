package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiao2945/danci-sub000/internal/charset"
	"github.com/xiao2945/danci-sub000/internal/compiler"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

func TestEval_StateDrift(t *testing.T) {
	leaf := func(name string) *compiler.Node { return &compiler.Node{Kind: compiler.NodeRule, Name: name} }
	inner := &entry{rule: &ir.Rule{Name: "Inner", SpecificRule: "::Ghost"}, node: leaf("Ghost")}
	outer := &entry{rule: &ir.Rule{Name: "Outer", SpecificRule: "::Inner"}, node: leaf("Inner")}
	table := ruleTable{"Inner": inner, "Outer": outer}

	_, err := table.matches(outer, "word")
	require.Error(t, err)
	assert.True(t, IsDepthError(err))
	assert.Contains(t, err.Error(), ir.CodeCombinatorDepth)

	_, err = table.matches(inner, "word")
	require.Error(t, err)
	assert.False(t, IsDepthError(err))
	var me *MatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ir.CodeUnknownRule, me.Code)
	assert.Equal(t, "Ghost", me.Leaf)
}

func TestEval_ShortCircuit(t *testing.T) {
	starts, err := compileEntry(&ir.Rule{Name: "Starts", SpecificRule: `:\bC`}, charset.NewStore())
	require.NoError(t, err)
	table := ruleTable{"Starts": starts}

	// the right operand names a missing rule; it is never reached
	node, err := compiler.ParseCombinator("Starts || Ghost")
	require.NoError(t, err)
	ok, err := table.eval("T", node, "cat")
	require.NoError(t, err)
	assert.True(t, ok)

	node, err = compiler.ParseCombinator("~Starts && Ghost")
	require.NoError(t, err)
	ok, err = table.eval("T", node, "cat")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = table.eval("T", node, "ant")
	assert.Error(t, err)
}

func TestCompileEntry(t *testing.T) {
	sets := charset.NewStore()

	ent, err := compileEntry(&ir.Rule{Name: "R", SpecificRule: ":V", DisplayRule: "@@CV"}, sets)
	require.NoError(t, err)
	require.NotNil(t, ent.pattern)
	assert.Nil(t, ent.node)
	require.NotNil(t, ent.sort)
	assert.Equal(t, ir.SortStrict, ent.sort.Mode)

	ent, err = compileEntry(&ir.Rule{Name: "R", SpecificRule: "::A || B"}, sets)
	require.NoError(t, err)
	assert.Nil(t, ent.pattern)
	assert.Equal(t, "(A || B)", ent.node.String())
	assert.Nil(t, ent.sort)

	_, err = compileEntry(&ir.Rule{Name: "R", SpecificRule: ":(Nope)"}, sets)
	assert.Error(t, err)
}
