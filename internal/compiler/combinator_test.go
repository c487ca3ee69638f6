package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

func TestParseCombinatorPrecedence(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"A", "A"},
		{"A && B", "(A && B)"},
		{"A || B && C", "(A || (B && C))"},
		{"A && B ! C", "(A && (B ! C))"},
		{"A ! B ! C", "((A ! B) ! C)"},
		{"~A && B", "(~A && B)"},
		{"~~A", "~~A"},
		{"~(A || B)", "~(A || B)"},
		{"(A || B) && C", "((A || B) && C)"},
		{"A || B || C", "((A || B) || C)"},
		{"元音 && Rule_2", "(元音 && Rule_2)"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			n, err := ParseCombinator(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestParseCombinatorErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"A &&",
		"&& A",
		"A & B",
		"A B",
		"(A || B",
		"A || B)",
		"~",
		"A ! ",
		"A - B",
		"()",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseCombinator(expr)
			require.Error(t, err)
			e, ok := ir.AsError(err)
			require.True(t, ok)
			assert.Equal(t, ir.CodeCombinatorSyntax, e.Code)
		})
	}
}

func TestNodeRuleNames(t *testing.T) {
	n, err := ParseCombinator("B || ~A && B ! C")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, n.RuleNames())
}

func TestValidRuleName(t *testing.T) {
	assert.True(t, ValidRuleName("Rule_1"))
	assert.True(t, ValidRuleName("规则"))
	assert.False(t, ValidRuleName(""))
	assert.False(t, ValidRuleName("has space"))
	assert.False(t, ValidRuleName("dash-ed"))
	assert.False(t, ValidRuleName("café"))
}
