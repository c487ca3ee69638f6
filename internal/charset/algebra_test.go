package charset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

func TestParseExprOperands(t *testing.T) {
	tests := []struct {
		name string
		expr string
		kind OperandKind
	}{
		{"bare letter", "A", OperandName},
		{"bracketed", "(Front)", OperandBracketed},
		{"bracketed cjk", "(元音)", OperandBracketed},
		{"braces", "{a,b,c}", OperandBraces},
		{"quoted", `"tion"`, OperandQuoted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseExpr(tt.expr)
			require.NoError(t, err)
			require.Len(t, e.Terms, 1)
			require.Len(t, e.Terms[0], 1)
			assert.Equal(t, tt.kind, e.Terms[0][0].Kind)
		})
	}
}

func TestParseExprRejectsBadOperands(t *testing.T) {
	tests := []struct {
		name string
		expr string
		code string
	}{
		{"empty", "", ir.CodeSetSyntax},
		{"lowercase bare", "abc", ir.CodeSetSyntax},
		{"multi letter bare", "AB", ir.CodeSetSyntax},
		{"missing operand", "A >> ", ir.CodeSetSyntax},
		{"empty braces", "{}", ir.CodeSetSyntax},
		{"empty element", "{a,,b}", ir.CodeSetSyntax},
		{"empty quote", `""`, ir.CodeSetSyntax},
		{"digit name", "(1abc)", ir.CodeSetSyntax},
		{"unbalanced paren", "(A", ir.CodeUnbalancedParen},
		{"stray close", "A)", ir.CodeUnbalancedParen},
		{"unterminated quote", `"abc`, ir.CodeUnterminatedQuote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpr(tt.expr)
			require.Error(t, err)
			e, ok := ir.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
			assert.True(t, errors.Is(err, ir.ErrSyntax))
		})
	}
}

func TestParseExprDifferenceSplitsFirst(t *testing.T) {
	e, err := ParseExpr("A << B >> C << {x}")
	require.NoError(t, err)
	require.Len(t, e.Terms, 2)
	assert.Len(t, e.Terms[0], 2)
	assert.Len(t, e.Terms[1], 2)
	assert.Equal(t, []string{"A", "B", "C"}, e.References())
}

func TestSplitTopLevelIgnoresNested(t *testing.T) {
	parts, err := SplitTopLevel(`{a,b} >> "x>>y" >> (N)`, OpDifference)
	require.NoError(t, err)
	assert.Equal(t, []string{"{a,b} ", ` "x>>y" `, " (N)"}, parts)
}

func TestExprEval(t *testing.T) {
	sets := map[string]ir.Set{
		"A": ir.NewSet("A", []string{"a", "b", "c"}),
		"B": ir.NewSet("B", []string{"b"}),
		"D": ir.NewSet("D", []string{"d"}),
	}
	resolve := func(name string) (ir.Set, bool) {
		s, ok := sets[name]
		return s, ok
	}

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"union", "A << D", []string{"a", "b", "c", "d"}},
		{"difference", "A >> B", []string{"a", "c"}},
		{"difference of several", "A >> B >> {c}", []string{"a"}},
		{"union then difference", "A << D >> B << {a}", []string{"c", "d"}},
		{"literal only", `{x,y} << "qu"`, []string{"x", "y", "qu"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseExpr(tt.expr)
			require.NoError(t, err)
			got, err := e.Eval(resolve)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestExprEvalUnknownSet(t *testing.T) {
	e, err := ParseExpr("A << (Missing)")
	require.NoError(t, err)
	_, err = e.Eval(func(string) (ir.Set, bool) { return ir.Set{}, false })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ir.ErrReference))
	assert.Contains(t, err.Error(), "A")
}

func TestValidSetName(t *testing.T) {
	assert.True(t, ValidSetName("X"))
	assert.True(t, ValidSetName("Front_2"))
	assert.True(t, ValidSetName("_x"))
	assert.True(t, ValidSetName("元音"))
	assert.False(t, ValidSetName(""))
	assert.False(t, ValidSetName("2x"))
	assert.False(t, ValidSetName("a-b"))
	assert.False(t, ValidSetName("a b"))
}

func TestAmbiguous(t *testing.T) {
	assert.True(t, Ambiguous(ir.NewSet("X", []string{"a", "ab"})))
	assert.True(t, Ambiguous(ir.NewSet("X", []string{"A", "ab"})), "prefix check folds case")
	assert.False(t, Ambiguous(ir.NewSet("X", []string{"ab", "ba"})))
	assert.False(t, Ambiguous(ir.NewSet("X", []string{"a", "A"})), "case duplicates fold to one element")
	assert.False(t, Ambiguous(ir.NewSet("V", []string{"a", "e", "i", "o", "u"})))
}
