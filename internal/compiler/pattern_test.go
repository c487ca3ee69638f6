package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiao2945/danci-sub000/internal/charset"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

func testResolver(extra ...ir.Set) func(string) (ir.Set, bool) {
	store := charset.NewStore()
	locals := make(map[string]ir.Set)
	for _, s := range extra {
		locals[s.Name] = s
	}
	return func(name string) (ir.Set, bool) {
		return store.Resolve(name, locals)
	}
}

func TestCompilePatternElements(t *testing.T) {
	p, err := CompilePattern(`\b"Pre"(Mid)+V\e`, testResolver(ir.NewSet("Mid", []string{"x", "yz"})))
	require.NoError(t, err)

	assert.Equal(t, AnchorBegin, p.Begin)
	assert.Equal(t, AnchorEnd, p.End)
	require.Len(t, p.Elements, 3)

	assert.Equal(t, ElemLiteral, p.Elements[0].Kind)
	assert.Equal(t, "pre", p.Elements[0].Text, "literals are folded")

	assert.Equal(t, ElemSet, p.Elements[1].Kind)
	assert.Equal(t, "Mid", p.Elements[1].SetName)
	assert.True(t, p.Elements[1].Bracketed)
	assert.True(t, p.Elements[1].Repeat)
	assert.Equal(t, [][]rune{[]rune("yz"), []rune("x")}, p.Elements[1].Options, "longest option first")

	assert.Equal(t, "V", p.Elements[2].SetName)
	assert.False(t, p.Elements[2].Bracketed)

	assert.Equal(t, 5, p.MinLen)
	assert.Equal(t, PolicyPartial, p.Policy)
	assert.False(t, p.Ambiguous)
}

func TestCompilePatternPolicy(t *testing.T) {
	p, err := CompilePattern(`"tion"`, testResolver())
	require.NoError(t, err)
	assert.Equal(t, PolicyExhaustive, p.Policy)

	p, err = CompilePattern(`V`, testResolver())
	require.NoError(t, err)
	assert.Equal(t, PolicyPartial, p.Policy)
}

func TestCompilePatternAmbiguous(t *testing.T) {
	p, err := CompilePattern(`(X)+`, testResolver(ir.NewSet("X", []string{"a", "ab"})))
	require.NoError(t, err)
	assert.True(t, p.Ambiguous)
}

func TestCompilePatternUnknownSet(t *testing.T) {
	_, err := CompilePattern(`(Nope)`, testResolver())
	require.Error(t, err)
	e, _ := ir.AsError(err)
	assert.Equal(t, ir.CodeUnknownSet, e.Code)
}

func TestPatternGrammarErrors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		code    string
	}{
		{"empty", ``, ir.CodePatternGrammar},
		{"lowercase outside quotes", `Va`, ir.CodePatternGrammar},
		{"digit quantifier", `V2`, ir.CodePatternGrammar},
		{"plus at start", `+V`, ir.CodePatternGrammar},
		{"doubled plus", `V++`, ir.CodePatternGrammar},
		{"plus after anchor", `\b+V`, ir.CodePatternGrammar},
		{"unknown marker", `\xV`, ir.CodePatternGrammar},
		{"empty literal", `""V`, ir.CodePatternGrammar},
		{"punctuation", `V.C`, ir.CodePatternGrammar},
		{"unterminated quote", `"abc`, ir.CodeUnterminatedQuote},
		{"unclosed paren", `(Abc`, ir.CodeUnbalancedParen},
		{"stray paren", `V)`, ir.CodeUnbalancedParen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompilePattern(tt.pattern, testResolver())
			require.Error(t, err)
			e, ok := ir.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestAnchorValidation(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    string // substring of the message, "" for valid
	}{
		{"begin only", `\bV`, ""},
		{"not begin and not end", `\-bV\-e`, ""},
		{"begin and end", `\b"x"\e`, ""},
		{"anchors alone", `\b\e`, "no set or literal"},
		{"contradicting begins", `\b\-bV`, `\b and \-b`},
		{"contradicting ends", `V\e\-e`, `\e and \-e`},
		{"two begins", `\b\bV`, "more than one begin"},
		{"two ends", `V\e\e`, "more than one end"},
		{"begin not first", `V\b`, "first token"},
		{"end not last", `\eV`, "last token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompilePattern(tt.pattern, testResolver())
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			e, _ := ir.AsError(err)
			assert.Equal(t, ir.CodeAnchor, e.Code)
			assert.Equal(t, ir.KindSemantic, e.Kind)
			assert.Contains(t, e.Message, tt.want)
		})
	}
}

func TestPatternSets(t *testing.T) {
	names, err := PatternSets(`\bC(Front)"x"V+`)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "Front", "V"}, names)
}
