package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiao2945/danci-sub000/internal/charset"
	"github.com/xiao2945/danci-sub000/internal/compiler"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

func compilePattern(t *testing.T, body string, locals ...ir.Set) *compiler.Pattern {
	t.Helper()
	store := charset.NewStore()
	m := make(map[string]ir.Set, len(locals))
	for _, s := range locals {
		m[s.Name] = s
	}
	p, err := compiler.CompilePattern(body, func(name string) (ir.Set, bool) {
		return store.Resolve(name, m)
	})
	require.NoError(t, err)
	return p
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		yes     []string
		no      []string
	}{
		{"vowel anywhere", `V`, []string{"apple", "sky-blue"}, []string{"xyz", ""}},
		{"prefix literal", `\b"pre"`, []string{"prefix", "prepare", "Prefix"}, []string{"impress", "pr"}},
		{"suffix literal", `"tion"\e`, []string{"action", "nation"}, []string{"actionable"}},
		{"whole word", `\b"x"\e`, []string{"x", "X"}, []string{"xx", "ax", ""}},
		{"not at start", `\-b"a"`, []string{"cat", "banana"}, []string{"ant", "a"}},
		{"not at end", `"t"\-e`, []string{"tea", "atom"}, []string{"cat", "t"}},
		{"interior", `\-b"a"\-e`, []string{"cat"}, []string{"at", "ca", "a"}},
		{"start and not end", `\bC\-e`, []string{"cat"}, []string{"at", "c"}},
		{"not at start pins first occurrence", `\-bV"x"`, []string{"bax", "taxi"}, []string{"baex", "boex"}},
		{"not at end pins last occurrence", `"a"V\-e`, []string{"caeb", "baob"}, []string{"caexob", "baeob"}},
		{"pinned start to end", `\-bC"y"\e`, []string{"aby", "oxy"}, []string{"abcy"}},
		{"pinned start and end", `\-bCV\-e`, []string{"abet"}, []string{"abcat", "abe"}},
		{"consonant vowel consonant", `\bCVC\e`, []string{"cat", "dog"}, []string{"cats", "ant", "tree"}},
		{"repeated vowels", `\bCV+C\e`, []string{"cat", "boat", "beet"}, []string{"ct", "beets"}},
		{"repeated literal", `"ab"+"c"`, []string{"abc", "xababc"}, []string{"ac", "abxc"}},
		{"quoted case folds", `"Qu"`, []string{"queen", "QUIT"}, []string{"q", "uq"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := compilePattern(t, tt.pattern)
			for _, w := range tt.yes {
				assert.True(t, MatchPattern(p, w), "%s should match %q", tt.pattern, w)
			}
			for _, w := range tt.no {
				assert.False(t, MatchPattern(p, w), "%s should not match %q", tt.pattern, w)
			}
		})
	}
}

func TestFindPatternLeftmost(t *testing.T) {
	p := compilePattern(t, `"an"`)
	m, ok := FindPattern(p, "banana")
	require.True(t, ok)
	assert.Equal(t, Match{Start: 1, End: 3, Pieces: []string{"an"}}, m)
}

func TestFindPatternRepeatBacktracks(t *testing.T) {
	// V+ first takes every vowel, then gives one back to the literal
	p := compilePattern(t, `V+"a"`)
	m, ok := FindPattern(p, "aea")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "e", "a"}, m.Pieces)
	assert.Equal(t, 0, m.Start)
	assert.Equal(t, 3, m.End)
}

func TestFindPatternAmbiguousSet(t *testing.T) {
	x := ir.NewSet("X", []string{"a", "ab"})

	t.Run("longest option succeeds", func(t *testing.T) {
		p := compilePattern(t, `(X)+`, x)
		assert.True(t, p.Ambiguous)
		m, ok := FindPattern(p, "ab")
		require.True(t, ok)
		assert.Equal(t, []string{"ab"}, m.Pieces)
	})

	t.Run("shorter option after longest fails", func(t *testing.T) {
		p := compilePattern(t, `\b(X)"ba"\e`, ir.NewSet("X", []string{"a", "ab"}))
		m, ok := FindPattern(p, "aba")
		require.True(t, ok)
		assert.Equal(t, []string{"a", "ba"}, m.Pieces)
	})

	t.Run("every repetition may choose", func(t *testing.T) {
		p := compilePattern(t, `\b(X)+\e`, x)
		m, ok := FindPattern(p, "abaab")
		require.True(t, ok)
		assert.Equal(t, []string{"ab", "a", "ab"}, m.Pieces)
		assert.False(t, MatchPattern(p, "abb"))
	})
}

func TestFindPatternBoundedSearch(t *testing.T) {
	// without memoized failures this explores 2^n splits
	x := ir.NewSet("X", []string{"a", "aa"})
	p := compilePattern(t, `\b(X)+\e`, x)
	word := strings.Repeat("a", 60) + "b"
	assert.False(t, MatchPattern(p, word))
	assert.True(t, MatchPattern(p, strings.Repeat("a", 60)))
}

func TestMatchPatternDeterministic(t *testing.T) {
	p := compilePattern(t, `C(X)+`, ir.NewSet("X", []string{"o", "oa", "a"}))
	for _, w := range []string{"boat", "coat", "tree", "boa"} {
		first, ok1 := FindPattern(p, w)
		second, ok2 := FindPattern(p, w)
		assert.Equal(t, ok1, ok2, w)
		assert.Equal(t, first, second, w)
	}
}
