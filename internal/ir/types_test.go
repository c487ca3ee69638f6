package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSetDeduplicatesAndSorts(t *testing.T) {
	s := NewSet("X", []string{"b", "a", "b", ""})
	assert.Equal(t, []string{"a", "b"}, s.Elements)
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("A"))
}

func TestSetFoldedLongestFirst(t *testing.T) {
	s := NewSet("X", []string{"a", "AB", "ab", "c"})
	assert.Equal(t, []string{"ab", "a", "c"}, s.Folded())
}

func TestSetEqualIgnoresOrder(t *testing.T) {
	assert.True(t, NewSet("X", []string{"a", "b"}).Equal(Set{Name: "Y", Elements: []string{"b", "a", "a"}}))
	assert.False(t, NewSet("X", []string{"a"}).Equal(NewSet("X", []string{"a", "b"})))
}

func TestRuleKindAndBody(t *testing.T) {
	simple := &Rule{SpecificRule: ":V"}
	assert.Equal(t, KindSimple, simple.Kind())
	assert.Equal(t, "V", simple.Body())

	comb := &Rule{SpecificRule: "::A && B"}
	assert.Equal(t, KindCombinator, comb.Kind())
	assert.Equal(t, "A && B", comb.Body())
}

func TestRuleText(t *testing.T) {
	r := &Rule{
		Name:         "Ends",
		Comment:      "vowel endings",
		LocalSets:    []Set{NewSet("X", []string{"b", "a"})},
		SpecificRule: ":(X)\\e",
		DisplayRule:  "@(X)$",
	}
	assert.Equal(t, "#Ends//vowel endings\nX == {a,b}\n:(X)\\e\n@(X)$\n", r.Text())
}

func TestErrorKindsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Referencef(CodeUnknownSet, "unknown set %q", "Q"))

	assert.True(t, errors.Is(err, ErrReference))
	assert.False(t, errors.Is(err, ErrSyntax))
	assert.Equal(t, KindReference, KindOf(err))
	assert.Equal(t, `[E102] unknown set "Q"`, errors.Unwrap(err).Error())

	c := Circular(CodeCircularSet, "set", []string{"A", "B", "A"})
	assert.True(t, errors.Is(c, ErrCircularity))
	assert.Contains(t, c.Error(), "A → B → A")
	assert.Equal(t, "[E103] line 3: circular set reference: A → B → A", c.AtLine(3).Error())
}

func TestReservedNames(t *testing.T) {
	for _, n := range []string{"C", "V", "L", "true", "false", "null", "undefined"} {
		assert.True(t, ReservedNames[n], n)
	}
	assert.False(t, ReservedNames["Vowels"])
	assert.True(t, IsBuiltinSet("L"))
	assert.False(t, IsBuiltinSet("X"))
}
