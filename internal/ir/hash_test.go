package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleHashStableUnderElementOrder(t *testing.T) {
	a := RuleRecord{
		Name:         "Endings",
		LocalSets:    []LocalSetRecord{{Name: "X", Elements: []string{"a", "b"}}},
		SpecificRule: ":(X)",
	}
	b := a
	b.LocalSets = []LocalSetRecord{{Name: "X", Elements: []string{"b", "a"}}}

	ha, err := RuleHash(a)
	require.NoError(t, err)
	hb, err := RuleHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestRuleHashChangesWithContent(t *testing.T) {
	a := RuleRecord{Name: "A", SpecificRule: ":V"}
	b := RuleRecord{Name: "A", SpecificRule: ":C"}

	ha, err := RuleHash(a)
	require.NoError(t, err)
	hb, err := RuleHash(b)
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
}

func TestSetHashDomainSeparated(t *testing.T) {
	hs, err := SetHash("A", nil)
	require.NoError(t, err)
	hr, err := RuleHash(RuleRecord{Name: "A"})
	require.NoError(t, err)
	assert.NotEqual(t, hs, hr)
}
