package engine

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiao2945/danci-sub000/internal/compiler"
)

func TestPreview_Golden(t *testing.T) {
	e := newTestEngine(t, WithLimits(compiler.Limits{NameLength: 30}))
	mustSave(t, e, "#Starts\n:\\bC")
	mustSave(t, e, "#Ends\n:V\\e")
	mustSave(t, e, "#VowelEndingsWithTails//Words ending in a tail vowel, grouped by first consonant\n"+
		"Tail == V >> {u}\n"+
		":C(Tail)\\e\n"+
		"@C^")
	mustSave(t, e, "#StartsEnds\n::Starts && ~Ends")

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	simple, err := e.Preview("VowelEndingsWithTails")
	require.NoError(t, err)
	g.Assert(t, "preview_simple", []byte(simple))

	comb, err := e.Preview("StartsEnds")
	require.NoError(t, err)
	g.Assert(t, "preview_combinator", []byte(comb))
}

func TestPreview_NotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Preview("Nope")
	assert.True(t, IsNotFound(err))
}

func TestPreview_Widths(t *testing.T) {
	e := newTestEngine(t, WithPreviewWidths(PreviewWidths{Name: 3, Comment: 5}))
	mustSave(t, e, "#Vowels//contains a vowel\n:V")
	out, err := e.Preview("Vowels")
	require.NoError(t, err)
	assert.Contains(t, out, "Rule:    Vow…\n")
	assert.Contains(t, out, "Comment: conta…\n")
	assert.Contains(t, out, "  V        {a,e,i,o,u} (builtin)\n")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abc", 2))
	assert.Equal(t, "词语…", truncate("词语列表", 2))
}
