package charset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

func TestBuiltins(t *testing.T) {
	b := Builtins()
	assert.Len(t, b[ir.SetConsonants].Elements, 21)
	assert.Len(t, b[ir.SetVowels].Elements, 5)
	assert.Len(t, b[ir.SetLetters].Elements, 26)
}

func TestStoreResolveShadowing(t *testing.T) {
	s := NewStore()
	_, err := s.Define("X", []string{"a", "b"})
	require.NoError(t, err)

	got, ok := s.Resolve("X", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got.Elements)

	locals := map[string]ir.Set{"X": ir.NewSet("X", []string{"z"})}
	got, ok = s.Resolve("X", locals)
	require.True(t, ok)
	assert.Equal(t, []string{"z"}, got.Elements, "local shadows global")

	locals = map[string]ir.Set{"V": ir.NewSet("V", []string{"z"})}
	got, ok = s.Resolve("V", locals)
	require.True(t, ok)
	assert.Len(t, got.Elements, 5, "builtins are never shadowed")

	_, ok = s.Resolve("Nope", nil)
	assert.False(t, ok)
}

func TestStoreDefineRejectsBuiltin(t *testing.T) {
	s := NewStore()
	_, err := s.Define("C", []string{"x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ir.ErrSemantic))

	_, err = s.Define("bad name", []string{"x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ir.ErrSyntax))
}

func TestStoreDefineExpr(t *testing.T) {
	s := NewStore()
	set, err := s.DefineExpr("Soft", "V << {y} >> {u}")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "e", "i", "o", "y"}, set.Elements)

	got, ok := s.Global("Soft")
	require.True(t, ok)
	assert.True(t, got.Equal(set))
}

func TestStoreEvaluateSelfReference(t *testing.T) {
	s := NewStore()
	_, err := s.Evaluate("A", "(A) << {x}", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ir.ErrCircularity))
	e, _ := ir.AsError(err)
	assert.Equal(t, []string{"A", "A"}, e.Path)
}

func TestStoreEvaluateUsesLocals(t *testing.T) {
	s := NewStore()
	locals := map[string]ir.Set{"P": ir.NewSet("P", []string{"p", "ph"})}
	set, err := s.Evaluate("Q", "(P) << {q}", locals)
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "ph", "q"}, set.Elements)

	_, err = s.Evaluate("Q", "(P)", nil)
	assert.True(t, errors.Is(err, ir.ErrReference))
}

func TestStoreExportReplaceRoundTrip(t *testing.T) {
	s := NewStore()
	_, err := s.Define("X", []string{"b", "a"})
	require.NoError(t, err)

	exported := s.Export()

	other := NewStore()
	require.NoError(t, other.Replace(exported))
	got, ok := other.Global("X")
	require.True(t, ok)
	assert.True(t, got.Equal(ir.NewSet("X", []string{"a", "b"})))
	assert.Equal(t, []string{"X"}, other.Names())
}

func TestStoreReplaceIsAtomic(t *testing.T) {
	s := NewStore()
	_, err := s.Define("Keep", []string{"k"})
	require.NoError(t, err)

	err = s.Replace(map[string][]string{"Fine": {"f"}, "V": {"x"}})
	require.Error(t, err)
	assert.Equal(t, []string{"Keep"}, s.Names())
}

func TestStoreCloneIsIndependent(t *testing.T) {
	s := NewStore()
	_, err := s.Define("X", []string{"a"})
	require.NoError(t, err)

	c := s.Clone()
	assert.True(t, c.Delete("X"))
	assert.False(t, c.Delete("X"))
	assert.True(t, s.Exists("X"))
	assert.False(t, c.Exists("X"))
}
