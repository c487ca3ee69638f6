package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiao2945/danci-sub000/internal/ir"
	"github.com/xiao2945/danci-sub000/internal/library"
	"github.com/xiao2945/danci-sub000/internal/store"
)

const twoRules = `#Ends//tail vowels
Tail == {a,e}
:(Tail)\e
@C^

#Starts
:\bC
`

func TestRulesSave_Stdin(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(twoRules, "rules", "save")
	assert.Equal(t, "✓ Ends (simple, saved)\n✓ Starts (simple, saved)\n", out)

	// saving the same text again changes nothing
	out = env.mustRun(twoRules, "rules", "save")
	assert.Contains(t, out, "✓ Ends (simple, unchanged)")
	assert.Contains(t, out, "warning: ")

	out = env.mustRun("", "rules", "list")
	assert.Contains(t, out, "Ends")
	assert.Contains(t, out, "tail vowels")
	assert.Contains(t, out, "Starts")
}

func TestRulesSave_RejectedRule(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("", "rules", "save", "testdata/broken.rules")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ Ends (simple, saved)")
	assert.Contains(t, out, "✗ testdata/broken.rules:4: [E102]")

	// the valid rule was stored
	out = env.mustRun("", "rules", "list")
	assert.Contains(t, out, "Ends")
	assert.NotContains(t, out, "UsesMissing")
}

func TestRulesSave_JSON(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(twoRules, "--format", "json", "rules", "save")
	var results []SaveResult
	resp := decodeJSON(t, out, &results)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, results, 2)
	assert.Equal(t, "Ends", results[0].Rule)
	assert.Equal(t, ir.KindSimple, results[0].Kind)
	assert.True(t, results[0].Changed)
	assert.NotEmpty(t, results[0].Revision)
}

func TestRulesSave_Empty(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("\n// nothing here\n", "rules", "save")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRulesShow(t *testing.T) {
	env := newTestEnv(t)
	env.importGlide()

	out := env.mustRun("", "rules", "show", "Ends")
	assert.Equal(t, "#Ends//tail vowels\nTail == {a,e}\n:(Tail)\\e\n@C^\n", out)

	out = env.mustRun("", "--format", "json", "rules", "show", "Ends")
	var rec ir.RuleRecord
	decodeJSON(t, out, &rec)
	assert.Equal(t, "Ends", rec.Name)
	assert.Equal(t, ":(Tail)\\e", rec.SpecificRule)

	out, err := env.run("", "--format", "json", "rules", "show", "Missing")
	require.Error(t, err)
	resp := decodeJSON(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RULE_NOT_FOUND", resp.Error.Code)
}

func TestRulesDelete(t *testing.T) {
	env := newTestEnv(t)
	env.importGlide()

	// Either references Ends
	out, err := env.run("", "--format", "json", "rules", "delete", "Ends")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeJSON(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RULE_IN_USE", resp.Error.Code)

	out = env.mustRun("", "rules", "delete", "Either")
	assert.Equal(t, "✓ Deleted rule Either\n", out)
	env.mustRun("", "rules", "delete", "Ends")

	out = env.mustRun("", "rules", "list")
	assert.NotContains(t, out, "Ends")
	assert.Contains(t, out, "StartsGlide")
}

func TestRulesHistory(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("", "rules", "history", "Starts")
	assert.Equal(t, "No history for Starts\n", out)

	env.mustRun("#Starts\n:\\bC\n", "rules", "save")
	env.mustRun("#Starts\n:\\bV\n", "rules", "save")
	env.mustRun("", "rules", "delete", "Starts")

	out = env.mustRun("", "--format", "json", "rules", "history", "Starts")
	var revs []store.Revision
	decodeJSON(t, out, &revs)
	require.Len(t, revs, 3)
	assert.Equal(t, ":\\bC", revs[0].Record.SpecificRule)
	assert.Equal(t, ":\\bV", revs[1].Record.SpecificRule)
	assert.True(t, revs[2].Deleted)
	assert.Less(t, revs[0].Seq, revs[1].Seq)

	out = env.mustRun("", "rules", "history", "Starts")
	assert.Contains(t, out, ":\\bC")
	assert.Contains(t, out, "deleted")
}

func TestRulesImport(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("", "rules", "import", "testdata/glide.yaml")
	assert.Equal(t, "✓ Imported 1 set(s) and 3 rule(s) from 1 file(s)\n", out)

	out = env.mustRun("", "--format", "json", "rules", "list")
	var rules []RuleSummary
	decodeJSON(t, out, &rules)
	assert.Equal(t, []RuleSummary{
		{Name: "Either", Kind: ir.KindCombinator},
		{Name: "Ends", Kind: ir.KindSimple, Comment: "tail vowels"},
		{Name: "StartsGlide", Kind: ir.KindSimple},
	}, rules)
}

func TestRulesImport_InvalidStoresNothing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("", "rules", "import", "testdata/broken.rules")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := env.mustRun("", "rules", "list")
	assert.Equal(t, "No saved rules\n", out)
}

func TestRulesExport_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.importGlide()

	path := filepath.Join(t.TempDir(), "export.yaml")
	env.mustRun("", "rules", "export", "-o", path)

	lib, errs := library.LoadAll([]string{path})
	require.Empty(t, errs)
	assert.Len(t, lib.Entries, 3)
	assert.Equal(t, map[string][]string{"Glide": {"w", "y"}}, lib.Sets)

	// a second database built from the export answers the same way
	other := newTestEnv(t)
	other.mustRun("", "rules", "import", path)
	out := other.mustRun("", "apply", "--rule", "Either", "wolf", "fig", "cake")
	assert.Equal(t, "wolf\ncake\n", out)
}
