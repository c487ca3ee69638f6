package library

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiao2945/danci-sub000/internal/compiler"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

func wantBasicRules() []ir.RuleRecord {
	return []ir.RuleRecord{
		{
			Name:         "Ends",
			Comment:      "tail vowels",
			LocalSets:    []ir.LocalSetRecord{{Name: "Tail", Elements: []string{"a", "e"}}},
			SpecificRule: `:(Tail)\e`,
			DisplayRule:  "@C^",
		},
		{
			Name:         "StartsGlide",
			LocalSets:    []ir.LocalSetRecord{},
			SpecificRule: `:\b(Glide)`,
		},
	}
}

func assemble(t *testing.T, paths ...string) *Library {
	t.Helper()
	lib, errs := LoadAll(paths)
	require.Empty(t, errs)
	return lib
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"a.yaml", FormatYAML, true},
		{"a.YML", FormatYAML, true},
		{"a.cue", FormatCUE, true},
		{"a.rules", FormatText, true},
		{"a.txt", FormatText, true},
		{"a.json", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := FormatOf(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_YAML(t *testing.T) {
	doc, err := Load("testdata/basic.yaml")
	require.NoError(t, err)

	assert.Equal(t, FormatYAML, doc.Format)
	assert.Equal(t, map[string][]string{"Glide": {"w", "y"}}, doc.Sets)
	require.Len(t, doc.Rules, 2)

	assert.True(t, doc.Rules[0].Rendered)
	assert.Equal(t, 4, doc.Rules[0].Line)
	assert.Equal(t, "#Ends//tail vowels\nTail == {a,e}\n:(Tail)\\e\n@C^\n", doc.Rules[0].Text)
	assert.False(t, doc.Rules[1].Rendered)
	assert.Equal(t, "#StartsGlide\n:\\b(Glide)\n", doc.Rules[1].Text)

	lib := assemble(t, "testdata/basic.yaml")
	snap := lib.Snapshot()
	assert.Equal(t, map[string][]string{"Glide": {"w", "y"}}, snap.Sets)
	assert.Equal(t, wantBasicRules(), snap.Rules)
}

func TestLoad_CUE(t *testing.T) {
	lib := assemble(t, "testdata/basic.cue")
	snap := lib.Snapshot()
	assert.Equal(t, map[string][]string{"Glide": {"w", "y"}}, snap.Sets)
	assert.Equal(t, wantBasicRules(), snap.Rules)
}

func TestLoad_CUEError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte("rules: {\n\tA: specific_rule: 1 & \"x\"\n}\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, path, lerr.Path)
}

func TestLoad_Text(t *testing.T) {
	lib := assemble(t, "testdata/glide.yaml", "testdata/basic.rules")
	snap := lib.Snapshot()
	assert.Equal(t, wantBasicRules(), snap.Rules)
	assert.Equal(t, 3, lib.Entries[0].Source.Line)
	assert.Equal(t, 8, lib.Entries[1].Source.Line)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("rules.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported library extension")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/missing.yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRuleDoc_Render(t *testing.T) {
	tests := []struct {
		name    string
		doc     RuleDoc
		want    string
		wantErr string
	}{
		{
			name: "expr local",
			doc: RuleDoc{
				Name:         "R",
				LocalSets:    []LocalSetDoc{{Name: "X", Expr: "V >> {u}"}},
				SpecificRule: ":(X)",
			},
			want: "#R\nX == V >> {u}\n:(X)\n",
		},
		{
			name:    "missing name",
			doc:     RuleDoc{SpecificRule: ":V"},
			wantErr: "rule without name",
		},
		{
			name:    "missing match",
			doc:     RuleDoc{Name: "R"},
			wantErr: "specific_rule is required",
		},
		{
			name:    "both forms",
			doc:     RuleDoc{Text: "#R\n:V", Name: "R"},
			wantErr: "cannot be combined",
		},
		{
			name: "elements and expr",
			doc: RuleDoc{
				Name:         "R",
				LocalSets:    []LocalSetDoc{{Name: "X", Elements: []string{"a"}, Expr: "V"}},
				SpecificRule: ":(X)",
			},
			wantErr: "both elements and expr",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := tt.doc.render()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssemble_PositionsParseErrors(t *testing.T) {
	_, errs := LoadAll([]string{"testdata/broken.rules"})
	require.Len(t, errs, 1)

	var lerr *LoadError
	require.True(t, errors.As(errs[0], &lerr))
	assert.Equal(t, "testdata/broken.rules", lerr.Path)
	assert.Equal(t, 6, lerr.Line)
	assert.True(t, errors.Is(errs[0], ir.ErrSyntax))
	assert.Contains(t, lerr.Error(), "testdata/broken.rules:6: ")
}

func TestAssemble_Duplicates(t *testing.T) {
	lib, errs := LoadAll([]string{"testdata/basic.yaml", "testdata/basic.cue"})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Error(), `set "Glide" already defined in testdata/basic.yaml`)
	assert.Contains(t, errs[1].Error(), `rule "Ends" already defined at testdata/basic.yaml:4`)
	assert.Contains(t, errs[2].Error(), `rule "StartsGlide" already defined`)
	assert.Len(t, lib.Entries, 2)
}

func TestLibrary_Validate(t *testing.T) {
	lib := assemble(t, "testdata/basic.rules")

	errs := lib.Validate(compiler.DefaultLimits())
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ir.ErrReference))
	var lerr *LoadError
	require.True(t, errors.As(errs[0], &lerr))
	assert.Equal(t, 9, lerr.Line)

	full := assemble(t, "testdata/glide.yaml", "testdata/basic.rules")
	assert.Empty(t, full.Validate(compiler.DefaultLimits()))
}

func TestExport_RoundTrip(t *testing.T) {
	snap := assemble(t, "testdata/basic.yaml").Snapshot()

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, snap, FormatYAML))

	doc, err := Parse("export.yaml", FormatYAML, buf.Bytes())
	require.NoError(t, err)
	lib, errs := Assemble([]*Document{doc})
	require.Empty(t, errs)
	assert.Equal(t, snap, lib.Snapshot())
}

func TestExport_JSON(t *testing.T) {
	snap := ir.Snapshot{
		Sets:  map[string][]string{"X": {"a"}},
		Rules: []ir.RuleRecord{{Name: "R", SpecificRule: ":(X)"}},
	}
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, snap, FormatJSON))
	assert.JSONEq(t, `{"sets":{"X":["a"]},"rules":[{"name":"R","specific_rule":":(X)"}]}`, buf.String())

	assert.Error(t, Export(&buf, snap, FormatCUE))
}
