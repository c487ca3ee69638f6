package library

import (
	"fmt"
	"strings"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// RuleDoc is a rule as written in YAML and CUE libraries. Either Text holds
// the rule in rule language, or the remaining fields describe it.
type RuleDoc struct {
	Text         string        `yaml:"text,omitempty" json:"text,omitempty"`
	Name         string        `yaml:"name,omitempty" json:"name,omitempty"`
	Comment      string        `yaml:"comment,omitempty" json:"comment,omitempty"`
	LocalSets    []LocalSetDoc `yaml:"local_sets,omitempty" json:"local_sets,omitempty"`
	SpecificRule string        `yaml:"specific_rule,omitempty" json:"specific_rule,omitempty"`
	DisplayRule  string        `yaml:"display_rule,omitempty" json:"display_rule,omitempty"`
}

// LocalSetDoc defines a local set by its elements or by a set expression.
type LocalSetDoc struct {
	Name     string   `yaml:"name" json:"name"`
	Elements []string `yaml:"elements,omitempty" json:"elements,omitempty"`
	Expr     string   `yaml:"expr,omitempty" json:"expr,omitempty"`
}

// render returns the rule text for d and whether it was rendered from
// fields.
func (d RuleDoc) render() (string, bool, error) {
	if d.Text != "" {
		if d.Name != "" || d.SpecificRule != "" {
			return "", false, fmt.Errorf("rule %q: text cannot be combined with record fields", d.Name)
		}
		return d.Text, false, nil
	}
	if d.Name == "" {
		return "", false, fmt.Errorf("rule without name")
	}
	if d.SpecificRule == "" {
		return "", false, fmt.Errorf("rule %q: specific_rule is required", d.Name)
	}

	var b strings.Builder
	b.WriteString(ir.PrefixName + d.Name)
	if d.Comment != "" {
		b.WriteString(ir.CommentMarker + d.Comment)
	}
	b.WriteByte('\n')
	for _, ls := range d.LocalSets {
		expr := ls.Expr
		switch {
		case expr != "" && len(ls.Elements) > 0:
			return "", false, fmt.Errorf("rule %q: local set %q has both elements and expr", d.Name, ls.Name)
		case expr == "":
			expr = ir.BraceLiteral(ls.Elements)
		}
		fmt.Fprintf(&b, "%s %s %s\n", ls.Name, ir.DefinitionMarker, expr)
	}
	b.WriteString(d.SpecificRule + "\n")
	if d.DisplayRule != "" {
		b.WriteString(d.DisplayRule + "\n")
	}
	return b.String(), true, nil
}

// docFromRecord converts a persisted rule to its library form.
func docFromRecord(rec ir.RuleRecord) RuleDoc {
	d := RuleDoc{
		Name:         rec.Name,
		Comment:      rec.Comment,
		SpecificRule: rec.SpecificRule,
		DisplayRule:  rec.DisplayRule,
	}
	for _, ls := range rec.LocalSets {
		elems := ls.Elements
		if elems == nil {
			elems = []string{}
		}
		d.LocalSets = append(d.LocalSets, LocalSetDoc{Name: ls.Name, Elements: elems})
	}
	return d
}
