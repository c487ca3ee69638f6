package engine

import (
	"fmt"
	"strings"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// PreviewWidths sets where Preview truncates the rule name and comment.
type PreviewWidths struct {
	Name    int `koanf:"name_width"`
	Comment int `koanf:"comment_width"`
}

// DefaultPreviewWidths truncates names after 20 characters and comments
// after 40.
func DefaultPreviewWidths() PreviewWidths {
	return PreviewWidths{Name: 20, Comment: 40}
}

const ellipsis = "…"

// Preview renders a saved rule for humans: its name, kind and comment, the
// sets it uses with their elements, and the rule lines.
func (e *Engine) Preview(name string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.rules[name]
	if !ok {
		return "", ruleNotFound(name)
	}
	r := ent.rule
	w := e.widths
	if w.Name <= 0 || w.Comment <= 0 {
		w = DefaultPreviewWidths()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rule:    %s\n", truncate(r.Name, w.Name))
	fmt.Fprintf(&b, "Kind:    %s\n", r.Kind())
	if r.Comment != "" {
		fmt.Fprintf(&b, "Comment: %s\n", truncate(r.Comment, w.Comment))
	}

	if ent.node != nil {
		fmt.Fprintf(&b, "Uses:    %s\n", strings.Join(ent.node.RuleNames(), ", "))
	}

	sets := previewSets(ent)
	if len(sets) > 0 {
		b.WriteString("Sets:\n")
		for _, sn := range sets {
			set, scope := e.lookupForPreview(r, sn)
			fmt.Fprintf(&b, "  %-8s %s (%s)\n", sn, ir.BraceLiteral(set.Elements), scope)
		}
	}

	fmt.Fprintf(&b, "Match:   %s\n", r.SpecificRule)
	if r.DisplayRule != "" {
		fmt.Fprintf(&b, "Display: %s\n", r.DisplayRule)
	}
	return b.String(), nil
}

// previewSets lists the local sets in definition order, then the other sets
// the pattern and display line reference, first use first.
func previewSets(ent *entry) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, s := range ent.rule.LocalSets {
		add(s.Name)
	}
	if ent.pattern != nil {
		for _, el := range ent.pattern.Elements {
			if el.SetName != "" {
				add(el.SetName)
			}
		}
	}
	if ent.sort != nil {
		for _, g := range ent.sort.Groups {
			add(g.SetName)
		}
	}
	return names
}

func (e *Engine) lookupForPreview(r *ir.Rule, name string) (ir.Set, string) {
	if ir.IsBuiltinSet(name) {
		set, _ := e.sets.Resolve(name, nil)
		return set, "builtin"
	}
	if set, ok := r.LocalSet(name); ok {
		return set, "local"
	}
	set, _ := e.sets.Global(name)
	return set, "global"
}

// truncate shortens s to width characters followed by an ellipsis.
func truncate(s string, width int) string {
	rs := []rune(s)
	if len(rs) <= width {
		return s
	}
	return string(rs[:width]) + ellipsis
}
