package engine

import (
	"github.com/xiao2945/danci-sub000/internal/charset"
	"github.com/xiao2945/danci-sub000/internal/compiler"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

// entry is a saved rule with its compiled forms.
type entry struct {
	rule    *ir.Rule
	pattern *compiler.Pattern // simple rules
	node    *compiler.Node    // combinator rules
	sort    *ir.SortSpec      // nil without a display line
}

// compileEntry compiles rule against sets. The rule's local sets must
// already be evaluated.
func compileEntry(rule *ir.Rule, sets *charset.Store) (*entry, error) {
	ent := &entry{rule: rule}
	if rule.Kind() == ir.KindCombinator {
		node, err := compiler.ParseCombinator(rule.Body())
		if err != nil {
			return nil, err
		}
		ent.node = node
	} else {
		p, err := compiler.CompilePattern(rule.Body(), resolverFor(rule, sets))
		if err != nil {
			return nil, err
		}
		ent.pattern = p
	}
	if rule.DisplayRule != "" {
		spec, err := compiler.ParseDisplay(rule.DisplayRule)
		if err != nil {
			return nil, err
		}
		ent.sort = &spec
	}
	return ent, nil
}

// resolverFor resolves set names for rule: builtins, then the rule's local
// sets, then the global sets.
func resolverFor(rule *ir.Rule, sets *charset.Store) func(string) (ir.Set, bool) {
	locals := rule.LocalMap()
	return func(name string) (ir.Set, bool) {
		return sets.Resolve(name, locals)
	}
}

// ruleTable is the compiled rule table, read under the engine lock.
type ruleTable map[string]*entry

// Rule implements compiler.RuleTable.
func (t ruleTable) Rule(name string) (*ir.Rule, bool) {
	ent, ok := t[name]
	if !ok {
		return nil, false
	}
	return ent.rule, true
}

// RuleNames implements compiler.RuleTable.
func (t ruleTable) RuleNames() []string {
	m := make(compiler.RuleMap, len(t))
	for name, ent := range t {
		m[name] = ent.rule
	}
	return m.RuleNames()
}

// matches decides whether word satisfies ent.
func (t ruleTable) matches(ent *entry, word string) (bool, error) {
	if ent.pattern != nil {
		return MatchPattern(ent.pattern, word), nil
	}
	return t.eval(ent.rule.Name, ent.node, word)
}

// eval evaluates a combinator tree over word. Operands of && and || are
// evaluated lazily; "a ! b" is a && !b.
func (t ruleTable) eval(owner string, n *compiler.Node, word string) (bool, error) {
	switch n.Kind {
	case compiler.NodeRule:
		leaf, ok := t[n.Name]
		if !ok {
			return false, &MatchError{Code: ir.CodeUnknownRule, Rule: owner, Leaf: n.Name}
		}
		if leaf.pattern == nil {
			return false, &MatchError{Code: ir.CodeCombinatorDepth, Rule: owner, Leaf: n.Name}
		}
		return MatchPattern(leaf.pattern, word), nil

	case compiler.NodeNegate:
		v, err := t.eval(owner, n.Left, word)
		return !v, err

	case compiler.NodeAnd, compiler.NodeNot:
		l, err := t.eval(owner, n.Left, word)
		if err != nil || !l {
			return false, err
		}
		r, err := t.eval(owner, n.Right, word)
		if err != nil {
			return false, err
		}
		if n.Kind == compiler.NodeNot {
			return !r, nil
		}
		return r, nil

	case compiler.NodeOr:
		l, err := t.eval(owner, n.Left, word)
		if err != nil || l {
			return l, err
		}
		return t.eval(owner, n.Right, word)
	}
	return false, nil
}
