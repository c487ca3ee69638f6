package compiler

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/xiao2945/danci-sub000/internal/charset"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

// RuleTable is read access to saved rules.
type RuleTable interface {
	Rule(name string) (*ir.Rule, bool)
	RuleNames() []string
}

// RuleMap is a RuleTable over a plain map.
type RuleMap map[string]*ir.Rule

// Rule implements RuleTable.
func (m RuleMap) Rule(name string) (*ir.Rule, bool) {
	r, ok := m[name]
	return r, ok
}

// RuleNames implements RuleTable.
func (m RuleMap) RuleNames() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Limits are the length and level limits enforced by Validate.
type Limits struct {
	NameLength    int `koanf:"name_length"`
	CommentLength int `koanf:"comment_length"`
	SortLevels    int `koanf:"sort_levels"`
}

// DefaultLimits returns the standard limits: names of 20 characters,
// comments of 60 and three sort levels.
func DefaultLimits() Limits {
	return Limits{NameLength: 20, CommentLength: 60, SortLevels: 3}
}

func (l Limits) orDefault() Limits {
	d := DefaultLimits()
	if l.NameLength <= 0 {
		l.NameLength = d.NameLength
	}
	if l.CommentLength <= 0 {
		l.CommentLength = d.CommentLength
	}
	if l.SortLevels <= 0 {
		l.SortLevels = d.SortLevels
	}
	return l
}

// Env is the read-only context a rule is validated against.
type Env struct {
	Sets   *charset.Store
	Rules  RuleTable
	Limits Limits
}

// Warning is a non-fatal finding.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// String formats the warning like an error.
func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s", w.Code, w.Line, w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Code, w.Message)
}

// Validate runs the full check pipeline over a parsed rule.
// Returns all errors found (does not fail-fast), in pipeline order:
//
//	(a) set definitions: syntax, unknown and forward references
//	(b) pattern references and balance
//	(c) pattern character grammar and anchors
//	(d) combinator syntax and references
//	(e) display rule syntax, references and constraints
//	(f) rule name characters and length
//	(g) comment length
//	(h) local sets named like builtins
//	(i) circular sets and circular combinator references
//	(j) reserved rule names
//
// The rule is not modified; use BuildLocals to evaluate its local sets.
func Validate(rule *ir.Rule, env Env) []*ir.Error {
	v := &validator{rule: rule, env: env, limits: env.Limits.orDefault()}
	if v.env.Sets == nil {
		v.env.Sets = charset.NewStore()
	}
	v.definitions()
	if rule.Kind() == ir.KindCombinator {
		v.combinator()
	} else {
		v.pattern()
	}
	v.display()
	v.naming()
	v.circularity()
	if ir.ReservedNames[rule.Name] {
		v.add(ir.Semanticf(ir.CodeReservedName, "rule name %q is reserved", rule.Name))
	}
	return v.errs
}

// Join combines validation errors into one error, nil when errs is empty.
func Join(errs []*ir.Error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	list := make([]error, len(errs))
	for i, e := range errs {
		list[i] = e
	}
	return errors.Join(list...)
}

type validator struct {
	rule   *ir.Rule
	env    Env
	limits Limits
	errs   []*ir.Error

	locals    map[string]ir.Set
	failed    map[string]bool // local sets whose definition is broken
	setCycle  *ir.Error
	cycleSets map[string]bool
}

func (v *validator) add(err *ir.Error) {
	v.errs = append(v.errs, err)
}

// definitions is step (a). Circular definitions are held for step (i) and
// their members are not reported as forward references.
func (v *validator) definitions() {
	defs := v.rule.Definitions
	v.locals = make(map[string]ir.Set, len(defs))
	v.failed = make(map[string]bool)
	v.cycleSets = make(map[string]bool)

	exprs := make([]charset.Expr, len(defs))
	parsed := make([]bool, len(defs))
	for i, def := range defs {
		e, err := charset.ParseExpr(def.Expr)
		if err != nil {
			v.add(lineOf(err, defLine(v.rule, i)))
			v.failed[def.Name] = true
			continue
		}
		exprs[i] = e
		parsed[i] = true
	}

	if err := localCycles(defs, exprs); err != nil {
		v.setCycle = err
		for _, n := range err.Path {
			v.cycleSets[n] = true
			v.failed[n] = true
		}
	}

	for i, def := range defs {
		if !parsed[i] || v.cycleSets[def.Name] {
			continue
		}
		ok := true
		for _, ref := range exprs[i].References() {
			if err := v.checkRef(ref, defLine(v.rule, i), ir.CodeUnknownSet, fmt.Sprintf("set %q", def.Name)); err != nil {
				v.add(err)
				ok = false
			} else if v.failed[ref] {
				ok = false
			}
		}
		if !ok {
			v.failed[def.Name] = true
			continue
		}
		elements, err := exprs[i].Eval(func(name string) (ir.Set, bool) {
			return v.env.Sets.Resolve(name, v.locals)
		})
		if err != nil {
			v.add(lineOf(err, defLine(v.rule, i)))
			v.failed[def.Name] = true
			continue
		}
		v.locals[def.Name] = ir.NewSet(def.Name, elements)
	}
}

// checkRef validates one set reference made on line. Broken local sets are
// accepted silently: their own definition already reported the problem.
func (v *validator) checkRef(ref string, line int, code, what string) *ir.Error {
	if ir.IsBuiltinSet(ref) || v.failed[ref] {
		return nil
	}
	if j := definitionIndex(v.rule, ref); j >= 0 {
		if dl := defLine(v.rule, j); dl > line {
			return ir.Referencef(ir.CodeForwardReference,
				"%s references set %q before its definition on line %d", what, ref, dl).AtLine(line)
		}
		return nil
	}
	if _, ok := v.env.Sets.Global(ref); ok {
		return nil
	}
	if owner := v.localOwner(ref); owner != "" {
		return ir.Referencef(code, "%s references set %q, which is local to rule %q", what, ref, owner).AtLine(line)
	}
	return ir.Referencef(code, "%s references unknown set %q", what, ref).AtLine(line)
}

// localOwner names another rule holding a local set called name.
func (v *validator) localOwner(name string) string {
	if v.env.Rules == nil {
		return ""
	}
	for _, rn := range v.env.Rules.RuleNames() {
		if rn == v.rule.Name {
			continue
		}
		if r, ok := v.env.Rules.Rule(rn); ok {
			if _, has := r.LocalSet(name); has {
				return rn
			}
		}
	}
	return ""
}

// pattern is steps (b) and (c) for simple rules.
func (v *validator) pattern() {
	line := lineOrAfterDefs(v.rule.MatchLine, v.rule)
	toks, err := scanPattern(v.rule.Body())
	if err != nil {
		v.add(err.AtLine(v.rule.MatchLine))
		return
	}
	for _, tok := range toks {
		if tok.kind != tokSet {
			continue
		}
		if err := v.checkRef(tok.text, line, ir.CodeUnknownSet, "pattern"); err != nil {
			v.add(err.AtLine(v.rule.MatchLine))
		}
	}
	if err := checkAnchors(toks); err != nil {
		v.add(err.AtLine(v.rule.MatchLine))
	}
}

// combinator is step (d).
func (v *validator) combinator() {
	node, err := ParseCombinator(v.rule.Body())
	if err != nil {
		v.add(lineOf(err, v.rule.MatchLine))
		return
	}
	for _, name := range node.RuleNames() {
		if name == v.rule.Name {
			continue // reported as a cycle
		}
		var target *ir.Rule
		ok := false
		if v.env.Rules != nil {
			target, ok = v.env.Rules.Rule(name)
		}
		switch {
		case !ok:
			v.add(ir.Referencef(ir.CodeUnknownRule, "combinator references unknown rule %q", name).AtLine(v.rule.MatchLine))
		case target.Kind() == ir.KindCombinator:
			v.add(ir.Referencef(ir.CodeNestedCombinator,
				"combinator references %q, which is itself a combinator rule", name).AtLine(v.rule.MatchLine))
		}
	}
}

// display is step (e).
func (v *validator) display() {
	if v.rule.DisplayRule == "" {
		return
	}
	spec, err := ParseDisplay(v.rule.DisplayRule)
	if err != nil {
		v.add(lineOf(err, v.rule.DisplayLine))
		return
	}
	line := lineOrAfterDefs(v.rule.DisplayLine, v.rule)
	for _, g := range spec.Groups {
		if err := v.checkRef(g.SetName, line, ir.CodeDisplayReference, "display rule"); err != nil {
			v.add(err.AtLine(v.rule.DisplayLine))
		}
	}
	for _, err := range CheckSortSpec(spec, v.limits.SortLevels) {
		v.add(err.AtLine(v.rule.DisplayLine))
	}
}

// naming is steps (f), (g) and (h).
func (v *validator) naming() {
	name := v.rule.Name
	switch {
	case name == "":
		v.add(ir.Syntaxf(ir.CodeRuleName, "rule name is empty"))
	case !ValidRuleName(name):
		v.add(ir.Syntaxf(ir.CodeRuleName, "rule name %q may only use letters, digits, underscore and CJK characters", name))
	case utf8.RuneCountInString(name) > v.limits.NameLength:
		v.add(ir.Semanticf(ir.CodeRuleName, "rule name %q is longer than %d characters", name, v.limits.NameLength))
	}

	if n := utf8.RuneCountInString(v.rule.Comment); n > v.limits.CommentLength {
		v.add(ir.Semanticf(ir.CodeCommentLength, "comment has %d characters; at most %d allowed", n, v.limits.CommentLength))
	}

	for _, def := range v.rule.Definitions {
		if ir.IsBuiltinSet(def.Name) {
			v.add(ir.Semanticf(ir.CodeBuiltinCollision,
				"local set %q collides with a builtin set", def.Name).AtLine(def.Line))
		}
	}
}

// circularity is step (i).
func (v *validator) circularity() {
	if v.setCycle != nil {
		v.add(v.setCycle)
	}
	if v.rule.Kind() == ir.KindCombinator {
		for _, err := range RuleCycles(v.rule, v.env.Rules) {
			v.add(err)
		}
	}
}

// Lint reports warnings: the rule would overwrite a saved rule of the same
// name, or a local set is never referenced.
func Lint(rule *ir.Rule, env Env) []Warning {
	var warns []Warning
	if env.Rules != nil {
		if _, ok := env.Rules.Rule(rule.Name); ok {
			warns = append(warns, Warning{
				Code:    ir.CodeDuplicateRuleName,
				Message: fmt.Sprintf("rule %q already exists and will be overwritten", rule.Name),
			})
		}
	}

	used := make(map[string]bool)
	for _, def := range rule.Definitions {
		if e, err := charset.ParseExpr(def.Expr); err == nil {
			for _, ref := range e.References() {
				if ref != def.Name {
					used[ref] = true
				}
			}
		}
	}
	if rule.Kind() == ir.KindSimple {
		if names, err := PatternSets(rule.Body()); err == nil {
			for _, n := range names {
				used[n] = true
			}
		}
	}
	if rule.DisplayRule != "" {
		if spec, err := ParseDisplay(rule.DisplayRule); err == nil {
			for _, g := range spec.Groups {
				used[g.SetName] = true
			}
		}
	}
	for _, def := range rule.Definitions {
		if !used[def.Name] {
			warns = append(warns, Warning{
				Code:    ir.CodeUnreferencedLocals,
				Message: fmt.Sprintf("local set %q is never used", def.Name),
				Line:    def.Line,
			})
		}
	}
	return warns
}

// lineOf positions err at line when it is an *ir.Error.
func lineOf(err error, line int) *ir.Error {
	e, ok := ir.AsError(err)
	if !ok {
		e = ir.Syntaxf(ir.CodeRuleStructure, "%v", err)
	}
	if line > 0 {
		return e.AtLine(line)
	}
	return e
}

// lineOrAfterDefs returns line, or a position after every definition when
// the rule carries no line numbers.
func lineOrAfterDefs(line int, rule *ir.Rule) int {
	if line > 0 {
		return line
	}
	return len(rule.Definitions) + 1
}
