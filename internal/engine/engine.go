package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/xiao2945/danci-sub000/internal/charset"
	"github.com/xiao2945/danci-sub000/internal/compiler"
	"github.com/xiao2945/danci-sub000/internal/ir"
	"github.com/xiao2945/danci-sub000/internal/sorting"
)

// Engine owns the global set table and the saved rules.
//
// Thread-safety model:
//   - writes (Define*, Delete*, SaveRule, Reload) take the write lock and
//     swap in fully compiled tables, so readers never see a half-applied
//     change
//   - queries take the read lock and may run concurrently
type Engine struct {
	mu     sync.RWMutex
	sets   *charset.Store
	rules  ruleTable
	limits compiler.Limits
	widths PreviewWidths
	logger *slog.Logger
	clock  *Clock
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger for saves, reloads and rejections.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLimits overrides the validation limits. Zero fields keep their
// defaults.
func WithLimits(limits compiler.Limits) EngineOption {
	return func(e *Engine) {
		e.limits = limits
	}
}

// WithPreviewWidths sets where Preview truncates names and comments.
func WithPreviewWidths(w PreviewWidths) EngineOption {
	return func(e *Engine) {
		e.widths = w
	}
}

// WithGeneration resumes the generation counter from start.
func WithGeneration(start int64) EngineOption {
	return func(e *Engine) {
		e.clock = NewClockAt(start)
	}
}

// New creates an engine holding only the builtin sets C, V and L.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		sets:   charset.NewStore(),
		rules:  make(ruleTable),
		limits: compiler.DefaultLimits(),
		widths: DefaultPreviewWidths(),
		logger: slog.Default(),
		clock:  NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generation returns the number of mutations applied so far.
func (e *Engine) Generation() int64 {
	return e.clock.Current()
}

// Limits returns the validation limits in effect.
func (e *Engine) Limits() compiler.Limits {
	return e.limits
}

// env is the validation context. Callers hold the lock.
func (e *Engine) env() compiler.Env {
	return compiler.Env{Sets: e.sets, Rules: e.rules, Limits: e.limits}
}

// DefineGlobalSet stores a global set from explicit elements, replacing any
// set of the same name.
func (e *Engine) DefineGlobalSet(name string, elements []string) (ir.Set, error) {
	return e.mutateSets(name, func(s *charset.Store) (ir.Set, error) {
		return s.Define(name, elements)
	})
}

// DefineGlobalSetExpr stores a global set computed from a set expression
// over the existing global and builtin sets, e.g. "V << {y}".
func (e *Engine) DefineGlobalSetExpr(name, expr string) (ir.Set, error) {
	return e.mutateSets(name, func(s *charset.Store) (ir.Set, error) {
		return s.DefineExpr(name, expr)
	})
}

// mutateSets applies fn to a copy of the set table and recompiles every
// saved rule against it before swapping it in.
func (e *Engine) mutateSets(name string, fn func(*charset.Store) (ir.Set, error)) (ir.Set, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.sets.Clone()
	set, err := fn(next)
	if err != nil {
		e.logger.Warn("global set rejected", "set", name, "error", err)
		return ir.Set{}, err
	}
	rules, err := recompile(e.rules, next)
	if err != nil {
		return ir.Set{}, fmt.Errorf("set %q: %w", name, err)
	}
	e.sets, e.rules = next, rules
	gen := e.clock.Next()
	e.logger.Info("global set defined", "set", name, "elements", len(set.Elements), "generation", gen)
	return set, nil
}

// DeleteGlobalSet removes a global set. It fails while any saved rule
// references the set.
func (e *Engine) DeleteGlobalSet(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sets.Global(name); !ok {
		return setNotFound(name)
	}
	if users := e.rules.setUsers(name); len(users) > 0 {
		return &RuntimeError{
			Code:    ErrCodeSetInUse,
			Message: fmt.Sprintf("set is referenced by %d rule(s)", len(users)),
			Set:     name,
			Users:   users,
		}
	}
	next := e.sets.Clone()
	next.Delete(name)
	e.sets = next
	gen := e.clock.Next()
	e.logger.Info("global set deleted", "set", name, "generation", gen)
	return nil
}

// GlobalSet returns a global custom set.
func (e *Engine) GlobalSet(name string) (ir.Set, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sets.Global(name)
}

// GlobalSets returns the global custom sets ordered by name.
func (e *Engine) GlobalSets() []ir.Set {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []ir.Set
	for _, name := range e.sets.Names() {
		set, _ := e.sets.Global(name)
		out = append(out, set)
	}
	return out
}

// ParseRule parses rule text and evaluates its local sets against the
// current global sets. It stops at the first error and does not run the
// validation pipeline.
func (e *Engine) ParseRule(text string) (*ir.Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return compiler.ParseRule(text, e.sets)
}

// ValidateRule runs the validation pipeline against the current tables and
// returns every error found. An empty result means the rule can be saved.
func (e *Engine) ValidateRule(rule *ir.Rule) []*ir.Error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return compiler.Validate(rule, e.env())
}

// SaveRule parses, validates and stores a rule, replacing any saved rule of
// the same name. Warnings (an overwritten rule, unused local sets) do not
// prevent the save.
func (e *Engine) SaveRule(text string) (*ir.Rule, []compiler.Warning, error) {
	rule, err := compiler.Parse(text)
	if err != nil {
		e.logger.Warn("rule rejected", "error", err)
		return nil, nil, err
	}
	return e.save(rule)
}

// SaveRecord stores a rule given in persistence shape.
func (e *Engine) SaveRecord(rec ir.RuleRecord) (*ir.Rule, []compiler.Warning, error) {
	return e.save(rec.Rule())
}

func (e *Engine) save(rule *ir.Rule) (*ir.Rule, []compiler.Warning, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	env := e.env()
	if errs := compiler.Validate(rule, env); len(errs) > 0 {
		e.logger.Warn("rule rejected", "rule", rule.Name, "errors", len(errs), "first", errs[0].Error())
		return nil, nil, compiler.Join(errs)
	}
	if rule.Kind() == ir.KindCombinator {
		// a combinator may not take the place of a rule other combinators use
		if users := e.rules.ruleUsers(rule.Name); len(users) > 0 {
			return nil, nil, &RuntimeError{
				Code:    ErrCodeRuleInUse,
				Message: "combinators reference this rule, so it must stay a simple rule",
				Rule:    rule.Name,
				Users:   users,
			}
		}
	}
	if err := compiler.BuildLocals(rule, e.sets); err != nil {
		return nil, nil, err
	}
	ent, err := compileEntry(rule, e.sets)
	if err != nil {
		return nil, nil, err
	}
	warns := compiler.Lint(rule, env)

	e.rules = e.rules.with(rule.Name, ent)
	gen := e.clock.Next()
	e.logger.Info("rule saved", "rule", rule.Name, "kind", rule.Kind(), "warnings", len(warns), "generation", gen)
	return copyRule(rule), warns, nil
}

// DeleteRule removes a saved rule. It fails while a combinator references
// the rule.
func (e *Engine) DeleteRule(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rules[name]; !ok {
		return ruleNotFound(name)
	}
	if users := e.rules.ruleUsers(name); len(users) > 0 {
		return &RuntimeError{
			Code:    ErrCodeRuleInUse,
			Message: fmt.Sprintf("rule is referenced by %d combinator(s)", len(users)),
			Rule:    name,
			Users:   users,
		}
	}
	e.rules = e.rules.without(name)
	gen := e.clock.Next()
	e.logger.Info("rule deleted", "rule", name, "generation", gen)
	return nil
}

// Rule returns a copy of a saved rule.
func (e *Engine) Rule(name string) (*ir.Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.rules[name]
	if !ok {
		return nil, false
	}
	return copyRule(ent.rule), true
}

// RuleNames returns the saved rule names in order.
func (e *Engine) RuleNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules.RuleNames()
}

// MatchesRule reports whether word satisfies the saved rule name.
func (e *Engine) MatchesRule(word, name string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.rules[name]
	if !ok {
		return false, ruleNotFound(name)
	}
	return e.rules.matches(ent, word)
}

// Matches reports whether word satisfies rule, which need not be saved.
// The rule is compiled against the current tables; combinator leaves refer
// to saved rules.
func (e *Engine) Matches(word string, rule *ir.Rule) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r := rule
	if len(r.LocalSets) == 0 && len(r.Definitions) > 0 {
		c := *rule
		c.LocalSets = nil
		if err := compiler.BuildLocals(&c, e.sets); err != nil {
			return false, err
		}
		r = &c
	}
	ent, err := compileEntry(r, e.sets)
	if err != nil {
		return false, err
	}
	return e.rules.matches(ent, word)
}

// ApplyRule filters words by the saved rule name and orders the survivors
// by its display line. Words no sort level could key come last.
func (e *Engine) ApplyRule(words []string, name string) ([]string, error) {
	res, err := e.ApplyRuleGrouped(words, name)
	if err != nil {
		return nil, err
	}
	return res.Flatten(), nil
}

// ApplyRuleGrouped is ApplyRule keeping the output groups. A rule without a
// display line keeps the input order in a single unlabeled group.
func (e *Engine) ApplyRuleGrouped(words []string, name string) (*sorting.Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.rules[name]
	if !ok {
		return nil, ruleNotFound(name)
	}

	matched := make([]string, 0, len(words))
	for _, w := range words {
		ok, err := e.rules.matches(ent, w)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, w)
		}
	}

	var res *sorting.Result
	if ent.sort == nil {
		res = sorting.Keep(matched)
	} else {
		var err error
		res, err = sorting.Sort(matched, *ent.sort, resolverFor(ent.rule, e.sets))
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}
	}
	e.logger.Debug("applied rule",
		"rule", name,
		"input", len(words),
		"matched", len(matched),
		"unmatched_sort", len(res.Unmatched))
	return res, nil
}

// Snapshot exports the global sets and every saved rule in persistence
// shape. Rules are ordered by name.
func (e *Engine) Snapshot() ir.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := ir.Snapshot{Sets: e.sets.Export(), Rules: []ir.RuleRecord{}}
	for _, name := range e.rules.RuleNames() {
		snap.Rules = append(snap.Rules, e.rules[name].rule.Record())
	}
	return snap
}

// Reload replaces both tables with snap. Every rule is validated against
// the incoming sets and rules; on any error nothing changes and the error
// lists every failing rule.
func (e *Engine) Reload(snap ir.Snapshot) error {
	sets := charset.NewStore()
	if err := sets.Replace(snap.Sets); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	incoming := make(compiler.RuleMap, len(snap.Rules))
	var errs []error
	for _, rec := range snap.Rules {
		if _, dup := incoming[rec.Name]; dup {
			errs = append(errs, fmt.Errorf("rule %q: defined more than once", rec.Name))
			continue
		}
		incoming[rec.Name] = rec.Rule()
	}

	env := compiler.Env{Sets: sets, Rules: incoming, Limits: e.limits}
	next := make(ruleTable, len(incoming))
	for _, name := range incoming.RuleNames() {
		rule := incoming[name]
		if verrs := compiler.Validate(rule, env); len(verrs) > 0 {
			errs = append(errs, fmt.Errorf("rule %q: %w", name, compiler.Join(verrs)))
			continue
		}
		if err := compiler.BuildLocals(rule, sets); err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", name, err))
			continue
		}
		ent, err := compileEntry(rule, sets)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", name, err))
			continue
		}
		next[name] = ent
	}
	if len(errs) > 0 {
		e.logger.Warn("reload rejected", "errors", len(errs))
		return fmt.Errorf("reload: %w", errors.Join(errs...))
	}

	e.mu.Lock()
	e.sets, e.rules = sets, next
	gen := e.clock.Next()
	e.mu.Unlock()
	e.logger.Info("tables reloaded", "sets", len(snap.Sets), "rules", len(next), "generation", gen)
	return nil
}

// recompile compiles every rule of t against sets.
func recompile(t ruleTable, sets *charset.Store) (ruleTable, error) {
	next := make(ruleTable, len(t))
	for name, ent := range t {
		compiled, err := compileEntry(ent.rule, sets)
		if err != nil {
			return nil, fmt.Errorf("recompiling rule %q: %w", name, err)
		}
		next[name] = compiled
	}
	return next, nil
}

// with returns a copy of t with name set to ent.
func (t ruleTable) with(name string, ent *entry) ruleTable {
	next := make(ruleTable, len(t)+1)
	for k, v := range t {
		next[k] = v
	}
	next[name] = ent
	return next
}

// without returns a copy of t lacking name.
func (t ruleTable) without(name string) ruleTable {
	next := make(ruleTable, len(t))
	for k, v := range t {
		if k != name {
			next[k] = v
		}
	}
	return next
}

// ruleUsers returns the combinators, other than name itself, that
// reference rule name.
func (t ruleTable) ruleUsers(name string) []string {
	var users []string
	for other, ent := range t {
		if other == name || ent.node == nil {
			continue
		}
		for _, ref := range ent.node.RuleNames() {
			if ref == name {
				users = append(users, other)
				break
			}
		}
	}
	sort.Strings(users)
	return users
}

// setUsers returns the rules that reference global set name and do not
// shadow it with a local set.
func (t ruleTable) setUsers(name string) []string {
	var users []string
	for rn, ent := range t {
		if _, local := ent.rule.LocalSet(name); local {
			continue
		}
		if referencesSet(ent, name) {
			users = append(users, rn)
		}
	}
	sort.Strings(users)
	return users
}

func referencesSet(ent *entry, name string) bool {
	if ent.pattern != nil {
		for _, el := range ent.pattern.Elements {
			if el.SetName == name {
				return true
			}
		}
	}
	if ent.sort != nil {
		for _, g := range ent.sort.Groups {
			if g.SetName == name {
				return true
			}
		}
	}
	for _, def := range ent.rule.Definitions {
		expr, err := charset.ParseExpr(def.Expr)
		if err != nil {
			continue
		}
		for _, ref := range expr.References() {
			if ref == name {
				return true
			}
		}
	}
	return false
}

func copyRule(r *ir.Rule) *ir.Rule {
	c := *r
	c.LocalSets = make([]ir.Set, len(r.LocalSets))
	for i, s := range r.LocalSets {
		c.LocalSets[i] = ir.NewSet(s.Name, s.Elements)
	}
	c.Definitions = append([]ir.SetDefinition(nil), r.Definitions...)
	return &c
}
