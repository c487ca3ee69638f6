package charset

import (
	"sort"
	"strings"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

const (
	consonants = "bcdfghjklmnpqrstvwxyz"
	vowels     = "aeiou"
	letters    = "abcdefghijklmnopqrstuvwxyz"
)

// Builtins returns fresh copies of the builtin sets C, V and L.
func Builtins() map[string]ir.Set {
	return map[string]ir.Set{
		ir.SetConsonants: ir.NewSet(ir.SetConsonants, strings.Split(consonants, "")),
		ir.SetVowels:     ir.NewSet(ir.SetVowels, strings.Split(vowels, "")),
		ir.SetLetters:    ir.NewSet(ir.SetLetters, strings.Split(letters, "")),
	}
}

// Store holds the builtin and global custom sets.
//
// Store is not safe for concurrent mutation; the engine serializes writes.
// Local sets are never stored here: they belong to their rule and are passed
// to Resolve and Evaluate as an overlay.
type Store struct {
	builtins map[string]ir.Set
	global   map[string]ir.Set
}

// NewStore creates a store holding only the builtin sets.
func NewStore() *Store {
	return &Store{
		builtins: Builtins(),
		global:   make(map[string]ir.Set),
	}
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	c := NewStore()
	for name, set := range s.global {
		c.global[name] = ir.NewSet(name, set.Elements)
	}
	return c
}

// Resolve looks a set up by name. Local sets shadow global sets; builtins
// are consulted first because local sets may not reuse their names.
func (s *Store) Resolve(name string, locals map[string]ir.Set) (ir.Set, bool) {
	if set, ok := s.builtins[name]; ok {
		return set, true
	}
	if set, ok := locals[name]; ok {
		return set, true
	}
	set, ok := s.global[name]
	return set, ok
}

// Global returns a global custom set.
func (s *Store) Global(name string) (ir.Set, bool) {
	set, ok := s.global[name]
	return set, ok
}

// Exists reports whether name is a builtin or global set.
func (s *Store) Exists(name string) bool {
	_, ok := s.Resolve(name, nil)
	return ok
}

// Define stores a global set from explicit elements, replacing any previous
// set of the same name.
func (s *Store) Define(name string, elements []string) (ir.Set, error) {
	if err := checkGlobalName(name); err != nil {
		return ir.Set{}, err
	}
	set := ir.NewSet(name, elements)
	s.global[name] = set
	return set, nil
}

// DefineExpr evaluates a set expression against the global sets and stores
// the result under name.
func (s *Store) DefineExpr(name, expr string) (ir.Set, error) {
	if err := checkGlobalName(name); err != nil {
		return ir.Set{}, err
	}
	set, err := s.Evaluate(name, expr, nil)
	if err != nil {
		return ir.Set{}, err
	}
	s.global[name] = set
	return set, nil
}

// Delete removes a global set. Builtins cannot be deleted.
func (s *Store) Delete(name string) bool {
	if _, ok := s.global[name]; !ok {
		return false
	}
	delete(s.global, name)
	return true
}

// Evaluate computes the set defined by "name == expr" without storing it.
//
// Fails with a syntax error (E101) on malformed expressions, a reference
// error (E102) on unknown names, and a circularity error (E103) when expr
// refers to name itself.
func (s *Store) Evaluate(name, expr string, locals map[string]ir.Set) (ir.Set, error) {
	parsed, err := ParseExpr(expr)
	if err != nil {
		return ir.Set{}, err
	}
	for _, ref := range parsed.References() {
		if ref == name {
			return ir.Set{}, ir.Circular(ir.CodeCircularSet, "set", []string{name, name})
		}
	}
	elements, err := parsed.Eval(func(ref string) (ir.Set, bool) {
		return s.Resolve(ref, locals)
	})
	if err != nil {
		return ir.Set{}, err
	}
	return ir.NewSet(name, elements), nil
}

// Names returns the global custom set names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.global))
	for n := range s.global {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Export returns the global custom sets in persistence shape.
func (s *Store) Export() map[string][]string {
	out := make(map[string][]string, len(s.global))
	for name, set := range s.global {
		elems := make([]string, len(set.Elements))
		copy(elems, set.Elements)
		out[name] = elems
	}
	return out
}

// Replace swaps all global custom sets for the given ones. Nothing changes
// when any name is invalid.
func (s *Store) Replace(sets map[string][]string) error {
	next := make(map[string]ir.Set, len(sets))
	for name, elems := range sets {
		if err := checkGlobalName(name); err != nil {
			return err
		}
		next[name] = ir.NewSet(name, elems)
	}
	s.global = next
	return nil
}

func checkGlobalName(name string) error {
	if ir.IsBuiltinSet(name) {
		return ir.Semanticf(ir.CodeBuiltinCollision, "set %q is builtin and cannot be redefined", name)
	}
	if !ValidSetName(name) {
		return ir.Syntaxf(ir.CodeSetSyntax, "invalid set name %q", name)
	}
	return nil
}
