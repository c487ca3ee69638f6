package ir

import (
	"sort"
	"strings"
)

// Builtin set names. They always exist and cannot be shadowed by local sets.
const (
	SetConsonants = "C"
	SetVowels     = "V"
	SetLetters    = "L"
)

// Rule line prefixes.
const (
	PrefixName       = "#"
	PrefixSimple     = ":"
	PrefixCombinator = "::"
	PrefixDisplay    = "@"
	PrefixStrict     = "@@"
	CommentMarker    = "//"
	DefinitionMarker = "=="
)

// Set is a named, unordered collection of atomic string elements.
//
// Elements keep the case they were defined with; matchers fold them to lower
// case. Use NewSet to get a de-duplicated, deterministically ordered set.
type Set struct {
	Name     string   `json:"name"`
	Elements []string `json:"elements"`
}

// NewSet builds a set with duplicates removed and elements sorted.
// Empty strings are dropped.
func NewSet(name string, elements []string) Set {
	seen := make(map[string]bool, len(elements))
	out := make([]string, 0, len(elements))
	for _, e := range elements {
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return Set{Name: name, Elements: out}
}

// Contains reports whether the set holds element e (case-sensitive).
func (s Set) Contains(e string) bool {
	for _, x := range s.Elements {
		if x == e {
			return true
		}
	}
	return false
}

// Folded returns the lower-cased elements, de-duplicated, longest first.
// Ties are broken lexically so iteration order is deterministic.
func (s Set) Folded() []string {
	seen := make(map[string]bool, len(s.Elements))
	out := make([]string, 0, len(s.Elements))
	for _, e := range s.Elements {
		f := strings.ToLower(e)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := len([]rune(out[i])), len([]rune(out[j]))
		if li != lj {
			return li > lj
		}
		return out[i] < out[j]
	})
	return out
}

// Equal reports whether two sets hold the same elements, regardless of order.
func (s Set) Equal(other Set) bool {
	a := NewSet(s.Name, s.Elements)
	b := NewSet(other.Name, other.Elements)
	if len(a.Elements) != len(b.Elements) {
		return false
	}
	for i := range a.Elements {
		if a.Elements[i] != b.Elements[i] {
			return false
		}
	}
	return true
}

// RuleKind distinguishes simple pattern rules from combinator rules.
type RuleKind string

const (
	// KindSimple rules carry a pattern (":pattern").
	KindSimple RuleKind = "simple"

	// KindCombinator rules carry a boolean expression over simple rules ("::expr").
	KindCombinator RuleKind = "combinator"
)

// SetDefinition is one "Name == expression" line of a rule.
// Line is the 1-based line index within the rule text (0 when unknown).
type SetDefinition struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
	Line int    `json:"line,omitempty"`
}

// Rule is a parsed rule definition.
//
// SpecificRule keeps its prefix (":" or "::") and DisplayRule keeps its
// prefix ("@" or "@@") so the record round-trips without loss. LocalSets
// preserves definition order.
type Rule struct {
	Name         string          `json:"name"`
	Comment      string          `json:"comment"`
	LocalSets    []Set           `json:"local_sets"`
	SpecificRule string          `json:"specific_rule"`
	DisplayRule  string          `json:"display_rule"`
	Definitions  []SetDefinition `json:"-"`

	// Line indexes (1-based) of the match and display lines when parsed from text.
	MatchLine   int `json:"-"`
	DisplayLine int `json:"-"`
}

// Kind derives the rule kind from the match line prefix.
func (r *Rule) Kind() RuleKind {
	if strings.HasPrefix(r.SpecificRule, PrefixCombinator) {
		return KindCombinator
	}
	return KindSimple
}

// Body returns the match expression without its prefix.
func (r *Rule) Body() string {
	if r.Kind() == KindCombinator {
		return strings.TrimPrefix(r.SpecificRule, PrefixCombinator)
	}
	return strings.TrimPrefix(r.SpecificRule, PrefixSimple)
}

// LocalSet looks up a local set by name.
func (r *Rule) LocalSet(name string) (Set, bool) {
	for _, s := range r.LocalSets {
		if s.Name == name {
			return s, true
		}
	}
	return Set{}, false
}

// LocalMap returns the local sets keyed by name.
func (r *Rule) LocalMap() map[string]Set {
	m := make(map[string]Set, len(r.LocalSets))
	for _, s := range r.LocalSets {
		m[s.Name] = s
	}
	return m
}

// PositionFlag constrains where a sort group's set element may occur.
type PositionFlag string

const (
	PosPrefix   PositionFlag = "^" // element must start the word
	PosSuffix   PositionFlag = "$" // element must end the word
	PosAnywhere PositionFlag = "*" // default
	PosInterior PositionFlag = "~" // element touches neither edge
)

// SortMode selects how sort keys are computed.
type SortMode string

const (
	// SortLoose computes one key per level, left to right without overlap ("@").
	SortLoose SortMode = "loose"

	// SortStrict requires two sets to match in adjacent positions ("@@").
	SortStrict SortMode = "strict"
)

// SortGroup is one level of a multi-level sort key.
type SortGroup struct {
	SetName     string       `json:"set_name"`
	Position    PositionFlag `json:"position"`
	Descending  bool         `json:"descending"`
	NonGrouping bool         `json:"non_grouping"`
}

// SortSpec is a parsed display rule.
//
// When Groups is empty the words are ordered alphabetically: Descending picks
// the direction and NoGrouping disables first-letter buckets. With groups,
// NoGrouping means the body started with "!" and levels only break ties.
type SortSpec struct {
	Mode       SortMode    `json:"mode"`
	Groups     []SortGroup `json:"groups,omitempty"`
	Descending bool        `json:"descending,omitempty"`
	NoGrouping bool        `json:"no_grouping,omitempty"`
}

// Alphabetical reports whether s is one of the special bodies
// ("", "-", "!", "!-").
func (s SortSpec) Alphabetical() bool {
	return len(s.Groups) == 0
}

// ReservedNames cannot be used as rule names.
var ReservedNames = map[string]bool{
	SetConsonants: true,
	SetVowels:     true,
	SetLetters:    true,
	"true":        true,
	"false":       true,
	"null":        true,
	"undefined":   true,
}

// IsBuiltinSet reports whether name is one of C, V, L.
func IsBuiltinSet(name string) bool {
	return name == SetConsonants || name == SetVowels || name == SetLetters
}
