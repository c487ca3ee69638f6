package ir

import (
	"encoding/json"
	"fmt"
	"sort"
)

// LocalSetRecord is the persisted form of a local set.
// It encodes as a JSON tuple: ["Name", ["a", "b"]].
type LocalSetRecord struct {
	Name     string
	Elements []string
}

// MarshalJSON encodes the record as a [name, elements] tuple.
func (r LocalSetRecord) MarshalJSON() ([]byte, error) {
	elems := r.Elements
	if elems == nil {
		elems = []string{}
	}
	return json.Marshal([]any{r.Name, elems})
}

// UnmarshalJSON decodes a [name, elements] tuple.
func (r *LocalSetRecord) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("local set: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("local set: expected [name, elements], got %d items", len(raw))
	}
	if err := json.Unmarshal(raw[0], &r.Name); err != nil {
		return fmt.Errorf("local set name: %w", err)
	}
	if err := json.Unmarshal(raw[1], &r.Elements); err != nil {
		return fmt.Errorf("local set %q elements: %w", r.Name, err)
	}
	return nil
}

// RuleRecord is the persistence shape of a rule.
type RuleRecord struct {
	Name         string           `json:"name"`
	Comment      string           `json:"comment"`
	LocalSets    []LocalSetRecord `json:"local_sets"`
	SpecificRule string           `json:"specific_rule"`
	DisplayRule  string           `json:"display_rule"`
}

// Snapshot is everything the engine owns: global sets and rules.
type Snapshot struct {
	Sets  map[string][]string `json:"sets"`
	Rules []RuleRecord        `json:"rules"`
}

// Record converts a rule to its persistence shape.
func (r *Rule) Record() RuleRecord {
	rec := RuleRecord{
		Name:         r.Name,
		Comment:      r.Comment,
		LocalSets:    make([]LocalSetRecord, 0, len(r.LocalSets)),
		SpecificRule: r.SpecificRule,
		DisplayRule:  r.DisplayRule,
	}
	for _, s := range r.LocalSets {
		elems := make([]string, len(s.Elements))
		copy(elems, s.Elements)
		rec.LocalSets = append(rec.LocalSets, LocalSetRecord{Name: s.Name, Elements: elems})
	}
	return rec
}

// Rule converts a record back to a rule. Definitions are synthesized as brace
// literals so the rule can be rendered and re-parsed.
func (rec RuleRecord) Rule() *Rule {
	r := &Rule{
		Name:         rec.Name,
		Comment:      rec.Comment,
		SpecificRule: rec.SpecificRule,
		DisplayRule:  rec.DisplayRule,
	}
	for _, ls := range rec.LocalSets {
		s := NewSet(ls.Name, ls.Elements)
		r.LocalSets = append(r.LocalSets, s)
		r.Definitions = append(r.Definitions, SetDefinition{Name: s.Name, Expr: BraceLiteral(s.Elements)})
	}
	return r
}

// SortedSetNames returns the snapshot's global set names in order.
func (s Snapshot) SortedSetNames() []string {
	names := make([]string, 0, len(s.Sets))
	for n := range s.Sets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
