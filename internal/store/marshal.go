package store

import (
	"encoding/json"
	"fmt"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// marshalElements converts set elements to canonical JSON TEXT, sorted and
// de-duplicated so equal sets store identical text.
func marshalElements(elements []string) (string, error) {
	data, err := ir.MarshalCanonical(ir.NewSet("", elements).Elements)
	if err != nil {
		return "", fmt.Errorf("marshal elements: %w", err)
	}
	return string(data), nil
}

// unmarshalElements parses stored set elements. Returns an empty slice,
// not nil, for an empty set.
func unmarshalElements(data string) ([]string, error) {
	elems := []string{}
	if err := json.Unmarshal([]byte(data), &elems); err != nil {
		return nil, fmt.Errorf("unmarshal elements: %w", err)
	}
	return elems, nil
}

// marshalRecord converts a rule record to JSON TEXT. Local sets encode as
// [name, elements] tuples.
func marshalRecord(rec ir.RuleRecord) (string, error) {
	if rec.LocalSets == nil {
		rec.LocalSets = []ir.LocalSetRecord{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal rule %q: %w", rec.Name, err)
	}
	return string(data), nil
}

func unmarshalRecord(data string) (ir.RuleRecord, error) {
	var rec ir.RuleRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return ir.RuleRecord{}, fmt.Errorf("unmarshal rule: %w", err)
	}
	if rec.LocalSets == nil {
		rec.LocalSets = []ir.LocalSetRecord{}
	}
	return rec, nil
}
