package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainRule = "danci/rule/v1"
	DomainSet  = "danci/set/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RuleHash computes the content identity of a rule record.
// Element order inside local sets does not change the hash; local set order does.
func RuleHash(rec RuleRecord) (string, error) {
	locals := make([]any, 0, len(rec.LocalSets))
	for _, ls := range rec.LocalSets {
		locals = append(locals, []any{ls.Name, sortedCopy(ls.Elements)})
	}
	obj := map[string]any{
		"name":          rec.Name,
		"comment":       rec.Comment,
		"local_sets":    locals,
		"specific_rule": rec.SpecificRule,
		"display_rule":  rec.DisplayRule,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RuleHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRule, canonical), nil
}

// SetHash computes the content identity of a named set.
func SetHash(name string, elements []string) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"name":     name,
		"elements": sortedCopy(elements),
	})
	if err != nil {
		return "", fmt.Errorf("SetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSet, canonical), nil
}

func sortedCopy(in []string) []string {
	return NewSet("", in).Elements
}
