package engine

import (
	"errors"
	"fmt"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// RuntimeError is an error from a table operation: a missing rule or set,
// or a delete that would leave a dangling reference.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Rule names the rule involved, if any.
	Rule string

	// Set names the set involved, if any.
	Set string

	// Users lists the rules that still reference the rule or set
	// (IN_USE errors only).
	Users []string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeRuleNotFound indicates no saved rule has the requested name.
	ErrCodeRuleNotFound RuntimeErrorCode = "RULE_NOT_FOUND"

	// ErrCodeSetNotFound indicates no global set has the requested name.
	ErrCodeSetNotFound RuntimeErrorCode = "SET_NOT_FOUND"

	// ErrCodeRuleInUse indicates a combinator still references the rule.
	ErrCodeRuleInUse RuntimeErrorCode = "RULE_IN_USE"

	// ErrCodeSetInUse indicates a saved rule still references the set.
	ErrCodeSetInUse RuntimeErrorCode = "SET_IN_USE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Rule != "":
		return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.Rule)
	case e.Set != "":
		return fmt.Sprintf("%s: %s (set=%s)", e.Code, e.Message, e.Set)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound returns true if err is a missing rule or set error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRuleNotFound || re.Code == ErrCodeSetNotFound
	}
	return false
}

// IsInUse returns true if err rejected a delete because of remaining
// references.
func IsInUse(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRuleInUse || re.Code == ErrCodeSetInUse
	}
	return false
}

func ruleNotFound(name string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeRuleNotFound, Message: "no saved rule with this name", Rule: name}
}

func setNotFound(name string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeSetNotFound, Message: "no global set with this name", Set: name}
}

// MatchError is returned when evaluation finds the tables in a state
// validation should have prevented: a combinator leaf naming a missing
// rule or another combinator. "No match" is never a MatchError.
type MatchError struct {
	// Code is ir.CodeUnknownRule or ir.CodeCombinatorDepth.
	Code string

	// Rule is the combinator being evaluated.
	Rule string

	// Leaf is the offending rule reference.
	Leaf string
}

// Error implements the error interface.
func (e *MatchError) Error() string {
	if e.Code == ir.CodeCombinatorDepth {
		return fmt.Sprintf("[%s] combinator %q: leaf %q is itself a combinator", e.Code, e.Rule, e.Leaf)
	}
	return fmt.Sprintf("[%s] combinator %q: leaf %q is not a saved rule", e.Code, e.Rule, e.Leaf)
}

// IsDepthError returns true if err is a combinator-in-combinator error.
func IsDepthError(err error) bool {
	var me *MatchError
	if errors.As(err, &me) {
		return me.Code == ir.CodeCombinatorDepth
	}
	return false
}
