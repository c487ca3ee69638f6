package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the top-level error category.
type ErrorKind string

const (
	// KindSyntax covers malformed lines and tokens: unbalanced parens or
	// quotes, bad set definitions, illegal characters.
	KindSyntax ErrorKind = "syntax"

	// KindReference covers unknown set or rule names, forward references and
	// combinators referencing combinators.
	KindReference ErrorKind = "reference"

	// KindCircularity covers set and rule cycles. Path holds the cycle.
	KindCircularity ErrorKind = "circularity"

	// KindSemantic covers anchor contradictions, display rule constraints,
	// reserved names and length limits.
	KindSemantic ErrorKind = "semantic"
)

// Sentinels for errors.Is matching on the kind of an *Error.
var (
	ErrSyntax      = errors.New("syntax error")
	ErrReference   = errors.New("reference error")
	ErrCircularity = errors.New("circularity error")
	ErrSemantic    = errors.New("semantic constraint error")
)

// Error codes (E1xx).
const (
	CodeSetSyntax          = "E101" // malformed set expression or definition line
	CodeUnknownSet         = "E102" // referenced set does not exist
	CodeCircularSet        = "E103" // set depends on itself
	CodeForwardReference   = "E104" // set referenced before its definition line
	CodeUnbalancedParen    = "E105" // "(" without ")" or the reverse
	CodeUnterminatedQuote  = "E106" // '"' without closing quote
	CodePatternGrammar     = "E107" // illegal character, misplaced "+", digits
	CodeAnchor             = "E108" // anchor placement or combination
	CodeUnknownRule        = "E110" // combinator references a missing rule
	CodeNestedCombinator   = "E111" // combinator references a combinator
	CodeCombinatorSyntax   = "E112" // combinator expression malformed
	CodeCircularRule       = "E113" // combinator rules form a cycle
	CodeDisplaySyntax      = "E120" // malformed display rule
	CodeDisplayReference   = "E121" // display rule references unknown set
	CodeDisplayConstraint  = "E122" // levels, "!" placement, "@@" arity/flags
	CodeRuleName           = "E130" // empty, too long or illegal characters
	CodeCommentLength      = "E131" // comment too long
	CodeReservedName       = "E132" // rule named after a reserved word
	CodeBuiltinCollision   = "E133" // local set named C, V or L
	CodeRuleStructure      = "E134" // missing or duplicate name/match/display line
	CodeCombinatorDepth    = "E140" // combinator leaf resolved to a combinator at evaluation
	CodeDuplicateRuleName  = "W201" // warning: rule name overwrites an existing rule
	CodeUnreferencedLocals = "W202" // warning: local set never referenced
)

// Error is the single error type raised by parsing, validation and evaluation.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Line    int       `json:"line,omitempty"`
	Path    []string  `json:"path,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSyntax:
		return e.Kind == KindSyntax
	case ErrReference:
		return e.Kind == KindReference
	case ErrCircularity:
		return e.Kind == KindCircularity
	case ErrSemantic:
		return e.Kind == KindSemantic
	}
	return false
}

// AtLine returns a copy of e positioned at line.
func (e *Error) AtLine(line int) *Error {
	c := *e
	c.Line = line
	return &c
}

// Syntaxf builds a syntax error.
func Syntaxf(code, format string, args ...any) *Error {
	return &Error{Kind: KindSyntax, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Referencef builds a reference error.
func Referencef(code, format string, args ...any) *Error {
	return &Error{Kind: KindReference, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Semanticf builds a semantic constraint error.
func Semanticf(code, format string, args ...any) *Error {
	return &Error{Kind: KindSemantic, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Circular builds a circularity error; path lists the cycle with the start
// repeated at the end, e.g. [A B A].
func Circular(code, what string, path []string) *Error {
	return &Error{
		Kind:    KindCircularity,
		Code:    code,
		Message: fmt.Sprintf("circular %s reference: %s", what, strings.Join(path, " → ")),
		Path:    path,
	}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}
