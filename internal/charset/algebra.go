package charset

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// Set algebra operators.
const (
	OpDifference = ">>"
	OpUnion      = "<<"
)

// OperandKind tells how an operand names its elements.
type OperandKind int

const (
	// OperandName is a bare single uppercase letter: A.
	OperandName OperandKind = iota
	// OperandBracketed is a parenthesized set name: (Name).
	OperandBracketed
	// OperandBraces is a brace literal: {a,b,c}.
	OperandBraces
	// OperandQuoted is a quoted literal: "abc", one atomic element.
	OperandQuoted
)

// Operand is one side of a set algebra expression.
type Operand struct {
	Kind     OperandKind
	Name     string   // for OperandName and OperandBracketed
	Elements []string // for OperandBraces and OperandQuoted
	Source   string
}

// Expr is a parsed set expression: the union of Terms[0] minus the union
// of every later term, applied left to right.
type Expr struct {
	Terms [][]Operand
}

// ParseExpr parses a set algebra expression.
//
// ">>" is split first, so "A << B >> C" means (A ∪ B) − C. Every operand
// must independently be a single uppercase letter, a parenthesized name, a
// brace literal or a quoted literal.
func ParseExpr(expr string) (Expr, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Expr{}, ir.Syntaxf(ir.CodeSetSyntax, "empty set expression")
	}

	diffParts, err := SplitTopLevel(expr, OpDifference)
	if err != nil {
		return Expr{}, err
	}

	var parsed Expr
	for _, part := range diffParts {
		unionParts, err := SplitTopLevel(part, OpUnion)
		if err != nil {
			return Expr{}, err
		}
		var term []Operand
		for _, raw := range unionParts {
			op, err := ParseOperand(raw)
			if err != nil {
				return Expr{}, err
			}
			term = append(term, op)
		}
		parsed.Terms = append(parsed.Terms, term)
	}
	return parsed, nil
}

// ParseOperand parses a single operand.
func ParseOperand(raw string) (Operand, error) {
	src := strings.TrimSpace(raw)
	switch {
	case src == "":
		return Operand{}, ir.Syntaxf(ir.CodeSetSyntax, "missing operand in set expression")

	case isBareSetName(src):
		return Operand{Kind: OperandName, Name: src, Source: src}, nil

	case strings.HasPrefix(src, "(") && strings.HasSuffix(src, ")"):
		name := strings.TrimSpace(src[1 : len(src)-1])
		if !ValidSetName(name) {
			return Operand{}, ir.Syntaxf(ir.CodeSetSyntax, "invalid set name %q in %q", name, src)
		}
		return Operand{Kind: OperandBracketed, Name: name, Source: src}, nil

	case strings.HasPrefix(src, "{") && strings.HasSuffix(src, "}"):
		elems, err := parseBraceElements(src[1 : len(src)-1])
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandBraces, Elements: elems, Source: src}, nil

	case len(src) >= 2 && strings.HasPrefix(src, `"`) && strings.HasSuffix(src, `"`):
		text := src[1 : len(src)-1]
		if text == "" || strings.ContainsAny(text, `"{},`) {
			return Operand{}, ir.Syntaxf(ir.CodeSetSyntax, "invalid quoted literal %s", src)
		}
		return Operand{Kind: OperandQuoted, Elements: []string{text}, Source: src}, nil
	}

	return Operand{}, ir.Syntaxf(ir.CodeSetSyntax,
		"operand %q must be a single uppercase letter, (Name), {a,b} or \"text\"", src)
}

func parseBraceElements(body string) ([]string, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ir.Syntaxf(ir.CodeSetSyntax, "empty brace literal {}")
	}
	parts := strings.Split(body, ",")
	elems := make([]string, 0, len(parts))
	for _, p := range parts {
		e := strings.TrimSpace(p)
		if e == "" {
			return nil, ir.Syntaxf(ir.CodeSetSyntax, "empty element in {%s}", body)
		}
		if strings.ContainsAny(e, `"{}() `) {
			return nil, ir.Syntaxf(ir.CodeSetSyntax, "illegal character in element %q", e)
		}
		elems = append(elems, e)
	}
	return elems, nil
}

// References lists the set names the expression refers to, in order.
func (e Expr) References() []string {
	var refs []string
	for _, term := range e.Terms {
		for _, op := range term {
			if op.Kind == OperandName || op.Kind == OperandBracketed {
				refs = append(refs, op.Name)
			}
		}
	}
	return refs
}

// Eval computes the expression's elements using resolve for named operands.
func (e Expr) Eval(resolve func(name string) (ir.Set, bool)) ([]string, error) {
	var result map[string]bool
	var order []string

	for i, term := range e.Terms {
		termElems := make(map[string]bool)
		var termOrder []string
		for _, op := range term {
			elems, err := op.elements(resolve)
			if err != nil {
				return nil, err
			}
			for _, el := range elems {
				if !termElems[el] {
					termElems[el] = true
					termOrder = append(termOrder, el)
				}
			}
		}

		if i == 0 {
			result = termElems
			order = termOrder
			continue
		}
		for el := range termElems {
			delete(result, el)
		}
	}

	out := make([]string, 0, len(result))
	for _, el := range order {
		if result[el] {
			out = append(out, el)
		}
	}
	return out, nil
}

func (op Operand) elements(resolve func(name string) (ir.Set, bool)) ([]string, error) {
	switch op.Kind {
	case OperandName, OperandBracketed:
		set, ok := resolve(op.Name)
		if !ok {
			return nil, ir.Referencef(ir.CodeUnknownSet, "unknown set %q", op.Name)
		}
		return set.Elements, nil
	default:
		return op.Elements, nil
	}
}

// SplitTopLevel splits s on sep, ignoring separators inside quotes, braces
// or parentheses.
func SplitTopLevel(s, sep string) ([]string, error) {
	var parts []string
	depthParen, depthBrace := 0, 0
	inQuote := false
	start := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depthParen++
		case c == ')':
			depthParen--
			if depthParen < 0 {
				return nil, ir.Syntaxf(ir.CodeUnbalancedParen, "unbalanced ')' in %q", s)
			}
		case c == '{':
			depthBrace++
		case c == '}':
			depthBrace--
			if depthBrace < 0 {
				return nil, ir.Syntaxf(ir.CodeSetSyntax, "unbalanced '}' in %q", s)
			}
		case depthParen == 0 && depthBrace == 0 && strings.HasPrefix(s[i:], sep):
			parts = append(parts, s[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}

	if inQuote {
		return nil, ir.Syntaxf(ir.CodeUnterminatedQuote, "unterminated quote in %q", s)
	}
	if depthParen != 0 {
		return nil, ir.Syntaxf(ir.CodeUnbalancedParen, "unbalanced '(' in %q", s)
	}
	if depthBrace != 0 {
		return nil, ir.Syntaxf(ir.CodeSetSyntax, "unbalanced '{' in %q", s)
	}
	return append(parts, s[start:]), nil
}

// ValidSetName reports whether name can name a set: letters (any script),
// digits and underscore, not starting with a digit.
func ValidSetName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}

// isBareSetName reports whether s is a single uppercase ASCII letter.
func isBareSetName(s string) bool {
	return len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z'
}

// IsBareSetName is the exported form used by the pattern compiler.
func IsBareSetName(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// Ambiguous reports whether any element is a proper prefix of another after
// case folding, e.g. {"a", "ab"}. Ambiguous sets need backtracking because
// more than one element can match at the same offset.
func Ambiguous(set ir.Set) bool {
	folded := set.Folded()
	for i, a := range folded {
		for j, b := range folded {
			if i != j && utf8.RuneCountInString(a) < utf8.RuneCountInString(b) && strings.HasPrefix(b, a) {
				return true
			}
		}
	}
	return false
}
