package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xiao2945/danci-sub000/internal/charset"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

// Anchor is a position marker in a pattern.
type Anchor string

const (
	AnchorNone     Anchor = ""
	AnchorBegin    Anchor = `\b`  // match starts at offset 0
	AnchorNotBegin Anchor = `\-b` // match starts at offset ≥ 1
	AnchorEnd      Anchor = `\e`  // match ends at the last character
	AnchorNotEnd   Anchor = `\-e` // match ends before the last character
)

// IsBegin reports whether a is a begin-type anchor.
func (a Anchor) IsBegin() bool { return a == AnchorBegin || a == AnchorNotBegin }

// IsEnd reports whether a is an end-type anchor.
func (a Anchor) IsEnd() bool { return a == AnchorEnd || a == AnchorNotEnd }

// ElementKind is the type of a compiled pattern element.
type ElementKind string

const (
	ElemLiteral ElementKind = "literal"
	ElemSet     ElementKind = "set"
)

// Element is one non-anchor pattern element.
//
// Options holds the lower-cased strings the element may consume at one
// step, longest first. A literal has exactly one option.
type Element struct {
	Kind      ElementKind `json:"kind"`
	Text      string      `json:"text,omitempty"`     // literal text
	SetName   string      `json:"set_name,omitempty"` // set reference
	Bracketed bool        `json:"bracketed,omitempty"`
	Repeat    bool        `json:"repeat,omitempty"` // "+" quantifier
	Options   [][]rune    `json:"-"`
	MinLen    int         `json:"min_len"`
}

// Policy is how much of a tried span a pattern must consume.
type Policy string

const (
	// PolicyPartial patterns hold at least one set element.
	PolicyPartial Policy = "partial"
	// PolicyExhaustive patterns are purely literal.
	PolicyExhaustive Policy = "exhaustive"
)

// Pattern is a compiled simple-rule pattern.
type Pattern struct {
	Source    string    `json:"source"`
	Elements  []Element `json:"elements"`
	Begin     Anchor    `json:"begin,omitempty"`
	End       Anchor    `json:"end,omitempty"`
	Policy    Policy    `json:"policy"`
	Ambiguous bool      `json:"ambiguous"`
	MinLen    int       `json:"min_len"`
}

type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokSet
	tokAnchor
)

type patternToken struct {
	kind      tokenKind
	text      string // literal text or set name
	bracketed bool
	repeat    bool
	anchor    Anchor
	pos       int // rune offset in the pattern body
}

// CompilePattern compiles a pattern body (the match line without ":").
// resolve looks up set names, local sets first.
func CompilePattern(body string, resolve func(name string) (ir.Set, bool)) (*Pattern, error) {
	toks, err := scanPattern(body)
	if err != nil {
		return nil, err
	}
	if err := checkAnchors(toks); err != nil {
		return nil, err
	}

	p := &Pattern{Source: body, Policy: PolicyExhaustive}
	for _, tok := range toks {
		switch tok.kind {
		case tokAnchor:
			if tok.anchor.IsBegin() {
				p.Begin = tok.anchor
			} else {
				p.End = tok.anchor
			}

		case tokLiteral:
			text := strings.ToLower(tok.text)
			r := []rune(text)
			p.Elements = append(p.Elements, Element{
				Kind:    ElemLiteral,
				Text:    text,
				Repeat:  tok.repeat,
				Options: [][]rune{r},
				MinLen:  len(r),
			})

		case tokSet:
			set, ok := resolve(tok.text)
			if !ok {
				return nil, ir.Referencef(ir.CodeUnknownSet, "pattern references unknown set %q", tok.text)
			}
			el := Element{
				Kind:      ElemSet,
				SetName:   tok.text,
				Bracketed: tok.bracketed,
				Repeat:    tok.repeat,
			}
			for i, f := range set.Folded() {
				r := []rune(f)
				el.Options = append(el.Options, r)
				if i == 0 || len(r) < el.MinLen {
					el.MinLen = len(r)
				}
			}
			if charset.Ambiguous(set) {
				p.Ambiguous = true
			}
			p.Policy = PolicyPartial
			p.Elements = append(p.Elements, el)
		}
	}

	for _, el := range p.Elements {
		p.MinLen += el.MinLen
	}
	return p, nil
}

// PatternSets returns the set names a pattern body references, in order.
func PatternSets(body string) ([]string, error) {
	toks, err := scanPattern(body)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, tok := range toks {
		if tok.kind == tokSet {
			names = append(names, tok.text)
		}
	}
	return names, nil
}

// scanPattern tokenizes a pattern body and enforces its character grammar:
// lowercase letters only inside quotes, no digits, "+" only directly after
// a set, bracket or quote, and markers \b \-b \e \-e.
func scanPattern(body string) ([]patternToken, *ir.Error) {
	rs := []rune(body)
	if len(rs) == 0 {
		return nil, ir.Syntaxf(ir.CodePatternGrammar, "empty pattern")
	}

	var toks []patternToken
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case r == '\\':
			rest := string(rs[i+1:])
			var a Anchor
			switch {
			case strings.HasPrefix(rest, "-b"):
				a = AnchorNotBegin
			case strings.HasPrefix(rest, "-e"):
				a = AnchorNotEnd
			case strings.HasPrefix(rest, "b"):
				a = AnchorBegin
			case strings.HasPrefix(rest, "e"):
				a = AnchorEnd
			default:
				return nil, ir.Syntaxf(ir.CodePatternGrammar, `unknown position marker at offset %d; use \b, \-b, \e or \-e`, i)
			}
			toks = append(toks, patternToken{kind: tokAnchor, anchor: a, pos: i})
			i += utf8.RuneCountInString(string(a))

		case r == '"':
			end := indexRune(rs, '"', i+1)
			if end < 0 {
				return nil, ir.Syntaxf(ir.CodeUnterminatedQuote, "unterminated quote at offset %d", i)
			}
			if end == i+1 {
				return nil, ir.Syntaxf(ir.CodePatternGrammar, "empty literal at offset %d", i)
			}
			toks = append(toks, patternToken{kind: tokLiteral, text: string(rs[i+1 : end]), pos: i})
			i = end + 1

		case r == '(':
			end := indexRune(rs, ')', i+1)
			if end < 0 {
				return nil, ir.Syntaxf(ir.CodeUnbalancedParen, "unclosed '(' at offset %d", i)
			}
			name := strings.TrimSpace(string(rs[i+1 : end]))
			if !charset.ValidSetName(name) {
				return nil, ir.Syntaxf(ir.CodePatternGrammar, "invalid set name %q in brackets", name)
			}
			toks = append(toks, patternToken{kind: tokSet, text: name, bracketed: true, pos: i})
			i = end + 1

		case r == ')':
			return nil, ir.Syntaxf(ir.CodeUnbalancedParen, "unmatched ')' at offset %d", i)

		case r == '+':
			if len(toks) == 0 {
				return nil, ir.Syntaxf(ir.CodePatternGrammar, "'+' at the start of the pattern has no operand")
			}
			last := &toks[len(toks)-1]
			if last.kind == tokAnchor {
				return nil, ir.Syntaxf(ir.CodePatternGrammar, "'+' cannot follow a position marker")
			}
			if last.repeat {
				return nil, ir.Syntaxf(ir.CodePatternGrammar, "doubled '+' at offset %d", i)
			}
			last.repeat = true
			i++

		case r >= 'A' && r <= 'Z':
			toks = append(toks, patternToken{kind: tokSet, text: string(r), pos: i})
			i++

		case unicode.IsDigit(r):
			return nil, ir.Syntaxf(ir.CodePatternGrammar, "digit %q at offset %d; only '+' quantifies", r, i)

		case unicode.IsLower(r):
			return nil, ir.Syntaxf(ir.CodePatternGrammar, "lowercase %q at offset %d must be quoted", r, i)

		default:
			return nil, ir.Syntaxf(ir.CodePatternGrammar, "unexpected %q at offset %d", r, i)
		}
	}
	return toks, nil
}

// checkAnchors enforces anchor legality: something to match, no
// contradictory pairs, at most one of each type, begin first and end last.
func checkAnchors(toks []patternToken) *ir.Error {
	var begins, ends []Anchor
	operands := 0
	for _, t := range toks {
		switch {
		case t.kind != tokAnchor:
			operands++
		case t.anchor.IsBegin():
			begins = append(begins, t.anchor)
		default:
			ends = append(ends, t.anchor)
		}
	}
	if len(begins)+len(ends) == 0 {
		return nil
	}

	if operands == 0 {
		return ir.Semanticf(ir.CodeAnchor, "pattern has position markers but no set or literal to match")
	}
	if containsAnchor(begins, AnchorBegin) && containsAnchor(begins, AnchorNotBegin) {
		return ir.Semanticf(ir.CodeAnchor, `\b and \-b contradict each other`)
	}
	if containsAnchor(ends, AnchorEnd) && containsAnchor(ends, AnchorNotEnd) {
		return ir.Semanticf(ir.CodeAnchor, `\e and \-e contradict each other`)
	}
	if len(begins) > 1 {
		return ir.Semanticf(ir.CodeAnchor, "more than one begin marker")
	}
	if len(ends) > 1 {
		return ir.Semanticf(ir.CodeAnchor, "more than one end marker")
	}
	for i, t := range toks {
		if t.kind != tokAnchor {
			continue
		}
		if t.anchor.IsBegin() && i != 0 {
			return ir.Semanticf(ir.CodeAnchor, "%s must be the first token of the pattern", t.anchor)
		}
		if t.anchor.IsEnd() && i != len(toks)-1 {
			return ir.Semanticf(ir.CodeAnchor, "%s must be the last token of the pattern", t.anchor)
		}
	}
	return nil
}

func containsAnchor(list []Anchor, a Anchor) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func indexRune(rs []rune, r rune, from int) int {
	for i := from; i < len(rs); i++ {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
