package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// NodeKind is the type of a combinator AST node.
type NodeKind string

const (
	NodeRule   NodeKind = "rule"   // leaf: a simple rule name
	NodeNegate NodeKind = "negate" // unary ~
	NodeNot    NodeKind = "not"    // binary !, a && !b
	NodeAnd    NodeKind = "and"    // &&
	NodeOr     NodeKind = "or"     // ||
)

// Node is a combinator expression tree.
type Node struct {
	Kind  NodeKind `json:"kind"`
	Name  string   `json:"name,omitempty"`
	Left  *Node    `json:"left,omitempty"`
	Right *Node    `json:"right,omitempty"`
}

// RuleNames returns the distinct rule names referenced by the tree in
// left-to-right order.
func (n *Node) RuleNames() []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Kind == NodeRule {
			if !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(n)
	return names
}

// String renders the tree fully parenthesized.
func (n *Node) String() string {
	switch n.Kind {
	case NodeRule:
		return n.Name
	case NodeNegate:
		return "~" + n.Left.String()
	default:
		return fmt.Sprintf("(%s %s %s)", n.Left, binaryOps[n.Kind], n.Right)
	}
}

var binaryOps = map[NodeKind]string{
	NodeNot: "!",
	NodeAnd: "&&",
	NodeOr:  "||",
}

type combTokenKind int

const (
	ctName combTokenKind = iota
	ctAnd
	ctOr
	ctNot
	ctNegate
	ctLParen
	ctRParen
)

type combToken struct {
	kind combTokenKind
	text string
	pos  int
}

// binary operator precedence; ~ binds tightest at 4
var precedence = map[combTokenKind]int{
	ctOr:  1,
	ctAnd: 2,
	ctNot: 3,
}

var nodeFor = map[combTokenKind]NodeKind{
	ctOr:  NodeOr,
	ctAnd: NodeAnd,
	ctNot: NodeNot,
}

// ParseCombinator parses a combinator body (the match line without "::").
//
// Precedence, tightest first: ~ (unary, right-associative), !, &&, ||.
// Binary operators associate left.
func ParseCombinator(body string) (*Node, error) {
	toks, err := tokenizeCombinator(body)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, ir.Syntaxf(ir.CodeCombinatorSyntax, "empty combinator expression")
	}

	p := &combParser{toks: toks}
	node, err := p.parseExpr(1)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		t := p.toks[p.pos]
		return nil, ir.Syntaxf(ir.CodeCombinatorSyntax, "unexpected %q at offset %d", t.text, t.pos)
	}
	return node, nil
}

func tokenizeCombinator(body string) ([]combToken, error) {
	rs := []rune(body)
	var toks []combToken
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '&' && i+1 < len(rs) && rs[i+1] == '&':
			toks = append(toks, combToken{ctAnd, "&&", i})
			i += 2
		case r == '|' && i+1 < len(rs) && rs[i+1] == '|':
			toks = append(toks, combToken{ctOr, "||", i})
			i += 2
		case r == '!':
			toks = append(toks, combToken{ctNot, "!", i})
			i++
		case r == '~':
			toks = append(toks, combToken{ctNegate, "~", i})
			i++
		case r == '(':
			toks = append(toks, combToken{ctLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, combToken{ctRParen, ")", i})
			i++
		case isNameRune(r):
			start := i
			for i < len(rs) && isNameRune(rs[i]) {
				i++
			}
			toks = append(toks, combToken{ctName, string(rs[start:i]), start})
		default:
			return nil, ir.Syntaxf(ir.CodeCombinatorSyntax, "unexpected %q at offset %d", r, i)
		}
	}
	return toks, nil
}

type combParser struct {
	toks []combToken
	pos  int
}

func (p *combParser) peek() (combToken, bool) {
	if p.pos >= len(p.toks) {
		return combToken{}, false
	}
	return p.toks[p.pos], true
}

// parseExpr is precedence climbing over the binary operators.
func (p *combParser) parseExpr(minPrec int) (*Node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok {
			return lhs, nil
		}
		prec, isBinary := precedence[t.kind]
		if !isBinary || prec < minPrec {
			return lhs, nil
		}
		p.pos++
		rhs, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		lhs = &Node{Kind: nodeFor[t.kind], Left: lhs, Right: rhs}
	}
}

func (p *combParser) parseUnary() (*Node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, ir.Syntaxf(ir.CodeCombinatorSyntax, "expression ends where an operand is expected")
	}
	switch t.kind {
	case ctNegate:
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeNegate, Left: operand}, nil

	case ctLParen:
		p.pos++
		inner, err := p.parseExpr(1)
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != ctRParen {
			return nil, ir.Syntaxf(ir.CodeCombinatorSyntax, "unclosed '(' at offset %d", t.pos)
		}
		p.pos++
		return inner, nil

	case ctName:
		p.pos++
		return &Node{Kind: NodeRule, Name: t.text}, nil

	case ctRParen:
		return nil, ir.Syntaxf(ir.CodeCombinatorSyntax, "unexpected ')' at offset %d", t.pos)
	}
	return nil, ir.Syntaxf(ir.CodeCombinatorSyntax, "operator %q at offset %d is missing its left operand", t.text, t.pos)
}

// isNameRune reports whether r may appear in a rule name: ASCII letters and
// digits, underscore, and CJK characters.
func isNameRune(r rune) bool {
	switch {
	case r == '_':
		return true
	case r < utf8.RuneSelf:
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
	}
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// ValidRuleName reports whether name uses only rule-name characters.
func ValidRuleName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	for _, r := range name {
		if !isNameRune(r) {
			return false
		}
	}
	return true
}
