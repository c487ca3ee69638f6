package compiler

import (
	"strings"
	"unicode"

	"github.com/xiao2945/danci-sub000/internal/charset"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

// ParseRule parses rule text and evaluates its local set definitions
// against sets. It stops at the first error.
func ParseRule(text string, sets *charset.Store) (*ir.Rule, error) {
	rule, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if err := BuildLocals(rule, sets); err != nil {
		return nil, err
	}
	return rule, nil
}

// Parse performs the structural parse of one rule definition.
//
// Grammar, one construct per line:
//
//	#Name[//comment]
//	Name == expr        (zero or more)
//	:pattern | ::expr   (exactly one)
//	@rule | @@rule      (at most one)
//
// Blank lines and full-line "//" comments are skipped. A full-line comment
// directly after the name line becomes the rule comment when the name line
// carries none. Local sets are not evaluated; see BuildLocals.
func Parse(text string) (*ir.Rule, error) {
	rule := &ir.Rule{}
	seenName := false
	nameLine := 0

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ir.CommentMarker) {
			if seenName && lineNo == nameLine+1 && rule.Comment == "" {
				rule.Comment = strings.TrimSpace(strings.TrimPrefix(line, ir.CommentMarker))
			}
			continue
		}

		if strings.HasPrefix(line, ir.PrefixName) {
			if seenName {
				return nil, ir.Syntaxf(ir.CodeRuleStructure, "second name line %q; one rule per definition", line).AtLine(lineNo)
			}
			seenName = true
			nameLine = lineNo
			name, comment, _ := strings.Cut(strings.TrimPrefix(line, ir.PrefixName), ir.CommentMarker)
			rule.Name = strings.TrimSpace(name)
			rule.Comment = strings.TrimSpace(comment)
			continue
		}

		if !seenName {
			return nil, ir.Syntaxf(ir.CodeRuleStructure, "rule must start with a name line (#Name), got %q", line).AtLine(lineNo)
		}

		line = strings.TrimSpace(stripComment(line))
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, ir.PrefixCombinator), strings.HasPrefix(line, ir.PrefixSimple):
			if rule.SpecificRule != "" {
				return nil, ir.Syntaxf(ir.CodeRuleStructure, "second match line %q", line).AtLine(lineNo)
			}
			rule.SpecificRule = normalizeMatchLine(line)
			rule.MatchLine = lineNo

		case strings.HasPrefix(line, ir.PrefixDisplay):
			if rule.DisplayRule != "" {
				return nil, ir.Syntaxf(ir.CodeRuleStructure, "second display line %q", line).AtLine(lineNo)
			}
			rule.DisplayRule = removeSpaces(line)
			rule.DisplayLine = lineNo

		case strings.Contains(line, ir.DefinitionMarker):
			def, err := parseDefinition(line)
			if err != nil {
				return nil, err.AtLine(lineNo)
			}
			def.Line = lineNo
			for _, prev := range rule.Definitions {
				if prev.Name == def.Name {
					return nil, ir.Syntaxf(ir.CodeSetSyntax, "set %q defined twice (line %d)", def.Name, prev.Line).AtLine(lineNo)
				}
			}
			rule.Definitions = append(rule.Definitions, def)

		default:
			return nil, ir.Syntaxf(ir.CodeRuleStructure, "unrecognized line %q", line).AtLine(lineNo)
		}
	}

	if !seenName {
		return nil, ir.Syntaxf(ir.CodeRuleStructure, "missing name line (#Name)")
	}
	if rule.SpecificRule == "" {
		return nil, ir.Syntaxf(ir.CodeRuleStructure, "rule %q has no match line (:pattern or ::expr)", rule.Name)
	}
	return rule, nil
}

func parseDefinition(line string) (ir.SetDefinition, *ir.Error) {
	name, expr, _ := strings.Cut(line, ir.DefinitionMarker)
	name = strings.TrimSpace(name)
	expr = strings.TrimSpace(expr)
	if name == "" || !charset.ValidSetName(name) {
		return ir.SetDefinition{}, ir.Syntaxf(ir.CodeSetSyntax, "invalid set name %q in definition", name)
	}
	if expr == "" {
		return ir.SetDefinition{}, ir.Syntaxf(ir.CodeSetSyntax, "set %q has an empty definition", name)
	}
	if strings.Contains(expr, ir.DefinitionMarker) {
		return ir.SetDefinition{}, ir.Syntaxf(ir.CodeSetSyntax, "definition of %q contains more than one %q", name, ir.DefinitionMarker)
	}
	return ir.SetDefinition{Name: name, Expr: expr}, nil
}

// BuildLocals evaluates the rule's set definitions in order and stores the
// results in rule.LocalSets. Circular definitions are reported before
// forward references so a two-set cycle names both sets.
func BuildLocals(rule *ir.Rule, sets *charset.Store) error {
	exprs := make([]charset.Expr, len(rule.Definitions))
	for i, def := range rule.Definitions {
		e, err := charset.ParseExpr(def.Expr)
		if err != nil {
			return atDefinition(err, def)
		}
		exprs[i] = e
	}

	if err := localCycles(rule.Definitions, exprs); err != nil {
		return err
	}

	locals := make(map[string]ir.Set, len(rule.Definitions))
	rule.LocalSets = rule.LocalSets[:0]
	for i, def := range rule.Definitions {
		if err := checkDefinitionRefs(rule, i, exprs[i], sets); err != nil {
			return err
		}
		elements, err := exprs[i].Eval(func(name string) (ir.Set, bool) {
			return sets.Resolve(name, locals)
		})
		if err != nil {
			return atDefinition(err, def)
		}
		set := ir.NewSet(def.Name, elements)
		locals[def.Name] = set
		rule.LocalSets = append(rule.LocalSets, set)
	}
	return nil
}

// checkDefinitionRefs reports unknown and forward references in the i-th
// definition.
func checkDefinitionRefs(rule *ir.Rule, i int, expr charset.Expr, sets *charset.Store) *ir.Error {
	def := rule.Definitions[i]
	for _, ref := range expr.References() {
		if ir.IsBuiltinSet(ref) {
			continue
		}
		if j := definitionIndex(rule, ref); j >= 0 {
			if j > i {
				return ir.Referencef(ir.CodeForwardReference,
					"set %q is referenced by %q before its definition on line %d", ref, def.Name, defLine(rule, j)).AtLine(defLine(rule, i))
			}
			continue
		}
		if _, ok := sets.Global(ref); !ok {
			return ir.Referencef(ir.CodeUnknownSet, "set %q referenced by %q does not exist", ref, def.Name).AtLine(defLine(rule, i))
		}
	}
	return nil
}

func localCycles(defs []ir.SetDefinition, exprs []charset.Expr) *ir.Error {
	graph := make(dependencyGraph, len(defs))
	local := make(map[string]bool, len(defs))
	for _, d := range defs {
		local[d.Name] = true
	}
	for i, d := range defs {
		graph[d.Name] = []string{}
		for _, ref := range exprs[i].References() {
			if local[ref] {
				graph[d.Name] = append(graph[d.Name], ref)
			}
		}
	}
	if cycles := findCycles(graph); len(cycles) > 0 {
		c := cycles[0]
		e := ir.Circular(ir.CodeCircularSet, "set", c)
		for _, d := range defs {
			if d.Name == c[0] {
				return e.AtLine(d.Line)
			}
		}
		return e
	}
	return nil
}

func definitionIndex(rule *ir.Rule, name string) int {
	for i, d := range rule.Definitions {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// defLine is the line of the i-th definition. Rules rebuilt from records
// have no line numbers, so their definition order stands in.
func defLine(rule *ir.Rule, i int) int {
	if l := rule.Definitions[i].Line; l > 0 {
		return l
	}
	return i + 1
}

func atDefinition(err error, def ir.SetDefinition) error {
	if e, ok := ir.AsError(err); ok && def.Line > 0 {
		return e.AtLine(def.Line)
	}
	return err
}

// stripComment removes a trailing "//" comment outside quotes.
func stripComment(line string) string {
	inQuote := false
	for i := 0; i+1 < len(line); i++ {
		switch {
		case line[i] == '"':
			inQuote = !inQuote
		case !inQuote && line[i] == '/' && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}

func normalizeMatchLine(line string) string {
	if strings.HasPrefix(line, ir.PrefixCombinator) {
		return ir.PrefixCombinator + strings.TrimSpace(strings.TrimPrefix(line, ir.PrefixCombinator))
	}
	return removeSpaces(line)
}

// removeSpaces drops whitespace outside quotes.
func removeSpaces(s string) string {
	var b strings.Builder
	inQuote := false
	for _, r := range s {
		if r == '"' {
			inQuote = !inQuote
		}
		if !inQuote && unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Chunk is one rule definition cut out of a multi-rule document.
type Chunk struct {
	Text string
	Line int // 1-based line of the chunk's first line in the document
}

// SplitRules splits a document holding several rule definitions at name
// lines. Leading blank and comment lines are dropped; any other text before
// the first name line is returned as its own chunk so parsing reports it.
func SplitRules(text string) []Chunk {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var chunks []Chunk
	var cur []string
	start := 0
	seenName := false

	flush := func() {
		body := strings.Join(cur, "\n")
		if strings.TrimSpace(body) != "" {
			chunks = append(chunks, Chunk{Text: body, Line: start + 1})
		}
		cur = nil
	}

	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, ir.PrefixName) {
			flush()
			seenName = true
		} else if !seenName && len(cur) == 0 && (trimmed == "" || strings.HasPrefix(trimmed, ir.CommentMarker)) {
			continue
		}
		if len(cur) == 0 {
			start = i
		}
		cur = append(cur, raw)
	}
	flush()
	return chunks
}
