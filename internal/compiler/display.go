package compiler

import (
	"strings"

	"github.com/xiao2945/danci-sub000/internal/charset"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

// ParseDisplay parses a display line including its "@" or "@@" prefix.
//
// Special bodies: "" (alphabetical, grouped by first letter), "-"
// (descending), "!" (no grouping) and "!-". Otherwise the body is a list of
// sort groups, [-]X[flag] or ([-]Name[flag]), with at most one "!" cut mark.
// A leading "!" turns grouping off entirely; a later "!" keeps the groups
// after it out of the output grouping.
func ParseDisplay(line string) (ir.SortSpec, error) {
	var spec ir.SortSpec
	var body string
	switch {
	case strings.HasPrefix(line, ir.PrefixStrict):
		spec.Mode = ir.SortStrict
		body = strings.TrimPrefix(line, ir.PrefixStrict)
	case strings.HasPrefix(line, ir.PrefixDisplay):
		spec.Mode = ir.SortLoose
		body = strings.TrimPrefix(line, ir.PrefixDisplay)
	default:
		return spec, ir.Syntaxf(ir.CodeDisplaySyntax, "display rule %q must start with @ or @@", line)
	}
	body = removeSpaces(body)

	switch body {
	case "":
		return spec, nil
	case "-":
		spec.Descending = true
		return spec, nil
	case "!":
		spec.NoGrouping = true
		return spec, nil
	case "!-":
		spec.NoGrouping = true
		spec.Descending = true
		return spec, nil
	}

	rs := []rune(body)
	i := 0
	if rs[0] == '!' {
		spec.NoGrouping = true
		i = 1
	}
	cut := false
	cutPending := false
	for i < len(rs) {
		if rs[i] == '!' {
			if cut || spec.NoGrouping {
				return spec, ir.Semanticf(ir.CodeDisplayConstraint, "display rule %q has more than one '!'", line)
			}
			cut = true
			cutPending = true
			i++
			continue
		}
		group, next, err := parseSortGroup(rs, i)
		if err != nil {
			return spec, err
		}
		group.NonGrouping = cut
		cutPending = false
		spec.Groups = append(spec.Groups, group)
		i = next
	}
	if cutPending {
		return spec, ir.Semanticf(ir.CodeDisplayConstraint, "'!' must be followed by a sort group")
	}
	return spec, nil
}

func parseSortGroup(rs []rune, i int) (ir.SortGroup, int, error) {
	g := ir.SortGroup{Position: ir.PosAnywhere}
	if rs[i] == '-' {
		g.Descending = true
		i++
	}
	if i >= len(rs) {
		return g, i, ir.Syntaxf(ir.CodeDisplaySyntax, "'-' must be followed by a set name")
	}

	flagSet := false
	switch {
	case rs[i] == '(':
		end := indexRune(rs, ')', i+1)
		if end < 0 {
			return g, i, ir.Syntaxf(ir.CodeDisplaySyntax, "unclosed '(' in display rule")
		}
		inner := rs[i+1 : end]
		if len(inner) > 0 && inner[0] == '-' {
			if g.Descending {
				return g, i, ir.Syntaxf(ir.CodeDisplaySyntax, "doubled '-' in sort group")
			}
			g.Descending = true
			inner = inner[1:]
		}
		if len(inner) > 0 {
			if flag, ok := positionFlag(inner[len(inner)-1]); ok {
				g.Position = flag
				flagSet = true
				inner = inner[:len(inner)-1]
			}
		}
		g.SetName = string(inner)
		if !charset.ValidSetName(g.SetName) {
			return g, i, ir.Syntaxf(ir.CodeDisplaySyntax, "invalid set name %q in sort group", g.SetName)
		}
		i = end + 1

	case rs[i] >= 'A' && rs[i] <= 'Z':
		g.SetName = string(rs[i])
		i++

	default:
		return g, i, ir.Syntaxf(ir.CodeDisplaySyntax, "unexpected %q in display rule; multi-letter set names need parentheses", rs[i])
	}

	if i < len(rs) {
		if flag, ok := positionFlag(rs[i]); ok {
			if flagSet {
				return g, i, ir.Syntaxf(ir.CodeDisplaySyntax, "sort group %q has two position flags", g.SetName)
			}
			g.Position = flag
			i++
		}
	}
	return g, i, nil
}

func positionFlag(r rune) (ir.PositionFlag, bool) {
	switch ir.PositionFlag(string(r)) {
	case ir.PosPrefix:
		return ir.PosPrefix, true
	case ir.PosSuffix:
		return ir.PosSuffix, true
	case ir.PosAnywhere:
		return ir.PosAnywhere, true
	case ir.PosInterior:
		return ir.PosInterior, true
	}
	return "", false
}

// CheckSortSpec enforces the level limit and the strict-adjacent
// constraints: exactly two groups, the first not "$" and the second not "^".
func CheckSortSpec(spec ir.SortSpec, maxLevels int) []*ir.Error {
	var errs []*ir.Error
	if len(spec.Groups) > maxLevels {
		errs = append(errs, ir.Semanticf(ir.CodeDisplayConstraint,
			"display rule has %d sort levels; at most %d allowed", len(spec.Groups), maxLevels))
	}
	if spec.Mode != ir.SortStrict {
		return errs
	}
	if len(spec.Groups) != 2 {
		errs = append(errs, ir.Semanticf(ir.CodeDisplayConstraint,
			"@@ needs exactly two sort groups, got %d", len(spec.Groups)))
		return errs
	}
	if spec.Groups[0].Position == ir.PosSuffix {
		errs = append(errs, ir.Semanticf(ir.CodeDisplayConstraint,
			"@@ first group %q cannot use '$': it must be followed by the second group", spec.Groups[0].SetName))
	}
	if spec.Groups[1].Position == ir.PosPrefix {
		errs = append(errs, ir.Semanticf(ir.CodeDisplayConstraint,
			"@@ second group %q cannot use '^': it must follow the first group", spec.Groups[1].SetName))
	}
	return errs
}
