package sorting

import "github.com/xiao2945/danci-sub000/internal/ir"

// adjacentKeys finds an element of the first level immediately followed by
// an element of the second.
//
// When the second level is suffix-anchored the search runs from the end of
// the word; when the first is prefix-anchored it runs from the start;
// otherwise every offset is tried left to right.
func adjacentKeys(w []rune, first, second level) ([]string, bool) {
	n := len(w)
	switch {
	case second.group.Position == ir.PosSuffix:
		for _, b := range second.options {
			start := n - len(b)
			if !hasAt(w, b, start) {
				continue
			}
			for _, a := range first.options {
				from := start - len(a)
				if hasAt(w, a, from) && fits(first.group.Position, from, start, n) {
					return []string{string(a), string(b)}, true
				}
			}
		}

	case first.group.Position == ir.PosPrefix:
		for _, a := range first.options {
			if !hasAt(w, a, 0) {
				continue
			}
			if b, ok := followedBy(w, second, len(a)); ok {
				return []string{string(a), b}, true
			}
		}

	default:
		for pos := 0; pos < n; pos++ {
			for _, a := range first.options {
				end := pos + len(a)
				if !hasAt(w, a, pos) || !fits(first.group.Position, pos, end, n) {
					continue
				}
				if b, ok := followedBy(w, second, end); ok {
					return []string{string(a), b}, true
				}
			}
		}
	}
	return nil, false
}

// followedBy returns the longest element of l starting exactly at pos.
func followedBy(w []rune, l level, pos int) (string, bool) {
	for _, b := range l.options {
		end := pos + len(b)
		if hasAt(w, b, pos) && fits(l.group.Position, pos, end, len(w)) {
			return string(b), true
		}
	}
	return "", false
}
