package sorting

// looseKeys computes one key per level. Each level searches from the end of
// the previous level's match for the longest element that fits the level's
// position flag; among elements of that length the leftmost occurrence wins.
func looseKeys(w []rune, levels []level) ([]string, bool) {
	keys := make([]string, len(levels))
	cursor := 0
	for i, l := range levels {
		key, end, ok := findLoose(w, l, cursor)
		if !ok {
			return nil, false
		}
		keys[i] = key
		cursor = end
	}
	return keys, true
}

func findLoose(w []rune, l level, cursor int) (string, int, bool) {
	// options are longest first; take them one length at a time
	for lo := 0; lo < len(l.options); {
		size := len(l.options[lo])
		hi := lo
		for hi < len(l.options) && len(l.options[hi]) == size {
			hi++
		}
		for pos := cursor; pos+size <= len(w); pos++ {
			end := pos + size
			if !fits(l.group.Position, pos, end, len(w)) {
				continue
			}
			for _, opt := range l.options[lo:hi] {
				if hasAt(w, opt, pos) {
					return string(opt), end, true
				}
			}
		}
		lo = hi
	}
	return "", 0, false
}
