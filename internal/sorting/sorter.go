package sorting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// Resolver looks up a set by name, local sets first.
type Resolver func(name string) (ir.Set, bool)

// Group is one output bucket. Label is empty when grouping is off.
type Group struct {
	Label string   `json:"label"`
	Words []string `json:"words"`
}

// Result is the ordered output of a sort: the groups, then the words no
// level could key, in alphabetical order.
type Result struct {
	Groups    []Group  `json:"groups"`
	Unmatched []string `json:"unmatched,omitempty"`
}

// Flatten returns every word in output order.
func (r *Result) Flatten() []string {
	var out []string
	for _, g := range r.Groups {
		out = append(out, g.Words...)
	}
	return append(out, r.Unmatched...)
}

// Len returns the number of words in the result.
func (r *Result) Len() int {
	n := len(r.Unmatched)
	for _, g := range r.Groups {
		n += len(g.Words)
	}
	return n
}

// Keep returns words in input order as a single unlabeled group.
func Keep(words []string) *Result {
	out := make([]string, len(words))
	copy(out, words)
	return &Result{Groups: []Group{{Words: out}}}
}

// Sort orders words by spec. Set names in spec are resolved through
// resolve; an unknown name is an error since validation rules it out.
func Sort(words []string, spec ir.SortSpec, resolve Resolver) (*Result, error) {
	cmp := NewComparator()
	if spec.Alphabetical() {
		return alphabetical(words, spec, cmp), nil
	}

	levels := make([]level, len(spec.Groups))
	for i, g := range spec.Groups {
		set, ok := resolve(g.SetName)
		if !ok {
			return nil, fmt.Errorf("sort group %d: unknown set %q", i+1, g.SetName)
		}
		levels[i] = level{group: g, options: foldedRunes(set)}
	}

	var keyFn func(w []rune) ([]string, bool)
	switch spec.Mode {
	case ir.SortStrict:
		if len(levels) != 2 {
			return nil, fmt.Errorf("strict sort needs two groups, got %d", len(levels))
		}
		keyFn = func(w []rune) ([]string, bool) { return adjacentKeys(w, levels[0], levels[1]) }
	default:
		keyFn = func(w []rune) ([]string, bool) { return looseKeys(w, levels) }
	}

	var keyed []keyedWord
	var unmatched []string
	for _, word := range words {
		keys, ok := keyFn([]rune(strings.ToLower(word)))
		if !ok {
			unmatched = append(unmatched, word)
			continue
		}
		keyed = append(keyed, keyedWord{word: word, keys: keys})
	}

	sort.SliceStable(unmatched, func(i, j int) bool { return cmp.Compare(unmatched[i], unmatched[j]) < 0 })

	res := &Result{Unmatched: unmatched}
	if spec.NoGrouping {
		sort.SliceStable(keyed, func(i, j int) bool {
			if c := cmp.Compare(keyed[i].word, keyed[j].word); c != 0 {
				return c < 0
			}
			return compareKeys(keyed[i].keys, keyed[j].keys, levels, cmp) < 0
		})
		res.Groups = []Group{{Words: wordsOf(keyed)}}
		return res, nil
	}

	sort.SliceStable(keyed, func(i, j int) bool {
		if c := compareKeys(keyed[i].keys, keyed[j].keys, levels, cmp); c != 0 {
			return c < 0
		}
		return cmp.Compare(keyed[i].word, keyed[j].word) < 0
	})
	for _, kw := range keyed {
		label := groupLabel(kw.keys, levels)
		if n := len(res.Groups); n > 0 && res.Groups[n-1].Label == label {
			res.Groups[n-1].Words = append(res.Groups[n-1].Words, kw.word)
			continue
		}
		res.Groups = append(res.Groups, Group{Label: label, Words: []string{kw.word}})
	}
	return res, nil
}

type level struct {
	group   ir.SortGroup
	options [][]rune // folded set elements, longest first
}

type keyedWord struct {
	word string
	keys []string
}

func compareKeys(a, b []string, levels []level, cmp *Comparator) int {
	for i := range levels {
		c := cmp.Compare(a[i], b[i])
		if levels[i].group.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// groupLabel joins the keys of the grouping levels, those before the "!"
// cut.
func groupLabel(keys []string, levels []level) string {
	var parts []string
	for i, l := range levels {
		if l.group.NonGrouping {
			break
		}
		parts = append(parts, keys[i])
	}
	return strings.Join(parts, " ")
}

// alphabetical handles the special bodies "", "-", "!" and "!-".
func alphabetical(words []string, spec ir.SortSpec, cmp *Comparator) *Result {
	sorted := make([]string, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		c := cmp.Compare(sorted[i], sorted[j])
		if spec.Descending {
			return c > 0
		}
		return c < 0
	})

	if spec.NoGrouping {
		return &Result{Groups: []Group{{Words: sorted}}}
	}

	res := &Result{}
	for _, w := range sorted {
		label := firstLetter(w)
		if n := len(res.Groups); n > 0 && res.Groups[n-1].Label == label {
			res.Groups[n-1].Words = append(res.Groups[n-1].Words, w)
			continue
		}
		res.Groups = append(res.Groups, Group{Label: label, Words: []string{w}})
	}
	return res
}

func firstLetter(w string) string {
	for _, r := range strings.ToLower(w) {
		return string(r)
	}
	return ""
}

func wordsOf(keyed []keyedWord) []string {
	out := make([]string, len(keyed))
	for i, kw := range keyed {
		out[i] = kw.word
	}
	return out
}

func foldedRunes(set ir.Set) [][]rune {
	folded := set.Folded()
	out := make([][]rune, len(folded))
	for i, f := range folded {
		out[i] = []rune(f)
	}
	return out
}

// hasAt reports whether opt occurs in w at offset pos.
func hasAt(w, opt []rune, pos int) bool {
	if pos < 0 || pos+len(opt) > len(w) {
		return false
	}
	for i, r := range opt {
		if w[pos+i] != r {
			return false
		}
	}
	return true
}

// fits reports whether the span [start, end) satisfies flag in a word of
// length n.
func fits(flag ir.PositionFlag, start, end, n int) bool {
	switch flag {
	case ir.PosPrefix:
		return start == 0
	case ir.PosSuffix:
		return end == n
	case ir.PosInterior:
		return start >= 1 && end <= n-1
	default:
		return true
	}
}
