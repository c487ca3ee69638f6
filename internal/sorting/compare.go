package sorting

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Comparator is the case-aware alphabetical order used for plain sorting
// and as the final tiebreaker of keyed sorting.
//
// A Comparator is not safe for concurrent use; each sort owns one.
type Comparator struct {
	col *collate.Collator
}

// NewComparator creates a comparator backed by the root-locale collator.
func NewComparator() *Comparator {
	return &Comparator{col: collate.New(language.Und)}
}

// Compare orders a and b:
//
//  1. folded characters are compared position by position; the first
//     mismatch is ordered by locale collation, so symbols sort before
//     letters
//  2. if one folded word is a prefix of the other, the shorter sorts first
//  3. if the words differ only in case, the first position that differs
//     decides, uppercase first
func (c *Comparator) Compare(a, b string) int {
	if a == b {
		return 0
	}
	fa := []rune(strings.ToLower(a))
	fb := []rune(strings.ToLower(b))
	for i := 0; i < len(fa) && i < len(fb); i++ {
		if fa[i] == fb[i] {
			continue
		}
		if r := c.col.CompareString(string(fa[i]), string(fb[i])); r != 0 {
			return r
		}
		if fa[i] < fb[i] {
			return -1
		}
		return 1
	}
	if len(fa) != len(fb) {
		if len(fa) < len(fb) {
			return -1
		}
		return 1
	}

	ra, rb := []rune(a), []rune(b)
	for i := 0; i < len(ra) && i < len(rb); i++ {
		if ra[i] == rb[i] {
			continue
		}
		if unicode.IsUpper(ra[i]) && !unicode.IsUpper(rb[i]) {
			return -1
		}
		if unicode.IsUpper(rb[i]) && !unicode.IsUpper(ra[i]) {
			return 1
		}
		if ra[i] < rb[i] {
			return -1
		}
		return 1
	}
	return len(ra) - len(rb)
}

var comparatorPool = sync.Pool{
	New: func() any { return NewComparator() },
}

// Compare orders a and b with a pooled Comparator.
func Compare(a, b string) int {
	c := comparatorPool.Get().(*Comparator)
	defer comparatorPool.Put(c)
	return c.Compare(a, b)
}
