package engine

import (
	"strings"

	"github.com/xiao2945/danci-sub000/internal/compiler"
)

// Match is where a pattern matched a word, in rune offsets of the
// lower-cased word. Pieces holds the string each element step consumed,
// one entry per repetition of a "+" element.
type Match struct {
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Pieces []string `json:"pieces"`
}

// MatchPattern reports whether p matches word.
func MatchPattern(p *compiler.Pattern, word string) bool {
	_, ok := FindPattern(p, word)
	return ok
}

// FindPattern returns the first match of p in word: the smallest admissible
// start, and from it the first successful path of the search.
//
// \b pins the start to offset 0 and \e pins the end to the word end.
// \-b pins the start to the first offset ≥ 1 where the first element
// occurs, and \-e pins the end to the last offset before the final
// character where the last element ends. Without anchors any span of the
// word will do.
func FindPattern(p *compiler.Pattern, word string) (Match, bool) {
	m := newMatcher(p, []rune(strings.ToLower(word)))
	n := len(m.w)

	first, last := 0, n-p.MinLen
	switch p.Begin {
	case compiler.AnchorBegin:
		last = min(last, 0)
	case compiler.AnchorNotBegin:
		start, ok := m.firstStart()
		if !ok {
			return Match{}, false
		}
		first, last = start, min(last, start)
	}
	if p.End == compiler.AnchorNotEnd {
		end, ok := m.lastEnd()
		if !ok {
			return Match{}, false
		}
		m.endAt = end
	}

	for start := first; start <= last; start++ {
		if m.run(0, start, false) {
			pieces := make([]string, len(m.path))
			for i, r := range m.path {
				pieces[i] = string(r)
			}
			return Match{Start: start, End: m.end, Pieces: pieces}, true
		}
	}
	return Match{}, false
}

type matchState struct {
	elem int
	pos  int
	rep  bool
}

type matcher struct {
	p      *compiler.Pattern
	w      []rune
	failed map[matchState]bool
	path   [][]rune
	end    int
	endAt  int // pinned end under \-e
}

func newMatcher(p *compiler.Pattern, w []rune) *matcher {
	return &matcher{p: p, w: w, failed: make(map[matchState]bool)}
}

// accept applies the end anchor to a completed path ending at end.
func (m *matcher) accept(end int) bool {
	switch m.p.End {
	case compiler.AnchorEnd:
		return end == len(m.w)
	case compiler.AnchorNotEnd:
		return end == m.endAt
	}
	return true
}

// firstStart returns the first offset ≥ 1 where an option of the first
// element occurs.
func (m *matcher) firstStart() (int, bool) {
	if len(m.p.Elements) == 0 {
		return 0, false
	}
	el := &m.p.Elements[0]
	for pos := 1; pos < len(m.w); pos++ {
		for _, opt := range el.Options {
			if runesAt(m.w, opt, pos) {
				return pos, true
			}
		}
	}
	return 0, false
}

// lastEnd returns the last offset before the final character at which an
// option of the last element ends.
func (m *matcher) lastEnd() (int, bool) {
	if len(m.p.Elements) == 0 {
		return 0, false
	}
	el := &m.p.Elements[len(m.p.Elements)-1]
	for end := len(m.w) - 1; end > 0; end-- {
		for _, opt := range el.Options {
			if len(opt) <= end && runesAt(m.w, opt, end-len(opt)) {
				return end, true
			}
		}
	}
	return 0, false
}

// run matches elements[elem:] at pos. rep is set when element elem is a
// "+" element that has already matched at least once, so the search may
// either repeat it or move on.
//
// The acceptance test does not depend on the start offset, so a state that
// failed once fails from every start; failures are memoized across starts.
func (m *matcher) run(elem, pos int, rep bool) bool {
	st := matchState{elem, pos, rep}
	if m.failed[st] {
		return false
	}

	if m.step(elem, pos, rep) {
		return true
	}
	m.failed[st] = true
	return false
}

func (m *matcher) step(elem, pos int, rep bool) bool {
	if rep {
		// another repetition first, then the rest of the pattern
		if m.consume(elem, pos, true) {
			return true
		}
		return m.run(elem+1, pos, false)
	}
	if elem == len(m.p.Elements) {
		if m.accept(pos) {
			m.end = pos
			return true
		}
		return false
	}
	return m.consume(elem, pos, m.p.Elements[elem].Repeat)
}

// consume tries every option of element elem that occurs at pos, longest
// first, and continues the search after it.
func (m *matcher) consume(elem, pos int, repeat bool) bool {
	el := &m.p.Elements[elem]
	for _, opt := range el.Options {
		if !runesAt(m.w, opt, pos) {
			continue
		}
		m.path = append(m.path, opt)
		next := elem + 1
		if repeat {
			next = elem
		}
		if m.run(next, pos+len(opt), repeat) {
			return true
		}
		m.path = m.path[:len(m.path)-1]
	}
	return false
}

func runesAt(w, opt []rune, pos int) bool {
	if pos+len(opt) > len(w) {
		return false
	}
	for i, r := range opt {
		if w[pos+i] != r {
			return false
		}
	}
	return true
}
