package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
)

// readWords reads one word per line. Blank lines are skipped and words are
// de-duplicated case-insensitively, keeping the first spelling seen.
func readWords(r io.Reader) ([]string, error) {
	var words []string
	d := newDeduper()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" {
			continue
		}
		if d.add(w) {
			words = append(words, w)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read words: %w", err)
	}
	return words, nil
}

// openWords returns the words named on the command line, or else reads them
// from path; "-" is stdin.
func openWords(args []string, path string, stdin io.Reader) ([]string, error) {
	if len(args) > 0 {
		d := newDeduper()
		var words []string
		for _, w := range args {
			if w = strings.TrimSpace(w); w != "" && d.add(w) {
				words = append(words, w)
			}
		}
		return words, nil
	}
	if path == "" || path == "-" {
		return readWords(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readWords(f)
}

type deduper struct {
	fold cases.Caser
	seen map[string]bool
}

func newDeduper() *deduper {
	return &deduper{fold: cases.Fold(), seen: make(map[string]bool)}
}

// add reports whether w was not seen before.
func (d *deduper) add(w string) bool {
	key := d.fold.String(w)
	if d.seen[key] {
		return false
	}
	d.seen[key] = true
	return true
}
