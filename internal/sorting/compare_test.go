package sorting

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"equal", "cat", "cat", 0},
		{"letter order", "apple", "banana", -1},
		{"case folded first", "Banana", "apple", 1},
		{"prefix shorter first", "cat", "cats", -1},
		{"prefix ignores case", "CAT", "cats", -1},
		{"uppercase first on case tie", "Cat", "cat", -1},
		{"first case difference decides", "cAt", "caT", -1},
		{"symbols before letters", "o'clock", "oak", -1},
		{"hyphen before letters", "re-do", "read", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.a, tt.b)
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
			case tt.want > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
			if tt.want != 0 {
				assert.Equal(t, -sign(got), sign(Compare(tt.b, tt.a)), "antisymmetric")
			}
		})
	}
}

func TestCompareSortsWordList(t *testing.T) {
	words := []string{"dog", "Apple", "apple", "cat", "Cat", "ant", "a"}
	sort.SliceStable(words, func(i, j int) bool { return Compare(words[i], words[j]) < 0 })
	assert.Equal(t, []string{"a", "ant", "Apple", "apple", "Cat", "cat", "dog"}, words)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
