package internal

import (
	"sort"
	"unicode"

	"github.com/charmbracelet/bubbles/list"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// fuzzyFilter is a list.FilterFunc that ranks targets by edit distance,
// ignoring case and diacritics.
func fuzzyFilter(term string, targets []string) []list.Rank {
	ranks := fuzzy.RankFindNormalizedFold(term, targets)
	sort.Stable(ranks)

	result := make([]list.Rank, len(ranks))
	for i, r := range ranks {
		result[i] = list.Rank{
			Index:          r.OriginalIndex,
			MatchedIndexes: matchedIndexes(term, r.Target),
		}
	}
	return result
}

// matchedIndexes returns the rune positions in target that match term as a
// case-insensitive subsequence.
func matchedIndexes(term, target string) []int {
	want := []rune(term)
	if len(want) == 0 {
		return nil
	}

	var idx []int
	j := 0
	for i, r := range []rune(target) {
		if j < len(want) && unicode.ToLower(r) == unicode.ToLower(want[j]) {
			idx = append(idx, i)
			j++
		}
	}
	return idx
}
