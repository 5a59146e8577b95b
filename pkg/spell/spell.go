// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package spell

import "sort"

// Nearest returns the candidate closest to word when it is close enough
// to be a plausible misspelling.
func Nearest(word string, candidates []string) (string, bool) {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	maxDist := len(word) / 3
	if maxDist < 1 {
		maxDist = 1
	}

	best, bestDist := "", maxDist+1
	for _, candidate := range sorted {
		if candidate == word {
			continue
		}
		if dist := distance(word, candidate); dist < bestDist {
			best, bestDist = candidate, dist
		}
	}
	return best, best != ""
}

// Hint formats a "did you mean" suffix for error messages, or "" when
// nothing is close.
func Hint(word string, candidates []string) string {
	if nearest, ok := Nearest(word, candidates); ok {
		return " (did you mean '" + nearest + "'?)"
	}
	return ""
}

// distance is the Levenshtein edit distance over runes.
func distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
