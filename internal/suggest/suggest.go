// Package suggest proposes close matches for mistyped role names, config
// keys and entity ids.
package suggest

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// maxSuggestions caps the result of Closest.
const maxSuggestions = 3

// Closest returns up to three candidates resembling unknown, best first.
// Abbreviations ("contrib" for "Contributor") rank ahead of typos
// ("Contibutor"); typos must be within 3 edits or half the input length.
func Closest(unknown string, candidates []string) []string {
	unknown = strings.ToLower(strings.TrimSpace(unknown))
	if unknown == "" || len(candidates) == 0 {
		return nil
	}
	lower := make([]string, len(candidates))
	for i, c := range candidates {
		lower[i] = strings.ToLower(c)
	}

	var result []string
	seen := make(map[int]bool)
	for _, m := range fuzzy.Find(unknown, lower) {
		if len(result) == maxSuggestions {
			return result
		}
		seen[m.Index] = true
		result = append(result, candidates[m.Index])
	}

	type scored struct {
		index int
		dist  int
	}
	var typos []scored
	maxDist := max(3, len(unknown)/2)
	for i, c := range lower {
		if seen[i] {
			continue
		}
		if d := levenshtein(unknown, c); d <= maxDist {
			typos = append(typos, scored{i, d})
		}
	}
	sort.SliceStable(typos, func(i, j int) bool { return typos[i].dist < typos[j].dist })
	for _, t := range typos {
		if len(result) == maxSuggestions {
			break
		}
		result = append(result, candidates[t.index])
	}
	return result
}

// Hint formats suggestions as a "did you mean" clause, or "" when there
// are none.
func Hint(suggestions []string) string {
	switch len(suggestions) {
	case 0:
		return ""
	case 1:
		return "did you mean " + suggestions[0] + "?"
	}
	return "did you mean one of: " + strings.Join(suggestions, ", ") + "?"
}
