package lang

import (
	"sort"
	"strings"
)

// Rank scores candidates against query and returns up to n of them, best
// first. Containment scores 10, a prefix match 15, and an edit distance
// below 3 scores 20-5*d. Ties are broken by lexical order.
func Rank(query string, candidates []string, n int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || n <= 0 {
		return nil
	}

	type scored struct {
		id    string
		score int
	}
	var results []scored
	for _, c := range candidates {
		lc := strings.ToLower(c)
		score := 0
		if strings.Contains(lc, q) {
			score += 10
		}
		if strings.HasPrefix(lc, q) {
			score += 15
		}
		if d := levenshtein(q, lc); d < 3 {
			score += 20 - d*5
		}
		if score > 0 {
			results = append(results, scored{id: c, score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})

	if len(results) > n {
		results = results[:n]
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.id
	}
	return out
}

// levenshtein returns the edit distance between a and b, counted in runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

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
