// Package suggest ranks known names against a misspelled one.
package suggest

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// names implements fuzzy.Source over lowercased candidates.
type names []string

func (n names) String(i int) string { return n[i] }
func (n names) Len() int            { return len(n) }

// Closest returns up to limit candidates that fuzzy-match target, best
// first. Matching is case-insensitive and the candidates are returned as
// given. When target matches nothing, candidates that are themselves a
// subsequence of target are tried, which catches names with extra
// characters such as "userss".
func Closest(target string, candidates []string, limit int) []string {
	if target == "" || len(candidates) == 0 || limit <= 0 {
		return nil
	}

	lower := make(names, len(candidates))
	for i, c := range candidates {
		lower[i] = strings.ToLower(c)
	}
	pattern := strings.ToLower(target)

	matches := fuzzy.FindFrom(pattern, lower)
	if len(matches) == 0 {
		return reverse(pattern, candidates, lower, limit)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	out := make([]string, 0, limit)
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, candidates[m.Index])
	}
	return out
}

func reverse(pattern string, candidates []string, lower names, limit int) []string {
	type scored struct {
		index int
		score int
	}
	var hits []scored
	for i, c := range lower {
		m := fuzzy.Find(c, []string{pattern})
		if len(m) > 0 {
			hits = append(hits, scored{index: i, score: m[0].Score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	var out []string
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		out = append(out, candidates[h.index])
	}
	return out
}
