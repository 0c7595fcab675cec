package source

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/medinaflav/manga-tracker/internal/domain"
)

// Candidate is one entry from a provider's free-text search response.
type Candidate struct {
	Title   string
	Chapter domain.Chapter
}

// fold normalizes a title for case-insensitive comparison. Unicode
// case folding rather than ASCII lowering: source catalogs mix
// romanized and native-script titles. A Caser is stateful, so each
// call gets its own; adapters fold from concurrent sweep workers.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// BestMatch applies the shared ambiguity-resolution policy to a
// provider's search results: case-insensitive exact match first, then
// substring containment in either direction. When several candidates
// survive, the one with the numerically highest chapter wins. Every
// adapter must use this so reconciliation stays deterministic.
func BestMatch(query string, candidates []Candidate) (Candidate, bool) {
	q := fold(query)
	if q == "" || len(candidates) == 0 {
		return Candidate{}, false
	}

	var exact, partial []Candidate
	for _, c := range candidates {
		ct := fold(c.Title)
		if ct == "" {
			continue
		}
		switch {
		case ct == q:
			exact = append(exact, c)
		case strings.Contains(ct, q) || strings.Contains(q, ct):
			partial = append(partial, c)
		}
	}

	pool := exact
	if len(pool) == 0 {
		pool = partial
	}
	if len(pool) == 0 {
		return Candidate{}, false
	}

	best := pool[0]
	for _, c := range pool[1:] {
		if best.Chapter.Less(c.Chapter) {
			best = c
		}
	}
	return best, true
}
