// Package reconcile folds per-source fetch results for one title into
// a single canonical latest-chapter value.
package reconcile

import (
	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/source"
)

// ProvenanceFallback marks a canonical value that came from the
// configured default because no source answered.
const ProvenanceFallback = "fallback-default"

// CanonicalRelease is the reconciler's output for one title in one
// sweep. Results keeps every per-source outcome for diagnostics.
type CanonicalRelease struct {
	TitleID    string
	Chapter    domain.Chapter
	Provenance string
	Results    []source.Result
}

// Config is deployment policy, not protocol: the tie-break order and
// the chapter used when every source fails.
type Config struct {
	// Priority lists source names in descending precedence; it breaks
	// exact numeric ties. Sources not listed rank last.
	Priority []string
	// DefaultChapter is the canonical value when no source returns ok.
	DefaultChapter domain.Chapter
}

// Reconciler merges source results deterministically.
type Reconciler struct {
	rank     map[string]int
	fallback domain.Chapter
}

// New creates a Reconciler from deployment policy.
func New(cfg Config) *Reconciler {
	rank := make(map[string]int, len(cfg.Priority))
	for i, name := range cfg.Priority {
		rank[name] = i
	}
	return &Reconciler{rank: rank, fallback: cfg.DefaultChapter}
}

// Reconcile picks the canonical chapter for a title: the maximum
// chapter among ok results, exact ties broken by source priority. With
// zero ok results it returns the configured default so the title never
// ends a sweep without a defined value.
func (r *Reconciler) Reconcile(titleID string, results []source.Result) CanonicalRelease {
	release := CanonicalRelease{
		TitleID:    titleID,
		Chapter:    r.fallback,
		Provenance: ProvenanceFallback,
		Results:    results,
	}

	winner := -1
	for i, res := range results {
		if !res.OK() {
			continue
		}
		if winner < 0 {
			winner = i
			continue
		}
		best := results[winner]
		switch {
		case best.Chapter.Less(res.Chapter):
			winner = i
		case res.Chapter.Equal(best.Chapter) && r.before(res.Source, best.Source):
			winner = i
		}
	}

	if winner >= 0 {
		release.Chapter = results[winner].Chapter
		release.Provenance = results[winner].Source
	}
	return release
}

// before reports whether source a outranks source b. Unlisted sources
// rank after listed ones; ties among unlisted sources fall back to
// name order so the result never depends on input order.
func (r *Reconciler) before(a, b string) bool {
	ra, aListed := r.rank[a]
	rb, bListed := r.rank[b]
	switch {
	case aListed && bListed:
		return ra < rb
	case aListed:
		return true
	case bListed:
		return false
	default:
		return a < b
	}
}
