// Package source defines the contract every external chapter-listing
// provider is wrapped behind. Provider-specific transport and parsing
// stay inside the adapter; the reconciler only ever sees Results.
package source

import (
	"context"

	"github.com/medinaflav/manga-tracker/internal/domain"
)

// Outcome classifies one adapter call.
type Outcome string

const (
	// OutcomeOK means the provider reported a chapter for the title.
	OutcomeOK Outcome = "ok"
	// OutcomeNotFound means the provider does not list the title, or
	// listed it with a chapter value that could not be parsed.
	OutcomeNotFound Outcome = "not-found"
	// OutcomeTransientError means the call failed for reasons that may
	// clear up by the next sweep (network, timeout, 5xx).
	OutcomeTransientError Outcome = "transient-error"
)

// Result is the outcome of one adapter call for one title. It lives
// only within a sweep and is never persisted.
type Result struct {
	Source  string
	Outcome Outcome
	Chapter domain.Chapter
	Err     error
}

// OK reports whether the result carries a usable chapter.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }

// Adapter is one external chapter-listing provider. Implementations
// apply their own request timeout, never panic on transport failure,
// and mutate nothing.
type Adapter interface {
	// Name identifies the provider; it is used for provenance and for
	// the deployment's tie-break priority order.
	Name() string

	// FetchLatestChapter returns the highest chapter the provider
	// currently reports for the title. catalogID is the provider-
	// agnostic key; providers that only support free-text search
	// ignore it and apply the shared title-matching policy.
	FetchLatestChapter(ctx context.Context, title, catalogID string) Result
}

// OKResult builds an ok Result.
func OKResult(source string, chapter domain.Chapter) Result {
	return Result{Source: source, Outcome: OutcomeOK, Chapter: chapter}
}

// NotFound builds a not-found Result.
func NotFound(source string) Result {
	return Result{Source: source, Outcome: OutcomeNotFound}
}

// Unavailable builds a transient-error Result.
func Unavailable(source string, err error) Result {
	return Result{Source: source, Outcome: OutcomeTransientError, Err: err}
}
