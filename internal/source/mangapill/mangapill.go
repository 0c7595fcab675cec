// Package mangapill adapts a flat JSON title listing as a chapter
// source. The upstream serves its whole catalog in one response, so a
// lookup is a fetch followed by slug or title matching.
package mangapill

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/source"
)

const (
	// SourceName is the provenance / priority identifier.
	SourceName = "mangapill"

	defaultTimeout = 10 * time.Second
)

// Config holds adapter configuration. BaseURL has no public default;
// the deployment points it at its own mirror.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter fetches the latest chapter of a title from the listing.
type Adapter struct {
	baseURL string
	client  *http.Client
}

// New creates a mangapill adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mangapill adapter: base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Adapter{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name implements source.Adapter.
func (a *Adapter) Name() string { return SourceName }

type listingEntry struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	LatestChapter string `json:"latest_chapter"`
}

// FetchLatestChapter implements source.Adapter.
func (a *Adapter) FetchLatestChapter(ctx context.Context, title, catalogID string) source.Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/titles", nil)
	if err != nil {
		return source.Unavailable(SourceName, fmt.Errorf("build request: %w", err))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return source.Unavailable(SourceName, fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return source.Unavailable(SourceName, fmt.Errorf("status %d", resp.StatusCode))
	}

	var entries []listingEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return source.Unavailable(SourceName, fmt.Errorf("decode: %w", err))
	}

	// Prefer a direct slug hit when the catalog id lines up with the
	// listing's slugs.
	if catalogID != "" {
		for _, e := range entries {
			if e.Slug != catalogID {
				continue
			}
			c, err := domain.ParseChapter(e.LatestChapter)
			if err != nil {
				return source.NotFound(SourceName)
			}
			return source.OKResult(SourceName, c)
		}
	}

	candidates := make([]source.Candidate, 0, len(entries))
	for _, e := range entries {
		c, err := domain.ParseChapter(e.LatestChapter)
		if err != nil {
			continue
		}
		candidates = append(candidates, source.Candidate{Title: e.Name, Chapter: c})
	}

	best, ok := source.BestMatch(title, candidates)
	if !ok {
		return source.NotFound(SourceName)
	}
	return source.OKResult(SourceName, best.Chapter)
}
