// Package comick adapts the Comick search API as a chapter source.
// Comick has no stable cross-provider key for us, so lookups run the
// shared free-text matching policy over its search results.
package comick

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/source"
)

const (
	// SourceName is the provenance / priority identifier.
	SourceName = "comick"

	defaultBaseURL = "https://api.comick.io"
	defaultTimeout = 12 * time.Second
)

// Config holds adapter configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter fetches the latest chapter of a title from Comick.
type Adapter struct {
	baseURL string
	client  *http.Client
}

// New creates a Comick adapter.
func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Adapter{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements source.Adapter.
func (a *Adapter) Name() string { return SourceName }

type searchEntry struct {
	Title       string `json:"title"`
	LastChapter string `json:"last_chapter"`
}

// FetchLatestChapter implements source.Adapter.
func (a *Adapter) FetchLatestChapter(ctx context.Context, title, _ string) source.Result {
	u := fmt.Sprintf("%s/v1.0/search?q=%s", a.baseURL, url.QueryEscape(title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return source.Unavailable(SourceName, fmt.Errorf("build request: %w", err))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return source.Unavailable(SourceName, fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return source.NotFound(SourceName)
	case resp.StatusCode != http.StatusOK:
		return source.Unavailable(SourceName, fmt.Errorf("status %d", resp.StatusCode))
	}

	var entries []searchEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return source.Unavailable(SourceName, fmt.Errorf("decode: %w", err))
	}

	candidates := make([]source.Candidate, 0, len(entries))
	for _, e := range entries {
		c, err := domain.ParseChapter(e.LastChapter)
		if err != nil {
			// Entries without a parsable latest chapter cannot feed
			// reconciliation; drop them here.
			continue
		}
		candidates = append(candidates, source.Candidate{Title: e.Title, Chapter: c})
	}

	best, ok := source.BestMatch(title, candidates)
	if !ok {
		return source.NotFound(SourceName)
	}
	return source.OKResult(SourceName, best.Chapter)
}
