// Package mangadex adapts the MangaDex API as a chapter source.
// Titles are keyed by their MangaDex UUID, so lookups go through the
// aggregate endpoint rather than free-text search.
package mangadex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/source"
)

const (
	// SourceName is the provenance / priority identifier.
	SourceName = "mangadex"

	defaultBaseURL = "https://api.mangadex.org"
	defaultTimeout = 15 * time.Second
)

// Config holds adapter configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter fetches the latest chapter of a title from MangaDex.
type Adapter struct {
	baseURL string
	client  *http.Client
}

// New creates a MangaDex adapter.
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

// aggregateResponse is the subset of the aggregate endpoint we need:
// volumes -> chapters keyed by chapter number.
type aggregateResponse struct {
	Result  string `json:"result"`
	Volumes map[string]struct {
		Chapters map[string]struct {
			Chapter string `json:"chapter"`
		} `json:"chapters"`
	} `json:"volumes"`
}

// FetchLatestChapter implements source.Adapter.
func (a *Adapter) FetchLatestChapter(ctx context.Context, _, catalogID string) source.Result {
	if catalogID == "" {
		// MangaDex is only consulted for titles with a known UUID.
		return source.NotFound(SourceName)
	}

	url := fmt.Sprintf("%s/manga/%s/aggregate", a.baseURL, catalogID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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

	var agg aggregateResponse
	if err := json.NewDecoder(resp.Body).Decode(&agg); err != nil {
		return source.Unavailable(SourceName, fmt.Errorf("decode: %w", err))
	}
	if agg.Result != "" && agg.Result != "ok" {
		return source.Unavailable(SourceName, errors.New("result "+agg.Result))
	}

	var (
		latest domain.Chapter
		found  bool
	)
	for _, vol := range agg.Volumes {
		for key, chap := range vol.Chapters {
			num := chap.Chapter
			if num == "" {
				num = key
			}
			c, err := domain.ParseChapter(num)
			if err != nil {
				// "none" placeholders and oneshot entries; skip.
				continue
			}
			if !found || latest.Less(c) {
				latest = c
				found = true
			}
		}
	}

	if !found {
		return source.NotFound(SourceName)
	}
	return source.OKResult(SourceName, latest)
}
