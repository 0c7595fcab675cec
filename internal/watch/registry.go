// Package watch manages (user, title) subscriptions and the
// last-chapter-seen state the release pipeline advances.
package watch

import (
	"context"
	"errors"

	"github.com/medinaflav/manga-tracker/internal/domain"
)

// Registry errors.
var (
	ErrWatchItemNotFound = errors.New("watch item not found")
	ErrAlreadyWatching   = errors.New("title already in watch list")
)

// TitleRef identifies one distinct watched title for a sweep. ID is
// the provider-agnostic catalog id; Title is the display string used
// by sources that only support free-text search.
type TitleRef struct {
	ID    string
	Title string
}

// Registry is the persistence contract the scheduler depends on. All
// mutation of release state goes through Advance, which must be an
// atomic conditional update, never a read-then-write pair.
type Registry interface {
	// ListDistinctTitles returns every title with at least one
	// subscriber, each exactly once regardless of subscriber count.
	ListDistinctTitles(ctx context.Context) ([]TitleRef, error)

	// ListSubscribers returns all watch items for a title.
	ListSubscribers(ctx context.Context, titleID string) ([]domain.WatchItem, error)

	// ListByUser returns a user's watch list ordered by title.
	ListByUser(ctx context.Context, userID string) ([]domain.WatchItem, error)

	// Advance moves a watch item's last known chapter forward. It
	// succeeds only when newChapter is strictly greater than the
	// stored value; anything else is a no-op reported as advanced ==
	// false. Losing the race to a concurrent sweep is not an error.
	Advance(ctx context.Context, watchItemID string, newChapter domain.Chapter) (advanced bool, err error)

	// Subscribe creates a watch item, filling in its ID and timestamps.
	Subscribe(ctx context.Context, item *domain.WatchItem) error

	// Unsubscribe removes a user's watch item for a title.
	Unsubscribe(ctx context.Context, userID, titleID string) error

	// SetNotify toggles notification delivery for a watch item.
	SetNotify(ctx context.Context, userID, titleID string, notify bool) error
}
