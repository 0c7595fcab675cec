// Package postgres provides the PostgreSQL implementation of the
// watch registry.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/watch"
)

// Repository implements watch.Registry using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL registry.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListDistinctTitles returns each watched title once.
func (r *Repository) ListDistinctTitles(ctx context.Context) ([]watch.TitleRef, error) {
	query := `
		SELECT title_id, MIN(title)
		FROM watch_items
		GROUP BY title_id
		ORDER BY title_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list distinct titles: %w", err)
	}
	defer rows.Close()

	refs := make([]watch.TitleRef, 0)
	for rows.Next() {
		var ref watch.TitleRef
		if err := rows.Scan(&ref.ID, &ref.Title); err != nil {
			return nil, fmt.Errorf("scan title ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ListSubscribers returns all watch items for a title.
func (r *Repository) ListSubscribers(ctx context.Context, titleID string) ([]domain.WatchItem, error) {
	query := `
		SELECT id, user_id, title_id, title, last_known_chapter, notify, created_at, updated_at
		FROM watch_items
		WHERE title_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, titleID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	items := make([]domain.WatchItem, 0)
	for rows.Next() {
		item, err := scanWatchItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListByUser returns a user's watch list ordered by title.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.WatchItem, error) {
	query := `
		SELECT id, user_id, title_id, title, last_known_chapter, notify, created_at, updated_at
		FROM watch_items
		WHERE user_id = $1
		ORDER BY title
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list by user: %w", err)
	}
	defer rows.Close()

	items := make([]domain.WatchItem, 0)
	for rows.Next() {
		item, err := scanWatchItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Advance is the single serialization point for release state: one
// conditional UPDATE, so a concurrent sweep or a manual progress
// update touching the same row can never move the value backward or
// double-apply it.
func (r *Repository) Advance(ctx context.Context, watchItemID string, newChapter domain.Chapter) (bool, error) {
	query := `
		UPDATE watch_items
		SET last_known_chapter = $2, updated_at = NOW()
		WHERE id = $1 AND last_known_chapter < $2
	`
	result, err := r.db.Exec(ctx, query, watchItemID, newChapter.Millis())
	if err != nil {
		return false, fmt.Errorf("advance watch item: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// Subscribe creates a watch item.
func (r *Repository) Subscribe(ctx context.Context, item *domain.WatchItem) error {
	query := `
		INSERT INTO watch_items (user_id, title_id, title, last_known_chapter, notify)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, title_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		item.UserID,
		item.TitleID,
		item.Title,
		item.LastKnownChapter.Millis(),
		item.Notify,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return watch.ErrAlreadyWatching
		}
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Unsubscribe removes a user's watch item for a title.
func (r *Repository) Unsubscribe(ctx context.Context, userID, titleID string) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM watch_items WHERE user_id = $1 AND title_id = $2`,
		userID, titleID,
	)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if result.RowsAffected() == 0 {
		return watch.ErrWatchItemNotFound
	}
	return nil
}

// SetNotify toggles delivery for a watch item.
func (r *Repository) SetNotify(ctx context.Context, userID, titleID string, notify bool) error {
	result, err := r.db.Exec(ctx,
		`UPDATE watch_items SET notify = $3, updated_at = NOW() WHERE user_id = $1 AND title_id = $2`,
		userID, titleID, notify,
	)
	if err != nil {
		return fmt.Errorf("set notify: %w", err)
	}
	if result.RowsAffected() == 0 {
		return watch.ErrWatchItemNotFound
	}
	return nil
}

func scanWatchItem(rows pgx.Rows) (domain.WatchItem, error) {
	var (
		item   domain.WatchItem
		millis int64
	)
	err := rows.Scan(
		&item.ID,
		&item.UserID,
		&item.TitleID,
		&item.Title,
		&millis,
		&item.Notify,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return domain.WatchItem{}, fmt.Errorf("scan watch item: %w", err)
	}
	item.LastKnownChapter = domain.ChapterFromMillis(millis)
	return item, nil
}
