// Package postgres provides the PostgreSQL implementation of the
// notifications repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/notifications"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const channelColumns = `id, user_id, type, target, is_active, created_at, updated_at`

// ActiveChannels returns the user's active channels.
func (r *Repository) ActiveChannels(ctx context.Context, userID string) ([]domain.NotificationChannel, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM notification_channels
		WHERE user_id = $1 AND is_active
		ORDER BY type
	`, channelColumns)
	return r.queryChannels(ctx, query, userID)
}

// ListUserChannels returns all of a user's channels.
func (r *Repository) ListUserChannels(ctx context.Context, userID string) ([]domain.NotificationChannel, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM notification_channels
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, channelColumns)
	return r.queryChannels(ctx, query, userID)
}

// DeactivateChannel disables a channel owned by the user.
func (r *Repository) DeactivateChannel(ctx context.Context, userID, channelID string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE notification_channels
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, channelID, userID)
	if err != nil {
		return fmt.Errorf("deactivate channel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrChannelNotFound
	}
	return nil
}

// CreateLinkToken stores a pending link token.
func (r *Repository) CreateLinkToken(ctx context.Context, token *domain.LinkToken) error {
	query := `
		INSERT INTO link_tokens (user_id, channel_type, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		token.UserID,
		token.Type,
		token.TokenHash,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("create link token: %w", err)
	}
	return nil
}

// ConsumeLinkToken redeems a token and activates the linked channel in
// one transaction. The row lock on the token makes redemption
// single-winner under concurrent attempts.
func (r *Repository) ConsumeLinkToken(ctx context.Context, tokenHash, target string, now time.Time) (*domain.NotificationChannel, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var token domain.LinkToken
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, channel_type, expires_at, consumed_at
		FROM link_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`, tokenHash).Scan(&token.ID, &token.UserID, &token.Type, &token.ExpiresAt, &token.ConsumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrTokenNotFound
		}
		return nil, fmt.Errorf("load link token: %w", err)
	}

	if token.Consumed() {
		return nil, notifications.ErrTokenConsumed
	}
	if token.Expired(now) {
		return nil, notifications.ErrTokenExpired
	}

	if _, err := tx.Exec(ctx,
		`UPDATE link_tokens SET consumed_at = $2 WHERE id = $1`,
		token.ID, now,
	); err != nil {
		return nil, fmt.Errorf("consume link token: %w", err)
	}

	// One active channel per type: retire the previous one first.
	if _, err := tx.Exec(ctx, `
		UPDATE notification_channels
		SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND type = $2 AND is_active
	`, token.UserID, token.Type); err != nil {
		return nil, fmt.Errorf("deactivate previous channel: %w", err)
	}

	channel := &domain.NotificationChannel{
		UserID:   token.UserID,
		Type:     token.Type,
		Target:   target,
		IsActive: true,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO notification_channels (user_id, type, target, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, created_at, updated_at
	`, channel.UserID, channel.Type, channel.Target).Scan(
		&channel.ID, &channel.CreatedAt, &channel.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return channel, nil
}

func (r *Repository) queryChannels(ctx context.Context, query string, args ...any) ([]domain.NotificationChannel, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	channels := make([]domain.NotificationChannel, 0)
	for rows.Next() {
		var ch domain.NotificationChannel
		err := rows.Scan(
			&ch.ID,
			&ch.UserID,
			&ch.Type,
			&ch.Target,
			&ch.IsActive,
			&ch.CreatedAt,
			&ch.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}
