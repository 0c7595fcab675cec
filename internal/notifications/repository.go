package notifications

import (
	"context"
	"time"

	"github.com/medinaflav/manga-tracker/internal/domain"
)

// Repository defines the interface for notifications data access.
type Repository interface {
	// ActiveChannels returns the user's currently active channels, at
	// most one per channel type.
	ActiveChannels(ctx context.Context, userID string) ([]domain.NotificationChannel, error)

	// ListUserChannels returns all of a user's channels, active or not.
	ListUserChannels(ctx context.Context, userID string) ([]domain.NotificationChannel, error)

	// DeactivateChannel disables a channel owned by the user.
	DeactivateChannel(ctx context.Context, userID, channelID string) error

	// CreateLinkToken stores a pending link token.
	CreateLinkToken(ctx context.Context, token *domain.LinkToken) error

	// ConsumeLinkToken redeems the token identified by its hash and
	// activates a channel bound to target, deactivating any previous
	// channel of the same type, all in one transaction. Expired or
	// already-consumed tokens yield ErrTokenExpired / ErrTokenConsumed
	// and change nothing.
	ConsumeLinkToken(ctx context.Context, tokenHash, target string, now time.Time) (*domain.NotificationChannel, error)
}
