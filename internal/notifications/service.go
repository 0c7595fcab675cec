package notifications

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/medinaflav/manga-tracker/internal/domain"
)

const (
	linkTokenBytes   = 32
	defaultTokenTTL  = 15 * time.Minute
	linkTestSubject  = "Channel linked"
	linkTestBodyText = "Release notifications will arrive here. If you did not request this, unlink the channel."
)

// Service manages notification channels and the out-of-band link flow.
type Service struct {
	repo       Repository
	dispatcher *Dispatcher
	tokenTTL   time.Duration
	now        func() time.Time
}

// NewService creates a notifications service. ttl bounds link-token
// validity; zero selects the default.
func NewService(repo Repository, dispatcher *Dispatcher, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		tokenTTL:   ttl,
		now:        time.Now,
	}
}

// IssueLinkToken mints a single-use token binding userID to a future
// channel of the given type. Only the SHA-256 digest is stored; the
// plaintext goes into the deep link and is never seen again.
func (s *Service) IssueLinkToken(ctx context.Context, userID string, channelType domain.ChannelType) (string, error) {
	raw := make([]byte, linkTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(raw)

	record := &domain.LinkToken{
		UserID:    userID,
		Type:      channelType,
		TokenHash: hashToken(token),
		ExpiresAt: s.now().Add(s.tokenTTL),
	}
	if err := s.repo.CreateLinkToken(ctx, record); err != nil {
		return "", fmt.Errorf("create link token: %w", err)
	}

	slog.Info("link token issued", "user_id", userID, "channel_type", channelType)
	return token, nil
}

// ConsumeLinkToken redeems a token and activates a channel pointed at
// target. Consumption and activation are atomic: either the token is
// spent and the channel is live, or nothing changed. A previous active
// channel of the same type is deactivated as part of the same step.
func (s *Service) ConsumeLinkToken(ctx context.Context, token, target string) (*domain.NotificationChannel, error) {
	channel, err := s.repo.ConsumeLinkToken(ctx, hashToken(token), target, s.now())
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			recordLinkTokenConsumed("expired")
		case errors.Is(err, ErrTokenConsumed):
			recordLinkTokenConsumed("already_consumed")
		case errors.Is(err, ErrTokenNotFound):
			recordLinkTokenConsumed("not_found")
		default:
			recordLinkTokenConsumed("error")
		}
		return nil, err
	}
	recordLinkTokenConsumed("success")

	slog.Info("channel linked",
		"user_id", channel.UserID,
		"channel_type", channel.Type,
	)

	// Confirmation message is best-effort; the link already holds.
	if s.dispatcher != nil {
		s.sendLinkConfirmation(ctx, channel)
	}

	return channel, nil
}

// ListChannels returns all of a user's channels.
func (s *Service) ListChannels(ctx context.Context, userID string) ([]domain.NotificationChannel, error) {
	return s.repo.ListUserChannels(ctx, userID)
}

// UnlinkChannel deactivates a channel owned by the user.
func (s *Service) UnlinkChannel(ctx context.Context, userID, channelID string) error {
	return s.repo.DeactivateChannel(ctx, userID, channelID)
}

func (s *Service) sendLinkConfirmation(ctx context.Context, channel *domain.NotificationChannel) {
	sender, err := s.dispatcher.senderFor(channel.Type)
	if err != nil {
		slog.Warn("link confirmation skipped", "channel_type", channel.Type, "error", err)
		return
	}
	notification := Notification{
		To:      channel.Target,
		Subject: linkTestSubject,
		Body:    linkTestBodyText,
	}
	if err := sender.Send(ctx, notification); err != nil {
		slog.Warn("link confirmation failed",
			"channel_id", channel.ID,
			"channel_type", channel.Type,
			"error", err,
		)
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
