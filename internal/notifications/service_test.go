package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medinaflav/manga-tracker/internal/domain"
)

func TestIssueAndConsumeLinkToken(t *testing.T) {
	repo := newFakeRepo()
	tg := &fakeSender{channelType: domain.ChannelTypeTelegram}
	svc := NewService(repo, NewDispatcher(repo, newTestRenderer(t), tg), time.Hour)

	token, err := svc.IssueLinkToken(context.Background(), "u1", domain.ChannelTypeTelegram)
	require.NoError(t, err)
	assert.Len(t, token, 64, "32 random bytes hex-encoded")

	channel, err := svc.ConsumeLinkToken(context.Background(), token, "chat-123")
	require.NoError(t, err)
	assert.Equal(t, "u1", channel.UserID)
	assert.Equal(t, domain.ChannelTypeTelegram, channel.Type)
	assert.Equal(t, "chat-123", channel.Target)
	assert.True(t, channel.IsActive)

	// Linking sends a confirmation to the fresh channel.
	require.Len(t, tg.deliveries(), 1)
	assert.Equal(t, "chat-123", tg.deliveries()[0].To)
}

func TestConsumeLinkToken_SecondUseRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, time.Hour)

	token, err := svc.IssueLinkToken(context.Background(), "u1", domain.ChannelTypeTelegram)
	require.NoError(t, err)

	_, err = svc.ConsumeLinkToken(context.Background(), token, "chat-1")
	require.NoError(t, err)

	_, err = svc.ConsumeLinkToken(context.Background(), token, "chat-2")
	assert.ErrorIs(t, err, ErrTokenConsumed)
}

func TestConsumeLinkToken_Expired(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, time.Hour)

	token, err := svc.IssueLinkToken(context.Background(), "u1", domain.ChannelTypeTelegram)
	require.NoError(t, err)

	// Move the service clock past the TTL.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = svc.ConsumeLinkToken(context.Background(), token, "chat-1")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestConsumeLinkToken_Unknown(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, time.Hour)

	_, err := svc.ConsumeLinkToken(context.Background(), "never-issued", "chat-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestConsumeLinkToken_ReplacesActiveChannelOfSameKind(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, time.Hour)

	first, err := svc.IssueLinkToken(context.Background(), "u1", domain.ChannelTypeTelegram)
	require.NoError(t, err)
	_, err = svc.ConsumeLinkToken(context.Background(), first, "chat-old")
	require.NoError(t, err)

	second, err := svc.IssueLinkToken(context.Background(), "u1", domain.ChannelTypeTelegram)
	require.NoError(t, err)
	_, err = svc.ConsumeLinkToken(context.Background(), second, "chat-new")
	require.NoError(t, err)

	active, err := repo.ActiveChannels(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, active, 1, "at most one active channel per kind")
	assert.Equal(t, "chat-new", active[0].Target)
}

func TestUnlinkChannel(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, time.Hour)

	token, err := svc.IssueLinkToken(context.Background(), "u1", domain.ChannelTypeWebhook)
	require.NoError(t, err)
	channel, err := svc.ConsumeLinkToken(context.Background(), token, "https://hooks.example/x")
	require.NoError(t, err)

	require.NoError(t, svc.UnlinkChannel(context.Background(), "u1", channel.ID))

	active, err := repo.ActiveChannels(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestUnlinkChannel_NotOwned(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, time.Hour)

	err := svc.UnlinkChannel(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}
