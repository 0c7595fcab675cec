package domain

import "time"

// ChannelType identifies a delivery transport.
type ChannelType string

const (
	ChannelTypeTelegram ChannelType = "telegram"
	ChannelTypeWebhook  ChannelType = "webhook"
)

// NotificationChannel binds a user to one delivery target. A user may
// hold at most one active channel per type; linking a new one
// deactivates the previous.
type NotificationChannel struct {
	ID        string
	UserID    string
	Type      ChannelType
	Target    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LinkToken is a single-use, time-bounded credential used to bind a
// user to a channel target out-of-band (e.g. a bot deep link).
type LinkToken struct {
	ID         string
	UserID     string
	Type       ChannelType
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Consumed reports whether the token has already been redeemed.
func (t LinkToken) Consumed() bool { return t.ConsumedAt != nil }

// Expired reports whether the token is past its deadline.
func (t LinkToken) Expired(now time.Time) bool { return now.After(t.ExpiresAt) }
