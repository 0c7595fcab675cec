// Package notifications resolves a user's delivery channels and
// performs the one-shot fan-out of release events.
package notifications

import (
	"context"

	"github.com/medinaflav/manga-tracker/internal/domain"
)

// Notification is one message bound for one channel target.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers notifications over one channel type.
type Sender interface {
	Type() domain.ChannelType
	Send(ctx context.Context, notification Notification) error
}
