package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/medinaflav/manga-tracker/internal/domain"
)

// Dispatcher delivers release events to subscribers' channels.
// Delivery is at-most-once: a failure is logged and counted, never
// re-queued, and never rolls back the advanced watch state.
type Dispatcher struct {
	repo     Repository
	renderer *Renderer
	senders  map[domain.ChannelType]Sender
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(repo Repository, renderer *Renderer, senders ...Sender) *Dispatcher {
	senderMap := make(map[domain.ChannelType]Sender, len(senders))
	for _, s := range senders {
		senderMap[s.Type()] = s
	}
	return &Dispatcher{
		repo:     repo,
		renderer: renderer,
		senders:  senderMap,
	}
}

// Dispatch sends one release event to every active channel of the
// event's user. A user with no linked channel is not an error; the
// event is simply consumed.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.ReleaseEvent) {
	channels, err := d.repo.ActiveChannels(ctx, event.UserID)
	if err != nil {
		slog.Error("failed to resolve channels",
			"user_id", event.UserID,
			"title_id", event.TitleID,
			"error", err,
		)
		return
	}

	if len(channels) == 0 {
		slog.Debug("no active channels, dropping event",
			"user_id", event.UserID,
			"title_id", event.TitleID,
		)
		return
	}

	subject, body, err := d.renderer.Render(event)
	if err != nil {
		slog.Error("failed to render notification", "title_id", event.TitleID, "error", err)
		return
	}

	for _, ch := range channels {
		d.sendToChannel(ctx, ch, event, Notification{
			To:      ch.Target,
			Subject: subject,
			Body:    body,
		})
	}
}

func (d *Dispatcher) sendToChannel(ctx context.Context, ch domain.NotificationChannel, event domain.ReleaseEvent, notification Notification) {
	sender, ok := d.senders[ch.Type]
	if !ok {
		slog.Warn("no sender for channel type", "type", ch.Type)
		recordNotificationSent(string(ch.Type), "no_sender")
		return
	}

	start := time.Now()
	err := sender.Send(ctx, notification)
	duration := time.Since(start)

	if err != nil {
		// At-most-once: log and move on, the watch item stays advanced.
		slog.Error("delivery failed",
			"channel_id", ch.ID,
			"channel_type", ch.Type,
			"title_id", event.TitleID,
			"new_chapter", event.NewChapter.String(),
			"error", err,
		)
		recordNotificationSent(string(ch.Type), "failed")
		return
	}

	recordNotificationSent(string(ch.Type), "success")
	recordNotificationDuration(string(ch.Type), duration)

	slog.Debug("notification sent",
		"channel_type", ch.Type,
		"title_id", event.TitleID,
		"new_chapter", event.NewChapter.String(),
		"duration", duration,
	)
}

// senderFor exposes sender lookup for the link service's test message.
func (d *Dispatcher) senderFor(t domain.ChannelType) (Sender, error) {
	sender, ok := d.senders[t]
	if !ok {
		return nil, fmt.Errorf("no sender for channel type: %s", t)
	}
	return sender, nil
}
