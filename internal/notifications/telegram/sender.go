// Package telegram provides telegram notification sending via the Bot
// API. notification.To carries the chat id obtained during linking.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/notifications"
)

const (
	defaultAPIURL    = "https://api.telegram.org"
	defaultRateLimit = 25 // Bot API allows ~30 msg/s; stay under it
	defaultTimeout   = 10 * time.Second
)

// Config holds telegram sender configuration.
type Config struct {
	Enabled   bool
	BotToken  string
	RateLimit float64 // messages per second across all chats
	APIURL    string  // override for tests
}

// Sender implements telegram notification sending.
type Sender struct {
	config     Config
	apiURL     string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewSender creates a telegram sender. Returns an error if enabled but
// the bot token is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.BotToken == "" {
		return nil, errors.New("telegram sender: bot token is required when enabled")
	}

	limit := config.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	slog.Info("telegram sender configured",
		"enabled", config.Enabled,
		"rate_limit", limit,
	)

	return &Sender{
		config:     config,
		apiURL:     apiURL,
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeTelegram
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// Send delivers one message to the chat in notification.To.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if !s.config.Enabled {
		slog.Debug("telegram sender disabled, skipping", "to", notification.To)
		return nil
	}
	if notification.To == "" {
		return errors.New("telegram: chat id is empty")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limiter: %w", err)
	}

	text := notification.Body
	if notification.Subject != "" {
		text = notification.Subject + "\n\n" + notification.Body
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID: notification.To,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram: read response: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return fmt.Errorf("telegram: status %d: decode response: %w", resp.StatusCode, err)
	}
	if !api.OK {
		return fmt.Errorf("telegram: api error %d: %s", api.ErrorCode, api.Description)
	}

	return nil
}
