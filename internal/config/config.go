// Package config loads application configuration from defaults, an
// optional YAML file and TRACKER_* environment variables, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TRACKER_"

// Config is the full application configuration.
type Config struct {
	Log           LogConfig           `koanf:"log"`
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Sweep         SweepConfig         `koanf:"sweep"`
	Reconcile     ReconcileConfig     `koanf:"reconcile"`
	Sources       SourcesConfig       `koanf:"sources"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// ServerConfig controls the ops HTTP surface.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required,nefield=Port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// DatabaseConfig controls the pgx pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"min=1"`
	Migrate         bool          `koanf:"migrate"`
}

// SweepConfig controls the release scheduler.
type SweepConfig struct {
	Interval         time.Duration `koanf:"interval" validate:"min=1m"`
	TitleConcurrency int           `koanf:"title_concurrency" validate:"min=1"`
	AdapterTimeout   time.Duration `koanf:"adapter_timeout" validate:"min=1s"`
}

// ReconcileConfig is deployment policy for conflict resolution.
type ReconcileConfig struct {
	// Priority breaks exact numeric ties between sources.
	Priority []string `koanf:"priority" validate:"min=1"`
	// DefaultChapter is the canonical value when every source fails.
	DefaultChapter string `koanf:"default_chapter" validate:"required"`
}

// SourcesConfig configures the chapter-listing adapters.
type SourcesConfig struct {
	Mangadex  SourceConfig `koanf:"mangadex"`
	Comick    SourceConfig `koanf:"comick"`
	Mangapill SourceConfig `koanf:"mangapill"`
}

// SourceConfig is one adapter's knobs.
type SourceConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// NotificationsConfig configures delivery and channel linking.
type NotificationsConfig struct {
	Enabled      bool           `koanf:"enabled"`
	LinkTokenTTL time.Duration  `koanf:"link_token_ttl" validate:"min=1m"`
	Telegram     TelegramConfig `koanf:"telegram"`
	Webhook      WebhookConfig  `koanf:"webhook"`
}

// TelegramConfig configures the telegram sender.
type TelegramConfig struct {
	Enabled   bool    `koanf:"enabled"`
	BotToken  string  `koanf:"bot_token"`
	RateLimit float64 `koanf:"rate_limit"`
}

// WebhookConfig configures the webhook sender.
type WebhookConfig struct {
	Username string        `koanf:"username"`
	Timeout  time.Duration `koanf:"timeout"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log.level":  "info",
		"log.format": "text",

		"server.host":                "0.0.0.0",
		"server.port":                "8080",
		"server.metrics_port":        "9090",
		"server.read_timeout":        "10s",
		"server.read_header_timeout": "5s",
		"server.write_timeout":       "10s",
		"server.idle_timeout":        "60s",
		"server.cors_origins":        []string{"*"},

		"database.max_open_conns":    10,
		"database.max_idle_conns":    2,
		"database.conn_max_lifetime": "30m",
		"database.connect_timeout":   "30s",
		"database.connect_attempts":  5,
		"database.migrate":           true,

		"sweep.interval":          "20m",
		"sweep.title_concurrency": 4,
		"sweep.adapter_timeout":   "15s",

		"reconcile.priority":        []string{"mangadex", "comick", "mangapill"},
		"reconcile.default_chapter": "1",

		"sources.mangadex.enabled": true,
		"sources.comick.enabled":   true,
		// mangapill needs a deployment-specific mirror URL.
		"sources.mangapill.enabled": false,

		"notifications.enabled":         true,
		"notifications.link_token_ttl":  "15m",
		"notifications.webhook.timeout": "10s",
	}
}

// Load reads configuration. path may be empty to skip the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// TRACKER_DATABASE__MAX_OPEN_CONNS -> database.max_open_conns.
	// Nesting is separated by a double underscore so key names may
	// themselves contain single underscores.
	err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(key, envPrefix)
		return strings.ReplaceAll(strings.ToLower(key), "__", "."), value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
