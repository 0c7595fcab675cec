// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medinaflav/manga-tracker/internal/config"
	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/notifications"
	notificationspostgres "github.com/medinaflav/manga-tracker/internal/notifications/postgres"
	"github.com/medinaflav/manga-tracker/internal/notifications/telegram"
	"github.com/medinaflav/manga-tracker/internal/notifications/webhook"
	"github.com/medinaflav/manga-tracker/internal/pkg/ctxlog"
	"github.com/medinaflav/manga-tracker/internal/pkg/httputil"
	"github.com/medinaflav/manga-tracker/internal/pkg/metrics"
	"github.com/medinaflav/manga-tracker/internal/pkg/postgres"
	"github.com/medinaflav/manga-tracker/internal/reconcile"
	"github.com/medinaflav/manga-tracker/internal/scheduler"
	"github.com/medinaflav/manga-tracker/internal/source"
	"github.com/medinaflav/manga-tracker/internal/source/comick"
	"github.com/medinaflav/manga-tracker/internal/source/mangadex"
	"github.com/medinaflav/manga-tracker/internal/source/mangapill"
	"github.com/medinaflav/manga-tracker/internal/version"
	"github.com/medinaflav/manga-tracker/internal/watch"
	watchpostgres "github.com/medinaflav/manga-tracker/internal/watch/postgres"
	"github.com/medinaflav/manga-tracker/migrations"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	sweeper       *scheduler.Sweeper
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.Migrate {
		if err := postgres.Migrate(cfg.Database.URL, migrations.FS, "."); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, sweeper, err := app.setup()
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup application: %w", err)
	}
	app.sweeper = sweeper

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the sweeper and the HTTP servers.
func (a *App) Run() error {
	a.sweeper.Start(context.Background())

	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	a.metricsCancel()

	// Stop the sweeper first so no new deliveries start while the
	// servers drain.
	a.sweeper.Stop()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Sweeper returns the release sweeper instance, for tests that
// trigger sweeps directly.
func (a *App) Sweeper() *scheduler.Sweeper {
	return a.sweeper
}

func (a *App) setup() (*chi.Mux, *scheduler.Sweeper, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(httputil.CORSMiddleware(a.config.Server.CORSOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	registry := watchpostgres.NewRepository(a.db)
	notificationsRepo := notificationspostgres.NewRepository(a.db)

	senders, err := a.buildSenders()
	if err != nil {
		return nil, nil, err
	}

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, nil, fmt.Errorf("create notification renderer: %w", err)
	}

	dispatcher := notifications.NewDispatcher(notificationsRepo, renderer, senders...)
	notificationsService := notifications.NewService(notificationsRepo, dispatcher, a.config.Notifications.LinkTokenTTL)

	adapters, err := a.buildAdapters()
	if err != nil {
		return nil, nil, err
	}

	defaultChapter, err := domain.ParseChapter(a.config.Reconcile.DefaultChapter)
	if err != nil {
		return nil, nil, fmt.Errorf("parse default chapter: %w", err)
	}
	reconciler := reconcile.New(reconcile.Config{
		Priority:       a.config.Reconcile.Priority,
		DefaultChapter: defaultChapter,
	})

	sweeper := scheduler.New(scheduler.Config{
		Interval:         a.config.Sweep.Interval,
		TitleConcurrency: a.config.Sweep.TitleConcurrency,
		AdapterTimeout:   a.config.Sweep.AdapterTimeout,
	}, registry, adapters, reconciler, dispatcher)

	watchHandler := watch.NewHandler(registry)
	notificationsHandler := notifications.NewHandler(notificationsService)

	r.Route("/api/v1", func(r chi.Router) {
		watchHandler.RegisterRoutes(r)
		notificationsHandler.RegisterRoutes(r)
	})

	return r, sweeper, nil
}

func (a *App) buildSenders() ([]notifications.Sender, error) {
	if !a.config.Notifications.Enabled {
		slog.Warn("notifications disabled: release events will be detected but not delivered")
		return nil, nil
	}

	telegramSender, err := telegram.NewSender(telegram.Config{
		Enabled:   a.config.Notifications.Telegram.Enabled,
		BotToken:  a.config.Notifications.Telegram.BotToken,
		RateLimit: a.config.Notifications.Telegram.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram sender: %w", err)
	}
	if !a.config.Notifications.Telegram.Enabled {
		slog.Warn("telegram sender is disabled: telegram notifications will not be sent")
	}

	// Webhook targets are set per-channel by the user, so the sender
	// is always available.
	webhookSender := webhook.NewSender(webhook.Config{
		DefaultUsername: a.config.Notifications.Webhook.Username,
		Timeout:         a.config.Notifications.Webhook.Timeout,
	})

	return []notifications.Sender{telegramSender, webhookSender}, nil
}

func (a *App) buildAdapters() ([]source.Adapter, error) {
	adapters := make([]source.Adapter, 0, 3)

	if a.config.Sources.Mangadex.Enabled {
		adapters = append(adapters, mangadex.New(mangadex.Config{
			BaseURL: a.config.Sources.Mangadex.BaseURL,
			Timeout: a.config.Sources.Mangadex.Timeout,
		}))
	}
	if a.config.Sources.Comick.Enabled {
		adapters = append(adapters, comick.New(comick.Config{
			BaseURL: a.config.Sources.Comick.BaseURL,
			Timeout: a.config.Sources.Comick.Timeout,
		}))
	}
	if a.config.Sources.Mangapill.Enabled {
		adapter, err := mangapill.New(mangapill.Config{
			BaseURL: a.config.Sources.Mangapill.BaseURL,
			Timeout: a.config.Sources.Mangapill.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create mangapill adapter: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no chapter sources enabled")
	}

	slog.Info("chapter sources configured", "count", len(adapters))
	return adapters, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
