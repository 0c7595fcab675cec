// Package scheduler drives the periodic poll-reconcile-update-notify
// cycle across all watched titles.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/pkg/ctxlog"
	"github.com/medinaflav/manga-tracker/internal/reconcile"
	"github.com/medinaflav/manga-tracker/internal/source"
	"github.com/medinaflav/manga-tracker/internal/watch"
)

// Dispatcher consumes release events. Delivery outcome never flows
// back into the sweep.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.ReleaseEvent)
}

// Config contains sweeper configuration.
type Config struct {
	Interval         time.Duration
	TitleConcurrency int
	AdapterTimeout   time.Duration
}

// DefaultConfig returns default sweeper configuration.
func DefaultConfig() Config {
	return Config{
		Interval:         20 * time.Minute,
		TitleConcurrency: 4,
		AdapterTimeout:   15 * time.Second,
	}
}

// Sweeper runs reconciliation sweeps on a fixed cadence. Overlapping
// sweeps are skipped, never queued: work per tick stays bounded.
type Sweeper struct {
	config     Config
	registry   watch.Registry
	adapters   []source.Adapter
	reconciler *reconcile.Reconciler
	dispatcher Dispatcher

	sweeping atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a sweeper.
func New(config Config, registry watch.Registry, adapters []source.Adapter, reconciler *reconcile.Reconciler, dispatcher Dispatcher) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.TitleConcurrency <= 0 {
		config.TitleConcurrency = DefaultConfig().TitleConcurrency
	}
	if config.AdapterTimeout <= 0 {
		config.AdapterTimeout = DefaultConfig().AdapterTimeout
	}
	return &Sweeper{
		config:     config,
		registry:   registry,
		adapters:   adapters,
		reconciler: reconciler,
		dispatcher: dispatcher,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the sweep loop and runs one sweep immediately.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("starting release sweeper",
		"interval", s.config.Interval,
		"title_concurrency", s.config.TitleConcurrency,
		"sources", len(s.adapters),
	)

	s.launchSweep(ctx)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the loop and waits for the in-flight sweep to drain.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("release sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.launchSweep(ctx)
		}
	}
}

// launchSweep starts a sweep unless one is still running, in which
// case the tick is dropped and logged.
func (s *Sweeper) launchSweep(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		slog.Warn("previous sweep still running, skipping tick")
		recordSweepSkipped()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sweeping.Store(false)
		s.Sweep(ctx)
	}()
}

// Sweep runs one full poll-reconcile-update-notify cycle. Per-title
// failures are isolated; a registry failure aborts only this sweep,
// to be retried at the next tick.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()

	// Every log line of one sweep shares a sweep_id, so interleaved
	// output from overlapping titles stays attributable.
	logger := slog.Default().With("sweep_id", uuid.New().String())
	ctx = ctxlog.WithLogger(ctx, logger)

	titles, err := s.registry.ListDistinctTitles(ctx)
	if err != nil {
		logger.Error("sweep aborted: list watched titles", "error", err)
		recordSweep("aborted", time.Since(start))
		return
	}

	if len(titles) == 0 {
		recordSweep("empty", time.Since(start))
		return
	}

	var (
		dispatchWG sync.WaitGroup
		releases   atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.TitleConcurrency)
	for _, ref := range titles {
		ref := ref
		g.Go(func() error {
			releases.Add(s.sweepTitle(gctx, ref, &dispatchWG))
			return nil
		})
	}
	// Workers never return errors; failures stay inside their title.
	_ = g.Wait()
	dispatchWG.Wait()

	duration := time.Since(start)
	recordSweep("completed", duration)

	logger.Info("sweep completed",
		"titles", len(titles),
		"releases", releases.Load(),
		"duration", duration,
	)
}

// sweepTitle polls every source for one title, reconciles, advances
// subscriber state and emits events for real transitions. Returns the
// number of events emitted.
func (s *Sweeper) sweepTitle(ctx context.Context, ref watch.TitleRef, dispatchWG *sync.WaitGroup) int64 {
	logger := ctxlog.FromContext(ctx)

	results := s.fetchAll(ctx, ref)
	release := s.reconciler.Reconcile(ref.ID, results)

	for _, res := range results {
		recordSourceOutcome(res.Source, string(res.Outcome))
		if res.Outcome == source.OutcomeTransientError {
			logger.Warn("source unavailable",
				"source", res.Source,
				"title_id", ref.ID,
				"error", res.Err,
			)
		}
	}

	// A fallback canonical means no source confirmed anything this
	// sweep. It is a defined value for diagnostics, not evidence of a
	// release: nobody's state moves and nobody is notified.
	if release.Provenance == reconcile.ProvenanceFallback {
		logger.Debug("no source agreement, skipping subscribers",
			"title_id", ref.ID,
			"chapter", release.Chapter.String(),
		)
		return 0
	}

	subscribers, err := s.registry.ListSubscribers(ctx, ref.ID)
	if err != nil {
		logger.Error("list subscribers failed", "title_id", ref.ID, "error", err)
		return 0
	}

	var emitted int64
	for _, item := range subscribers {
		if !item.LastKnownChapter.Less(release.Chapter) {
			continue
		}

		advanced, err := s.registry.Advance(ctx, item.ID, release.Chapter)
		if err != nil {
			logger.Error("advance failed",
				"watch_item_id", item.ID,
				"title_id", ref.ID,
				"error", err,
			)
			continue
		}
		if !advanced {
			// A concurrent sweep or a manual progress update got there
			// first; the other path owns the notification.
			continue
		}

		if !item.Notify {
			continue
		}

		event := domain.ReleaseEvent{
			UserID:     item.UserID,
			TitleID:    ref.ID,
			Title:      item.Title,
			OldChapter: item.LastKnownChapter,
			NewChapter: release.Chapter,
		}
		emitted++
		recordReleaseDetected(release.Provenance)

		// One goroutine per event so a slow channel for one user never
		// delays delivery to others. The group context is cancelled as
		// soon as the title fan-out finishes, so deliveries detach from
		// it; they keep the sweep's values and run to their own
		// timeouts.
		dispatchCtx := context.WithoutCancel(ctx)
		dispatchWG.Add(1)
		go func() {
			defer dispatchWG.Done()
			s.dispatcher.Dispatch(dispatchCtx, event)
		}()
	}

	return emitted
}

// fetchAll calls every adapter in parallel, each bounded by its own
// timeout on top of whatever the adapter enforces internally.
func (s *Sweeper) fetchAll(ctx context.Context, ref watch.TitleRef) []source.Result {
	results := make([]source.Result, len(s.adapters))

	var wg sync.WaitGroup
	for i, adapter := range s.adapters {
		i, adapter := i, adapter
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, s.config.AdapterTimeout)
			defer cancel()
			results[i] = adapter.FetchLatestChapter(fetchCtx, ref.Title, ref.ID)
		}()
	}
	wg.Wait()

	return results
}
