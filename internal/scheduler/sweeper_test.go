package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medinaflav/manga-tracker/internal/domain"
	"github.com/medinaflav/manga-tracker/internal/reconcile"
	"github.com/medinaflav/manga-tracker/internal/source"
	"github.com/medinaflav/manga-tracker/internal/watch"
)

// fakeRegistry is an in-memory watch.Registry with the same CAS
// semantics as the postgres implementation.
type fakeRegistry struct {
	mu    sync.Mutex
	items map[string]*domain.WatchItem // keyed by watch item id

	listTitlesErr error
}

func newFakeRegistry(items ...*domain.WatchItem) *fakeRegistry {
	r := &fakeRegistry{items: make(map[string]*domain.WatchItem)}
	for _, item := range items {
		r.items[item.ID] = item
	}
	return r
}

func (r *fakeRegistry) ListDistinctTitles(context.Context) ([]watch.TitleRef, error) {
	if r.listTitlesErr != nil {
		return nil, r.listTitlesErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]watch.TitleRef)
	for _, item := range r.items {
		seen[item.TitleID] = watch.TitleRef{ID: item.TitleID, Title: item.Title}
	}
	refs := make([]watch.TitleRef, 0, len(seen))
	for _, ref := range seen {
		refs = append(refs, ref)
	}
	return refs, nil
}

func (r *fakeRegistry) ListSubscribers(_ context.Context, titleID string) ([]domain.WatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]domain.WatchItem, 0)
	for _, item := range r.items {
		if item.TitleID == titleID {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (r *fakeRegistry) Advance(_ context.Context, id string, c domain.Chapter) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok || !item.LastKnownChapter.Less(c) {
		return false, nil
	}
	item.LastKnownChapter = c
	return true, nil
}

func (r *fakeRegistry) ListByUser(context.Context, string) ([]domain.WatchItem, error) {
	return nil, nil
}

func (r *fakeRegistry) Subscribe(context.Context, *domain.WatchItem) error { return nil }

func (r *fakeRegistry) Unsubscribe(context.Context, string, string) error { return nil }

func (r *fakeRegistry) SetNotify(context.Context, string, string, bool) error { return nil }

// fakeAdapter returns canned results and records which titles it was
// asked about.
type fakeAdapter struct {
	name    string
	results map[string]source.Result // keyed by catalog id

	mu     sync.Mutex
	called []string
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) FetchLatestChapter(_ context.Context, _, catalogID string) source.Result {
	a.mu.Lock()
	a.called = append(a.called, catalogID)
	a.mu.Unlock()
	if res, ok := a.results[catalogID]; ok {
		return res
	}
	return source.NotFound(a.name)
}

func (a *fakeAdapter) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.called...)
}

// captureDispatcher records dispatched events.
type captureDispatcher struct {
	mu     sync.Mutex
	events []domain.ReleaseEvent
}

func (d *captureDispatcher) Dispatch(_ context.Context, event domain.ReleaseEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *captureDispatcher) all() []domain.ReleaseEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.ReleaseEvent(nil), d.events...)
}

// slowDispatcher lingers in Dispatch and records the context state it
// observed on the way out.
type slowDispatcher struct {
	delay time.Duration

	mu      sync.Mutex
	ctxErrs []error
}

func (d *slowDispatcher) Dispatch(ctx context.Context, _ domain.ReleaseEvent) {
	time.Sleep(d.delay)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctxErrs = append(d.ctxErrs, ctx.Err())
}

func (d *slowDispatcher) observed() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.ctxErrs...)
}

func mustCh(t *testing.T, s string) domain.Chapter {
	t.Helper()
	c, err := domain.ParseChapter(s)
	require.NoError(t, err)
	return c
}

func newTestReconciler(t *testing.T) *reconcile.Reconciler {
	t.Helper()
	return reconcile.New(reconcile.Config{
		Priority:       []string{"src-a", "src-b", "src-c"},
		DefaultChapter: mustCh(t, "1"),
	})
}

func okAdapter(name string, results map[string]string) *fakeAdapter {
	canned := make(map[string]source.Result, len(results))
	for id, chapter := range results {
		c, err := domain.ParseChapter(chapter)
		if err != nil {
			canned[id] = source.Result{Source: name, Outcome: source.OutcomeTransientError, Err: err}
			continue
		}
		canned[id] = source.OKResult(name, c)
	}
	return &fakeAdapter{name: name, results: canned}
}

func downAdapter(name string) *fakeAdapter {
	return &fakeAdapter{name: name, results: nil}
}

func TestSweep_ForwardProgressDispatchesExactlyOnce(t *testing.T) {
	registry := newFakeRegistry(
		&domain.WatchItem{ID: "w1", UserID: "u1", TitleID: "t1", Title: "Berserk", LastKnownChapter: mustCh(t, "5"), Notify: true},
		&domain.WatchItem{ID: "w2", UserID: "u2", TitleID: "t1", Title: "Berserk", LastKnownChapter: mustCh(t, "6"), Notify: true},
	)
	adapter := okAdapter("src-a", map[string]string{"t1": "6"})
	dispatcher := &captureDispatcher{}

	s := New(Config{}, registry, []source.Adapter{adapter}, newTestReconciler(t), dispatcher)
	s.Sweep(context.Background())

	events := dispatcher.all()
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, mustCh(t, "5"), events[0].OldChapter)
	assert.Equal(t, mustCh(t, "6"), events[0].NewChapter)

	// The same sweep again finds no forward progress.
	s.Sweep(context.Background())
	assert.Len(t, dispatcher.all(), 1)
}

func TestSweep_BrokenSourceIsIsolated(t *testing.T) {
	registry := newFakeRegistry(
		&domain.WatchItem{ID: "w1", UserID: "u1", TitleID: "t1", Title: "Berserk", LastKnownChapter: mustCh(t, "10"), Notify: true},
	)
	srcA := okAdapter("src-a", map[string]string{"t1": "12"})
	srcB := &fakeAdapter{name: "src-b", results: map[string]source.Result{
		"t1": source.Unavailable("src-b", errors.New("connection refused")),
	}}
	srcC := okAdapter("src-c", map[string]string{"t1": "11"})
	dispatcher := &captureDispatcher{}

	s := New(Config{}, registry, []source.Adapter{srcA, srcB, srcC}, newTestReconciler(t), dispatcher)
	s.Sweep(context.Background())

	events := dispatcher.all()
	require.Len(t, events, 1)
	assert.Equal(t, mustCh(t, "10"), events[0].OldChapter)
	assert.Equal(t, mustCh(t, "12"), events[0].NewChapter)
}

func TestSweep_UntrackedTitlesNeverPolled(t *testing.T) {
	registry := newFakeRegistry(
		&domain.WatchItem{ID: "w1", UserID: "u1", TitleID: "t1", Title: "Berserk", LastKnownChapter: mustCh(t, "3"), Notify: true},
	)
	adapter := okAdapter("src-a", map[string]string{"t1": "4", "t2": "100"})
	dispatcher := &captureDispatcher{}

	s := New(Config{}, registry, []source.Adapter{adapter}, newTestReconciler(t), dispatcher)
	s.Sweep(context.Background())

	assert.Equal(t, []string{"t1"}, adapter.calls())
}

func TestSweep_NotifyDisabledAdvancesSilently(t *testing.T) {
	registry := newFakeRegistry(
		&domain.WatchItem{ID: "w1", UserID: "u1", TitleID: "t1", Title: "Berserk", LastKnownChapter: mustCh(t, "5"), Notify: false},
	)
	adapter := okAdapter("src-a", map[string]string{"t1": "6"})
	dispatcher := &captureDispatcher{}

	s := New(Config{}, registry, []source.Adapter{adapter}, newTestReconciler(t), dispatcher)
	s.Sweep(context.Background())

	assert.Empty(t, dispatcher.all())

	// State still moved forward.
	items, err := registry.ListSubscribers(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mustCh(t, "6"), items[0].LastKnownChapter)
}

func TestSweep_ConcurrentSweepsAdvanceOnce(t *testing.T) {
	registry := newFakeRegistry(
		&domain.WatchItem{ID: "w1", UserID: "u1", TitleID: "t1", Title: "Berserk", LastKnownChapter: mustCh(t, "5"), Notify: true},
	)
	adapter := okAdapter("src-a", map[string]string{"t1": "6"})
	dispatcher := &captureDispatcher{}

	s := New(Config{}, registry, []source.Adapter{adapter}, newTestReconciler(t), dispatcher)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Sweep(context.Background())
		}()
	}
	wg.Wait()

	// Both sweeps computed canonical 6 from the same snapshot; the CAS
	// in Advance let exactly one of them own the notification.
	assert.Len(t, dispatcher.all(), 1)
}

func TestSweep_RegistryFailureAbortsQuietly(t *testing.T) {
	registry := newFakeRegistry()
	registry.listTitlesErr = errors.New("store unreachable")
	adapter := okAdapter("src-a", nil)
	dispatcher := &captureDispatcher{}

	s := New(Config{}, registry, []source.Adapter{adapter}, newTestReconciler(t), dispatcher)
	s.Sweep(context.Background())

	assert.Empty(t, adapter.calls())
	assert.Empty(t, dispatcher.all())
}

func TestSweep_AllSourcesFailedNoBackwardMove(t *testing.T) {
	// Canonical falls back to the default ("1"): a subscriber already
	// past it must not be touched, and a fresh subscriber still at zero
	// must not be pushed onto the fallback or notified about it.
	registry := newFakeRegistry(
		&domain.WatchItem{ID: "w1", UserID: "u1", TitleID: "t1", Title: "Berserk", LastKnownChapter: mustCh(t, "40"), Notify: true},
		&domain.WatchItem{ID: "w2", UserID: "u2", TitleID: "t1", Title: "Berserk", LastKnownChapter: mustCh(t, "0"), Notify: true},
	)
	srcA := &fakeAdapter{name: "src-a", results: map[string]source.Result{
		"t1": source.Unavailable("src-a", errors.New("timeout")),
	}}
	dispatcher := &captureDispatcher{}

	s := New(Config{}, registry, []source.Adapter{srcA}, newTestReconciler(t), dispatcher)
	s.Sweep(context.Background())

	assert.Empty(t, dispatcher.all())
	items, err := registry.ListSubscribers(context.Background(), "t1")
	require.NoError(t, err)
	for _, item := range items {
		switch item.ID {
		case "w1":
			assert.Equal(t, mustCh(t, "40"), item.LastKnownChapter)
		case "w2":
			assert.Equal(t, mustCh(t, "0"), item.LastKnownChapter)
		}
	}
}

func TestSweep_DeliveriesOutliveTitleFanOut(t *testing.T) {
	registry := newFakeRegistry(
		&domain.WatchItem{ID: "w1", UserID: "u1", TitleID: "t1", Title: "Berserk", LastKnownChapter: mustCh(t, "5"), Notify: true},
	)
	adapter := okAdapter("src-a", map[string]string{"t1": "6"})
	dispatcher := &slowDispatcher{delay: 50 * time.Millisecond}

	s := New(Config{}, registry, []source.Adapter{adapter}, newTestReconciler(t), dispatcher)
	s.Sweep(context.Background())

	// The fan-out group winds down well before a slow delivery finishes;
	// the delivery's context must still be live when it completes.
	errs := dispatcher.observed()
	require.Len(t, errs, 1)
	assert.NoError(t, errs[0])
}

func TestLaunchSweep_SkipsWhileSweeping(t *testing.T) {
	registry := newFakeRegistry(
		&domain.WatchItem{ID: "w1", UserID: "u1", TitleID: "t1", Title: "Berserk", LastKnownChapter: mustCh(t, "5"), Notify: true},
	)
	adapter := okAdapter("src-a", map[string]string{"t1": "6"})
	dispatcher := &captureDispatcher{}

	s := New(Config{}, registry, []source.Adapter{adapter}, newTestReconciler(t), dispatcher)

	// Simulate a sweep still holding the slot: the tick must drop.
	s.sweeping.Store(true)
	s.launchSweep(context.Background())
	s.wg.Wait()

	assert.Empty(t, dispatcher.all())
}
