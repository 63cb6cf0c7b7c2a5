// Package refresh re-queries the saved identifiers on a cron schedule so that
// countdowns start and pins settle without anyone having the page open.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/metrics"
	"github.com/goodtune/cortes/internal/report"
	"github.com/goodtune/cortes/internal/schedule"
	"github.com/goodtune/cortes/internal/storage"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// pinRetention is how long pins are kept after their window ended.
const pinRetention = 48 * time.Hour

// Summary describes one refresh run.
type Summary struct {
	RunID     string
	Checked   int
	Refreshed int
	Failed    int
	Stale     int
	Active    int
	Pruned    int
}

// Watcher periodically refreshes every saved identifier.
type Watcher struct {
	spec      string
	client    *cnel.Client
	builder   *report.Builder
	store     storage.IdentifierStore
	sequencer *cnel.Sequencer
	clock     schedule.Clock
	cron      *cron.Cron
	logger    zerolog.Logger

	// running guards against overlapping runs from RunOnce callers.
	running sync.Mutex
}

// New creates a watcher for a standard five-field cron spec evaluated in
// the board's location. sequencer may be nil.
func New(spec string, client *cnel.Client, builder *report.Builder, store storage.IdentifierStore, sequencer *cnel.Sequencer, logger zerolog.Logger) (*Watcher, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	if sequencer == nil {
		sequencer = cnel.NewSequencer()
	}

	loc := builder.Board().Location()
	w := &Watcher{
		spec:      spec,
		client:    client,
		builder:   builder,
		store:     store,
		sequencer: sequencer,
		clock:     schedule.RealClock{Location: loc},
		cron:      cron.New(cron.WithLocation(loc)),
		logger:    logger.With().Str("component", "refresh").Logger(),
	}

	if _, err := w.cron.AddFunc(spec, w.tick); err != nil {
		return nil, fmt.Errorf("failed to schedule refresh: %w", err)
	}

	return w, nil
}

// SetClock replaces the clock used to classify windows.
func (w *Watcher) SetClock(clock schedule.Clock) {
	w.clock = clock
}

// Start begins the schedule.
func (w *Watcher) Start() {
	w.cron.Start()
	w.logger.Info().Str("schedule", w.spec).Msg("Refresh watcher started")
}

// Stop stops the schedule and waits for a running refresh to finish.
func (w *Watcher) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info().Msg("Refresh watcher stopped")
}

// Next returns the next scheduled run, or the zero time before Start.
func (w *Watcher) Next() time.Time {
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (w *Watcher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Refresh run failed")
	}
}

// RunOnce refreshes every saved identifier. A failure for one identifier is
// logged and does not stop the others.
func (w *Watcher) RunOnce(ctx context.Context) (Summary, error) {
	w.running.Lock()
	defer w.running.Unlock()

	sum := Summary{RunID: uuid.NewString()}
	logger := w.logger.With().Str("run_id", sum.RunID).Logger()

	saved, err := w.store.List(ctx)
	if err != nil {
		metrics.RefreshRuns.WithLabelValues("error").Inc()
		return sum, fmt.Errorf("failed to list saved identifiers: %w", err)
	}
	metrics.SavedIdentifiers.Set(float64(len(saved)))

	for _, ident := range saved {
		if ctx.Err() != nil {
			break
		}
		sum.Checked++
		w.refreshOne(ctx, ident, &sum, logger)
	}

	sum.Active = w.builder.Board().ActiveCount()
	sum.Pruned = w.builder.Board().Prune(w.clock.Now().Add(-pinRetention))

	result := "ok"
	if sum.Failed > 0 {
		result = "partial"
		if sum.Refreshed == 0 {
			result = "error"
		}
	}
	metrics.RefreshRuns.WithLabelValues(result).Inc()

	logger.Info().
		Int("checked", sum.Checked).
		Int("refreshed", sum.Refreshed).
		Int("failed", sum.Failed).
		Int("stale", sum.Stale).
		Int("active", sum.Active).
		Int("pruned", sum.Pruned).
		Msg("Refresh run complete")

	return sum, ctx.Err()
}

func (w *Watcher) refreshOne(ctx context.Context, ident storage.SavedIdentifier, sum *Summary, logger zerolog.Logger) {
	criterion := cnel.Criterion(ident.Criterion)
	ticket := w.sequencer.Issue(report.Scope(criterion, ident.ID))

	res, err := w.client.Fetch(ctx, criterion, ident.ID)
	if err != nil {
		sum.Failed++
		metrics.QueriesTotal.WithLabelValues(string(criterion), "refresh", "error").Inc()
		logger.Warn().Err(err).Str("id", ident.ID).Msg("Failed to refresh identifier")
		return
	}

	if !w.sequencer.Current(ticket) {
		sum.Stale++
		metrics.StaleResponses.Inc()
		metrics.QueriesTotal.WithLabelValues(string(criterion), "refresh", "stale").Inc()
		return
	}

	now := w.clock.Now()
	rep := w.builder.Build(now, res, report.Options{})

	windows := 0
	for _, n := range res.Notifications {
		windows += len(n.DetallePlanificacion)
	}
	if err := w.store.MarkRefreshed(ctx, ident.ID, now, windows); err != nil {
		logger.Warn().Err(err).Str("id", ident.ID).Msg("Failed to record refresh")
	}

	result := "ok"
	if res.Empty() {
		result = "empty"
	}
	metrics.QueriesTotal.WithLabelValues(string(criterion), "refresh", result).Inc()

	sum.Refreshed++
	logger.Debug().
		Str("id", ident.ID).
		Int("windows", windows).
		Int("active_in_view", rep.ActiveCount()).
		Msg("Identifier refreshed")
}
