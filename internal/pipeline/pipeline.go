package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/couchcryptid/risk-map-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultRefreshInterval is how often the coordinator re-runs a pass on its own.
const DefaultRefreshInterval = 60 * time.Second

// Trigger names what caused a pass.
type Trigger string

const (
	TriggerInitial Trigger = "initial"
	TriggerFilter  Trigger = "filter"
	TriggerRefresh Trigger = "refresh"
	TriggerTick    Trigger = "tick"
)

// PassRunner builds one snapshot for a filter state.
type PassRunner interface {
	Run(ctx context.Context, filters domain.FilterState) (*domain.Snapshot, error)
}

// Surface is a rendering surface fed by the coordinator. Invalidate tells it
// to drop its overlay because the filter key changed; Render hands it a
// freshly published snapshot.
type Surface interface {
	Name() string
	Invalidate(ctx context.Context, filterKey string) error
	Render(ctx context.Context, snap *domain.Snapshot) error
}

// Coordinator owns the filter state and decides when passes run and which
// results are published. Passes are never cancelled by newer ones; a result
// is dropped instead when a newer pass has already published or the filter
// key moved on while it ran.
type Coordinator struct {
	runner   PassRunner
	surfaces []Surface
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu          sync.Mutex
	filters     domain.FilterState
	latest      *domain.Snapshot
	invalidated bool
	scheduled   uint64
	published   uint64

	// signalMu keeps surface signals in publish order.
	signalMu sync.Mutex

	triggers chan Trigger
	ready    atomic.Bool
	passes   sync.WaitGroup
}

// New creates a Coordinator starting from the given filter state. A nil clock
// uses real time; a non-positive interval uses DefaultRefreshInterval.
func New(runner PassRunner, surfaces []Surface, initial domain.FilterState, clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Coordinator{
		runner:      runner,
		surfaces:    surfaces,
		clock:       clock,
		interval:    interval,
		logger:      logger,
		metrics:     metrics,
		filters:     initial,
		invalidated: true,
		triggers:    make(chan Trigger, 16),
	}
}

// Filters returns the current filter state.
func (c *Coordinator) Filters() domain.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// ActiveKey returns the key of the current filter state.
func (c *Coordinator) ActiveKey() string {
	return c.Filters().Key()
}

// Apply updates the filter state. When the key changes the current overlay
// is invalidated, surfaces are told to drop it and exactly one pass is
// scheduled. An invalid patch leaves the state untouched.
func (c *Coordinator) Apply(ctx context.Context, patch domain.FilterPatch) (domain.FilterState, bool, error) {
	c.mu.Lock()
	next, err := patch.Apply(c.filters)
	if err != nil {
		current := c.filters
		c.mu.Unlock()
		return current, false, err
	}
	changed := next.Key() != c.filters.Key()
	c.filters = next
	if changed {
		c.invalidated = true
	}
	c.mu.Unlock()

	if !changed {
		return next, false, nil
	}

	c.metrics.FilterChanges.Inc()
	c.logger.Info("filters changed", "filter_key", next.Key())
	c.invalidate(ctx, next.Key())
	c.schedule(TriggerFilter)
	return next, true, nil
}

// Refresh schedules a pass for the current filter state.
func (c *Coordinator) Refresh() {
	c.schedule(TriggerRefresh)
}

// Latest returns the most recently published snapshot and whether it still
// matches the active filter key.
func (c *Coordinator) Latest() (*domain.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.latest != nil && !c.invalidated
}

// CheckReadiness returns nil once at least one pass has been published.
func (c *Coordinator) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no overlay has been published yet")
	}
	return nil
}

// Run starts the initial pass and the refresh ticker, then dispatches
// triggers until the context is cancelled. The ticker is stopped and
// in-flight passes are awaited before Run returns.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator started", "interval", c.interval, "filter_key", c.ActiveKey())
	c.metrics.CoordinatorRunning.Set(1)
	defer c.metrics.CoordinatorRunning.Set(0)

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	c.startPass(ctx, TriggerInitial)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping", "reason", ctx.Err())
			c.passes.Wait()
			return nil
		case <-ticker.Chan():
			c.startPass(ctx, TriggerTick)
		case trigger := <-c.triggers:
			c.startPass(ctx, trigger)
		}
	}
}

// schedule queues a trigger without blocking. A full queue already holds
// passes that will read the latest filter state when they start.
func (c *Coordinator) schedule(trigger Trigger) {
	select {
	case c.triggers <- trigger:
	default:
		c.logger.Debug("trigger queue full, pass already pending", "trigger", trigger)
	}
}

func (c *Coordinator) startPass(ctx context.Context, trigger Trigger) {
	c.mu.Lock()
	c.scheduled++
	seq := c.scheduled
	filters := c.filters
	c.mu.Unlock()

	c.passes.Add(1)
	go func() {
		defer c.passes.Done()
		c.runPass(ctx, seq, trigger, filters)
	}()
}

func (c *Coordinator) runPass(ctx context.Context, seq uint64, trigger Trigger, filters domain.FilterState) {
	start := c.clock.Now()
	snap, err := c.runner.Run(ctx, filters)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("pass failed", "seq", seq, "trigger", trigger, "error", err)
		}
		c.metrics.Passes.WithLabelValues(string(trigger), "error").Inc()
		return
	}
	snap.Seq = seq
	snap.Trigger = string(trigger)

	c.signalMu.Lock()
	defer c.signalMu.Unlock()

	c.mu.Lock()
	if seq < c.published || snap.FilterKey != c.filters.Key() {
		published := c.published
		c.mu.Unlock()
		c.logger.Debug("dropping superseded pass", "seq", seq, "published", published, "pass_id", snap.PassID)
		c.metrics.Passes.WithLabelValues(string(trigger), "superseded").Inc()
		return
	}
	c.published = seq
	c.latest = snap
	c.invalidated = false
	c.mu.Unlock()

	c.ready.Store(true)
	items := snap.RenderItems()
	c.metrics.Passes.WithLabelValues(string(trigger), "published").Inc()
	c.metrics.PassDuration.Observe(c.clock.Since(start).Seconds())
	c.metrics.RenderItems.Set(float64(len(items)))
	c.logger.Info("pass published",
		"seq", seq,
		"pass_id", snap.PassID,
		"trigger", trigger,
		"items", len(items),
	)

	for _, s := range c.surfaces {
		if err := s.Render(ctx, snap); err != nil {
			c.logger.Warn("surface render failed", "surface", s.Name(), "pass_id", snap.PassID, "error", err)
			continue
		}
		c.metrics.SignalsPublished.WithLabelValues(s.Name(), "render").Inc()
	}
}

func (c *Coordinator) invalidate(ctx context.Context, key string) {
	c.signalMu.Lock()
	defer c.signalMu.Unlock()

	for _, s := range c.surfaces {
		if err := s.Invalidate(ctx, key); err != nil {
			c.logger.Warn("surface invalidate failed", "surface", s.Name(), "filter_key", key, "error", err)
			continue
		}
		c.metrics.SignalsPublished.WithLabelValues(s.Name(), "invalidate").Inc()
	}
}
