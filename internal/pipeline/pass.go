package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/couchcryptid/risk-map-service/internal/observability"
	"github.com/google/uuid"
)

// HistoricalUnavailable is shown on the heat layer when its fetch fails.
const HistoricalUnavailable = "Historical layer unavailable."

// Upstream is the read side of the risk service used by a pass.
type Upstream interface {
	MonthlyHeat(ctx context.Context, month string, lastDays int) (domain.HeatGrid, error)
	MonthlyHeatMulti(ctx context.Context, monthsBack, lastDays int) (domain.HeatGrid, error)
	LiveSummary(ctx context.Context, window domain.Window) (domain.LiveSummary, error)
}

// RiskSelector answers the free-text risk query for a pass.
type RiskSelector interface {
	Select(ctx context.Context, query string, window domain.Window) domain.Selection
}

// Runner builds one snapshot per pass: the dashboard heat layer, the live
// summary and the risk query overlay, each gated by the filter toggles.
type Runner struct {
	upstream Upstream
	selector RiskSelector
	opts     domain.RenderOptions
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewRunner creates a Runner. A nil selector disables the risk overlay.
func NewRunner(upstream Upstream, selector RiskSelector, opts domain.RenderOptions, metrics *observability.Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		upstream: upstream,
		selector: selector,
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run fetches and normalizes everything the filter state asks for. Upstream
// failures degrade the affected part only; the error return is reserved for
// cancellation.
func (r *Runner) Run(ctx context.Context, filters domain.FilterState) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{
		PassID:      uuid.NewString(),
		FilterKey:   filters.Key(),
		Filters:     filters,
		GeneratedAt: domain.Now(),
	}

	var wg sync.WaitGroup
	if filters.ShowHistorical {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap.Historical = r.historical(ctx, filters)
		}()
	}
	if filters.ShowLive {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap.Live = r.live(ctx, filters.Window)
		}()
	}
	if r.selector != nil && filters.Query != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sel := r.selector.Select(ctx, filters.Query, filters.Window)
			snap.Risk = &sel
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Runner) historical(ctx context.Context, filters domain.FilterState) *domain.HistoricalView {
	var (
		grid domain.HeatGrid
		err  error
	)
	if filters.MonthMode == domain.MonthMulti {
		grid, err = r.upstream.MonthlyHeatMulti(ctx, filters.MonthsBack, filters.LastDays)
	} else {
		grid, err = r.upstream.MonthlyHeat(ctx, filters.Month, filters.LastDays)
	}
	if err != nil {
		r.logger.Warn("historical fetch failed", "month_mode", filters.MonthMode, "month", filters.Month, "error", err)
		return &domain.HistoricalView{
			Items:     []domain.RenderItem{},
			Legend:    domain.NewColorScale(r.opts.Palette, 1).Legend(),
			MaxWeight: 1,
			Empty:     true,
			Message:   HistoricalUnavailable,
		}
	}

	layer := domain.BuildHistoricalLayer(grid.Cells, r.opts)
	r.metrics.ObserveLayer(layer.Dropped, layer.Truncated)

	dropped := 0
	for _, n := range layer.Dropped {
		dropped += n
	}
	view := &domain.HistoricalView{
		Months:    grid.AvailableMonths,
		CellCount: len(grid.Cells),
		Items:     layer.Items,
		Legend:    layer.Scale(r.opts.Palette).Legend(),
		MaxWeight: layer.MaxWeight,
		Dropped:   dropped,
		Truncated: layer.Truncated,
		Empty:     layer.Empty(),
	}
	if view.Empty {
		view.Message = domain.NoDataMessage
	}
	r.logger.Debug("historical layer built",
		"cells", len(grid.Cells),
		"rects", len(layer.Rects),
		"bins", len(layer.Bins),
		"dropped", dropped,
		"truncated", layer.Truncated,
	)
	return view
}

func (r *Runner) live(ctx context.Context, window domain.Window) *domain.LiveSummary {
	summary, err := r.upstream.LiveSummary(ctx, window)
	if err != nil {
		r.logger.Warn("live summary fetch failed", "window", window, "error", err)
		return &domain.LiveSummary{TopTypes: []domain.TypeCount{}}
	}
	return &summary
}
