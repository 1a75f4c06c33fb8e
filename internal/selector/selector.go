// Package selector decides which data source backs a free-text risk query.
package selector

import (
	"context"
	"log/slog"
	"strings"

	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/couchcryptid/risk-map-service/internal/observability"
)

// FailureMessage is shown to operators when any upstream step fails.
const FailureMessage = "Risk map fetch failed. Check backend is running and endpoints return JSON."

// TopZoneCount is how many of the highest-scoring tiles are listed next to the map.
const TopZoneCount = 6

// LiveTileService answers free-text risk queries with pre-scored tiles.
type LiveTileService interface {
	AskRisk(ctx context.Context, query string, window domain.Window) (domain.RiskAnswer, error)
}

// HistoricalService lists historical months and serves their grids.
type HistoricalService interface {
	AvailableMonths(ctx context.Context) ([]string, error)
	MonthlyHeat(ctx context.Context, month string, lastDays int) (domain.HeatGrid, error)
}

// Selector runs the live-first, historical-second fallback. It holds no
// per-query state: every call starts from the live source.
type Selector struct {
	live          LiveTileService
	historical    HistoricalService
	opts          domain.RenderOptions
	fallbackMonth string
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// New creates a Selector. An empty fallbackMonth uses domain.DefaultMonth.
func New(live LiveTileService, historical HistoricalService, opts domain.RenderOptions, fallbackMonth string, metrics *observability.Metrics, logger *slog.Logger) *Selector {
	if strings.TrimSpace(fallbackMonth) == "" {
		fallbackMonth = domain.DefaultMonth
	}
	return &Selector{
		live:          live,
		historical:    historical,
		opts:          opts,
		fallbackMonth: fallbackMonth,
		metrics:       metrics,
		logger:        logger,
	}
}

// Select executes one query. Upstream failures never escape: they yield
// Source=None with FailureMessage and no items.
func (s *Selector) Select(ctx context.Context, query string, window domain.Window) domain.Selection {
	sel, err := s.run(ctx, query, window)
	if err != nil {
		s.logger.Warn("risk source selection failed", "query", query, "window", window, "error", err)
		sel = s.failed(sel.Region)
	}
	s.metrics.Selections.WithLabelValues(string(sel.Source)).Inc()
	return sel
}

func (s *Selector) run(ctx context.Context, query string, window domain.Window) (domain.Selection, error) {
	answer, err := s.live.AskRisk(ctx, query, window)
	if err != nil {
		return domain.Selection{Region: "city"}, err
	}

	if tiles := usableTiles(answer.Tiles); len(tiles) > 0 {
		layer := domain.BuildTileLayer(tiles, s.opts)
		return domain.Selection{
			Source:    domain.SourceLiveTiles,
			Label:     domain.SourceLiveTiles.Label(""),
			Region:    answer.Region,
			Narrative: answer.Narrative,
			TopZones:  domain.TopZones(tiles, TopZoneCount),
			Items:     layer.Items,
			Legend:    domain.NewColorScale(s.opts.Palette, layer.MaxWeight).Legend(),
			MaxWeight: layer.MaxWeight,
		}, nil
	}

	months, err := s.historical.AvailableMonths(ctx)
	if err != nil {
		return domain.Selection{Region: answer.Region}, err
	}
	month := s.fallbackMonth
	if len(months) > 0 && strings.TrimSpace(months[0]) != "" {
		month = months[0]
	}

	grid, err := s.historical.MonthlyHeat(ctx, month, 0)
	if err != nil {
		return domain.Selection{Region: answer.Region}, err
	}

	layer := domain.BuildHistoricalLayer(grid.Cells, s.opts)
	s.metrics.ObserveLayer(layer.Dropped, layer.Truncated)

	if layer.Empty() {
		return domain.Selection{
			Source:    domain.SourceNone,
			Label:     domain.SourceNone.Label(month),
			Month:     month,
			Region:    answer.Region,
			Narrative: answer.Narrative,
			Items:     []domain.RenderItem{},
			Legend:    domain.NewColorScale(s.opts.Palette, 1).Legend(),
			MaxWeight: 1,
			Message:   domain.NoDataMessage,
		}, nil
	}

	return domain.Selection{
		Source:    domain.SourceHistoricalHeat,
		Label:     domain.SourceHistoricalHeat.Label(month),
		Month:     month,
		Region:    answer.Region,
		Narrative: answer.Narrative,
		Items:     layer.Items,
		Legend:    layer.Scale(s.opts.Palette).Legend(),
		MaxWeight: layer.MaxWeight,
	}, nil
}

// usableTiles drops tiles that cannot be drawn, so a response holding only
// degenerate boxes falls through to the historical source.
func usableTiles(tiles []domain.RiskTile) []domain.RiskTile {
	out := make([]domain.RiskTile, 0, len(tiles))
	for _, t := range tiles {
		if t.Bounds.Valid() {
			out = append(out, t)
		}
	}
	return out
}

func (s *Selector) failed(region string) domain.Selection {
	if region == "" {
		region = "city"
	}
	return domain.Selection{
		Source:    domain.SourceNone,
		Label:     domain.SourceNone.Label(""),
		Region:    region,
		Items:     []domain.RenderItem{},
		Legend:    domain.NewColorScale(s.opts.Palette, 1).Legend(),
		MaxWeight: 1,
		Message:   FailureMessage,
	}
}
