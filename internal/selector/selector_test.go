package selector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/risk-map-service/internal/adapter/riskapi"
	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/couchcryptid/risk-map-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLive struct {
	answer domain.RiskAnswer
	err    error
	calls  int
}

func (f *fakeLive) AskRisk(_ context.Context, _ string, _ domain.Window) (domain.RiskAnswer, error) {
	f.calls++
	return f.answer, f.err
}

type fakeHistorical struct {
	months    []string
	monthsErr error
	grids     map[string][]domain.RawCell
	heatErr   error

	monthCalls int
	heatCalls  []string
}

func (f *fakeHistorical) AvailableMonths(_ context.Context) ([]string, error) {
	f.monthCalls++
	return f.months, f.monthsErr
}

func (f *fakeHistorical) MonthlyHeat(_ context.Context, month string, _ int) (domain.HeatGrid, error) {
	f.heatCalls = append(f.heatCalls, month)
	if f.heatErr != nil {
		return domain.HeatGrid{}, f.heatErr
	}
	return domain.HeatGrid{Cells: f.grids[month]}, nil
}

func newTestSelector(live LiveTileService, hist HistoricalService) (*Selector, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(live, hist, domain.DefaultRenderOptions(), "", m, logger), m
}

func tile(id string, score float64, minLat float64) domain.RiskTile {
	return domain.RiskTile{
		ID:       id,
		Bounds:   domain.Rect{MinLat: minLat, MinLng: -90.25, MaxLat: minLat + 0.01, MaxLng: -90.24},
		Category: "Disturbance",
		Score:    score,
	}
}

func twelveCells() []domain.RawCell {
	cells := make([]domain.RawCell, 0, 12)
	for i := range 12 {
		cells = append(cells, domain.RawCell{"lat": 38.5 + float64(i)*0.01, "lng": -90.2, "count": i + 1})
	}
	return cells
}

func TestSelect_LiveTiles(t *testing.T) {
	live := &fakeLive{answer: domain.RiskAnswer{
		Narrative: "Busy downtown.",
		Region:    "downtown",
		Tiles:     []domain.RiskTile{tile("a", 3, 38.60), tile("b", 9, 38.62), tile("c", 1, 38.64)},
	}}
	hist := &fakeHistorical{months: []string{"January2026"}, grids: map[string][]domain.RawCell{"January2026": twelveCells()}}
	s, m := newTestSelector(live, hist)

	sel := s.Select(context.Background(), "where is risky", domain.Window6h)

	assert.Equal(t, domain.SourceLiveTiles, sel.Source)
	assert.Equal(t, "Live tiles", sel.Label)
	assert.Equal(t, "downtown", sel.Region)
	assert.Equal(t, "Busy downtown.", sel.Narrative)
	assert.Len(t, sel.Items, 3)
	assert.Empty(t, sel.Month)
	assert.Empty(t, sel.Message)
	assert.InDelta(t, 9.0, sel.MaxWeight, 1e-9)
	require.Len(t, sel.TopZones, 3)
	assert.Equal(t, "b", sel.TopZones[0].ID)
	for _, it := range sel.Items {
		assert.Equal(t, domain.ShapeTile, it.Kind)
	}

	assert.Zero(t, hist.monthCalls, "historical source must not be consulted")
	assert.Empty(t, hist.heatCalls)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Selections.WithLabelValues("live_tiles")), 1e-9)
}

func TestSelect_HistoricalFallback(t *testing.T) {
	live := &fakeLive{answer: domain.RiskAnswer{Region: "city"}}
	hist := &fakeHistorical{
		months: []string{"January2026", "December2025"},
		grids:  map[string][]domain.RawCell{"January2026": twelveCells()},
	}
	s, _ := newTestSelector(live, hist)

	sel := s.Select(context.Background(), "where is risky", domain.Window6h)

	assert.Equal(t, domain.SourceHistoricalHeat, sel.Source)
	assert.Equal(t, "January2026", sel.Month)
	assert.Equal(t, "Historical (January2026)", sel.Label)
	assert.Len(t, sel.Items, 12)
	assert.InDelta(t, 12.0, sel.MaxWeight, 1e-9)
	assert.Equal(t, []string{"January2026"}, hist.heatCalls)
	assert.Empty(t, sel.TopZones)
	require.Len(t, sel.Legend, len(domain.LegendRatios))
}

func TestSelect_EmptyMonthListUsesFallbackMonth(t *testing.T) {
	live := &fakeLive{}
	hist := &fakeHistorical{grids: map[string][]domain.RawCell{"January2026": twelveCells()}}
	s, _ := newTestSelector(live, hist)

	sel := s.Select(context.Background(), "q", domain.Window1h)
	assert.Equal(t, domain.SourceHistoricalHeat, sel.Source)
	assert.Equal(t, []string{"January2026"}, hist.heatCalls)
}

func TestSelect_DegenerateTilesFallBack(t *testing.T) {
	flat := tile("flat", 5, 38.60)
	flat.Bounds.MaxLat = flat.Bounds.MinLat
	live := &fakeLive{answer: domain.RiskAnswer{Region: "city", Tiles: []domain.RiskTile{flat}}}
	hist := &fakeHistorical{months: []string{"January2026"}, grids: map[string][]domain.RawCell{"January2026": twelveCells()}}
	s, _ := newTestSelector(live, hist)

	sel := s.Select(context.Background(), "q", domain.Window6h)

	assert.Equal(t, domain.SourceHistoricalHeat, sel.Source)
	assert.NotEmpty(t, sel.Items)
	assert.Empty(t, sel.TopZones)
	assert.Equal(t, []string{"January2026"}, hist.heatCalls)
}

func TestSelect_DegenerateTilesFromUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ask-risk":
			_, _ = w.Write([]byte(`{"answer":"","region":"city","tiles":[{"id":"x","score":4,"bounds":[[38.6,-90.2],[38.6,-90.2]]}]}`))
		case "/meta":
			_, _ = w.Write([]byte(`{"available_month_names":["January2026"]}`))
		case "/monthly-heat":
			_, _ = w.Write([]byte(`{"cells":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := riskapi.NewClient(srv.URL, 5*time.Second, m, logger)
	s := New(client, client, domain.DefaultRenderOptions(), "", m, logger)

	sel := s.Select(context.Background(), "q", domain.Window6h)

	assert.Equal(t, domain.SourceNone, sel.Source)
	assert.Empty(t, sel.Items)
	assert.Equal(t, domain.NoDataMessage, sel.Message)
}

func TestSelect_BothEmpty(t *testing.T) {
	tests := []struct {
		name  string
		cells []domain.RawCell
	}{
		{"no cells", nil},
		{"only malformed cells", []domain.RawCell{{"name": "x"}, {"south": 2, "west": 1, "north": 1, "east": 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := &fakeLive{}
			hist := &fakeHistorical{months: []string{"January2026"}, grids: map[string][]domain.RawCell{"January2026": tt.cells}}
			s, m := newTestSelector(live, hist)

			sel := s.Select(context.Background(), "q", domain.Window6h)
			assert.Equal(t, domain.SourceNone, sel.Source)
			assert.Empty(t, sel.Items)
			assert.Equal(t, domain.NoDataMessage, sel.Message)
			assert.Equal(t, "January2026", sel.Month)
			assert.InDelta(t, 1.0, testutil.ToFloat64(m.Selections.WithLabelValues("none")), 1e-9)
		})
	}
}

func TestSelect_UpstreamFailures(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name string
		live *fakeLive
		hist *fakeHistorical
	}{
		{"live fails", &fakeLive{err: boom}, &fakeHistorical{}},
		{"metadata fails", &fakeLive{}, &fakeHistorical{monthsErr: boom}},
		{"grid fails", &fakeLive{}, &fakeHistorical{months: []string{"January2026"}, heatErr: boom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSelector(tt.live, tt.hist)
			sel := s.Select(context.Background(), "q", domain.Window6h)

			assert.Equal(t, domain.SourceNone, sel.Source)
			assert.Empty(t, sel.Items)
			assert.Empty(t, sel.Month)
			assert.Equal(t, FailureMessage, sel.Message)
		})
	}

	t.Run("live failure skips historical", func(t *testing.T) {
		hist := &fakeHistorical{}
		s, _ := newTestSelector(&fakeLive{err: boom}, hist)
		s.Select(context.Background(), "q", domain.Window6h)
		assert.Zero(t, hist.monthCalls)
	})
}

func TestSelect_NoStickySource(t *testing.T) {
	live := &fakeLive{answer: domain.RiskAnswer{Tiles: []domain.RiskTile{tile("a", 3, 38.60)}}}
	hist := &fakeHistorical{months: []string{"January2026"}, grids: map[string][]domain.RawCell{"January2026": twelveCells()}}
	s, _ := newTestSelector(live, hist)

	first := s.Select(context.Background(), "q", domain.Window6h)
	require.Equal(t, domain.SourceLiveTiles, first.Source)

	live.answer = domain.RiskAnswer{}
	second := s.Select(context.Background(), "q", domain.Window6h)
	assert.Equal(t, domain.SourceHistoricalHeat, second.Source)

	live.answer = domain.RiskAnswer{Tiles: []domain.RiskTile{tile("a", 3, 38.60)}}
	third := s.Select(context.Background(), "q", domain.Window6h)
	assert.Equal(t, domain.SourceLiveTiles, third.Source)
	assert.Equal(t, 3, live.calls)
}
