package riskapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/couchcryptid/risk-map-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serveJSON(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_AskRisk_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask-risk", r.URL.Path)
		assert.Equal(t, "downtown hotspots", r.URL.Query().Get("q"))
		assert.Equal(t, "24", r.URL.Query().Get("since_hours"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{
			"answer": "Downtown is busiest.",
			"region": "downtown",
			"tiles": [
				{"id": "3_4", "score": 7.5, "top_type": "Disturbance",
				 "bounds": [[38.62, -90.20], [38.63, -90.19]], "center": [38.625, -90.195]},
				{"id": 12, "score": 2, "top_type": "Theft",
				 "bounds": {"south": 38.60, "west": -90.25, "north": 38.61, "east": -90.24}},
				{"id": "nobounds", "score": 1}
			]
		}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	answer, err := c.AskRisk(context.Background(), "downtown hotspots", domain.Window24h)
	require.NoError(t, err)

	assert.Equal(t, "Downtown is busiest.", answer.Narrative)
	assert.Equal(t, "downtown", answer.Region)
	require.Len(t, answer.Tiles, 2)

	assert.Equal(t, domain.RiskTile{
		ID:       "3_4",
		Bounds:   domain.Rect{MinLat: 38.62, MinLng: -90.20, MaxLat: 38.63, MaxLng: -90.19},
		Category: "Disturbance",
		Score:    7.5,
	}, answer.Tiles[0])
	assert.Equal(t, "12", answer.Tiles[1].ID)
	assert.InDelta(t, 38.60, answer.Tiles[1].Bounds.MinLat, 1e-12)

	assert.InDelta(t, 1.0, testutil.ToFloat64(c.metrics.UpstreamRequests.WithLabelValues("ask-risk", "success")), 1e-9)
}

func TestClient_AskRisk_SkipsUnusableBounds(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/ask-risk": `{
		"tiles": [
			{"id": "point", "score": 4, "bounds": [[38.6, -90.2], [38.6, -90.2]]},
			{"id": "inverted", "score": 4, "bounds": [[38.7, -90.1], [38.6, -90.2]]},
			{"id": "nulls", "score": 4, "bounds": [[null, null], [1, 1]]},
			{"id": "short", "score": 4, "bounds": [[38.6, -90.2]]},
			{"id": "flat", "score": 4, "bounds": {"south": 38.6, "west": -90.2, "north": 38.6, "east": -90.1}},
			{"id": "ok", "score": 4, "bounds": [[38.6, -90.2], [38.61, -90.19]]}
		]
	}`})

	answer, err := testClient(srv.URL).AskRisk(context.Background(), "q", domain.Window6h)
	require.NoError(t, err)
	require.Len(t, answer.Tiles, 1)
	assert.Equal(t, "ok", answer.Tiles[0].ID)
}

func TestClient_AskRisk_LenientScore(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/ask-risk": `{
		"tiles": [
			{"id": "a", "score": "3", "bounds": [[38.60, -90.20], [38.61, -90.19]]},
			{"id": "b", "score": " 2.5 ", "bounds": [[38.61, -90.20], [38.62, -90.19]]},
			{"id": "c", "score": "high", "bounds": [[38.62, -90.20], [38.63, -90.19]]},
			{"id": "d", "score": null, "bounds": [[38.63, -90.20], [38.64, -90.19]]}
		]
	}`})

	answer, err := testClient(srv.URL).AskRisk(context.Background(), "q", domain.Window6h)
	require.NoError(t, err)
	require.Len(t, answer.Tiles, 4)
	assert.InDelta(t, 3.0, answer.Tiles[0].Score, 1e-12)
	assert.InDelta(t, 2.5, answer.Tiles[1].Score, 1e-12)
	assert.Zero(t, answer.Tiles[2].Score)
	assert.Zero(t, answer.Tiles[3].Score)
}

func TestClient_AskRisk_DefaultsRegion(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/ask-risk": `{"tiles": []}`})

	answer, err := testClient(srv.URL).AskRisk(context.Background(), "q", domain.Window6h)
	require.NoError(t, err)
	assert.Equal(t, "city", answer.Region)
	assert.Empty(t, answer.Tiles)
}

func TestClient_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"upstream down"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.AskRisk(context.Background(), "q", domain.Window1h)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "502")
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.metrics.UpstreamRequests.WithLabelValues("ask-risk", "error")), 1e-9)
}

func TestClient_NonJSONIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).AvailableMonths(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode meta response")
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/meta": `{}`})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(srv.URL).AvailableMonths(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_AvailableMonths(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/meta": `{"available_month_names": ["February2026", "January2026"], "project": "x"}`,
	})

	months, err := testClient(srv.URL).AvailableMonths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"February2026", "January2026"}, months)
}

func TestClient_MonthlyHeat_Shapes(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCells  int
		wantMonths []string
	}{
		{"bare array", `[{"lat": 38.62, "lng": -90.2, "count": 5}, {"lat": 38.63, "lng": -90.21}]`, 2, nil},
		{"envelope", `{"month": "2026-01", "cells": [{"lat": 1, "lng": 2}], "available_months": ["January2026", 202512]}`, 1, []string{"January2026", "202512"}},
		{"envelope without cells", `{"month": "2026-01"}`, 0, nil},
		{"non-object elements kept as empty", `[1, "x", null, {"lat": 1, "lng": 2}]`, 4, nil},
		{"null", `null`, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(t, map[string]string{"/monthly-heat": tt.body})
			grid, err := testClient(srv.URL).MonthlyHeat(context.Background(), "January2026", 0)
			require.NoError(t, err)
			assert.Len(t, grid.Cells, tt.wantCells)
			assert.Equal(t, tt.wantMonths, grid.AvailableMonths)
		})
	}
}

func TestClient_MonthlyHeat_ScalarPayloadIsError(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/monthly-heat": `"nope"`})
	_, err := testClient(srv.URL).MonthlyHeat(context.Background(), "January2026", 0)
	require.Error(t, err)
}

func TestClient_MonthlyHeat_NumbersSurviveNormalization(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/monthly-heat": `{"cells": [{"count": 5, "lat": 38.62, "lng": -90.20}, {"count": 3, "lat": 38.6201, "lng": -90.1999}]}`,
	})

	grid, err := testClient(srv.URL).MonthlyHeat(context.Background(), "January2026", 0)
	require.NoError(t, err)

	layer := domain.BuildHistoricalLayer(grid.Cells, domain.DefaultRenderOptions())
	require.Len(t, layer.Bins, 1)
	assert.InDelta(t, 8.0, layer.Bins[0].Weight, 1e-9)
}

func TestClient_MonthlyHeat_Params(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.RequestURI())
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.MonthlyHeat(context.Background(), "January 2026", 0)
	require.NoError(t, err)
	_, err = c.MonthlyHeat(context.Background(), "January2026", 5)
	require.NoError(t, err)
	_, err = c.MonthlyHeatMulti(context.Background(), 3, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/monthly-heat?month=January+2026",
		"/monthly-heat?last_days=5&month=January2026",
		"/monthly-heat-multi?last_days=2&months_back=3",
	}, got)
}

func TestClient_LiveSummary(t *testing.T) {
	tests := []struct {
		name  string
		meta  string
		types string
		want  domain.LiveSummary
	}{
		{
			name:  "tuples and live_total",
			meta:  `{"live_total": 42, "last_updated": "2026-01-31T12:00:00Z"}`,
			types: `{"top_types": [["Disturbance", 10], ["Theft", 4]]}`,
			want: domain.LiveSummary{
				Total:       42,
				TopTypes:    []domain.TypeCount{{Type: "Disturbance", Count: 10}, {Type: "Theft", Count: 4}},
				LastUpdated: "2026-01-31T12:00:00Z",
			},
		},
		{
			name:  "objects and fallbacks",
			meta:  `{"total": 7, "lastUpdated": "yesterday"}`,
			types: `{"types": [{"type": "Alarm", "count": 3}, {"count": "2"}]}`,
			want: domain.LiveSummary{
				Total:       7,
				TopTypes:    []domain.TypeCount{{Type: "Alarm", Count: 3}, {Type: "unknown", Count: 2}},
				LastUpdated: "yesterday",
			},
		},
		{
			name:  "empty",
			meta:  `{"live_last_updated": null}`,
			types: `{}`,
			want:  domain.LiveSummary{TopTypes: []domain.TypeCount{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(t, map[string]string{"/meta": tt.meta, "/live-types": tt.types})
			got, err := testClient(srv.URL).LiveSummary(context.Background(), domain.Window6h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_LiveSummary_SendsWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "24h", r.URL.Query().Get("since"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LiveSummary(context.Background(), domain.Window24h)
	require.NoError(t, err)
}
