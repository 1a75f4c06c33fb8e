package riskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/couchcryptid/risk-map-service/internal/observability"
)

// ErrUnexpectedStatus is returned for any non-2xx upstream response.
var ErrUnexpectedStatus = errors.New("unexpected upstream status")

const maxBodyBytes = 32 << 20

// Client talks to the upstream risk service. Every request bypasses caches.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a risk service client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// AskRisk sends a free-text query and returns the scored tiles, narrative
// and region label.
func (c *Client) AskRisk(ctx context.Context, query string, window domain.Window) (domain.RiskAnswer, error) {
	params := url.Values{
		"q":           {query},
		"since_hours": {strconv.Itoa(window.Hours())},
	}

	var resp askRiskResponse
	if err := c.getJSON(ctx, "ask-risk", "/ask-risk", params, &resp); err != nil {
		return domain.RiskAnswer{}, err
	}

	answer := domain.RiskAnswer{
		Narrative: resp.Answer,
		Region:    resp.Region,
		Tiles:     make([]domain.RiskTile, 0, len(resp.Tiles)),
	}
	if answer.Region == "" {
		answer.Region = "city"
	}
	for _, t := range resp.Tiles {
		tile, ok := t.toDomain()
		if !ok {
			c.logger.Debug("skipping tile without bounds", "id", t.ID.String())
			continue
		}
		answer.Tiles = append(answer.Tiles, tile)
	}
	return answer, nil
}

// AvailableMonths returns the canonical month list, most relevant first.
func (c *Client) AvailableMonths(ctx context.Context) ([]string, error) {
	m, err := c.meta(ctx, nil)
	if err != nil {
		return nil, err
	}
	return m.AvailableMonthNames, nil
}

// MonthlyHeat fetches the grid for one named month. lastDays of 0 means the
// whole month.
func (c *Client) MonthlyHeat(ctx context.Context, month string, lastDays int) (domain.HeatGrid, error) {
	params := url.Values{"month": {month}}
	if lastDays > 0 {
		params.Set("last_days", strconv.Itoa(lastDays))
	}
	return c.heat(ctx, "monthly-heat", "/monthly-heat", params)
}

// MonthlyHeatMulti fetches the combined grid for the last monthsBack months.
func (c *Client) MonthlyHeatMulti(ctx context.Context, monthsBack, lastDays int) (domain.HeatGrid, error) {
	params := url.Values{
		"months_back": {strconv.Itoa(monthsBack)},
		"last_days":   {strconv.Itoa(lastDays)},
	}
	return c.heat(ctx, "monthly-heat-multi", "/monthly-heat-multi", params)
}

// LiveSummary combines the live totals from /meta with the category
// breakdown from /live-types for the given window.
func (c *Client) LiveSummary(ctx context.Context, window domain.Window) (domain.LiveSummary, error) {
	params := url.Values{"since": {string(window)}}

	m, err := c.meta(ctx, params)
	if err != nil {
		return domain.LiveSummary{}, err
	}

	var types liveTypesResponse
	if err := c.getJSON(ctx, "live-types", "/live-types", params, &types); err != nil {
		return domain.LiveSummary{}, err
	}

	return domain.LiveSummary{
		Total:       m.total(),
		TopTypes:    types.counts(),
		LastUpdated: m.lastUpdated(),
	}, nil
}

func (c *Client) meta(ctx context.Context, params url.Values) (metaResponse, error) {
	var m metaResponse
	if err := c.getJSON(ctx, "meta", "/meta", params, &m); err != nil {
		return metaResponse{}, err
	}
	return m, nil
}

func (c *Client) heat(ctx context.Context, endpoint, path string, params url.Values) (domain.HeatGrid, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, endpoint, path, params, &raw); err != nil {
		return domain.HeatGrid{}, err
	}
	grid, err := DecodeHeat(raw)
	if err != nil {
		return domain.HeatGrid{}, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return grid, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	err = c.do(req, endpoint, out)
	c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	return err
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %w: status %d: %s", endpoint, ErrUnexpectedStatus, resp.StatusCode, truncate(body, 256))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
