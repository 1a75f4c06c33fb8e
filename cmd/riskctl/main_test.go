package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gridFixture = `{"month":"January2026","cells":[
	{"count":5,"lat":38.62,"lng":-90.20},
	{"count":3,"lat":38.6201,"lng":-90.1999},
	{"name":"no geometry"}
]}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNormalize_JSON(t *testing.T) {
	out, err := run(t, "", "normalize", writeFixture(t, gridFixture), "-o", "json")
	require.NoError(t, err)

	var res normalizeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Cells)
	require.Len(t, res.Items, 1)
	assert.Equal(t, domain.ShapeBin, res.Items[0].Kind)
	assert.Equal(t, "#1e3a8a", res.Items[0].Color)
	assert.InDelta(t, 8.0, res.Items[0].Weight, 1e-9)
	assert.Equal(t, 1, res.Dropped[domain.DropNoGeometry])
	assert.InDelta(t, 8.0, res.MaxWeight, 1e-9)
}

func TestNormalize_TextFromStdin(t *testing.T) {
	out, err := run(t, gridFixture, "normalize", "-")
	require.NoError(t, err)

	assert.Contains(t, out, "cells=3 items=1 dropped=1 truncated=0 max_weight=8")
	assert.Contains(t, out, "#1e3a8a")
	assert.Contains(t, out, "bin")
}

func TestNormalize_Empty(t *testing.T) {
	out, err := run(t, "[]", "normalize", "-")
	require.NoError(t, err)
	assert.Contains(t, out, domain.NoDataMessage)
}

func TestNormalize_Errors(t *testing.T) {
	_, err := run(t, "", "normalize", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = run(t, `"just a string"`, "normalize", "-")
	require.Error(t, err)

	_, err = run(t, "", "normalize")
	require.Error(t, err, "file argument is required")
}

func TestLegend_JSON(t *testing.T) {
	out, err := run(t, "", "legend", "--max", "8", "-o", "json")
	require.NoError(t, err)

	var res legendResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 8.0, res.MaxWeight, 1e-9)
	assert.InDelta(t, 0.003, res.BinStep, 1e-12)
	assert.InDelta(t, 333.6, res.BinStepMeters, 1.0)
	require.Len(t, res.Legend, len(domain.LegendRatios))
	last := res.Legend[len(res.Legend)-1]
	assert.InDelta(t, 8.0, last.Weight, 1e-9)
	assert.Equal(t, "#1e3a8a", last.Color)
}

func TestLegend_InvalidLatitude(t *testing.T) {
	_, err := run(t, "", "legend", "--lat", "120")
	assert.Error(t, err)
}

func TestAsk(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ask-risk":
			assert.Equal(t, "24", r.URL.Query().Get("since_hours"))
			_, _ = io.WriteString(w, `{"answer":"Downtown is busy.","region":"downtown","tiles":[
				{"id":"a","score":9,"top_type":"Disturbance","bounds":[[38.60,-90.25],[38.61,-90.24]]},
				{"id":2,"score":3,"top_type":"Noise","bounds":[[38.62,-90.25],[38.63,-90.24]]}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)
	t.Setenv("UPSTREAM_BASE_URL", upstream.URL)

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "", "ask", "where is risky", "--window", "24h", "-o", "json")
		require.NoError(t, err)

		var sel domain.Selection
		require.NoError(t, json.Unmarshal([]byte(out), &sel))
		assert.Equal(t, domain.SourceLiveTiles, sel.Source)
		assert.Equal(t, "downtown", sel.Region)
		assert.Len(t, sel.Items, 2)
		require.Len(t, sel.TopZones, 2)
		assert.Equal(t, "a", sel.TopZones[0].ID)
	})

	t.Run("text", func(t *testing.T) {
		out, err := run(t, "", "ask", "where is risky", "-w", "24")
		require.NoError(t, err)
		assert.Contains(t, out, "source: Live tiles")
		assert.Contains(t, out, "answer: Downtown is busy.")
		assert.Contains(t, out, "Disturbance")
	})

	t.Run("invalid window", func(t *testing.T) {
		_, err := run(t, "", "ask", "q", "--window", "48h")
		assert.Error(t, err)
	})
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := run(t, "", "legend", "-o", "yaml")
	assert.Error(t, err)
}
