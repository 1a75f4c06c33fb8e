package riskapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/risk-map-service/internal/domain"
)

// Risk service response types. Shapes vary between deployments, so most
// fields are decoded leniently.

type askRiskResponse struct {
	Answer string    `json:"answer"`
	Region string    `json:"region"`
	Tiles  []tileDTO `json:"tiles"`
}

type tileDTO struct {
	ID      flexString      `json:"id"`
	Score   flexFloat       `json:"score"`
	TopType string          `json:"top_type"`
	Bounds  json.RawMessage `json:"bounds"` // [[minLat, minLng], [maxLat, maxLng]] or an object
}

func (t tileDTO) toDomain() (domain.RiskTile, bool) {
	r, ok := decodeBounds(t.Bounds)
	if !ok {
		return domain.RiskTile{}, false
	}
	return domain.RiskTile{
		ID:       t.ID.String(),
		Bounds:   r,
		Category: t.TopType,
		Score:    float64(t.Score),
	}, true
}

func decodeBounds(raw json.RawMessage) (domain.Rect, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.Rect{}, false
	}

	var pair [][]*float64
	if err := json.Unmarshal(raw, &pair); err == nil {
		if len(pair) != 2 || len(pair[0]) != 2 || len(pair[1]) != 2 {
			return domain.Rect{}, false
		}
		var v [4]float64
		for i, p := range []*float64{pair[0][0], pair[0][1], pair[1][0], pair[1][1]} {
			if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
				return domain.Rect{}, false
			}
			v[i] = *p
		}
		r := domain.Rect{MinLat: v[0], MinLng: v[1], MaxLat: v[2], MaxLng: v[3]}
		return r, r.Valid()
	}

	var cell domain.RawCell
	if err := json.Unmarshal(raw, &cell); err != nil {
		return domain.Rect{}, false
	}
	item, reason := domain.NewNormalizer().Normalize(cell)
	if reason != domain.DropNone || item.Kind != domain.ShapeRect {
		return domain.Rect{}, false
	}
	return item.Rect, true
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }

// flexFloat accepts a JSON number or numeric string. Anything else,
// including null, decodes as zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if v, err := n.Float64(); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			*f = flexFloat(v)
			return nil
		}
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			*f = flexFloat(v)
			return nil
		}
	}
	*f = 0
	return nil
}

type metaResponse struct {
	AvailableMonthNames []string     `json:"available_month_names"`
	LiveTotal           *json.Number `json:"live_total"`
	Total               *json.Number `json:"total"`
	LastUpdated         string       `json:"last_updated"`
	LastUpdatedCamel    string       `json:"lastUpdated"`
	LiveLastUpdated     string       `json:"live_last_updated"`
}

func (m metaResponse) total() int {
	for _, n := range []*json.Number{m.LiveTotal, m.Total} {
		if n == nil {
			continue
		}
		if f, err := n.Float64(); err == nil && !math.IsNaN(f) {
			return int(f)
		}
	}
	return 0
}

func (m metaResponse) lastUpdated() string {
	for _, s := range []string{m.LastUpdated, m.LastUpdatedCamel, m.LiveLastUpdated} {
		if s != "" {
			return s
		}
	}
	return ""
}

type liveTypesResponse struct {
	TopTypes []json.RawMessage `json:"top_types"`
	Types    []json.RawMessage `json:"types"`
}

// counts accepts [[type, count], ...] and [{type, count}, ...].
func (r liveTypesResponse) counts() []domain.TypeCount {
	raw := r.TopTypes
	if raw == nil {
		raw = r.Types
	}
	out := make([]domain.TypeCount, 0, len(raw))
	for _, el := range raw {
		out = append(out, decodeTypeCount(el))
	}
	return out
}

func decodeTypeCount(raw json.RawMessage) domain.TypeCount {
	var tuple []any
	if err := json.Unmarshal(raw, &tuple); err == nil {
		tc := domain.TypeCount{Type: "unknown"}
		if len(tuple) > 0 && tuple[0] != nil {
			tc.Type = fmt.Sprint(tuple[0])
		}
		if len(tuple) > 1 {
			tc.Count = toInt(tuple[1])
		}
		return tc
	}

	var obj struct {
		Type  any `json:"type"`
		Count any `json:"count"`
	}
	tc := domain.TypeCount{Type: "unknown"}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return tc
	}
	if obj.Type != nil {
		tc.Type = fmt.Sprint(obj.Type)
	}
	tc.Count = toInt(obj.Count)
	return tc
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int(n)
	case string:
		var f float64
		if _, err := fmt.Sscan(strings.TrimSpace(n), &f); err == nil {
			return int(f)
		}
	}
	return 0
}

var errHeatPayload = errors.New("heat payload is neither an array nor an object")

// DecodeHeat accepts a bare array of cells or {cells, available_months}.
// Elements that are not objects become empty cells so normalization counts
// them as dropped.
func DecodeHeat(raw json.RawMessage) (domain.HeatGrid, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.HeatGrid{}, nil
	}

	switch raw[0] {
	case '[':
		cells, err := decodeCells(raw)
		if err != nil {
			return domain.HeatGrid{}, err
		}
		return domain.HeatGrid{Cells: cells}, nil
	case '{':
		var env struct {
			Cells           json.RawMessage `json:"cells"`
			AvailableMonths []any           `json:"available_months"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return domain.HeatGrid{}, err
		}
		var grid domain.HeatGrid
		if c := bytes.TrimSpace(env.Cells); len(c) > 0 && c[0] == '[' {
			cells, err := decodeCells(c)
			if err != nil {
				return domain.HeatGrid{}, err
			}
			grid.Cells = cells
		}
		for _, m := range env.AvailableMonths {
			if m != nil {
				grid.AvailableMonths = append(grid.AvailableMonths, fmt.Sprint(m))
			}
		}
		return grid, nil
	default:
		return domain.HeatGrid{}, errHeatPayload
	}
}

func decodeCells(raw json.RawMessage) ([]domain.RawCell, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	cells := make([]domain.RawCell, 0, len(elems))
	for _, el := range elems {
		dec := json.NewDecoder(bytes.NewReader(el))
		dec.UseNumber()
		var cell domain.RawCell
		if err := dec.Decode(&cell); err != nil || cell == nil {
			cell = domain.RawCell{}
		}
		cells = append(cells, cell)
	}
	return cells, nil
}
