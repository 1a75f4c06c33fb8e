package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Accessor extracts one candidate value from a cell. It reports false when
// the value is absent or does not coerce to a finite number.
type Accessor func(cell RawCell) (float64, bool)

// Field reads a top-level field by name.
func Field(name string) Accessor {
	return func(cell RawCell) (float64, bool) {
		v, ok := cell[name]
		if !ok {
			return 0, false
		}
		return toFinite(v)
	}
}

// PairElement reads element i of a two-element array field, e.g. center[0].
func PairElement(name string, i int) Accessor {
	return func(cell RawCell) (float64, bool) {
		arr, ok := cell[name].([]any)
		if !ok || len(arr) != 2 || i < 0 || i > 1 {
			return 0, false
		}
		return toFinite(arr[i])
	}
}

// Fields builds one Field accessor per name, preserving order.
func Fields(names ...string) []Accessor {
	out := make([]Accessor, len(names))
	for i, n := range names {
		out[i] = Field(n)
	}
	return out
}

// Resolve evaluates accessors in order and returns the first finite value.
func Resolve(cell RawCell, accessors []Accessor) (float64, bool) {
	for _, a := range accessors {
		if v, ok := a(cell); ok {
			return v, true
		}
	}
	return 0, false
}

// Aliases lists, per logical quantity, the candidate accessors tried in order.
type Aliases struct {
	MinLat []Accessor
	MinLng []Accessor
	MaxLat []Accessor
	MaxLng []Accessor
	Lat    []Accessor
	Lng    []Accessor
	Weight []Accessor
}

// DefaultAliases returns the field names observed across upstream schema
// revisions.
func DefaultAliases() Aliases {
	return Aliases{
		MinLat: Fields("min_lat", "south", "sw_lat", "lat_min", "ymin"),
		MinLng: Fields("min_lng", "west", "sw_lng", "lng_min", "lon_min", "xmin"),
		MaxLat: Fields("max_lat", "north", "ne_lat", "lat_max", "ymax"),
		MaxLng: Fields("max_lng", "east", "ne_lng", "lng_max", "lon_max", "xmax"),
		Lat: append(
			Fields("lat", "latitude", "y", "center_lat", "centroid_lat", "lat_center", "cell_lat"),
			PairElement("center", 0),
		),
		Lng: append(
			Fields("lng", "lon", "long", "longitude", "x", "center_lng", "center_lon",
				"centroid_lng", "centroid_lon", "lng_center", "lon_center", "cell_lng"),
			PairElement("center", 1),
		),
		Weight: Fields("count", "value", "weight", "n", "total", "intensity", "incidents"),
	}
}

// Precedence decides which geometry wins when a cell carries both.
type Precedence int

const (
	// RectFirst treats any cell with four resolvable bounds as a rectangle.
	RectFirst Precedence = iota
	// PointFirst prefers point geometry. Only used to exercise the policy.
	PointFirst
)

// DropReason explains why a cell produced no item.
type DropReason string

const (
	DropNone           DropReason = ""
	DropNoGeometry     DropReason = "no_geometry"
	DropDegenerateRect DropReason = "degenerate_rect"
	DropNegativeWeight DropReason = "negative_weight"
)

// Normalizer converts raw cells into rectangles or points.
type Normalizer struct {
	Aliases    Aliases
	Precedence Precedence
}

// NewNormalizer returns a Normalizer with the default aliases and RectFirst.
func NewNormalizer() *Normalizer {
	return &Normalizer{Aliases: DefaultAliases(), Precedence: RectFirst}
}

// Normalize converts one cell. A non-empty DropReason means the cell is
// skipped; it is never an error.
func (n *Normalizer) Normalize(cell RawCell) (NormalizedItem, DropReason) {
	weight, _ := Resolve(cell, n.Aliases.Weight)
	if weight < 0 {
		return NormalizedItem{}, DropNegativeWeight
	}

	if n.Precedence == PointFirst {
		if item, ok := n.point(cell, weight); ok {
			return item, DropNone
		}
		return n.rect(cell, weight)
	}

	item, reason := n.rect(cell, weight)
	if reason != DropNoGeometry {
		return item, reason
	}
	if item, ok := n.point(cell, weight); ok {
		return item, DropNone
	}
	return NormalizedItem{}, DropNoGeometry
}

// rect returns DropNoGeometry when any bound is missing, DropDegenerateRect
// when all four resolve but do not form a box.
func (n *Normalizer) rect(cell RawCell, weight float64) (NormalizedItem, DropReason) {
	minLat, ok1 := Resolve(cell, n.Aliases.MinLat)
	minLng, ok2 := Resolve(cell, n.Aliases.MinLng)
	maxLat, ok3 := Resolve(cell, n.Aliases.MaxLat)
	maxLng, ok4 := Resolve(cell, n.Aliases.MaxLng)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return NormalizedItem{}, DropNoGeometry
	}
	r := Rect{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng}
	if !r.Valid() {
		return NormalizedItem{}, DropDegenerateRect
	}
	return RectItem(r, weight), DropNone
}

func (n *Normalizer) point(cell RawCell, weight float64) (NormalizedItem, bool) {
	lat, ok := Resolve(cell, n.Aliases.Lat)
	if !ok {
		return NormalizedItem{}, false
	}
	lng, ok := Resolve(cell, n.Aliases.Lng)
	if !ok {
		return NormalizedItem{}, false
	}
	return PointItem(lat, lng, weight), true
}

// NormalizeResult splits normalized cells by shape and counts the drops.
type NormalizeResult struct {
	Rects   []NormalizedItem
	Points  []NormalizedItem
	Dropped map[DropReason]int
}

// Len returns the number of cells that survived normalization.
func (r NormalizeResult) Len() int {
	return len(r.Rects) + len(r.Points)
}

// NormalizeAll normalizes every cell, preserving input order within each shape.
func (n *Normalizer) NormalizeAll(cells []RawCell) NormalizeResult {
	res := NormalizeResult{Dropped: make(map[DropReason]int)}
	for _, c := range cells {
		item, reason := n.Normalize(c)
		if reason != DropNone {
			res.Dropped[reason]++
			continue
		}
		if item.Kind == ShapeRect {
			res.Rects = append(res.Rects, item)
		} else {
			res.Points = append(res.Points, item)
		}
	}
	return res
}

// toFinite coerces JSON-ish values to a finite float64.
func toFinite(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
