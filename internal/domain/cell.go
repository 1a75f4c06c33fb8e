package domain

// RawCell is one historical record as returned by the upstream service.
// It has no fixed schema and is treated as read-only input.
type RawCell map[string]any

// ShapeKind tags the geometry carried by a NormalizedItem or RenderItem.
type ShapeKind string

const (
	ShapeRect  ShapeKind = "rect"
	ShapePoint ShapeKind = "point"
	ShapeBin   ShapeKind = "bin"
	ShapeTile  ShapeKind = "tile"
)

// Rect is an axis-aligned latitude/longitude box.
type Rect struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Valid reports whether the bounds form a non-degenerate box.
func (r Rect) Valid() bool {
	return r.MinLat < r.MaxLat && r.MinLng < r.MaxLng
}

// Center returns the midpoint of the box.
func (r Rect) Center() (lat, lng float64) {
	return (r.MinLat + r.MaxLat) / 2, (r.MinLng + r.MaxLng) / 2
}

// NormalizedItem is a tagged variant: Kind is ShapeRect (Rect is set) or
// ShapePoint (Lat/Lng are set). Weight is never negative.
type NormalizedItem struct {
	Kind   ShapeKind
	Rect   Rect
	Lat    float64
	Lng    float64
	Weight float64
}

// RectItem builds a rectangle item.
func RectItem(r Rect, weight float64) NormalizedItem {
	return NormalizedItem{Kind: ShapeRect, Rect: r, Weight: weight}
}

// PointItem builds a point item.
func PointItem(lat, lng, weight float64) NormalizedItem {
	return NormalizedItem{Kind: ShapePoint, Lat: lat, Lng: lng, Weight: weight}
}

// BinKey is a quantized (lat, lng) bucket pair.
type BinKey struct {
	LatBucket int64
	LngBucket int64
}

// Bin accumulates the points that fall into one BinKey.
type Bin struct {
	Key    BinKey
	Lat    float64
	Lng    float64
	Weight float64
	Count  int
	Radius float64
}

// RiskTile is a pre-scored rectangle from the live risk service.
type RiskTile struct {
	ID       string  `json:"id"`
	Bounds   Rect    `json:"bounds"`
	Category string  `json:"top_type"`
	Score    float64 `json:"score"`
}

// RenderItem is a shape annotated with its resolved display color and opacity.
// Render items are built fresh on every pass because the color scale is
// scoped to one result set.
type RenderItem struct {
	Kind     ShapeKind `json:"kind"`
	ID       string    `json:"id,omitempty"`
	Bounds   *Rect     `json:"bounds,omitempty"`
	Lat      float64   `json:"lat,omitempty"`
	Lng      float64   `json:"lng,omitempty"`
	Radius   float64   `json:"radius,omitempty"`
	Weight   float64   `json:"weight"`
	Count    int       `json:"count,omitempty"`
	Category string    `json:"category,omitempty"`
	Color    string    `json:"color"`
	Opacity  float64   `json:"opacity"`
}

// HeatGrid is one historical grid response. AvailableMonths is set when the
// upstream advertises the month list alongside the cells.
type HeatGrid struct {
	Cells           []RawCell
	AvailableMonths []string
}
