package domain

import (
	"math"
	"slices"
)

// RenderOptions bundles the policy values used to turn cells into render items.
// They must be identical for every item in one pass.
type RenderOptions struct {
	Normalizer   *Normalizer
	Bins         BinConfig
	Palette      []string
	RectOpacity  OpacityRamp
	PointOpacity OpacityRamp
	TileOpacity  OpacityRamp
}

// DefaultRenderOptions returns the production policy.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Normalizer:   NewNormalizer(),
		Bins:         DefaultBinConfig(),
		Palette:      DefaultPalette,
		RectOpacity:  RectOpacity,
		PointOpacity: PointOpacity,
		TileOpacity:  TileOpacity,
	}
}

// HistoricalLayer is the render-ready form of one historical grid response.
type HistoricalLayer struct {
	Rects     []NormalizedItem
	Bins      []Bin
	MaxWeight float64
	Items     []RenderItem
	Dropped   map[DropReason]int
	Truncated int
}

// Empty reports whether no cell survived normalization.
func (l HistoricalLayer) Empty() bool {
	return len(l.Rects) == 0 && len(l.Bins) == 0
}

// Scale returns the color scale the layer was rendered with.
func (l HistoricalLayer) Scale(palette []string) ColorScale {
	return NewColorScale(palette, l.MaxWeight)
}

// BuildHistoricalLayer runs cells through normalization, binning and coloring.
// Rectangles bypass binning; the color maximum spans rectangles and
// surviving bins.
func BuildHistoricalLayer(cells []RawCell, opts RenderOptions) HistoricalLayer {
	norm := opts.Normalizer
	if norm == nil {
		norm = NewNormalizer()
	}
	nr := norm.NormalizeAll(cells)
	br := BinPoints(nr.Points, opts.Bins)

	maxWeight := 1.0
	for _, r := range nr.Rects {
		maxWeight = math.Max(maxWeight, r.Weight)
	}
	for _, b := range br.Bins {
		maxWeight = math.Max(maxWeight, b.Weight)
	}
	scale := NewColorScale(opts.Palette, maxWeight)

	items := make([]RenderItem, 0, len(nr.Rects)+len(br.Bins))
	for _, r := range nr.Rects {
		bounds := r.Rect
		ratio := scale.Ratio(r.Weight)
		items = append(items, RenderItem{
			Kind:    ShapeRect,
			Bounds:  &bounds,
			Weight:  r.Weight,
			Color:   scale.Color(r.Weight),
			Opacity: opts.RectOpacity.At(ratio),
		})
	}
	for _, b := range br.Bins {
		ratio := scale.Ratio(b.Weight)
		items = append(items, RenderItem{
			Kind:    ShapeBin,
			Lat:     b.Lat,
			Lng:     b.Lng,
			Radius:  b.Radius,
			Weight:  b.Weight,
			Count:   b.Count,
			Color:   scale.Color(b.Weight),
			Opacity: opts.PointOpacity.At(ratio),
		})
	}

	return HistoricalLayer{
		Rects:     nr.Rects,
		Bins:      br.Bins,
		MaxWeight: maxWeight,
		Items:     items,
		Dropped:   nr.Dropped,
		Truncated: br.Truncated,
	}
}

// TileLayer is the render-ready form of a live tile response.
type TileLayer struct {
	Tiles     []RiskTile
	MaxWeight float64
	Items     []RenderItem
}

// BuildTileLayer colors live tiles against the highest tile score.
// Tiles with degenerate bounds are skipped.
func BuildTileLayer(tiles []RiskTile, opts RenderOptions) TileLayer {
	maxScore := 1.0
	for _, t := range tiles {
		maxScore = math.Max(maxScore, t.Score)
	}
	scale := NewColorScale(opts.Palette, maxScore)

	items := make([]RenderItem, 0, len(tiles))
	for _, t := range tiles {
		if !t.Bounds.Valid() {
			continue
		}
		bounds := t.Bounds
		items = append(items, RenderItem{
			Kind:     ShapeTile,
			ID:       t.ID,
			Bounds:   &bounds,
			Weight:   t.Score,
			Category: t.Category,
			Color:    scale.Color(t.Score),
			Opacity:  opts.TileOpacity.At(scale.Ratio(t.Score)),
		})
	}
	return TileLayer{Tiles: tiles, MaxWeight: maxScore, Items: items}
}

// TopZones returns up to n tiles ordered by descending score.
func TopZones(tiles []RiskTile, n int) []RiskTile {
	out := slices.Clone(tiles)
	slices.SortStableFunc(out, func(a, b RiskTile) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
