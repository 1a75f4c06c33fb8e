package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// Viewport is the visible map area used to cull render items.
type Viewport struct {
	rect s2.Rect
}

// NewViewport builds a viewport from degree bounds.
func NewViewport(minLat, minLng, maxLat, maxLng float64) Viewport {
	r := s2.RectFromLatLng(s2.LatLngFromDegrees(minLat, minLng))
	r = r.AddPoint(s2.LatLngFromDegrees(maxLat, maxLng))
	return Viewport{rect: r}
}

// ParseBBox parses "minLng,minLat,maxLng,maxLat" (GeoJSON bbox order).
func ParseBBox(s string) (Viewport, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Viewport{}, fmt.Errorf("bbox must have 4 comma-separated values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Viewport{}, fmt.Errorf("bbox value %d: %w", i, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return Viewport{}, fmt.Errorf("bbox min must be below max")
	}
	return NewViewport(v[1], v[0], v[3], v[2]), nil
}

// Contains reports whether the item is at least partly visible.
func (v Viewport) Contains(item RenderItem) bool {
	if item.Bounds != nil {
		b := item.Bounds
		r := s2.RectFromLatLng(s2.LatLngFromDegrees(b.MinLat, b.MinLng)).
			AddPoint(s2.LatLngFromDegrees(b.MaxLat, b.MaxLng))
		return v.rect.Intersects(r)
	}
	return v.rect.ContainsLatLng(s2.LatLngFromDegrees(item.Lat, item.Lng))
}

// Filter returns the items visible in the viewport, preserving order.
func (v Viewport) Filter(items []RenderItem) []RenderItem {
	out := make([]RenderItem, 0, len(items))
	for _, it := range items {
		if v.Contains(it) {
			out = append(out, it)
		}
	}
	return out
}

// StepMeters returns the north-south span of one bin step at the given
// latitude, for display next to the legend.
func StepMeters(lat, step float64) float64 {
	a := s2.LatLngFromDegrees(lat, 0)
	b := s2.LatLngFromDegrees(lat+step, 0)
	return a.Distance(b).Radians() * earthRadiusMeters
}

const earthRadiusMeters = 6371008.8
