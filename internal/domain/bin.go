package domain

import (
	"cmp"
	"math"
	"slices"
)

// Binning policy defaults.
const (
	DefaultBinStep    = 0.003
	DefaultMaxBins    = 700
	DefaultRadiusBase = 3.0
	DefaultMinRadius  = 3.0
	DefaultMaxRadius  = 18.0
)

// BinConfig controls point quantization, the output cap and marker sizing.
type BinConfig struct {
	Step       float64 // grid size in degrees
	MaxBins    int     // bins beyond this rank are discarded
	RadiusBase float64
	MinRadius  float64
	MaxRadius  float64
}

// DefaultBinConfig returns the production binning policy.
func DefaultBinConfig() BinConfig {
	return BinConfig{
		Step:       DefaultBinStep,
		MaxBins:    DefaultMaxBins,
		RadiusBase: DefaultRadiusBase,
		MinRadius:  DefaultMinRadius,
		MaxRadius:  DefaultMaxRadius,
	}
}

// KeyFor quantizes a coordinate to the nearest multiple of step on both axes.
// Halves round up (toward +Inf) on both axes.
func (c BinConfig) KeyFor(lat, lng float64) BinKey {
	return BinKey{
		LatBucket: int64(math.Floor(lat/c.Step + 0.5)),
		LngBucket: int64(math.Floor(lng/c.Step + 0.5)),
	}
}

// Radius maps a weight to a marker radius: base + sqrt(weight), clamped.
func (c BinConfig) Radius(weight float64) float64 {
	r := c.RadiusBase + math.Sqrt(math.Max(0, weight))
	return math.Max(c.MinRadius, math.Min(c.MaxRadius, r))
}

// BinResult holds the ranked, capped bins and how many were cut off.
type BinResult struct {
	Bins      []Bin
	Total     int // bins before truncation
	Truncated int
}

// BinPoints merges point items into bins. Non-point items are ignored.
func BinPoints(points []NormalizedItem, cfg BinConfig) BinResult {
	index := make(map[BinKey]int)
	bins := make([]Bin, 0)

	for _, p := range points {
		if p.Kind != ShapePoint {
			continue
		}
		key := cfg.KeyFor(p.Lat, p.Lng)
		i, ok := index[key]
		if !ok {
			index[key] = len(bins)
			bins = append(bins, Bin{Key: key, Lat: p.Lat, Lng: p.Lng, Weight: p.Weight, Count: 1})
			continue
		}
		b := &bins[i]
		b.Count++
		n := float64(b.Count)
		b.Lat = (b.Lat*(n-1) + p.Lat) / n
		b.Lng = (b.Lng*(n-1) + p.Lng) / n
		b.Weight += p.Weight
	}

	// Stable: equal weights keep first-seen order.
	slices.SortStableFunc(bins, func(a, b Bin) int {
		return cmp.Compare(b.Weight, a.Weight)
	})

	res := BinResult{Total: len(bins)}
	if cfg.MaxBins >= 0 && len(bins) > cfg.MaxBins {
		res.Truncated = len(bins) - cfg.MaxBins
		bins = bins[:cfg.MaxBins]
	}
	for i := range bins {
		bins[i].Radius = cfg.Radius(bins[i].Weight)
	}
	res.Bins = bins
	return res
}
