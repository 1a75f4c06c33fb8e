package domain

import "math"

// DefaultPalette is the 7-stop low→high intensity ramp.
var DefaultPalette = []string{
	"#e0f2fe",
	"#bae6fd",
	"#7dd3fc",
	"#38bdf8",
	"#0ea5e9",
	"#2563eb",
	"#1e3a8a",
}

// LegendRatios are the sample points rendered in the map legend.
var LegendRatios = []float64{0.10, 0.25, 0.45, 0.70, 1.00}

// OpacityRamp is a clamped linear function of the intensity ratio.
type OpacityRamp struct {
	Floor   float64 `json:"floor"`
	Gain    float64 `json:"gain"`
	Ceiling float64 `json:"ceiling"`
}

// At returns the opacity for a ratio in [0,1].
func (o OpacityRamp) At(ratio float64) float64 {
	return math.Min(o.Ceiling, o.Floor+ratio*o.Gain)
}

// Opacity ramps per shape family.
var (
	RectOpacity  = OpacityRamp{Floor: 0.14, Gain: 0.45, Ceiling: 0.55}
	PointOpacity = OpacityRamp{Floor: 0.22, Gain: 0.50, Ceiling: 0.75}
	TileOpacity  = OpacityRamp{Floor: 0.16, Gain: 0.45, Ceiling: 0.55}
)

// ColorScale maps weights to palette stops relative to one result set's maximum.
type ColorScale struct {
	Palette []string
	Max     float64
}

// NewColorScale builds a scale; the maximum is floored at 1.
func NewColorScale(palette []string, maxWeight float64) ColorScale {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	return ColorScale{Palette: palette, Max: math.Max(1, maxWeight)}
}

// Ratio returns weight/Max clamped to [0,1].
func (s ColorScale) Ratio(weight float64) float64 {
	t := weight / math.Max(1, s.Max)
	if math.IsNaN(t) {
		return 0
	}
	return math.Max(0, math.Min(1, t))
}

// Index returns the palette index for a weight.
func (s ColorScale) Index(weight float64) int {
	return s.indexForRatio(s.Ratio(weight))
}

// Color returns the palette stop for a weight.
func (s ColorScale) Color(weight float64) string {
	return s.Palette[s.Index(weight)]
}

func (s ColorScale) indexForRatio(ratio float64) int {
	last := len(s.Palette) - 1
	idx := int(math.Floor(ratio * float64(last)))
	if idx > last {
		return last
	}
	if idx < 0 {
		return 0
	}
	return idx
}

// LegendEntry is one legend swatch.
type LegendEntry struct {
	Ratio  float64 `json:"ratio"`
	Weight float64 `json:"weight"`
	Color  string  `json:"color"`
}

// Legend samples the scale at LegendRatios.
func (s ColorScale) Legend() []LegendEntry {
	out := make([]LegendEntry, len(LegendRatios))
	for i, r := range LegendRatios {
		out[i] = LegendEntry{
			Ratio:  r,
			Weight: r * s.Max,
			Color:  s.Palette[s.indexForRatio(r)],
		}
	}
	return out
}
