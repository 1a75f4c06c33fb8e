// Package domain models the risk map overlay: loosely shaped historical cells,
// live risk tiles, and the render-ready shapes derived from them.
//
// # Data Sources
//
// The upstream risk service exposes two kinds of data:
//
//   - Historical grid cells: monthly aggregates of incident counts. The
//     schema is not versioned; the same quantity may arrive under several
//     field names (see [DefaultAliases]). Cells are either explicit
//     rectangles or points.
//   - Live risk tiles: pre-scored rectangles computed by the upstream from the
//     unverified calls-for-service feed. Tiles are already normalized and
//     never pass through the [Normalizer].
//
// # Normalization
//
// A cell is tried as a rectangle first (four bound alias groups). Only when a
// bound is missing is it tried as a point (lat/lng alias groups with a
// two-element "center" pair fallback). Records that yield neither are
// dropped silently; so are rectangles whose bounds do not form a box.
//
//	{"south": 38.60, "west": -90.25, "north": 38.61, "east": -90.24, "count": 4}  → Rect
//	{"lat": 38.62, "lng": -90.20, "count": 5}                                     → Point
//	{"center": [38.62, -90.20], "incidents": "5"}                                 → Point
//	{"name": "no geometry"}                                                       → dropped
//
// # Binning
//
// Points are merged into bins on a fixed angular grid (0.003°, roughly 300 m
// at St. Louis latitude). Each bin keeps an incremental centroid and a summed
// weight. Bins are ranked by weight and capped (700) to bound render cost.
//
// # Color Scale
//
// Colors come from a 7-stop palette indexed by weight relative to the
// largest weight in one result set. Opacity follows a separate linear ramp
// per shape family. The legend samples the same function so map and legend
// agree.
package domain
