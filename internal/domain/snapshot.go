package domain

import "time"

// NoDataMessage is shown when a selection has nothing to draw.
const NoDataMessage = "No data for this selection."

// Source is the provenance of the overlay backing a risk query.
type Source string

const (
	SourceLiveTiles      Source = "live_tiles"
	SourceHistoricalHeat Source = "historical_heat"
	SourceNone           Source = "none"
)

// Label is the operator-facing provenance text.
func (s Source) Label(month string) string {
	switch s {
	case SourceLiveTiles:
		return "Live tiles"
	case SourceHistoricalHeat:
		return "Historical (" + month + ")"
	default:
		return "None"
	}
}

// RiskAnswer is the live risk service response to a free-text query.
type RiskAnswer struct {
	Narrative string
	Region    string
	Tiles     []RiskTile
}

// Selection is the outcome of one source fallback run. Exactly one source
// backs Items; a failed run has Source=None and a Message.
type Selection struct {
	Source    Source        `json:"source"`
	Label     string        `json:"label"`
	Month     string        `json:"month,omitempty"`
	Region    string        `json:"region"`
	Narrative string        `json:"narrative,omitempty"`
	TopZones  []RiskTile    `json:"top_zones,omitempty"`
	Items     []RenderItem  `json:"items"`
	Legend    []LegendEntry `json:"legend"`
	MaxWeight float64       `json:"max_weight"`
	Message   string        `json:"message,omitempty"`
}

// TypeCount is one row of the live category breakdown.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// LiveSummary is widget data passed through from the live metadata services.
type LiveSummary struct {
	Total       int         `json:"total"`
	TopTypes    []TypeCount `json:"top_types"`
	LastUpdated string      `json:"last_updated,omitempty"`
}

// HistoricalView is the dashboard heat layer for the current filter state.
type HistoricalView struct {
	Months    []string      `json:"available_months,omitempty"`
	CellCount int           `json:"cell_count"`
	Items     []RenderItem  `json:"items"`
	Legend    []LegendEntry `json:"legend"`
	MaxWeight float64       `json:"max_weight"`
	Dropped   int           `json:"dropped"`
	Truncated int           `json:"truncated"`
	Empty     bool          `json:"empty"`
	Message   string        `json:"message,omitempty"`
}

// Snapshot is the result of one fetch-and-normalize pass.
type Snapshot struct {
	PassID      string          `json:"pass_id"`
	Seq         uint64          `json:"seq"`
	Trigger     string          `json:"trigger"`
	FilterKey   string          `json:"filter_key"`
	Filters     FilterState     `json:"filters"`
	GeneratedAt time.Time       `json:"generated_at"`
	Historical  *HistoricalView `json:"historical,omitempty"`
	Live        *LiveSummary    `json:"live,omitempty"`
	Risk        *Selection      `json:"risk,omitempty"`
}

// RenderItems returns every item a map surface should draw: the risk overlay
// when it has a source, otherwise the dashboard heat layer.
func (s *Snapshot) RenderItems() []RenderItem {
	if s.Risk != nil && s.Risk.Source != SourceNone {
		return s.Risk.Items
	}
	if s.Historical != nil {
		return s.Historical.Items
	}
	return nil
}

// Source names the layer backing RenderItems.
func (s *Snapshot) Source() Source {
	if s.Risk != nil && s.Risk.Source != SourceNone {
		return s.Risk.Source
	}
	if s.Historical != nil && len(s.Historical.Items) > 0 {
		return SourceHistoricalHeat
	}
	return SourceNone
}

// Message returns the operator-facing note for an empty overlay.
func (s *Snapshot) Message() string {
	if s.Source() != SourceNone {
		return ""
	}
	if s.Risk != nil && s.Risk.Message != "" {
		return s.Risk.Message
	}
	if s.Historical != nil {
		return s.Historical.Message
	}
	return ""
}

// Legend returns the legend matching RenderItems.
func (s *Snapshot) Legend() []LegendEntry {
	if s.Risk != nil && s.Risk.Source != SourceNone {
		return s.Risk.Legend
	}
	if s.Historical != nil {
		return s.Historical.Legend
	}
	return NewColorScale(DefaultPalette, 1).Legend()
}
