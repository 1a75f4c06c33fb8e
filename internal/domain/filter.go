package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Window is the live-feed lookback duration. Only 1h, 6h and 24h exist.
type Window string

const (
	Window1h  Window = "1h"
	Window6h  Window = "6h"
	Window24h Window = "24h"
)

// Hours returns the window length in whole hours.
func (w Window) Hours() int {
	switch w {
	case Window1h:
		return 1
	case Window24h:
		return 24
	default:
		return 6
	}
}

// Duration returns the window as a time.Duration.
func (w Window) Duration() time.Duration {
	return time.Duration(w.Hours()) * time.Hour
}

// ParseWindow accepts "1h", "6h", "24h" or a bare hour count "1", "6", "24".
func ParseWindow(s string) (Window, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1h", "1":
		return Window1h, nil
	case "6h", "6":
		return Window6h, nil
	case "24h", "24":
		return Window24h, nil
	}
	return "", fmt.Errorf("invalid window %q: must be 1h, 6h or 24h", s)
}

// MonthMode selects between a single named month and the last N months.
type MonthMode string

const (
	MonthSingle MonthMode = "single"
	MonthMulti  MonthMode = "multi"
)

// Allowed filter values.
var (
	AllowedLastDays   = []int{0, 2, 5}
	MinMonthsBack     = 1
	MaxMonthsBack     = 5
	DefaultMonth      = "January2026"
	DefaultRiskQuery  = "Where are the hotspots right now?"
	DefaultMonthsBack = 3
)

// FilterState is the user-controlled selection that drives every fetch.
type FilterState struct {
	Window         Window    `json:"window"`
	MonthMode      MonthMode `json:"month_mode"`
	Month          string    `json:"month"`
	MonthsBack     int       `json:"months_back"`
	LastDays       int       `json:"last_days"`
	ShowHistorical bool      `json:"show_historical"`
	ShowLive       bool      `json:"show_live"`
	Query          string    `json:"query"`
}

// DefaultFilterState is the state a view starts with.
func DefaultFilterState() FilterState {
	return FilterState{
		Window:         Window6h,
		MonthMode:      MonthSingle,
		Month:          DefaultMonth,
		MonthsBack:     DefaultMonthsBack,
		LastDays:       0,
		ShowHistorical: true,
		ShowLive:       true,
		Query:          DefaultRiskQuery,
	}
}

// Key concatenates every field. Surfaces remount their overlay when it changes.
func (f FilterState) Key() string {
	return strings.Join([]string{
		string(f.MonthMode),
		f.Month,
		strconv.Itoa(f.MonthsBack),
		strconv.Itoa(f.LastDays),
		strconv.FormatBool(f.ShowHistorical),
		strconv.FormatBool(f.ShowLive),
		string(f.Window),
		strconv.Quote(f.Query),
	}, "-")
}

// Validate checks every field against its allowed values.
func (f FilterState) Validate() error {
	if _, err := ParseWindow(string(f.Window)); err != nil {
		return err
	}
	switch f.MonthMode {
	case MonthSingle:
		if strings.TrimSpace(f.Month) == "" {
			return fmt.Errorf("month is required in single month mode")
		}
	case MonthMulti:
	default:
		return fmt.Errorf("invalid month mode %q: must be single or multi", f.MonthMode)
	}
	if f.MonthsBack < MinMonthsBack || f.MonthsBack > MaxMonthsBack {
		return fmt.Errorf("invalid months back %d: must be %d-%d", f.MonthsBack, MinMonthsBack, MaxMonthsBack)
	}
	if !slices.Contains(AllowedLastDays, f.LastDays) {
		return fmt.Errorf("invalid last days %d: must be one of %v", f.LastDays, AllowedLastDays)
	}
	return nil
}

// FilterPatch is a partial update; nil fields are left unchanged.
type FilterPatch struct {
	Window         *string `json:"window,omitempty"`
	MonthMode      *string `json:"month_mode,omitempty"`
	Month          *string `json:"month,omitempty"`
	MonthsBack     *int    `json:"months_back,omitempty"`
	LastDays       *int    `json:"last_days,omitempty"`
	ShowHistorical *bool   `json:"show_historical,omitempty"`
	ShowLive       *bool   `json:"show_live,omitempty"`
	Query          *string `json:"query,omitempty"`
}

// Apply returns a copy of f with the patch applied, or an error if the
// result is invalid. f itself is never modified.
func (p FilterPatch) Apply(f FilterState) (FilterState, error) {
	if p.Window != nil {
		w, err := ParseWindow(*p.Window)
		if err != nil {
			return f, err
		}
		f.Window = w
	}
	if p.MonthMode != nil {
		f.MonthMode = MonthMode(strings.ToLower(strings.TrimSpace(*p.MonthMode)))
	}
	if p.Month != nil {
		f.Month = strings.TrimSpace(*p.Month)
	}
	if p.MonthsBack != nil {
		f.MonthsBack = *p.MonthsBack
	}
	if p.LastDays != nil {
		f.LastDays = *p.LastDays
	}
	if p.ShowHistorical != nil {
		f.ShowHistorical = *p.ShowHistorical
	}
	if p.ShowLive != nil {
		f.ShowLive = *p.ShowLive
	}
	if p.Query != nil {
		f.Query = strings.TrimSpace(*p.Query)
	}
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}
