package types

import "time"

// IntentKind identifies the screen the render dispatcher should compose
type IntentKind int

const (
	IntentBlank IntentKind = iota
	IntentText
	IntentWeather
	IntentForecast
	IntentConditions
)

func (k IntentKind) String() string {
	switch k {
	case IntentBlank:
		return "blank"
	case IntentText:
		return "text"
	case IntentWeather:
		return "weather"
	case IntentForecast:
		return "forecast"
	case IntentConditions:
		return "conditions"
	default:
		return "unknown"
	}
}

// PanelSet selects which forecast triad the carousel is showing
type PanelSet int

const (
	PanelsHourly PanelSet = iota
	PanelsDaily
)

func (p PanelSet) String() string {
	if p == PanelsDaily {
		return "daily"
	}
	return "hourly"
}

// Toggle returns the other panel set
func (p PanelSet) Toggle() PanelSet {
	if p == PanelsDaily {
		return PanelsHourly
	}
	return PanelsDaily
}

// Intent represents what the display should show right now.
// Version increases with every mode transition.
type Intent struct {
	Version uint64
	Kind    IntentKind
	Title   string
	Lines   []Line

	Panels     PanelSet
	Panel      int
	PhaseStart time.Time
	PhaseEnd   time.Time
}

// Animated reports whether the intent carries a progress indicator
func (i Intent) Animated() bool {
	return i.Kind == IntentForecast || i.Kind == IntentConditions
}

// Progress returns the elapsed fraction of the current phase in [0, 1]
func (i Intent) Progress(now time.Time) float64 {
	total := i.PhaseEnd.Sub(i.PhaseStart)
	if total <= 0 {
		return 0
	}
	p := float64(now.Sub(i.PhaseStart)) / float64(total)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
