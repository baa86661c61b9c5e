package types

import "time"

// Conditions represents current weather conditions
type Conditions struct {
	TempF        int
	FeelsLikeF   int
	Humidity     int
	PressureInHg float64
	WindMPH      int
	WindDeg      float64
	Condition    string
	PrecipChance int
}

// HourlyForecast represents a forecast entry some hours ahead
type HourlyForecast struct {
	HoursAhead   int
	At           time.Time
	TempF        int
	Condition    string
	PrecipChance int
}

// DailyForecast represents a summary of one calendar day
type DailyForecast struct {
	DayOffset    int
	Date         time.Time
	HighF        int
	LowF         int
	Condition    string
	PrecipChance int
}

// Snapshot represents the latest weather data from the weather feed
type Snapshot struct {
	Current   Conditions
	Hourly    []HourlyForecast
	Daily     []DailyForecast
	Sunrise   time.Time
	Sunset    time.Time
	FetchedAt time.Time
}

// Night reports whether t falls outside the snapshot's daylight window.
// ok is false when the snapshot carries no sunrise/sunset.
func (s Snapshot) Night(t time.Time) (night bool, ok bool) {
	if s.Sunrise.IsZero() || s.Sunset.IsZero() {
		return false, false
	}
	return t.Before(s.Sunrise) || t.After(s.Sunset), true
}
