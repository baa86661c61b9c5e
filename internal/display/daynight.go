package display

import (
	"fmt"
	"time"

	"github.com/fkcurrie/led-matrix-display/internal/config"
	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// SnapshotSource provides the latest weather snapshot if it is fresh
type SnapshotSource interface {
	Fresh(now time.Time) (types.Snapshot, bool)
}

// DayNight decides whether the display should use the night scheme
type DayNight struct {
	enabled bool
	start   int // seconds after midnight
	end     int
	weather SnapshotSource
}

// NewDayNight creates a selector from the schedule config. weather may be nil.
func NewDayNight(cfg types.ScheduleConfig, weather SnapshotSource) (*DayNight, error) {
	start, err := config.ParseClock(cfg.NightStart)
	if err != nil {
		return nil, fmt.Errorf("failed to parse night_start: %w", err)
	}
	end, err := config.ParseClock(cfg.NightEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to parse night_end: %w", err)
	}
	return &DayNight{
		enabled: cfg.EnableAutoDimming,
		start:   start * 60,
		end:     end * 60,
		weather: weather,
	}, nil
}

// Night reports whether now is night. Sunrise and sunset from a fresh weather
// snapshot take precedence over the configured window.
func (d *DayNight) Night(now time.Time) bool {
	if d == nil || !d.enabled {
		return false
	}
	if d.weather != nil {
		if snap, ok := d.weather.Fresh(now); ok {
			if night, ok := snap.Night(now); ok {
				return night
			}
		}
	}
	return d.inWindow(now)
}

func (d *DayNight) inWindow(now time.Time) bool {
	h, m, s := now.Clock()
	t := h*3600 + m*60 + s
	if d.start <= d.end {
		return d.start <= t && t <= d.end
	}
	// The window crosses midnight
	return t >= d.start || t <= d.end
}
