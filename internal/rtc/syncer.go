package rtc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fkcurrie/led-matrix-display/internal/metrics"
	"github.com/fkcurrie/led-matrix-display/pkg/ds3231"
)

// Device is a real-time clock
type Device interface {
	Read() (time.Time, error)
	Set(t time.Time) error
}

// Syncer periodically compares the system clock with the RTC and steps the
// system clock when they drift apart
type Syncer struct {
	dev       Device
	clock     *Clock
	interval  time.Duration
	threshold time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics

	setSystemTime func(time.Time) error
}

// NewSyncer creates a syncer for dev
func NewSyncer(dev Device, clock *Clock, interval, threshold time.Duration, logger *slog.Logger, m *metrics.Metrics) *Syncer {
	return &Syncer{
		dev:           dev,
		clock:         clock,
		interval:      interval,
		threshold:     threshold,
		logger:        logger.With("component", "rtc"),
		metrics:       m,
		setSystemTime: setSystemTime,
	}
}

// Run syncs immediately and then every interval until ctx is cancelled.
// Failures are logged and retried on the next interval.
func (s *Syncer) Run(ctx context.Context) error {
	for {
		if err := s.Sync(); err != nil {
			s.logger.Error("rtc sync failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.interval):
		}
	}
}

// Sync performs a single comparison
func (s *Syncer) Sync() error {
	rtcNow, err := s.dev.Read()
	sys := s.clock.System()

	if errors.Is(err, ds3231.ErrInvalidTime) && s.clock.Trusted() {
		// The RTC lost power; seed it from the system clock
		if err := s.dev.Set(sys); err != nil {
			return err
		}
		s.logger.Info("rtc set from system time", "time", sys.UTC().Format(time.RFC3339))
		return nil
	}
	if err != nil {
		return err
	}

	drift := rtcNow.Sub(sys)
	s.clock.Observe(rtcNow, sys)
	s.metrics.SetRTCDrift(drift.Seconds())

	if drift.Abs() <= s.threshold {
		s.logger.Debug("rtc in sync", "drift", drift)
		return nil
	}
	if err := s.setSystemTime(rtcNow); err != nil {
		s.logger.Warn("failed to set system time from rtc", "drift", drift, "error", err)
		return nil
	}
	s.logger.Info("system time set from rtc", "drift", drift, "time", rtcNow.UTC().Format(time.RFC3339))
	return nil
}
