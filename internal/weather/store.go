package weather

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/fkcurrie/led-matrix-display/internal/metrics"
	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// Store holds the latest weather snapshot
type Store struct {
	staleAfter time.Duration

	mu   sync.RWMutex
	snap types.Snapshot
	has  bool
}

// NewStore creates an empty store. Snapshots older than staleAfter are not
// considered fresh.
func NewStore(staleAfter time.Duration) *Store {
	return &Store{staleAfter: staleAfter}
}

// Set replaces the stored snapshot
func (s *Store) Set(snap types.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.has = true
}

// Latest returns the stored snapshot, if any, regardless of age
func (s *Store) Latest() (types.Snapshot, bool) {
	if s == nil {
		return types.Snapshot{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.has
}

// Fresh returns the stored snapshot only if it is younger than the stale limit
func (s *Store) Fresh(now time.Time) (types.Snapshot, bool) {
	snap, ok := s.Latest()
	if !ok || now.Sub(snap.FetchedAt) > s.staleAfter {
		return types.Snapshot{}, false
	}
	return snap, true
}

// Fetcher retrieves a snapshot
type Fetcher interface {
	Fetch(ctx context.Context, now time.Time) (types.Snapshot, error)
}

// Updater refreshes a store from a fetcher on a fixed interval
type Updater struct {
	fetcher  Fetcher
	store    *Store
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	backoff  *backoff.ExponentialBackOff
}

// NewUpdater creates an updater. Failed fetches are retried sooner than the
// regular interval with exponential backoff.
func NewUpdater(f Fetcher, store *Store, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, m *metrics.Metrics) *Updater {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 15 * time.Second
	b.MaxInterval = interval
	b.MaxElapsedTime = 0

	return &Updater{
		fetcher:  f,
		store:    store,
		interval: interval,
		clock:    clock,
		logger:   logger.With("component", "weather"),
		metrics:  m,
		backoff:  b,
	}
}

// Run fetches immediately and then on every interval until ctx is cancelled
func (u *Updater) Run(ctx context.Context) error {
	for {
		wait := u.interval
		if err := u.Update(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait = u.backoff.NextBackOff()
			u.logger.Error("weather update failed", "error", err, "retry_in", wait.Round(time.Second))
		} else {
			u.backoff.Reset()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-u.clock.After(wait):
		}
	}
}

// Update performs a single fetch and stores the result
func (u *Updater) Update(ctx context.Context) error {
	now := u.clock.Now()
	snap, err := u.fetcher.Fetch(ctx, now)
	if err != nil {
		u.metrics.WeatherFetchError()
		if prev, ok := u.store.Latest(); ok {
			u.metrics.SetWeatherAge(now.Sub(prev.FetchedAt).Seconds())
		}
		return err
	}
	u.store.Set(snap)
	u.metrics.SetWeatherAge(0)
	u.logger.Info("weather updated",
		"temp_f", snap.Current.TempF,
		"condition", snap.Current.Condition,
		"hourly", len(snap.Hourly),
		"daily", len(snap.Daily))
	return nil
}
