package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// PollerConfig holds the settings of the HTTP pull transport
type PollerConfig struct {
	BaseURL  string
	Username string
	Key      string
	Feed     string
	Interval time.Duration
	Timeout  time.Duration
	// ApplyInitial forwards the first value fetched after start instead of
	// only recording it as the baseline
	ApplyInitial bool
}

// Poller periodically fetches the last value of the feed and forwards it
// when it changes
type Poller struct {
	cfg     PollerConfig
	sink    Sink
	client  *http.Client
	clock   clockwork.Clock
	logger  *slog.Logger
	url     string
	last    Datum
	primed  bool
	backoff *backoff.ExponentialBackOff
}

// NewPoller creates the pull transport
func NewPoller(cfg PollerConfig, sink Sink, clock clockwork.Clock, logger *slog.Logger) *Poller {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.Interval
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0

	return &Poller{
		cfg:     cfg,
		sink:    sink,
		client:  &http.Client{Timeout: cfg.Timeout},
		clock:   clock,
		logger:  logger.With("component", "poller"),
		url:     LastValueURL(cfg.BaseURL, cfg.Username, cfg.Feed),
		backoff: b,
	}
}

// LastValueURL returns the REST endpoint of a feed's most recent value
func LastValueURL(base, username, feed string) string {
	return fmt.Sprintf("%s/%s/feeds/%s/data/last",
		strings.TrimRight(base, "/"), url.PathEscape(username), url.PathEscape(feed))
}

// Run polls until ctx is cancelled. Failed polls are retried with
// exponential backoff.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling feed", "url", p.url, "interval", p.cfg.Interval)

	for {
		wait := p.cfg.Interval
		if err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait = p.backoff.NextBackOff()
			p.logger.Warn("poll failed", "error", err, "retry_in", wait.Round(time.Millisecond))
		} else {
			p.backoff.Reset()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-p.clock.After(wait):
		}
	}
}

// Poll fetches the feed once and forwards the value when a new data point
// was published, even if it repeats the previous value
func (p *Poller) Poll(ctx context.Context) error {
	d, err := p.Fetch(ctx)
	if err != nil {
		return err
	}

	if p.primed && d.Same(p.last) {
		return nil
	}
	first := !p.primed
	p.last = d
	p.primed = true

	if first && !p.cfg.ApplyInitial {
		p.logger.Debug("recorded initial feed value", "id", d.ID, "value", d.Value)
		return nil
	}
	// Rejections are logged by the sink
	_ = p.sink.Offer(d.Value, types.SourcePull)
	return nil
}

// Datum is one data point of a feed
type Datum struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	CreatedAt string `json:"created_at"`
}

// Same reports whether d and o are the same data point. Points without an
// id are compared by value.
func (d Datum) Same(o Datum) bool {
	if d.ID != "" || o.ID != "" {
		return d.ID == o.ID && d.CreatedAt == o.CreatedAt
	}
	return d.Value == o.Value
}

// Fetch returns the last data point of the feed
func (p *Poller) Fetch(ctx context.Context) (Datum, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Datum{}, &Error{Transport: "pull", Op: "request", Err: err}
	}
	req.Header.Set("X-AIO-KEY", p.cfg.Key)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Datum{}, &Error{Transport: "pull", Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Datum{}, &Error{Transport: "pull", Op: "fetch", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var d Datum
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&d); err != nil {
		return Datum{}, &Error{Transport: "pull", Op: "decode", Err: err}
	}
	return d, nil
}
