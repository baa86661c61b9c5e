package display

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jonboulle/clockwork"

	"github.com/fkcurrie/led-matrix-display/internal/metrics"
	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// animatedRefresh is the minimum commit rate of animated intents
const animatedRefresh = time.Second

// RenderError reports a failed render step. The frame is retried on the next
// tick.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// FrameObserver receives a copy of every committed frame
type FrameObserver func(frame *image.RGBA)

// Options configures a Renderer
type Options struct {
	FrameRate  float64
	Brightness Brightness
}

// Renderer composes the latest intent and commits it to the matrix
type Renderer struct {
	matrix   types.Matrix
	composer *Composer
	dayNight *DayNight
	weather  SnapshotSource
	opts     Options
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mailbox chan types.Intent

	// Owned by the render goroutine
	intent         types.Intent
	hasIntent      bool
	canvas         *image.RGBA
	lastHash       uint64
	committed      bool
	lastCommit     time.Time
	lastBrightness int

	mu       sync.RWMutex
	observer FrameObserver
	scheme   Scheme
}

// NewRenderer creates a new renderer instance. dayNight and weather may be nil.
func NewRenderer(matrix types.Matrix, composer *Composer, dayNight *DayNight, weather SnapshotSource, opts Options, clock clockwork.Clock, logger *slog.Logger, m *metrics.Metrics) *Renderer {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 10
	}
	return &Renderer{
		matrix:         matrix,
		composer:       composer,
		dayNight:       dayNight,
		weather:        weather,
		opts:           opts,
		clock:          clock,
		logger:         logger.With("component", "renderer"),
		metrics:        m,
		mailbox:        make(chan types.Intent, 1),
		canvas:         image.NewRGBA(matrix.Bounds()),
		lastBrightness: -1,
	}
}

// SetObserver sets the function every committed frame is handed to
func (r *Renderer) SetObserver(o FrameObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Scheme returns the scheme of the last rendered frame
func (r *Renderer) Scheme() Scheme {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scheme
}

// Submit replaces any intent the renderer has not picked up yet
func (r *Renderer) Submit(intent types.Intent) {
	for {
		select {
		case r.mailbox <- intent:
			return
		default:
		}
		select {
		case <-r.mailbox:
		default:
		}
	}
}

// Start starts the renderer
func (r *Renderer) Start(ctx context.Context) error {
	ticker := r.clock.NewTicker(time.Duration(float64(time.Second) / r.opts.FrameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := r.render(r.clock.Now()); err != nil {
				r.metrics.RenderError()
				r.logger.Error("failed to render", "error", err)
			}
		}
	}
}

// render composes the current intent and commits it when the frame changed
func (r *Renderer) render(now time.Time) error {
	select {
	case in := <-r.mailbox:
		r.intent = in
		r.hasIntent = true
	default:
	}
	if !r.hasIntent {
		return nil
	}

	scheme := SchemeFor(r.dayNight.Night(now), r.opts.Brightness)
	r.mu.Lock()
	r.scheme = scheme
	r.mu.Unlock()

	if scheme.Brightness != r.lastBrightness {
		if err := r.matrix.SetBrightness(scheme.Brightness); err != nil {
			return &RenderError{Op: "brightness", Err: err}
		}
		r.lastBrightness = scheme.Brightness
	}

	f := Frame{Scheme: scheme, Now: now}
	if r.weather != nil {
		f.Weather, f.HasWeather = r.weather.Fresh(now)
	}
	if err := r.composer.Compose(r.canvas, r.intent, f); err != nil {
		return &RenderError{Op: "compose", Err: err}
	}

	hash := xxhash.Sum64(r.canvas.Pix)
	stale := r.intent.Animated() && now.Sub(r.lastCommit) >= animatedRefresh
	if r.committed && hash == r.lastHash && !stale {
		return nil
	}

	if err := r.commit(); err != nil {
		return err
	}
	r.lastHash = hash
	r.committed = true
	r.lastCommit = now
	r.metrics.FrameCommitted()

	r.mu.RLock()
	observer := r.observer
	r.mu.RUnlock()
	if observer != nil {
		frame := image.NewRGBA(r.canvas.Bounds())
		copy(frame.Pix, r.canvas.Pix)
		observer(frame)
	}
	return nil
}

func (r *Renderer) commit() error {
	b := r.canvas.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if err := r.matrix.SetPixel(x, y, r.canvas.RGBAAt(x, y)); err != nil {
				return &RenderError{Op: "commit", Err: err}
			}
		}
	}
	if err := r.matrix.Show(); err != nil {
		return &RenderError{Op: "show", Err: err}
	}
	return nil
}
