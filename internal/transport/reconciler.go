// Package transport ingests display instructions from the push (MQTT) and pull
// (HTTP) transports and merges them into one ordered, de-duplicated stream.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fkcurrie/led-matrix-display/internal/command"
	"github.com/fkcurrie/led-matrix-display/internal/metrics"
	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// Error reports a failure in one of the transports
type Error struct {
	Transport string
	Op        string
	Err       error
}

func (e *Error) Error() string {
	return e.Transport + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Health describes the state of the instruction stream
type Health struct {
	PushConnected bool
	PushDegraded  bool
	LastPushSeen  time.Time
	LastForwarded *types.Instruction
	Queued        int
}

// Reconciler merges instructions from every source into a single channel.
// Offer and Submit never block.
type Reconciler struct {
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	liveness time.Duration
	out      chan types.Instruction

	mu            sync.Mutex
	seq           map[types.Source]uint64
	last          types.Instruction
	hasLast       bool
	pushConnected bool
	pushSeen      time.Time
	degraded      bool
}

// NewReconciler creates a reconciler with a queue of the given size. A push
// transport that stays silent for longer than liveness is reported degraded;
// a zero liveness means there is no push transport.
func NewReconciler(queueSize int, liveness time.Duration, clock clockwork.Clock, logger *slog.Logger, m *metrics.Metrics) *Reconciler {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Reconciler{
		clock:    clock,
		logger:   logger.With("component", "reconciler"),
		metrics:  m,
		liveness: liveness,
		out:      make(chan types.Instruction, queueSize),
		seq:      make(map[types.Source]uint64),
		pushSeen: clock.Now(),
	}
}

// Instructions returns the merged instruction stream
func (r *Reconciler) Instructions() <-chan types.Instruction {
	return r.out
}

// Offer parses a raw payload from a transport and queues the result.
// Parse failures are logged and returned; nothing is queued for them.
func (r *Reconciler) Offer(raw string, source types.Source) error {
	if source == types.SourcePush {
		r.PushActivity(true)
	}

	ins, err := command.Parse(raw)
	if err != nil {
		reason := "invalid format"
		if errors.Is(err, command.ErrEmpty) {
			reason = "empty"
		}
		r.metrics.InstructionRejected(reason)
		r.logger.Warn("rejected payload", "source", source, "error", err)
		return err
	}
	r.accept(ins, source)
	return nil
}

// Submit queues an instruction that was parsed elsewhere, such as a schedule rule
func (r *Reconciler) Submit(ins types.Instruction) {
	r.accept(ins, ins.Source)
}

func (r *Reconciler) accept(ins types.Instruction, source types.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq[source]++
	ins.Source = source
	ins.Sequence = r.seq[source]
	ins.ReceivedAt = r.clock.Now()

	if ins.Kind != types.KindNoOp && r.hasLast && ins.SameContent(r.last) {
		r.metrics.InstructionSuppressed()
		r.logger.Debug("suppressed duplicate instruction", "instruction", ins.String(), "source", source, "seq", ins.Sequence)
		return
	}
	if ins.Kind != types.KindNoOp {
		r.last = ins
		r.hasLast = true
	}

	r.metrics.InstructionReceived(source.String())
	r.logger.Info("instruction received", "instruction", ins.String(), "source", source, "seq", ins.Sequence)
	r.enqueue(ins)
}

// enqueue sends without blocking. When the queue is full the oldest entry is
// discarded so the newest instruction always gets through. Callers hold r.mu,
// so only the consumer competes for the channel.
func (r *Reconciler) enqueue(ins types.Instruction) {
	for {
		select {
		case r.out <- ins:
			return
		default:
		}
		select {
		case dropped := <-r.out:
			r.metrics.InstructionDropped()
			r.logger.Warn("instruction queue full, dropping oldest", "dropped", dropped.String(), "seq", dropped.Sequence)
		default:
		}
	}
}

// PushActivity records a sign of life from the push transport
func (r *Reconciler) PushActivity(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pushConnected = connected
	if connected {
		r.pushSeen = r.clock.Now()
	}
	r.checkLivenessLocked()
}

// PushDegraded reports whether the push transport has been silent for longer
// than the liveness window
func (r *Reconciler) PushDegraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkLivenessLocked()
}

func (r *Reconciler) checkLivenessLocked() bool {
	if r.liveness <= 0 {
		// No push transport configured
		return true
	}
	degraded := r.clock.Since(r.pushSeen) > r.liveness
	if degraded != r.degraded {
		r.degraded = degraded
		r.metrics.SetPushDegraded(degraded)
		if degraded {
			r.logger.Warn("push transport degraded, relying on pull", "silent_for", r.clock.Since(r.pushSeen).Round(time.Second))
		} else {
			r.logger.Info("push transport recovered")
		}
	}
	return degraded
}

// Watch re-evaluates push liveness periodically so that a silent transport is
// reported even when nothing else touches the reconciler
func (r *Reconciler) Watch(ctx context.Context) error {
	if r.liveness <= 0 {
		return nil
	}
	ticker := r.clock.NewTicker(r.liveness / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			r.PushDegraded()
		}
	}
}

// Health returns a snapshot of the stream state
func (r *Reconciler) Health() Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := Health{
		PushConnected: r.pushConnected,
		PushDegraded:  r.checkLivenessLocked(),
		LastPushSeen:  r.pushSeen,
		Queued:        len(r.out),
	}
	if r.hasLast {
		last := r.last
		h.LastForwarded = &last
	}
	return h
}
