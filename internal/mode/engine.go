package mode

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fkcurrie/led-matrix-display/internal/schedule"
	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// IntentSink receives every new render intent
type IntentSink interface {
	Submit(intent types.Intent)
}

// Submitter accepts synthetic instructions into the instruction stream
type Submitter interface {
	Submit(ins types.Instruction)
}

// Status is a snapshot of the engine for the status page
type Status struct {
	Mode            string
	Intent          types.Intent
	Armed           []string
	NextDeadline    time.Time
	LastInstruction *types.Instruction
	Received        int
}

// Engine is the single goroutine that owns a Machine
type Engine struct {
	machine   *Machine
	in        <-chan types.Instruction
	scheduler *schedule.Scheduler
	submitter Submitter
	sink      IntentSink
	clock     clockwork.Clock
	logger    *slog.Logger

	published uint64

	mu     sync.Mutex
	status Status
}

// NewEngine wires a machine to its instruction stream. Schedule triggers are
// submitted back through submitter so they are de-duplicated with everything
// else; scheduler may be nil.
func NewEngine(m *Machine, in <-chan types.Instruction, scheduler *schedule.Scheduler, submitter Submitter, sink IntentSink, clock clockwork.Clock, logger *slog.Logger) *Engine {
	return &Engine{
		machine:   m,
		in:        in,
		scheduler: scheduler,
		submitter: submitter,
		sink:      sink,
		clock:     clock,
		logger:    logger.With("component", "engine"),
	}
}

// Run processes instructions and timers until ctx is cancelled
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started", "mode", e.machine.Mode().Name())
	e.publish()

	for {
		now := e.clock.Now()
		if e.machine.Advance(now) > 0 {
			e.publish()
		}
		e.runSchedule(now)
		e.updateStatus(nil)

		var (
			timer  clockwork.Timer
			expiry <-chan time.Time
		)
		if wake, ok := e.wakeAt(now); ok {
			timer = e.clock.NewTimer(wake.Sub(now))
			expiry = timer.Chan()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			e.logger.Info("engine stopped")
			return nil
		case ins := <-e.in:
			if timer != nil {
				timer.Stop()
			}
			e.apply(ins)
		case <-expiry:
		}
	}
}

func (e *Engine) wakeAt(now time.Time) (time.Time, bool) {
	wake, ok := e.machine.NextDeadline()
	if next := e.scheduler.Next(now); !next.IsZero() && (!ok || next.Before(wake)) {
		wake, ok = next, true
	}
	if ok && wake.Before(now) {
		wake = now
	}
	return wake, ok
}

func (e *Engine) runSchedule(now time.Time) {
	for _, tr := range e.scheduler.Due(now) {
		e.logger.Info("schedule rule triggered", "rule", tr.Rule, "instruction", tr.Instruction.String())
		e.submitter.Submit(tr.Instruction)
	}
}

func (e *Engine) apply(ins types.Instruction) {
	changed := e.machine.Apply(ins, e.clock.Now())
	e.logger.Debug("instruction applied",
		"instruction", ins.String(),
		"source", ins.Source,
		"seq", ins.Sequence,
		"changed", changed)
	if changed {
		e.publish()
	}
	e.updateStatus(&ins)
}

func (e *Engine) publish() {
	intent := e.machine.Intent()
	if intent.Version == e.published {
		return
	}
	e.published = intent.Version
	e.sink.Submit(intent)
}

func (e *Engine) updateStatus(ins *types.Instruction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Mode = e.machine.Mode().Name()
	e.status.Intent = e.machine.Intent()
	e.status.Armed = e.machine.Armed()
	e.status.NextDeadline, _ = e.machine.NextDeadline()
	if ins != nil {
		cp := *ins
		e.status.LastInstruction = &cp
		e.status.Received++
	}
}

// Status returns a copy of the engine state
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.status
	s.Armed = append([]string(nil), e.status.Armed...)
	return s
}
