package mode

import (
	"log/slog"
	"time"

	"github.com/fkcurrie/led-matrix-display/internal/command"
	"github.com/fkcurrie/led-matrix-display/internal/metrics"
	"github.com/fkcurrie/led-matrix-display/internal/types"
)

type timerID int

// Expiries at the same instant fire in this order
const (
	timerFlip timerID = iota
	timerBoundary
	timerInterrupt
	timerGrace
	numTimers
)

var timerNames = [numTimers]string{"flip", "boundary", "interrupt", "grace"}

type handle struct {
	at    time.Time
	armed bool
}

type timers [numTimers]handle

func (t *timers) arm(id timerID, at time.Time) {
	t[id] = handle{at: at, armed: true}
}

func (t *timers) cancel(ids ...timerID) {
	for _, id := range ids {
		t[id] = handle{}
	}
}

// due returns the earliest armed timer at or before now
func (t *timers) due(now time.Time) (timerID, time.Time, bool) {
	best := timerID(-1)
	for id := timerFlip; id < numTimers; id++ {
		h := t[id]
		if !h.armed || h.at.After(now) {
			continue
		}
		if best < 0 || h.at.Before(t[best].at) {
			best = id
		}
	}
	if best < 0 {
		return 0, time.Time{}, false
	}
	return best, t[best].at, true
}

func (t *timers) next() (time.Time, bool) {
	var next time.Time
	found := false
	for _, h := range t {
		if h.armed && (!found || h.at.Before(next)) {
			next = h.at
			found = true
		}
	}
	return next, found
}

// Config controls carousel timing
type Config struct {
	FlipInterval      time.Duration
	InterruptEnabled  bool
	InterruptDuration time.Duration
	StartupGrace      time.Duration
	// Location decides where the wall-clock interrupt boundaries fall
	Location *time.Location
}

// ConfigFrom converts the forecast config section
func ConfigFrom(c types.ForecastConfig, loc *time.Location) Config {
	return Config{
		FlipInterval:      c.FlipInterval,
		InterruptEnabled:  c.InterruptEnabled,
		InterruptDuration: c.InterruptDuration,
		StartupGrace:      c.StartupGrace,
		Location:          loc,
	}
}

// Machine is the display mode state machine. It is not safe for concurrent
// use.
type Machine struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mode    Mode
	timers  timers
	version uint64
	applied bool
}

// NewMachine starts in the boot banner with the startup grace timer armed
// relative to now
func NewMachine(cfg Config, now time.Time, logger *slog.Logger, m *metrics.Metrics) *Machine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	mc := &Machine{
		cfg:     cfg,
		logger:  logger.With("component", "mode"),
		metrics: m,
		mode:    Static{Content: bootBanner},
		version: 1,
	}
	if cfg.StartupGrace > 0 {
		mc.timers.arm(timerGrace, now.Add(cfg.StartupGrace))
	}
	return mc
}

// Mode returns the active mode
func (m *Machine) Mode() Mode { return m.mode }

// Version increases with every transition
func (m *Machine) Version() uint64 { return m.version }

// NextDeadline returns when Advance next has work to do
func (m *Machine) NextDeadline() (time.Time, bool) {
	return m.timers.next()
}

// Armed returns the names of the armed timers
func (m *Machine) Armed() []string {
	var names []string
	for id, h := range m.timers {
		if h.armed {
			names = append(names, timerNames[id])
		}
	}
	return names
}

func (m *Machine) transition(to Mode, reason string) {
	from := m.mode.Name()
	m.mode = to
	m.version++
	m.metrics.ModeTransition(to.Name())
	m.logger.Info("mode transition", "from", from, "to", to.Name(), "reason", reason, "version", m.version)
}

// Apply handles an instruction and reports whether the mode changed
func (m *Machine) Apply(ins types.Instruction, now time.Time) bool {
	if ins.Kind == types.KindNoOp {
		return false
	}
	if !m.applied {
		m.applied = true
		m.timers.cancel(timerGrace)
	}

	switch ins.Kind {
	case types.KindFreeText:
		return m.showStatic(Content{Kind: ContentText, Lines: ins.Lines}, ins.String())
	case types.KindPreset:
		lines, ok := command.Preset(ins.Preset)
		if !ok {
			m.logger.Warn("unknown preset", "preset", ins.Preset)
			return false
		}
		return m.showStatic(Content{Kind: ContentPreset, Title: ins.Preset, Lines: lines}, ins.String())
	case types.KindWeather:
		return m.showStatic(Content{Kind: ContentWeather, Title: "Weather"}, ins.String())
	case types.KindForecast:
		switch m.mode.(type) {
		case Carousel, Interrupt:
			return false
		}
		m.startCarousel(now, ins.String())
		return true
	case types.KindOff:
		if _, ok := m.mode.(Off); ok {
			return false
		}
		m.timers.cancel(timerFlip, timerBoundary, timerInterrupt)
		m.transition(Off{}, ins.String())
		return true
	default:
		m.logger.Warn("unhandled instruction", "kind", ins.Kind)
		return false
	}
}

func (m *Machine) showStatic(c Content, reason string) bool {
	if s, ok := m.mode.(Static); ok && s.Content.equal(c) {
		return false
	}
	m.timers.cancel(timerFlip, timerBoundary, timerInterrupt)
	m.transition(Static{Content: c}, reason)
	return true
}

func (m *Machine) startCarousel(at time.Time, reason string) {
	c := Carousel{
		Set:        types.PanelsHourly,
		Index:      0,
		PhaseStart: at,
		Deadline:   at.Add(m.cfg.FlipInterval),
	}
	m.timers.cancel(timerInterrupt)
	m.timers.arm(timerFlip, c.Deadline)
	if m.cfg.InterruptEnabled {
		m.timers.arm(timerBoundary, NextBoundary(at, m.cfg.Location))
	}
	m.transition(c, reason)
}

// Advance fires every timer due at or before now, earliest first, and returns
// how many fired
func (m *Machine) Advance(now time.Time) int {
	fired := 0
	for {
		id, at, ok := m.timers.due(now)
		if !ok {
			return fired
		}
		m.timers.cancel(id)
		fired++

		switch id {
		case timerFlip:
			m.flip(at, now)
		case timerBoundary:
			m.interrupt(at)
		case timerInterrupt:
			m.resume(at, now)
		case timerGrace:
			if !m.applied {
				m.logger.Info("no instruction during startup grace, starting forecast")
				m.startCarousel(at, "startup grace")
			}
		}
	}
}

// rebase returns at, or now when the loop fell more than one flip interval
// behind
func (m *Machine) rebase(at, now time.Time) time.Time {
	if now.Sub(at) > m.cfg.FlipInterval {
		return now
	}
	return at
}

func (m *Machine) flip(at, now time.Time) {
	c, ok := m.mode.(Carousel)
	if !ok {
		return
	}
	c.Index++
	if c.Index >= PanelCount {
		c.Index = 0
		c.Set = c.Set.Toggle()
	}
	c.PhaseStart = m.rebase(at, now)
	c.Deadline = c.PhaseStart.Add(m.cfg.FlipInterval)
	m.timers.arm(timerFlip, c.Deadline)
	m.transition(c, "flip")
}

func (m *Machine) interrupt(at time.Time) {
	c, ok := m.mode.(Carousel)
	if !ok {
		return
	}
	i := Interrupt{
		Resume:   c,
		Started:  at,
		Deadline: at.Add(m.cfg.InterruptDuration),
	}
	m.timers.cancel(timerFlip)
	m.timers.arm(timerInterrupt, i.Deadline)
	m.transition(i, "interrupt boundary")
}

func (m *Machine) resume(at, now time.Time) {
	i, ok := m.mode.(Interrupt)
	if !ok {
		return
	}
	c := i.Resume
	c.PhaseStart = m.rebase(at, now)
	c.Deadline = c.PhaseStart.Add(m.cfg.FlipInterval)
	m.timers.arm(timerFlip, c.Deadline)
	if m.cfg.InterruptEnabled {
		m.timers.arm(timerBoundary, NextBoundary(c.PhaseStart, m.cfg.Location))
	}
	m.transition(c, "interrupt over")
}

// Intent returns the render intent for the active mode
func (m *Machine) Intent() types.Intent {
	in := types.Intent{Version: m.version}
	switch s := m.mode.(type) {
	case Static:
		in.Title = s.Content.Title
		in.Lines = s.Content.Lines
		if s.Content.Kind == ContentWeather {
			in.Kind = types.IntentWeather
		} else {
			in.Kind = types.IntentText
		}
	case Carousel:
		in.Kind = types.IntentForecast
		in.Panels = s.Set
		in.Panel = s.Index
		in.PhaseStart = s.PhaseStart
		in.PhaseEnd = s.Deadline
	case Interrupt:
		in.Kind = types.IntentConditions
		in.Panels = s.Resume.Set
		in.Panel = s.Resume.Index
		in.PhaseStart = s.Started
		in.PhaseEnd = s.Deadline
	case Off:
		in.Kind = types.IntentBlank
	}
	return in
}

// NextBoundary returns the first wall-clock time strictly after t whose
// minute is 8 modulo 10 and whose second is zero
func NextBoundary(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	minute := time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), 0, 0, loc)
	b := minute.Add(time.Duration((18-lt.Minute()%10)%10) * time.Minute)
	if !b.After(t) {
		b = b.Add(10 * time.Minute)
	}
	return b
}
