// Package schedule turns time-of-day rules into display instructions.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fkcurrie/led-matrix-display/internal/command"
	"github.com/fkcurrie/led-matrix-display/internal/config"
	"github.com/fkcurrie/led-matrix-display/internal/types"
)

type rule struct {
	name     string
	schedule cron.Schedule
	ins      types.Instruction
	fired    time.Time
}

// Scheduler evaluates a fixed set of rules. It is not safe for concurrent
// use; the engine owns it.
type Scheduler struct {
	rules []*rule
}

// New compiles rules. Every rule with an invalid cron expression or command
// is reported as a *config.ConfigError.
func New(rules []types.ScheduleRule) (*Scheduler, error) {
	s := &Scheduler{}
	var errs []error
	for i, r := range rules {
		field := fmt.Sprintf("schedule.rules[%d]", i)

		sched, err := cron.ParseStandard(r.Cron)
		if err != nil {
			errs = append(errs, &config.ConfigError{Field: field + ".cron", Reason: err.Error()})
			continue
		}
		ins, err := command.Parse(r.Command)
		if err != nil {
			errs = append(errs, &config.ConfigError{Field: field + ".command", Reason: err.Error()})
			continue
		}
		ins.Source = types.SourceScheduled
		s.rules = append(s.rules, &rule{name: r.Name, schedule: sched, ins: ins})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// Len returns the number of compiled rules
func (s *Scheduler) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Next returns the earliest trigger of any rule strictly after t. It returns
// the zero time when there are no rules.
func (s *Scheduler) Next(t time.Time) time.Time {
	var next time.Time
	if s == nil {
		return next
	}
	for _, r := range s.rules {
		n := r.schedule.Next(t)
		if n.IsZero() {
			continue
		}
		if next.IsZero() || n.Before(next) {
			next = n
		}
	}
	return next
}

// Trigger is a rule that came due
type Trigger struct {
	Rule        string
	Instruction types.Instruction
}

// Due returns every rule that triggers in the minute containing now. A rule
// fires at most once per minute no matter how often Due is called.
func (s *Scheduler) Due(now time.Time) []Trigger {
	if s == nil {
		return nil
	}
	minute := now.Truncate(time.Minute)
	var out []Trigger
	for _, r := range s.rules {
		if !r.schedule.Next(minute.Add(-time.Second)).Equal(minute) {
			continue
		}
		if r.fired.Equal(minute) {
			continue
		}
		r.fired = minute
		out = append(out, Trigger{Rule: r.name, Instruction: r.ins})
	}
	return out
}
