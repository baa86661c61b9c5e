package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fkcurrie/led-matrix-display/internal/command"
	"github.com/fkcurrie/led-matrix-display/internal/logging"
	"github.com/fkcurrie/led-matrix-display/internal/metrics"
	"github.com/fkcurrie/led-matrix-display/internal/types"
)

func newTestReconciler(queue int) (*Reconciler, clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return NewReconciler(queue, time.Minute, clock, logging.Discard(), metrics.New()), clock
}

// drain returns everything currently queued
func drain(r *Reconciler) []types.Instruction {
	var out []types.Instruction
	for {
		select {
		case ins := <-r.Instructions():
			out = append(out, ins)
		default:
			return out
		}
	}
}

func TestReconcilerDeduplicatesAcrossSources(t *testing.T) {
	tests := []struct {
		name  string
		first types.Source
		then  types.Source
	}{
		{name: "push then pull", first: types.SourcePush, then: types.SourcePull},
		{name: "pull then push", first: types.SourcePull, then: types.SourcePush},
		{name: "push twice", first: types.SourcePush, then: types.SourcePush},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestReconciler(8)
			if err := r.Offer("BUSY", tt.first); err != nil {
				t.Fatal(err)
			}
			if err := r.Offer(" busy ", tt.then); err != nil {
				t.Fatal(err)
			}
			got := drain(r)
			if len(got) != 1 {
				t.Fatalf("forwarded %d instructions, want 1", len(got))
			}
			if got[0].Source != tt.first || got[0].Preset != "BUSY" {
				t.Errorf("forwarded %+v", got[0])
			}
		})
	}
}

func TestReconcilerForwardsChanges(t *testing.T) {
	r, _ := newTestReconciler(8)
	for _, raw := range []string{"BUSY", "FREE", "BUSY", "OFF", "OFF", "{2}<3>Hi", "{2}<3>Hi", "{3}<3>Hi"} {
		_ = r.Offer(raw, types.SourcePush)
	}

	var kinds []string
	for _, ins := range drain(r) {
		kinds = append(kinds, ins.String())
	}
	want := []string{"preset(BUSY)", "preset(FREE)", "preset(BUSY)", "off", `text("Hi")`, `text("Hi")`}
	if len(kinds) != len(want) {
		t.Fatalf("forwarded %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("instruction %d = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestReconcilerSequencesPerSource(t *testing.T) {
	r, _ := newTestReconciler(16)
	_ = r.Offer("BUSY", types.SourcePush)
	_ = r.Offer("FREE", types.SourcePull)
	_ = r.Offer("QUIET", types.SourcePush)
	r.Submit(types.Instruction{Kind: types.KindForecast, Source: types.SourceScheduled})
	_ = r.Offer("KNOCK", types.SourcePull)

	last := map[types.Source]uint64{}
	for _, ins := range drain(r) {
		if ins.Sequence <= last[ins.Source] {
			t.Errorf("%s sequence %d not increasing after %d", ins.Source, ins.Sequence, last[ins.Source])
		}
		last[ins.Source] = ins.Sequence
		if ins.ReceivedAt.IsZero() {
			t.Errorf("instruction %v has no receive time", ins)
		}
	}
	if last[types.SourcePush] != 2 || last[types.SourcePull] != 2 || last[types.SourceScheduled] != 1 {
		t.Errorf("final sequences = %v", last)
	}
}

func TestReconcilerNewestWins(t *testing.T) {
	r, _ := newTestReconciler(2)
	for _, raw := range []string{"ON-CALL", "FREE", "BUSY", "QUIET"} {
		_ = r.Offer(raw, types.SourcePush)
	}
	got := drain(r)
	if len(got) != 2 {
		t.Fatalf("queued %d, want 2", len(got))
	}
	if got[0].Preset != "BUSY" || got[1].Preset != "QUIET" {
		t.Errorf("queued %v, %v; want BUSY, QUIET", got[0], got[1])
	}
}

func TestReconcilerRejectsBadPayloads(t *testing.T) {
	r, _ := newTestReconciler(8)

	if err := r.Offer("{40}<2>bad", types.SourcePush); !errors.Is(err, command.ErrInvalidFormat) {
		t.Errorf("Offer() error = %v, want ErrInvalidFormat", err)
	}
	if err := r.Offer("   ", types.SourcePull); !errors.Is(err, command.ErrEmpty) {
		t.Errorf("Offer() error = %v, want ErrEmpty", err)
	}
	if got := drain(r); len(got) != 0 {
		t.Errorf("rejected payloads were forwarded: %v", got)
	}

	// A rejection does not reset the duplicate baseline
	_ = r.Offer("BUSY", types.SourcePush)
	_ = r.Offer("{40}<2>bad", types.SourcePush)
	_ = r.Offer("BUSY", types.SourcePull)
	if got := drain(r); len(got) != 1 {
		t.Errorf("forwarded %d, want 1", len(got))
	}
}

func TestReconcilerNoOpIsNotABaseline(t *testing.T) {
	r, _ := newTestReconciler(8)
	_ = r.Offer("BUSY", types.SourcePush)
	_ = r.Offer("PING", types.SourcePush)
	_ = r.Offer("BUSY", types.SourcePull)

	got := drain(r)
	if len(got) != 2 || got[0].Kind != types.KindPreset || got[1].Kind != types.KindNoOp {
		t.Errorf("forwarded %v, want preset then noop", got)
	}
}

func TestReconcilerPushLiveness(t *testing.T) {
	r, clock := newTestReconciler(8)

	if r.PushDegraded() {
		t.Error("push degraded right after start")
	}
	clock.Advance(61 * time.Second)
	if !r.PushDegraded() {
		t.Error("push not degraded after a silent liveness window")
	}

	_ = r.Offer("BUSY", types.SourcePush)
	if r.PushDegraded() {
		t.Error("push still degraded after a message")
	}

	r.PushActivity(false)
	clock.Advance(30 * time.Second)
	if r.PushDegraded() {
		t.Error("push degraded before the window elapsed")
	}
	clock.Advance(31 * time.Second)
	h := r.Health()
	if !h.PushDegraded || h.PushConnected {
		t.Errorf("Health() = %+v, want degraded and disconnected", h)
	}
	if h.LastForwarded == nil || h.LastForwarded.Preset != "BUSY" {
		t.Errorf("Health().LastForwarded = %v", h.LastForwarded)
	}

	// Pull traffic does not count as push liveness
	_ = r.Offer("FREE", types.SourcePull)
	if !r.PushDegraded() {
		t.Error("pull message cleared push degradation")
	}
}

func TestReconcilerWithoutPush(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewReconciler(4, 0, clock, logging.Discard(), nil)
	if !r.PushDegraded() {
		t.Error("reconciler without push transport reports healthy push")
	}
	_ = r.Offer("WEATHER", types.SourcePull)
	if got := drain(r); len(got) != 1 {
		t.Errorf("forwarded %d, want 1", len(got))
	}
}
