package types

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies what a display instruction asks for
type Kind int

const (
	KindNoOp Kind = iota
	KindFreeText
	KindPreset
	KindWeather
	KindForecast
	KindOff
)

var kindNames = map[Kind]string{
	KindNoOp:     "noop",
	KindFreeText: "text",
	KindPreset:   "preset",
	KindWeather:  "weather",
	KindForecast: "forecast",
	KindOff:      "off",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Source identifies the transport an instruction arrived on
type Source int

const (
	SourcePush Source = iota
	SourcePull
	SourceScheduled
)

func (s Source) String() string {
	switch s {
	case SourcePush:
		return "push"
	case SourcePull:
		return "pull"
	case SourceScheduled:
		return "scheduled"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Segment is a run of text drawn with a single palette color and size tier
type Segment struct {
	Text  string
	Color int
	Size  int
}

// Line is an ordered sequence of segments drawn left to right
type Line []Segment

// Text returns the concatenated text of all segments
func (l Line) Text() string {
	var b strings.Builder
	for _, s := range l {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Instruction represents a parsed display instruction
type Instruction struct {
	Kind   Kind
	Lines  []Line
	Preset string
	Raw    string

	// Stamped by the reconciler
	Source     Source
	Sequence   uint64
	ReceivedAt time.Time
}

// SameContent reports whether two instructions carry the same kind and payload.
// Transport metadata is ignored.
func (i Instruction) SameContent(o Instruction) bool {
	if i.Kind != o.Kind || i.Preset != o.Preset || len(i.Lines) != len(o.Lines) {
		return false
	}
	for n := range i.Lines {
		if !equalLine(i.Lines[n], o.Lines[n]) {
			return false
		}
	}
	return true
}

func equalLine(a, b Line) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (i Instruction) String() string {
	switch i.Kind {
	case KindPreset:
		return fmt.Sprintf("preset(%s)", i.Preset)
	case KindFreeText:
		parts := make([]string, 0, len(i.Lines))
		for _, l := range i.Lines {
			parts = append(parts, l.Text())
		}
		return fmt.Sprintf("text(%q)", strings.Join(parts, " / "))
	default:
		return i.Kind.String()
	}
}
