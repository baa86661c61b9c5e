package command

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/fkcurrie/led-matrix-display/internal/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    types.Instruction
		wantErr error
	}{
		{
			name: "preset",
			raw:  "BUSY",
			want: types.Instruction{Kind: types.KindPreset, Preset: "BUSY"},
		},
		{
			name: "preset is case insensitive and trimmed",
			raw:  " busy ",
			want: types.Instruction{Kind: types.KindPreset, Preset: "BUSY"},
		},
		{
			name: "hyphenated preset",
			raw:  "on-call",
			want: types.Instruction{Kind: types.KindPreset, Preset: "ON-CALL"},
		},
		{
			name: "weather",
			raw:  "Weather\n",
			want: types.Instruction{Kind: types.KindWeather},
		},
		{
			name: "forecast",
			raw:  "FORECAST",
			want: types.Instruction{Kind: types.KindForecast},
		},
		{
			name: "off",
			raw:  "off",
			want: types.Instruction{Kind: types.KindOff},
		},
		{
			name: "blank",
			raw:  "BLANK",
			want: types.Instruction{Kind: types.KindOff},
		},
		{
			name: "screen off",
			raw:  "Screen Off",
			want: types.Instruction{Kind: types.KindOff},
		},
		{
			name: "ping",
			raw:  "ping",
			want: types.Instruction{Kind: types.KindNoOp},
		},
		{
			name: "two styled lines",
			raw:  "{2}<3>URGENT\n{1}<2>Meeting at 3pm",
			want: types.Instruction{Kind: types.KindFreeText, Lines: []types.Line{
				{{Text: "URGENT", Color: 2, Size: 3}},
				{{Text: "Meeting at 3pm", Color: 1, Size: 2}},
			}},
		},
		{
			name: "plain text uses defaults",
			raw:  "Hello",
			want: types.Instruction{Kind: types.KindFreeText, Lines: []types.Line{
				{{Text: "Hello", Color: DefaultColor, Size: DefaultSize}},
			}},
		},
		{
			name: "unprefixed line inherits previous style",
			raw:  "{5}<1>Lunch\nback at 2",
			want: types.Instruction{Kind: types.KindFreeText, Lines: []types.Line{
				{{Text: "Lunch", Color: 5, Size: 1}},
				{{Text: "back at 2", Color: 5, Size: 1}},
			}},
		},
		{
			name: "mid line prefix is literal text",
			raw:  "{1}<2>Sale {5}<2> off",
			want: types.Instruction{Kind: types.KindFreeText, Lines: []types.Line{
				{{Text: "Sale {5}<2> off", Color: 1, Size: 2}},
			}},
		},
		{
			name: "malformed mid line group is literal text",
			raw:  "{1}<2>use {x}<y> here",
			want: types.Instruction{Kind: types.KindFreeText, Lines: []types.Line{
				{{Text: "use {x}<y> here", Color: 1, Size: 2}},
			}},
		},
		{
			name: "indented prefix",
			raw:  "top\n  {3}<1>next",
			want: types.Instruction{Kind: types.KindFreeText, Lines: []types.Line{
				{{Text: "top", Color: DefaultColor, Size: DefaultSize}},
				{{Text: "next", Color: 3, Size: 1}},
			}},
		},
		{
			name: "blank lines are skipped",
			raw:  "one\r\n\r\n{4}<2>two",
			want: types.Instruction{Kind: types.KindFreeText, Lines: []types.Line{
				{{Text: "one", Color: DefaultColor, Size: DefaultSize}},
				{{Text: "two", Color: 4, Size: 2}},
			}},
		},
		{
			name: "braces without size are literal",
			raw:  "Meet in {lobby}",
			want: types.Instruction{Kind: types.KindFreeText, Lines: []types.Line{
				{{Text: "Meet in {lobby}", Color: DefaultColor, Size: DefaultSize}},
			}},
		},
		{name: "empty", raw: "", wantErr: ErrEmpty},
		{name: "whitespace", raw: " \n\t ", wantErr: ErrEmpty},
		{name: "prefix only", raw: "{2}<3>", wantErr: ErrEmpty},
		{name: "color out of range", raw: "{28}<2>hi", wantErr: ErrInvalidFormat},
		{name: "negative color", raw: "{-1}<2>hi", wantErr: ErrInvalidFormat},
		{name: "size out of range", raw: "{2}<5>hi", wantErr: ErrInvalidFormat},
		{name: "size zero", raw: "{2}<0>hi", wantErr: ErrInvalidFormat},
		{name: "non integer color", raw: "{red}<2>hi", wantErr: ErrInvalidFormat},
		{name: "non integer size", raw: "{2}<big>hi", wantErr: ErrInvalidFormat},
		{name: "unterminated size", raw: "{2}<3hi", wantErr: ErrInvalidFormat},
		{name: "bad second line rejects all", raw: "{2}<3>ok\n{99}<1>bad", wantErr: ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				}
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Errorf("Parse() error type = %T, want *ParseError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error = %v", err)
			}
			if got.Raw != tt.raw {
				t.Errorf("Parse().Raw = %q, want %q", got.Raw, tt.raw)
			}
			got.Raw = ""
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseRoundTripsText(t *testing.T) {
	texts := []string{
		"URGENT", "a", "Back @ 3:15pm!", "x y  z", "{not a prefix",
		"Sale {5}<2> off", "use {x}<y> here", "{1}<2>", " {99}<9> inner",
	}
	for color := 0; color <= MaxColor; color++ {
		for size := MinSize; size <= MaxSize; size++ {
			for _, text := range texts {
				raw := fmt.Sprintf("{%d}<%d>%s", color, size, text)
				got, err := Parse(raw)
				if err != nil {
					t.Fatalf("Parse(%q) error = %v", raw, err)
				}
				if len(got.Lines) != 1 || len(got.Lines[0]) != 1 {
					t.Fatalf("Parse(%q) lines = %+v, want one segment", raw, got.Lines)
				}
				seg := got.Lines[0][0]
				if seg.Text != text || seg.Color != color || seg.Size != size {
					t.Errorf("Parse(%q) = %+v", raw, seg)
				}
			}
		}
	}
}

func TestPreset(t *testing.T) {
	for _, name := range Presets() {
		lines, ok := Preset(name)
		if !ok || len(lines) == 0 {
			t.Errorf("Preset(%q) = %v, %v", name, lines, ok)
		}
		ins, err := Parse(name)
		if err != nil || ins.Kind != types.KindPreset || ins.Preset != name {
			t.Errorf("Parse(%q) = %+v, %v", name, ins, err)
		}
	}

	lines, _ := Preset("BUSY")
	lines[0][0].Text = "changed"
	again, _ := Preset("BUSY")
	if again[0][0].Text != "BUSY" {
		t.Error("Preset() returned shared storage")
	}

	if _, ok := Preset("LUNCH"); ok {
		t.Error("Preset() found unknown preset")
	}
}

func ExampleParse() {
	ins, err := Parse("{2}<3>URGENT\n{1}<2>Meeting at 3pm")
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, line := range ins.Lines {
		for _, seg := range line {
			fmt.Printf("color=%d size=%d %s\n", seg.Color, seg.Size, seg.Text)
		}
	}
	// Output:
	// color=2 size=3 URGENT
	// color=1 size=2 Meeting at 3pm
}
