// Package command turns raw feed payloads into display instructions.
//
// A payload is either a control verb (a preset name, WEATHER, FORECAST, OFF, ...)
// or formatted text. Formatted text is one or more lines where a segment may be
// prefixed with {color}<size>, for example:
//
//	{2}<3>URGENT
//	{1}<2>Meeting at 3pm
//
// Lines without a prefix inherit the style of the previous line.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fkcurrie/led-matrix-display/internal/types"
)

const (
	// MaxColor is the highest palette index a prefix may select
	MaxColor = 27
	// MinSize and MaxSize bound the size tier a prefix may select
	MinSize = 1
	MaxSize = 4

	DefaultColor = 1
	DefaultSize  = 2
)

var (
	// ErrEmpty is returned for payloads that are blank after trimming
	ErrEmpty = errors.New("empty payload")
	// ErrInvalidFormat is returned when a style prefix is malformed
	ErrInvalidFormat = errors.New("invalid format")
)

// ParseError describes why a payload was rejected
type ParseError struct {
	Err    error
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%v: line %d: %s", e.Err, e.Line, e.Reason)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

var controlVerbs = map[string]types.Kind{
	"WEATHER":    types.KindWeather,
	"FORECAST":   types.KindForecast,
	"OFF":        types.KindOff,
	"BLANK":      types.KindOff,
	"SCREEN OFF": types.KindOff,
	"NOOP":       types.KindNoOp,
	"PING":       types.KindNoOp,
}

// Parse converts a raw payload into an instruction. It has no side effects.
func Parse(raw string) (types.Instruction, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return types.Instruction{}, &ParseError{Err: ErrEmpty}
	}

	verb := strings.ToUpper(trimmed)
	if _, ok := presets[verb]; ok {
		return types.Instruction{Kind: types.KindPreset, Preset: verb, Raw: raw}, nil
	}
	if kind, ok := controlVerbs[verb]; ok {
		return types.Instruction{Kind: kind, Raw: raw}, nil
	}

	lines, err := parseLines(trimmed)
	if err != nil {
		return types.Instruction{}, err
	}
	if len(lines) == 0 {
		return types.Instruction{}, &ParseError{Err: ErrEmpty, Reason: "no text after style prefixes"}
	}
	return types.Instruction{Kind: types.KindFreeText, Lines: lines, Raw: raw}, nil
}

// parseLines splits formatted text into styled lines. A prefix is only
// recognized at the start of a line; everything after it is kept verbatim.
// The style carries across line breaks until the next prefix.
func parseLines(text string) ([]types.Line, error) {
	style := types.Segment{Color: DefaultColor, Size: DefaultSize}
	var lines []types.Line

	for n, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		rest := raw
		trimmed := strings.TrimLeft(raw, " \t")
		end, color, size, ok, err := linePrefix(trimmed)
		if err != nil {
			return nil, &ParseError{Err: ErrInvalidFormat, Line: n + 1, Reason: err.Error()}
		}
		if ok {
			style.Color, style.Size = color, size
			rest = trimmed[end:]
		}
		if rest == "" {
			continue
		}

		seg := style
		seg.Text = rest
		lines = append(lines, types.Line{seg})
	}
	return lines, nil
}

// linePrefix reads a {color}<size> prefix at the start of s. ok is false when
// s does not open with one. A brace group immediately followed by an angle
// group is always a prefix, so bad values there are errors.
func linePrefix(s string) (end, color, size int, ok bool, err error) {
	if !strings.HasPrefix(s, "{") {
		return 0, 0, 0, false, nil
	}
	closeBrace := strings.IndexByte(s, '}')
	if closeBrace < 0 || closeBrace+1 >= len(s) || s[closeBrace+1] != '<' {
		return 0, 0, 0, false, nil
	}
	closeAngle := strings.IndexByte(s[closeBrace+1:], '>')
	if closeAngle < 0 {
		return 0, 0, 0, false, fmt.Errorf("unterminated size in %q", s)
	}
	closeAngle += closeBrace + 1

	colorStr := s[1:closeBrace]
	sizeStr := s[closeBrace+2 : closeAngle]

	color, err = strconv.Atoi(strings.TrimSpace(colorStr))
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("color %q is not an integer", colorStr)
	}
	if color < 0 || color > MaxColor {
		return 0, 0, 0, false, fmt.Errorf("color %d out of range 0-%d", color, MaxColor)
	}
	size, err = strconv.Atoi(strings.TrimSpace(sizeStr))
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("size %q is not an integer", sizeStr)
	}
	if size < MinSize || size > MaxSize {
		return 0, 0, 0, false, fmt.Errorf("size %d out of range %d-%d", size, MinSize, MaxSize)
	}
	return closeAngle + 1, color, size, true, nil
}
