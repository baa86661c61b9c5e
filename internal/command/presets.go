package command

import (
	"sort"

	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// Preset size tiers go beyond MaxSize; tiers 5 and 6 are only reachable here.
var presets = map[string][]types.Line{
	"ON-CALL": {
		{{Text: "ON-CALL", Color: 2, Size: 4}},
		{{Text: "Urgent", Color: 1, Size: 3}},
		{{Text: "Needs Only", Color: 1, Size: 2}},
	},
	"FREE": {
		{{Text: "FREE", Color: 3, Size: 6}},
		{{Text: "But Knock", Color: 1, Size: 3}},
	},
	"BUSY": {
		{{Text: "BUSY", Color: 2, Size: 3}},
		{{Text: "DO NOT", Color: 2, Size: 3}},
		{{Text: "ENTER", Color: 2, Size: 3}},
	},
	"QUIET": {
		{{Text: "QUIET", Color: 9, Size: 6}},
		{{Text: "MEETING IN", Color: 22, Size: 2}},
		{{Text: "PROGRESS", Color: 22, Size: 2}},
	},
	"KNOCK": {
		{{Text: "KNOCK", Color: 9, Size: 4}},
		{{Text: "MEETING IN", Color: 22, Size: 2}},
		{{Text: "PROGRESS", Color: 22, Size: 2}},
	},
}

// Preset returns the layout of a named preset
func Preset(name string) ([]types.Line, bool) {
	lines, ok := presets[name]
	if !ok {
		return nil, false
	}
	out := make([]types.Line, len(lines))
	for i, l := range lines {
		out[i] = append(types.Line(nil), l...)
	}
	return out, true
}

// Presets returns the preset names in sorted order
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
