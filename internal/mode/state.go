// Package mode owns what the display is doing: the display mode, its timers
// and the render intent derived from them.
//
// A Machine is a plain value with no goroutines of its own. The Engine is its
// only caller and serializes instructions, timer expiries and schedule
// triggers through one loop.
package mode

import (
	"time"

	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// Mode is one of Static, Carousel, Interrupt or Off
type Mode interface {
	Name() string
	isMode()
}

// ContentKind identifies what a Static mode is showing
type ContentKind int

const (
	ContentBanner ContentKind = iota
	ContentText
	ContentPreset
	ContentWeather
)

// Content is what a Static mode shows
type Content struct {
	Kind  ContentKind
	Title string
	Lines []types.Line
}

func (c Content) equal(o Content) bool {
	if c.Kind != o.Kind || c.Title != o.Title || len(c.Lines) != len(o.Lines) {
		return false
	}
	for i := range c.Lines {
		if len(c.Lines[i]) != len(o.Lines[i]) {
			return false
		}
		for j := range c.Lines[i] {
			if c.Lines[i][j] != o.Lines[i][j] {
				return false
			}
		}
	}
	return true
}

// Static shows fixed content until the next instruction
type Static struct {
	Content Content
}

// Carousel cycles through forecast panels
type Carousel struct {
	Set        types.PanelSet
	Index      int
	PhaseStart time.Time
	Deadline   time.Time
}

// Interrupt temporarily shows current conditions over a carousel
type Interrupt struct {
	Resume   Carousel
	Started  time.Time
	Deadline time.Time
}

// Off blanks the display
type Off struct{}

func (Static) Name() string    { return "static" }
func (Carousel) Name() string  { return "carousel" }
func (Interrupt) Name() string { return "interrupt" }
func (Off) Name() string       { return "off" }

func (Static) isMode()    {}
func (Carousel) isMode()  {}
func (Interrupt) isMode() {}
func (Off) isMode()       {}

// PanelCount is the number of panels in each forecast set
const PanelCount = 3

var bootBanner = Content{
	Kind:  ContentBanner,
	Title: "Connecting",
	Lines: []types.Line{
		{{Text: "Connecting", Color: 1, Size: 2}},
	},
}
