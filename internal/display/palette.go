package display

import "image/color"

// PaletteSize is the number of addressable colors
const PaletteSize = 28

// Palette maps color indexes from the command language to RGB values
type Palette [PaletteSize]color.RGBA

// Palette indexes used by the built-in screens
const (
	ColorBlack    = 0
	ColorWhite    = 1
	ColorRed      = 2
	ColorGreen    = 3
	ColorBlue     = 4
	ColorOrange   = 5
	ColorSkyBlue  = 13
	ColorGold     = 14
	ColorKhaki    = 22
	ColorLightSea = 27
)

// DayPalette is the full brightness palette
var DayPalette = Palette{
	{0, 0, 0, 255},       // black
	{255, 255, 255, 255}, // white
	{255, 0, 0, 255},     // red
	{0, 255, 0, 255},     // green
	{0, 0, 255, 255},     // blue
	{255, 128, 0, 255},   // yellow/orange
	{255, 0, 255, 255},   // magenta
	{0, 255, 255, 255},   // cyan
	{255, 69, 0, 255},    // orange red
	{128, 0, 255, 255},   // purple
	{255, 105, 180, 255}, // hot pink
	{50, 205, 50, 255},   // lime green
	{255, 20, 147, 255},  // deep pink
	{0, 191, 255, 255},   // deep sky blue
	{255, 215, 0, 255},   // gold
	{255, 69, 0, 255},    // orange red
	{147, 112, 219, 255}, // medium purple
	{0, 250, 154, 255},   // medium spring green
	{255, 99, 71, 255},   // tomato
	{64, 224, 208, 255},  // turquoise
	{218, 112, 214, 255}, // orchid
	{152, 251, 152, 255}, // pale green
	{240, 230, 140, 255}, // khaki
	{221, 160, 221, 255}, // plum
	{135, 206, 235, 255}, // sky blue
	{245, 222, 179, 255}, // wheat
	{255, 160, 122, 255}, // light salmon
	{32, 178, 170, 255},  // light sea green
}

// NightDivisor is how much every channel is divided by at night
const NightDivisor = 4

// NightPalette is DayPalette dimmed for night
var NightPalette = DayPalette.Dim(NightDivisor)

// Dim returns a copy of the palette with every channel divided by div
func (p Palette) Dim(div uint8) Palette {
	var out Palette
	for i, c := range p {
		out[i] = dim(c, div)
	}
	return out
}

// Color returns the color at index i, or white when i is out of range
func (p Palette) Color(i int) color.RGBA {
	if i < 0 || i >= PaletteSize {
		return p[ColorWhite]
	}
	return p[i]
}

func dim(c color.RGBA, div uint8) color.RGBA {
	if div <= 1 {
		return c
	}
	return color.RGBA{R: c.R / div, G: c.G / div, B: c.B / div, A: c.A}
}

// Scheme is the palette and brightness for the time of day
type Scheme struct {
	Night      bool
	Palette    Palette
	Brightness int
}

// SchemeFor returns the day or night scheme
func SchemeFor(night bool, cfg Brightness) Scheme {
	if night {
		return Scheme{Night: true, Palette: NightPalette, Brightness: cfg.Night}
	}
	return Scheme{Palette: DayPalette, Brightness: cfg.Day}
}

// Brightness holds the panel brightness in percent by day and by night
type Brightness struct {
	Day   int
	Night int
}
