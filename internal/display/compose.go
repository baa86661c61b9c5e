package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/fkcurrie/led-matrix-display/internal/types"
	"github.com/fkcurrie/led-matrix-display/internal/weather"
)

const (
	lineSpacing = 2
	iconSize    = 20
	bigIconSize = 24
)

// Composer draws render intents into an image
type Composer struct {
	fonts *Fonts
	icons *Icons
}

// NewComposer creates a composer
func NewComposer(fonts *Fonts, icons *Icons) *Composer {
	return &Composer{fonts: fonts, icons: icons}
}

// Frame is everything a composition depends on besides the intent
type Frame struct {
	Scheme  Scheme
	Weather types.Snapshot
	// HasWeather is false when no fresh snapshot is available
	HasWeather bool
	Now        time.Time
}

// Compose draws intent into dst, which is cleared first
func (c *Composer) Compose(dst *image.RGBA, in types.Intent, f Frame) error {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)

	switch in.Kind {
	case types.IntentBlank:
		return nil
	case types.IntentText:
		c.drawLines(dst, in.Lines, f.Scheme.Palette)
		return nil
	case types.IntentWeather:
		return c.drawConditions(dst, f)
	case types.IntentConditions:
		err := c.drawConditions(dst, f)
		c.drawProgress(dst, in.Progress(f.Now), f.Scheme.Palette)
		return err
	case types.IntentForecast:
		err := c.drawPanel(dst, in.Panels, in.Panel, f)
		c.drawProgress(dst, in.Progress(f.Now), f.Scheme.Palette)
		return err
	default:
		return fmt.Errorf("unknown intent kind %v", in.Kind)
	}
}

// lineMetrics returns the width and height of a line in pixels
func (c *Composer) lineMetrics(l types.Line) (width, height int) {
	for _, s := range l {
		width += c.fonts.Measure(s.Size, s.Text)
		if h := c.fonts.Height(s.Size); h > height {
			height = h
		}
	}
	return width, height
}

// drawLines centers each line horizontally and the whole stack vertically
func (c *Composer) drawLines(dst *image.RGBA, lines []types.Line, p Palette) {
	b := dst.Bounds()
	if len(lines) == 0 {
		return
	}

	widths := make([]int, len(lines))
	heights := make([]int, len(lines))
	total := lineSpacing * (len(lines) - 1)
	for i, l := range lines {
		widths[i], heights[i] = c.lineMetrics(l)
		total += heights[i]
	}

	y := b.Min.Y + (b.Dy()-total)/2
	if y < b.Min.Y {
		y = b.Min.Y
	}
	for i, l := range lines {
		x := b.Min.X + (b.Dx()-widths[i])/2
		for _, s := range l {
			// Smaller segments sit on the bottom of the line box
			top := y + heights[i] - c.fonts.Height(s.Size)
			x += c.fonts.Draw(dst, s.Size, x, top, s.Text, p.Color(s.Color))
		}
		y += heights[i] + lineSpacing
	}
}

func (c *Composer) drawUnavailable(dst *image.RGBA, title string, p Palette) {
	c.drawLines(dst, []types.Line{
		{{Text: title, Color: ColorWhite, Size: 2}},
		{{Text: "Unavailable", Color: ColorWhite, Size: 1}},
	}, p)
}

func (c *Composer) drawIcon(dst *image.RGBA, condition string, size int, at image.Point, night bool) error {
	icon, err := c.icons.Icon(condition, size, night)
	if err != nil {
		return err
	}
	r := image.Rectangle{Min: at, Max: at.Add(icon.Bounds().Size())}
	draw.Draw(dst, r, icon, image.Point{}, draw.Over)
	return nil
}

// drawConditions shows current conditions: temperature top left, icon top
// right and feels-like, wind and humidity below
func (c *Composer) drawConditions(dst *image.RGBA, f Frame) error {
	p := f.Scheme.Palette
	if !f.HasWeather {
		c.drawUnavailable(dst, "Weather", p)
		return nil
	}
	cur := f.Weather.Current
	b := dst.Bounds()

	err := c.drawIcon(dst, cur.Condition, bigIconSize, image.Pt(b.Max.X-bigIconSize, b.Min.Y), f.Scheme.Night)

	c.fonts.Draw(dst, 3, b.Min.X+1, b.Min.Y, fmt.Sprintf("%dF", cur.TempF), p.Color(weather.TempColor(cur.TempF)))
	white := p.Color(ColorWhite)
	c.fonts.Draw(dst, 1, b.Min.X+1, b.Min.Y+12, fmt.Sprintf("FL:%dF", cur.FeelsLikeF), white)
	c.fonts.Draw(dst, 1, b.Min.X+1, b.Min.Y+18, weather.FormatWind(cur.WindDeg, cur.WindMPH), white)
	c.fonts.Draw(dst, 1, b.Min.X+1, b.Min.Y+24, fmt.Sprintf("H:%d%%", cur.Humidity), white)
	return err
}

type panel struct {
	label     string
	condition string
	high      int
	low       int
	hasLow    bool
	precip    int
}

// panelFor resolves one forecast panel. Hourly panels are now, +6h and +12h;
// daily panels are today and the next two days.
func panelFor(snap types.Snapshot, set types.PanelSet, index int) (panel, bool) {
	if set == types.PanelsDaily {
		if index >= len(snap.Daily) {
			return panel{}, false
		}
		d := snap.Daily[index]
		label := strings.ToUpper(d.Date.Format("Mon"))
		if d.DayOffset == 0 {
			label = "TODAY"
		}
		return panel{label: label, condition: d.Condition, high: d.HighF, low: d.LowF, hasLow: true, precip: d.PrecipChance}, true
	}

	if index == 0 {
		cur := snap.Current
		return panel{label: "NOW", condition: cur.Condition, high: cur.TempF, precip: cur.PrecipChance}, true
	}
	if index-1 >= len(snap.Hourly) {
		return panel{}, false
	}
	h := snap.Hourly[index-1]
	return panel{label: fmt.Sprintf("+%dH", h.HoursAhead), condition: h.Condition, high: h.TempF, precip: h.PrecipChance}, true
}

func (c *Composer) drawPanel(dst *image.RGBA, set types.PanelSet, index int, f Frame) error {
	p := f.Scheme.Palette
	if !f.HasWeather {
		c.drawUnavailable(dst, "Forecast", p)
		return nil
	}
	pn, ok := panelFor(f.Weather, set, index)
	if !ok {
		c.drawUnavailable(dst, "Forecast", p)
		return nil
	}
	b := dst.Bounds()

	c.fonts.Draw(dst, 1, b.Min.X+1, b.Min.Y, pn.label, p.Color(ColorWhite))
	precip := fmt.Sprintf("%d%%", pn.precip)
	c.fonts.Draw(dst, 1, b.Max.X-1-c.fonts.Measure(1, precip), b.Min.Y, precip, p.Color(ColorSkyBlue))

	err := c.drawIcon(dst, pn.condition, iconSize, image.Pt(b.Min.X+1, b.Min.Y+8), f.Scheme.Night)

	x := b.Min.X + iconSize + 4
	if pn.hasLow {
		c.fonts.Draw(dst, 2, x, b.Min.Y+9, fmt.Sprintf("H%d", pn.high), p.Color(weather.TempColor(pn.high)))
		c.fonts.Draw(dst, 2, x, b.Min.Y+19, fmt.Sprintf("L%d", pn.low), p.Color(weather.TempColor(pn.low)))
	} else {
		c.fonts.Draw(dst, 3, x, b.Min.Y+12, fmt.Sprintf("%dF", pn.high), p.Color(weather.TempColor(pn.high)))
	}
	return err
}

// drawProgress draws the phase progress along the bottom row
func (c *Composer) drawProgress(dst *image.RGBA, progress float64, p Palette) {
	b := dst.Bounds()
	w := int(math.Round(progress * float64(b.Dx())))
	col := p.Color(ColorSkyBlue)
	for x := b.Min.X; x < b.Min.X+w; x++ {
		dst.SetRGBA(x, b.Max.Y-1, col)
	}
}
