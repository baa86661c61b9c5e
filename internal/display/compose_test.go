package display

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/fkcurrie/led-matrix-display/internal/types"
	"github.com/fkcurrie/led-matrix-display/internal/weather"
)

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	fonts, err := LoadFonts("")
	if err != nil {
		t.Fatalf("LoadFonts() error = %v", err)
	}
	return NewComposer(fonts, NewIcons())
}

func lit(c color.RGBA) bool {
	return c.R != 0 || c.G != 0 || c.B != 0
}

// inkBounds returns the bounding box of all non-black pixels
func inkBounds(img *image.RGBA) image.Rectangle {
	var r image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if lit(img.RGBAAt(x, y)) {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func testSnapshot(now time.Time) types.Snapshot {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return types.Snapshot{
		Current: types.Conditions{
			TempF: 72, FeelsLikeF: 70, Humidity: 40, WindMPH: 7, WindDeg: 310,
			Condition: weather.MostlyCloudy,
		},
		Hourly: []types.HourlyForecast{
			{HoursAhead: 6, TempF: 52, Condition: weather.Clear},
			{HoursAhead: 12, TempF: 60, Condition: weather.LightRain, PrecipChance: 60},
		},
		Daily: []types.DailyForecast{
			{DayOffset: 0, Date: day, HighF: 54, LowF: 51, Condition: weather.Clear, PrecipChance: 60},
			{DayOffset: 1, Date: day.AddDate(0, 0, 1), HighF: 60, LowF: 49, Condition: weather.Rain},
			{DayOffset: 2, Date: day.AddDate(0, 0, 2), HighF: 65, LowF: 50, Condition: weather.Snow},
		},
		FetchedAt: now,
	}
}

func TestComposeBlank(t *testing.T) {
	c := newTestComposer(t)
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	img.SetRGBA(3, 3, color.RGBA{255, 0, 0, 255})

	if err := c.Compose(img, types.Intent{Kind: types.IntentBlank}, Frame{Scheme: SchemeFor(false, Brightness{})}); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if r := inkBounds(img); !r.Empty() {
		t.Errorf("blank frame has ink at %v", r)
	}
}

func TestComposeTextCentered(t *testing.T) {
	c := newTestComposer(t)
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	in := types.Intent{Kind: types.IntentText, Lines: []types.Line{
		{{Text: "HI", Color: ColorRed, Size: 2}},
	}}

	if err := c.Compose(img, in, Frame{Scheme: SchemeFor(false, Brightness{})}); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	r := inkBounds(img)
	if r.Empty() {
		t.Fatal("nothing drawn")
	}
	left, right := r.Min.X, 64-r.Max.X
	if abs(left-right) > 3 {
		t.Errorf("horizontal margins %d/%d are not centered", left, right)
	}
	top, bottom := r.Min.Y, 32-r.Max.Y
	if abs(top-bottom) > 4 {
		t.Errorf("vertical margins %d/%d are not centered", top, bottom)
	}

	var red bool
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y) == DayPalette[ColorRed] {
				red = true
			}
		}
	}
	if !red {
		t.Error("no pixel in the segment color")
	}
}

func TestComposeStackedLines(t *testing.T) {
	c := newTestComposer(t)
	one := image.NewRGBA(image.Rect(0, 0, 64, 32))
	two := image.NewRGBA(image.Rect(0, 0, 64, 32))
	scheme := SchemeFor(false, Brightness{})

	line := types.Line{{Text: "AB", Color: ColorWhite, Size: 1}}
	if err := c.Compose(one, types.Intent{Kind: types.IntentText, Lines: []types.Line{line}}, Frame{Scheme: scheme}); err != nil {
		t.Fatal(err)
	}
	if err := c.Compose(two, types.Intent{Kind: types.IntentText, Lines: []types.Line{line, line}}, Frame{Scheme: scheme}); err != nil {
		t.Fatal(err)
	}

	r1, r2 := inkBounds(one), inkBounds(two)
	if r2.Dy() <= r1.Dy()+lineSpacing {
		t.Errorf("two lines span %d rows, one line spans %d", r2.Dy(), r1.Dy())
	}
	if r2.Min.Y >= r1.Min.Y {
		t.Errorf("stack of two should start above a single line: %d >= %d", r2.Min.Y, r1.Min.Y)
	}
}

func TestComposeNightPalette(t *testing.T) {
	c := newTestComposer(t)
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	in := types.Intent{Kind: types.IntentText, Lines: []types.Line{
		{{Text: "NIGHT", Color: ColorWhite, Size: 2}},
	}}
	if err := c.Compose(img, in, Frame{Scheme: SchemeFor(true, Brightness{})}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 63 || img.Pix[i+1] > 63 || img.Pix[i+2] > 63 {
			t.Fatalf("pixel %d brighter than the night palette: %v", i/4, img.Pix[i:i+3])
		}
	}
}

func TestComposeWeatherUnavailable(t *testing.T) {
	c := newTestComposer(t)
	for _, kind := range []types.IntentKind{types.IntentWeather, types.IntentForecast, types.IntentConditions} {
		img := image.NewRGBA(image.Rect(0, 0, 64, 32))
		if err := c.Compose(img, types.Intent{Kind: kind}, Frame{Scheme: SchemeFor(false, Brightness{})}); err != nil {
			t.Fatalf("%v: Compose() error = %v", kind, err)
		}
		if inkBounds(img).Empty() {
			t.Errorf("%v: expected an unavailable notice", kind)
		}
	}
}

func TestComposeWeather(t *testing.T) {
	c := newTestComposer(t)
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	f := Frame{Scheme: SchemeFor(false, Brightness{}), Weather: testSnapshot(now), HasWeather: true, Now: now}

	if err := c.Compose(img, types.Intent{Kind: types.IntentWeather}, f); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	want := DayPalette.Color(weather.TempColor(72))
	var found bool
	for y := 0; y < 11; y++ {
		for x := 0; x < 32; x++ {
			if img.RGBAAt(x, y) == want {
				found = true
			}
		}
	}
	if !found {
		t.Error("temperature not drawn in its band color")
	}

	var icon bool
	for y := 0; y < bigIconSize; y++ {
		for x := 64 - bigIconSize; x < 64; x++ {
			if lit(img.RGBAAt(x, y)) {
				icon = true
			}
		}
	}
	if !icon {
		t.Error("icon not drawn top right")
	}
}

func TestComposeProgress(t *testing.T) {
	c := newTestComposer(t)
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	in := types.Intent{
		Kind:       types.IntentForecast,
		Panels:     types.PanelsDaily,
		PhaseStart: now.Add(-15 * time.Second),
		PhaseEnd:   now.Add(15 * time.Second),
	}
	f := Frame{Scheme: SchemeFor(false, Brightness{}), Weather: testSnapshot(now), HasWeather: true, Now: now}

	if err := c.Compose(img, in, f); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	blue := DayPalette[ColorSkyBlue]
	for x := 0; x < 32; x++ {
		if got := img.RGBAAt(x, 31); got != blue {
			t.Fatalf("progress pixel %d = %v, want %v", x, got, blue)
		}
	}
	for x := 33; x < 64; x++ {
		if got := img.RGBAAt(x, 31); lit(got) {
			t.Fatalf("pixel %d past the progress bar is lit: %v", x, got)
		}
	}
}

func TestPanelFor(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC) // Monday
	snap := testSnapshot(now)

	tests := []struct {
		name   string
		set    types.PanelSet
		index  int
		label  string
		high   int
		hasLow bool
		ok     bool
	}{
		{"now", types.PanelsHourly, 0, "NOW", 72, false, true},
		{"six hours", types.PanelsHourly, 1, "+6H", 52, false, true},
		{"twelve hours", types.PanelsHourly, 2, "+12H", 60, false, true},
		{"today", types.PanelsDaily, 0, "TODAY", 54, true, true},
		{"tomorrow", types.PanelsDaily, 1, "TUE", 60, true, true},
		{"day after", types.PanelsDaily, 2, "WED", 65, true, true},
		{"missing", types.PanelsDaily, 3, "", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := panelFor(snap, tt.set, tt.index)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if p.label != tt.label || p.high != tt.high || p.hasLow != tt.hasLow {
				t.Errorf("panel = %+v", p)
			}
		})
	}
}

func TestIcons(t *testing.T) {
	icons := NewIcons()
	conditions := []string{
		weather.Clear, weather.PartlyCloudy, weather.Cloudy, weather.Rain,
		weather.Snow, weather.Thunderstorms, weather.Fog, "Unknown",
	}
	for _, cond := range conditions {
		for _, night := range []bool{false, true} {
			img, err := icons.Icon(cond, 20, night)
			if err != nil {
				t.Fatalf("Icon(%s, night=%v) error = %v", cond, night, err)
			}
			if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 20 {
				t.Errorf("Icon(%s) bounds = %v", cond, img.Bounds())
			}
			var opaque bool
			for i := 3; i < len(img.Pix); i += 4 {
				if img.Pix[i] != 0 {
					opaque = true
					break
				}
			}
			if !opaque {
				t.Errorf("Icon(%s, night=%v) is empty", cond, night)
			}
		}
	}

	a, _ := icons.Icon(weather.Clear, 20, false)
	b, _ := icons.Icon(weather.Clear, 20, false)
	if a != b {
		t.Error("icons should be cached")
	}
}
