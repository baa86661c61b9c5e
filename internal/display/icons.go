package display

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/fkcurrie/led-matrix-display/internal/weather"
)

// Icon sources on a 24x24 view box
const (
	svgSun = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24">
<circle cx="12" cy="12" r="5" fill="#FFD700"/>
<g stroke="#FFA500" stroke-width="2" stroke-linecap="round">
<line x1="12" y1="1" x2="12" y2="4"/><line x1="12" y1="20" x2="12" y2="23"/>
<line x1="1" y1="12" x2="4" y2="12"/><line x1="20" y1="12" x2="23" y2="12"/>
<line x1="4" y1="4" x2="6" y2="6"/><line x1="18" y1="18" x2="20" y2="20"/>
<line x1="4" y1="20" x2="6" y2="18"/><line x1="18" y1="6" x2="20" y2="4"/>
</g>
</svg>`

	svgMoon = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24">
<path d="M15 3 A9 9 0 1 0 21 15 A7 7 0 1 1 15 3 Z" fill="#F0E68C"/>
</svg>`

	svgSunCloud = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24">
<circle cx="8" cy="8" r="5" fill="#FFD700"/>
<path d="M7 20 A4 4 0 0 1 8 12 A5 5 0 0 1 17 11 A4.5 4.5 0 0 1 18 20 Z" fill="#D3D3D3"/>
</svg>`

	svgMoonCloud = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24">
<path d="M9 2 A6 6 0 1 0 15 9 A5 5 0 1 1 9 2 Z" fill="#F0E68C"/>
<path d="M7 20 A4 4 0 0 1 8 12 A5 5 0 0 1 17 11 A4.5 4.5 0 0 1 18 20 Z" fill="#A9A9A9"/>
</svg>`

	svgCloud = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24">
<path d="M5 19 A4.5 4.5 0 0 1 6 10 A6 6 0 0 1 17 9 A5 5 0 0 1 18 19 Z" fill="#BEBEBE"/>
</svg>`

	svgRain = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24">
<path d="M5 14 A4 4 0 0 1 6 6 A6 6 0 0 1 17 5 A4.5 4.5 0 0 1 18 14 Z" fill="#A9A9A9"/>
<g stroke="#1E90FF" stroke-width="2" stroke-linecap="round">
<line x1="8" y1="16" x2="7" y2="21"/><line x1="12" y1="16" x2="11" y2="21"/><line x1="16" y1="16" x2="15" y2="21"/>
</g>
</svg>`

	svgSnow = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24">
<path d="M5 14 A4 4 0 0 1 6 6 A6 6 0 0 1 17 5 A4.5 4.5 0 0 1 18 14 Z" fill="#A9A9A9"/>
<circle cx="8" cy="18" r="1.5" fill="#FFFFFF"/>
<circle cx="12" cy="21" r="1.5" fill="#FFFFFF"/>
<circle cx="16" cy="18" r="1.5" fill="#FFFFFF"/>
</svg>`

	svgStorm = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24">
<path d="M5 13 A4 4 0 0 1 6 5 A6 6 0 0 1 17 4 A4.5 4.5 0 0 1 18 13 Z" fill="#808080"/>
<path d="M13 13 L9 19 L12 19 L10 23 L16 16 L13 16 L15 13 Z" fill="#FFD700"/>
</svg>`

	svgFog = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24">
<g stroke="#C0C0C0" stroke-width="2" stroke-linecap="round">
<line x1="3" y1="7" x2="21" y2="7"/><line x1="5" y1="12" x2="19" y2="12"/><line x1="3" y1="17" x2="21" y2="17"/>
</g>
</svg>`
)

type iconKey struct {
	name  string
	size  int
	night bool
}

// Icons rasterizes weather icons on demand and caches them
type Icons struct {
	mu    sync.Mutex
	cache map[iconKey]*image.RGBA
}

// NewIcons creates an empty icon cache
func NewIcons() *Icons {
	return &Icons{cache: make(map[iconKey]*image.RGBA)}
}

// iconSource picks the icon for a condition name
func iconSource(condition string, night bool) string {
	switch condition {
	case weather.Clear:
		if night {
			return svgMoon
		}
		return svgSun
	case weather.MostlyClear, weather.PartlyCloudy:
		if night {
			return svgMoonCloud
		}
		return svgSunCloud
	case weather.MostlyCloudy, weather.Cloudy:
		return svgCloud
	case weather.Drizzle, weather.LightRain, weather.Rain, weather.HeavyRain,
		weather.LightFreezingRain, weather.FreezingRain:
		return svgRain
	case weather.LightSnow, weather.Snow, weather.HeavySnow, weather.Flurries, weather.IcePellets:
		return svgSnow
	case weather.Thunderstorms:
		return svgStorm
	case weather.LightFog, weather.Fog:
		return svgFog
	default:
		return svgCloud
	}
}

// Icon returns the size x size icon for a condition. Night icons are dimmed
// like the night palette.
func (i *Icons) Icon(condition string, size int, night bool) (*image.RGBA, error) {
	key := iconKey{name: condition, size: size, night: night}

	i.mu.Lock()
	defer i.mu.Unlock()
	if img, ok := i.cache[key]; ok {
		return img, nil
	}

	img, err := rasterize(iconSource(condition, night), size)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize %s icon: %w", condition, err)
	}
	if night {
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p] /= NightDivisor
			img.Pix[p+1] /= NightDivisor
			img.Pix[p+2] /= NightDivisor
		}
	}
	i.cache[key] = img
	return img, nil
}

func rasterize(src string, size int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	dasher := rasterx.NewDasher(size, size, scanner)
	icon.Draw(dasher, 1)
	return img, nil
}
