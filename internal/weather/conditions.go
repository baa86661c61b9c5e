package weather

import (
	"fmt"
	"math"
)

// Condition names shared with the icon set
const (
	Thunderstorms     = "Thunderstorms"
	Drizzle           = "Drizzle"
	LightRain         = "LightRain"
	Rain              = "Rain"
	HeavyRain         = "HeavyRain"
	LightSnow         = "LightSnow"
	Snow              = "Snow"
	HeavySnow         = "HeavySnow"
	IcePellets        = "IcePellets"
	LightFreezingRain = "LightFreezingRain"
	FreezingRain      = "FreezingRain"
	Flurries          = "Flurries"
	LightFog          = "LightFog"
	Fog               = "Fog"
	Clear             = "Clear"
	MostlyClear       = "MostlyClear"
	PartlyCloudy      = "PartlyCloudy"
	MostlyCloudy      = "MostlyCloudy"
	Cloudy            = "Cloudy"
)

var snowConditions = map[int]string{
	600: LightSnow,
	601: Snow,
	602: HeavySnow,
	611: IcePellets,
	612: LightFreezingRain,
	613: FreezingRain,
	615: LightSnow,
	616: Snow,
	620: Flurries,
	621: Snow,
	622: HeavySnow,
}

// MapCondition converts an OpenWeatherMap condition id to a condition name.
// See https://openweathermap.org/weather-conditions
func MapCondition(id int) string {
	switch {
	case id >= 200 && id < 300:
		return Thunderstorms
	case id >= 300 && id < 400:
		return Drizzle
	case id == 500:
		return LightRain
	case id >= 501 && id <= 504:
		return Rain
	case id >= 520 && id < 600:
		return HeavyRain
	case id >= 500 && id < 600:
		return Rain
	case id >= 600 && id < 700:
		if c, ok := snowConditions[id]; ok {
			return c
		}
		return Snow
	case id == 701 || id == 711 || id == 721:
		return LightFog
	case id == 781:
		// tornado
		return Thunderstorms
	case id >= 700 && id < 800:
		return Fog
	case id == 801:
		return MostlyClear
	case id == 802:
		return PartlyCloudy
	case id == 803:
		return MostlyCloudy
	case id == 804:
		return Cloudy
	default:
		return Clear
	}
}

// TempColor returns the palette index used to draw a Fahrenheit temperature
func TempColor(f int) int {
	if f <= 32 {
		return 4
	}
	if f >= 100 {
		return 2
	}
	progress := float64(f-32) / 68.0
	switch {
	case progress < 0.4:
		return 7
	case progress <= 0.603:
		return 3
	case progress < 0.8:
		return 5
	default:
		return 8
	}
}

var compass = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// WindDirection returns the 8-point compass direction of a bearing in degrees
func WindDirection(deg float64) string {
	i := int(math.RoundToEven(deg/45)) % 8
	if i < 0 {
		i += 8
	}
	return compass[i]
}

// FormatWind renders wind as direction and zero-padded speed, e.g. "NW07MPH"
func FormatWind(deg float64, mph int) string {
	return fmt.Sprintf("%s%02dMPH", WindDirection(deg), mph)
}
