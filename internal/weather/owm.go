// Package weather fetches current conditions and forecasts from
// OpenWeatherMap and keeps the latest snapshot for the display.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// hoursAhead are the offsets of the hourly forecast entries after "now"
var hoursAhead = []int{6, 12}

// dailyDays is how many calendar days, starting today, are summarized
const dailyDays = 3

// Client talks to the OpenWeatherMap 2.5 API in imperial units
type Client struct {
	baseURL string
	apiKey  string
	lat     float64
	lon     float64
	http    *http.Client
	loc     *time.Location
}

// NewClient creates a weather client. Daily summaries are grouped by
// calendar day in loc.
func NewClient(baseURL, apiKey string, lat, lon float64, timeout time.Duration, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		lat:     lat,
		lon:     lon,
		http:    &http.Client{Timeout: timeout},
		loc:     loc,
	}
}

type owmCondition struct {
	ID   int    `json:"id"`
	Main string `json:"main"`
}

type owmCurrent struct {
	Weather []owmCondition `json:"weather"`
	Main    struct {
		Temp      float64  `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  float64  `json:"humidity"`
		Pressure  float64  `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Rain map[string]float64 `json:"rain"`
	Snow map[string]float64 `json:"snow"`
	Sys  struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

type owmForecastItem struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []owmCondition `json:"weather"`
	Pop     float64        `json:"pop"`
}

type owmForecast struct {
	List []owmForecastItem `json:"list"`
}

// Fetch retrieves current conditions and the 5-day forecast and folds them
// into a snapshot taken at now
func (c *Client) Fetch(ctx context.Context, now time.Time) (types.Snapshot, error) {
	var cur owmCurrent
	if err := c.get(ctx, "weather", &cur); err != nil {
		return types.Snapshot{}, err
	}
	var fc owmForecast
	if err := c.get(ctx, "forecast", &fc); err != nil {
		return types.Snapshot{}, err
	}

	snap := types.Snapshot{
		Current:   currentConditions(cur),
		FetchedAt: now,
	}
	if cur.Sys.Sunrise > 0 && cur.Sys.Sunset > 0 {
		snap.Sunrise = time.Unix(cur.Sys.Sunrise, 0).In(c.loc)
		snap.Sunset = time.Unix(cur.Sys.Sunset, 0).In(c.loc)
	}
	snap.Hourly = hourlyForecasts(fc.List, now, c.loc)
	snap.Daily = dailyForecasts(fc.List, now, c.loc)
	return snap, nil
}

func (c *Client) get(ctx context.Context, endpoint string, v any) error {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "imperial")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// The request URL carries the API key
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("failed to fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("failed to fetch %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", endpoint, err)
	}
	return nil
}

func conditionOf(list []owmCondition) string {
	if len(list) == 0 {
		return Clear
	}
	return MapCondition(list[0].ID)
}

func round(f float64) int {
	return int(math.RoundToEven(f))
}

func currentConditions(cur owmCurrent) types.Conditions {
	temp := round(cur.Main.Temp)
	feels := temp
	if cur.Main.FeelsLike != nil {
		feels = round(*cur.Main.FeelsLike)
	}
	pressure := cur.Main.Pressure
	if pressure == 0 {
		pressure = 1013.25
	}

	// The current endpoint reports measured precipitation, not a chance
	precip := 0
	if cur.Rain["1h"] > 0 || cur.Snow["1h"] > 0 {
		precip = 100
	}

	return types.Conditions{
		TempF:        temp,
		FeelsLikeF:   feels,
		Humidity:     round(cur.Main.Humidity),
		PressureInHg: math.Round(pressure*0.02953*100) / 100,
		WindMPH:      round(cur.Wind.Speed),
		WindDeg:      cur.Wind.Deg,
		Condition:    conditionOf(cur.Weather),
		PrecipChance: precip,
	}
}

// hourlyForecasts picks the forecast entries closest to each target offset
func hourlyForecasts(list []owmForecastItem, now time.Time, loc *time.Location) []types.HourlyForecast {
	if len(list) == 0 {
		return nil
	}
	out := make([]types.HourlyForecast, 0, len(hoursAhead))
	for _, h := range hoursAhead {
		target := now.Add(time.Duration(h) * time.Hour).Unix()
		best := list[0]
		for _, item := range list[1:] {
			if abs64(item.Dt-target) < abs64(best.Dt-target) {
				best = item
			}
		}
		out = append(out, types.HourlyForecast{
			HoursAhead:   h,
			At:           time.Unix(best.Dt, 0).In(loc),
			TempF:        round(best.Main.Temp),
			Condition:    conditionOf(best.Weather),
			PrecipChance: round(best.Pop * 100),
		})
	}
	return out
}

// dailyForecasts summarizes today and the following days: high, low, most
// frequent condition and the highest precipitation chance
func dailyForecasts(list []owmForecastItem, now time.Time, loc *time.Location) []types.DailyForecast {
	type day struct {
		temps      []float64
		conditions map[string]int
		order      []string
		precip     float64
	}
	today := dateOf(now.In(loc))
	days := make(map[int]*day)

	for _, item := range list {
		t := time.Unix(item.Dt, 0).In(loc)
		offset := int(math.Round(dateOf(t).Sub(today).Hours() / 24))
		if offset < 0 || offset >= dailyDays {
			continue
		}
		d, ok := days[offset]
		if !ok {
			d = &day{conditions: make(map[string]int)}
			days[offset] = d
		}
		d.temps = append(d.temps, item.Main.Temp)
		cond := conditionOf(item.Weather)
		if d.conditions[cond] == 0 {
			d.order = append(d.order, cond)
		}
		d.conditions[cond]++
		d.precip = math.Max(d.precip, item.Pop*100)
	}

	offsets := make([]int, 0, len(days))
	for o := range days {
		offsets = append(offsets, o)
	}
	sort.Ints(offsets)

	out := make([]types.DailyForecast, 0, len(offsets))
	for _, o := range offsets {
		d := days[o]
		high, low := d.temps[0], d.temps[0]
		for _, t := range d.temps[1:] {
			high = math.Max(high, t)
			low = math.Min(low, t)
		}
		// Ties go to the condition seen first in the day
		common := d.order[0]
		for _, c := range d.order[1:] {
			if d.conditions[c] > d.conditions[common] {
				common = c
			}
		}
		out = append(out, types.DailyForecast{
			DayOffset:    o,
			Date:         today.AddDate(0, 0, o),
			HighF:        round(high),
			LowF:         round(low),
			Condition:    common,
			PrecipChance: round(d.precip),
		})
	}
	return out
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
