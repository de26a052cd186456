package model

import (
	"math"
	"time"
)

// WeatherPoint is one hour of the weather forecast. SolarWM2 is optional;
// providers that do not report irradiance leave it at zero.
type WeatherPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	TemperatureC float64   `json:"temperature_c"`
	WindSpeedKmh float64   `json:"wind_speed_kmh"`
	SolarWM2     float64   `json:"solar_wm2,omitempty"`
}

// WeatherSeries is a chronological sequence of hourly weather points. It may
// be sparser than the price grid; lookups match the nearest hour.
type WeatherSeries []WeatherPoint

// Nearest returns the point whose timestamp is closest to t, within one hour.
// The second return is false when the series is empty or no point is close
// enough.
func (s WeatherSeries) Nearest(t time.Time) (WeatherPoint, bool) {
	var best WeatherPoint
	bestDist := time.Duration(math.MaxInt64)
	for _, w := range s {
		d := t.Sub(w.Timestamp)
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = w, d
		}
	}
	if bestDist > time.Hour {
		return WeatherPoint{}, false
	}
	return best, true
}

// Window returns the points with from <= timestamp < to, preserving order.
func (s WeatherSeries) Window(from, to time.Time) WeatherSeries {
	out := make(WeatherSeries, 0, len(s))
	for _, w := range s {
		if !w.Timestamp.Before(from) && w.Timestamp.Before(to) {
			out = append(out, w)
		}
	}
	return out
}
