package model

import (
	"sort"
	"time"
)

// PricePoint is one hour of the electricity price series. Forecasted points
// are synthesized by the engine and may later be replaced when the provider
// confirms the hour; confirmed points are never mutated.
type PricePoint struct {
	Timestamp    time.Time `json:"timestamp"`
	Price        float64   `json:"price"` // SEK per kWh, spot component only
	IsForecasted bool      `json:"is_forecasted"`
}

// PriceSeries is a chronological, duplicate-free sequence of hourly points.
type PriceSeries []PricePoint

// Sort orders the series chronologically in place.
func (s PriceSeries) Sort() {
	sort.Slice(s, func(i, j int) bool { return s[i].Timestamp.Before(s[j].Timestamp) })
}

// At returns the point covering the hour of t, matching on the truncated
// hour. The second return is false when the series has no such hour.
func (s PriceSeries) At(t time.Time) (PricePoint, bool) {
	h := t.Truncate(time.Hour)
	for _, p := range s {
		if p.Timestamp.Equal(h) {
			return p, true
		}
	}
	return PricePoint{}, false
}

// Confirmed returns only the provider-confirmed points, preserving order.
func (s PriceSeries) Confirmed() PriceSeries {
	out := make(PriceSeries, 0, len(s))
	for _, p := range s {
		if !p.IsForecasted {
			out = append(out, p)
		}
	}
	return out
}

// Window returns the points with from <= timestamp < to, preserving order.
func (s PriceSeries) Window(from, to time.Time) PriceSeries {
	out := make(PriceSeries, 0, len(s))
	for _, p := range s {
		if !p.Timestamp.Before(from) && p.Timestamp.Before(to) {
			out = append(out, p)
		}
	}
	return out
}

// Values extracts the raw prices, in series order.
func (s PriceSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Price
	}
	return out
}

// Merge combines two series into a new sorted one. Points from other win
// hour collisions, except that a forecasted point never displaces a
// confirmed one.
func (s PriceSeries) Merge(other PriceSeries) PriceSeries {
	byHour := make(map[time.Time]PricePoint, len(s)+len(other))
	for _, p := range s {
		byHour[p.Timestamp.Truncate(time.Hour)] = p
	}
	for _, p := range other {
		h := p.Timestamp.Truncate(time.Hour)
		if prev, ok := byHour[h]; ok && p.IsForecasted && !prev.IsForecasted {
			continue
		}
		byHour[h] = p
	}
	out := make(PriceSeries, 0, len(byHour))
	for _, p := range byHour {
		out = append(out, p)
	}
	out.Sort()
	return out
}
