package forecast

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/smartcharge/core/calendar"
	"github.com/kilianp07/smartcharge/core/model"
)

// Config defines the forecast heuristic parameters.
type Config struct {
	// TrailingHours bounds how many of the most recent confirmed prices
	// feed the baseline average.
	TrailingHours int `json:"trailing_hours"`
	// DefaultPriceSEK is the flat baseline used when no confirmed price
	// exists at all.
	DefaultPriceSEK float64 `json:"default_price_sek"`
	// CalmWindKmh is the wind speed below which reduced generation starts
	// pushing the forecast up.
	CalmWindKmh float64 `json:"calm_wind_kmh"`
	// WindPenalty is the price increase per km/h below CalmWindKmh.
	WindPenalty float64 `json:"wind_penalty"`
	// SolarDiscount is the price decrease per W/m2 of irradiance.
	SolarDiscount float64 `json:"solar_discount"`
	// ColdTempC is the temperature below which heating demand starts
	// pushing the forecast up.
	ColdTempC float64 `json:"cold_temp_c"`
	// TempPenalty is the price increase per degree below ColdTempC.
	TempPenalty float64 `json:"temp_penalty"`
	// WinterBias multiplies every synthesized price November through March.
	WinterBias float64 `json:"winter_bias"`
}

// SetDefaults fills unset fields with the values tuned for the Nordic
// SE3 bidding zone.
func (c *Config) SetDefaults() {
	if c.TrailingHours == 0 {
		c.TrailingHours = 48
	}
	if c.DefaultPriceSEK == 0 {
		c.DefaultPriceSEK = 1.0
	}
	if c.CalmWindKmh == 0 {
		c.CalmWindKmh = 15
	}
	if c.WindPenalty == 0 {
		c.WindPenalty = 0.03
	}
	if c.SolarDiscount == 0 {
		c.SolarDiscount = 0.0002
	}
	if c.TempPenalty == 0 {
		c.TempPenalty = 0.01
	}
	if c.WinterBias == 0 {
		c.WinterBias = 1.10
	}
}

// Validate rejects parameter combinations that cannot produce a usable
// forecast.
func (c *Config) Validate() error {
	if c.TrailingHours <= 0 {
		return fmt.Errorf("trailing_hours must be positive")
	}
	if c.DefaultPriceSEK <= 0 {
		return fmt.Errorf("default_price_sek must be positive")
	}
	if c.WindPenalty < 0 || c.SolarDiscount < 0 || c.TempPenalty < 0 {
		return fmt.Errorf("adjustment penalties must not be negative")
	}
	if c.WinterBias < 1 {
		return fmt.Errorf("winter_bias must be at least 1")
	}
	return nil
}

// Adjustment factor bounds. Each weather factor is clamped so a broken
// forecast input cannot extrapolate the price into absurdity.
const (
	windFactorMax  = 1.25
	solarFactorMin = 0.85
	tempFactorMax  = 1.20
)

// Diurnal price profiles: 24 multipliers applied to the trailing average,
// capturing the typical intraday shape of the spot price. Weekdays show the
// commuter double peak, weekends a flatter, later curve. Holidays follow the
// weekend pattern.
var (
	weekdayProfile = [24]float64{
		0.72, 0.68, 0.65, 0.64, 0.66, 0.74, 0.90, 1.12,
		1.25, 1.18, 1.08, 1.02, 0.98, 0.95, 0.96, 1.02,
		1.12, 1.28, 1.38, 1.32, 1.18, 1.02, 0.88, 0.78,
	}
	weekendProfile = [24]float64{
		0.78, 0.74, 0.70, 0.68, 0.68, 0.72, 0.78, 0.86,
		0.95, 1.04, 1.10, 1.12, 1.10, 1.06, 1.04, 1.06,
		1.12, 1.22, 1.28, 1.24, 1.14, 1.02, 0.92, 0.84,
	}
)

// Forecaster extends a partial price series into a gap-free multi-day
// forecast. It holds no state between invocations.
type Forecaster struct {
	cfg Config
}

// New returns a Forecaster for the given configuration.
func New(cfg Config) *Forecaster {
	cfg.SetDefaults()
	return &Forecaster{cfg: cfg}
}

// Result is the outcome of one forecast extension.
type Result struct {
	// Series covers every hour from the truncated now up to the horizon,
	// confirmed points untouched, missing hours synthesized.
	Series model.PriceSeries
	// Synthesized counts the points created by this run.
	Synthesized int
	// FlatFallback is set when no confirmed price existed and the series
	// was built from the configured default.
	FlatFallback bool
	// WeatherApplied reports whether weather adjustments contributed.
	WeatherApplied bool
}

// Extend produces the hourly series spanning now to now+horizonDays.
// Confirmed points inside the window pass through unchanged; every missing
// hour is synthesized from the diurnal profile and weather factors and
// tagged as forecasted. Price unavailability never fails: with no confirmed
// data at all the series falls back to a flat default baseline.
func (f *Forecaster) Extend(now time.Time, prices model.PriceSeries, weather model.WeatherSeries, horizonDays int) Result {
	if horizonDays <= 0 {
		horizonDays = 1
	}
	start := now.Truncate(time.Hour)
	end := start.Add(time.Duration(horizonDays) * 24 * time.Hour)

	confirmed := prices.Confirmed()
	confirmed.Sort()
	byHour := make(map[time.Time]model.PricePoint, len(confirmed))
	for _, p := range confirmed {
		byHour[p.Timestamp.Truncate(time.Hour)] = p
	}

	baseline, haveBaseline := f.trailingAverage(confirmed)

	res := Result{Series: make(model.PriceSeries, 0, int(end.Sub(start).Hours()))}
	for h := start; h.Before(end); h = h.Add(time.Hour) {
		if p, ok := byHour[h]; ok {
			res.Series = append(res.Series, p)
			continue
		}
		var price float64
		if haveBaseline {
			price = baseline * f.profileFor(h)
			if factor, applied := f.weatherFactor(h, weather); applied {
				price *= factor
				res.WeatherApplied = true
			}
			if isWinter(h.Month()) {
				price *= f.cfg.WinterBias
			}
		} else {
			price = f.cfg.DefaultPriceSEK
			res.FlatFallback = true
		}
		res.Series = append(res.Series, model.PricePoint{Timestamp: h, Price: price, IsForecasted: true})
		res.Synthesized++
	}
	return res
}

// trailingAverage computes the mean of the most recent confirmed prices,
// discarding extreme outliers so a single price spike does not skew every
// synthesized hour.
func (f *Forecaster) trailingAverage(confirmed model.PriceSeries) (float64, bool) {
	if len(confirmed) == 0 {
		return 0, false
	}
	if n := len(confirmed); n > f.cfg.TrailingHours {
		confirmed = confirmed[n-f.cfg.TrailingHours:]
	}
	values := confirmed.Values()
	if len(values) >= 6 {
		mean, std := stat.MeanStdDev(values, nil)
		kept := values[:0]
		for _, v := range values {
			if std == 0 || (v >= mean-3*std && v <= mean+3*std) {
				kept = append(kept, v)
			}
		}
		values = kept
	}
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

func (f *Forecaster) profileFor(h time.Time) float64 {
	if calendar.IsPriceWeekend(h) {
		return weekendProfile[h.Hour()]
	}
	return weekdayProfile[h.Hour()]
}

// weatherFactor combines the wind, solar and temperature adjustments for the
// given hour. The second return is false when no weather point is close
// enough, which disables the adjustment entirely.
func (f *Forecaster) weatherFactor(h time.Time, weather model.WeatherSeries) (float64, bool) {
	w, ok := weather.Nearest(h)
	if !ok {
		return 1, false
	}
	factor := 1.0

	if w.WindSpeedKmh < f.cfg.CalmWindKmh {
		wind := 1 + f.cfg.WindPenalty*(f.cfg.CalmWindKmh-w.WindSpeedKmh)
		factor *= clamp(wind, 1, windFactorMax)
	}
	if w.SolarWM2 > 0 {
		solar := 1 - f.cfg.SolarDiscount*w.SolarWM2
		factor *= clamp(solar, solarFactorMin, 1)
	}
	if w.TemperatureC < f.cfg.ColdTempC {
		temp := 1 + f.cfg.TempPenalty*(f.cfg.ColdTempC-w.TemperatureC)
		factor *= clamp(temp, 1, tempFactorMax)
	}
	return factor, true
}

func isWinter(m time.Month) bool {
	return m == time.November || m == time.December || m == time.January ||
		m == time.February || m == time.March
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
