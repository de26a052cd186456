package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// GeneratorConfig bounds the synthetic price and weather series.
type GeneratorConfig struct {
	BasePriceSEK float64 `json:"base_price_sek"`
	JitterPct    float64 `json:"jitter_pct"`
	SpikeChance  float64 `json:"spike_chance"`
	SpikeFactor  float64 `json:"spike_factor"`
	Seed         int64   `json:"seed"`
}

// SetDefaults fills unset fields.
func (c *GeneratorConfig) SetDefaults() {
	if c.BasePriceSEK == 0 {
		c.BasePriceSEK = 1.0
	}
	if c.JitterPct == 0 {
		c.JitterPct = 0.15
	}
	if c.SpikeChance == 0 {
		c.SpikeChance = 0.02
	}
	if c.SpikeFactor == 0 {
		c.SpikeFactor = 3
	}
}

// hourShape scales the base price over the day: cheap nights, a morning and
// an evening peak.
var hourShape = [24]float64{
	0.55, 0.50, 0.48, 0.47, 0.50, 0.62,
	0.85, 1.20, 1.35, 1.25, 1.10, 1.05,
	1.00, 0.98, 1.00, 1.05, 1.20, 1.45,
	1.55, 1.40, 1.15, 0.95, 0.75, 0.62,
}

// Generator emits deterministic synthetic market and weather series: the
// same seed and the same calls reproduce the same data.
type Generator struct {
	cfg  GeneratorConfig
	rand *rand.Rand
}

// NewGenerator returns a generator seeded from cfg.
func NewGenerator(cfg GeneratorConfig) *Generator {
	cfg.SetDefaults()
	return &Generator{cfg: cfg, rand: rand.New(rand.NewSource(cfg.Seed))}
}

// Prices returns a confirmed hourly series of the given length.
func (g *Generator) Prices(start time.Time, hours int) model.PriceSeries {
	start = start.Truncate(time.Hour)
	series := make(model.PriceSeries, 0, hours)
	for i := 0; i < hours; i++ {
		h := start.Add(time.Duration(i) * time.Hour)
		p := g.cfg.BasePriceSEK * hourShape[h.Hour()]
		p *= g.jitter()
		if g.rand.Float64() < g.cfg.SpikeChance {
			p *= g.cfg.SpikeFactor
		}
		series = append(series, model.PricePoint{Timestamp: h, Price: p})
	}
	return series
}

// Weather returns an hourly series with cold nights, midday sun and wind
// noise.
func (g *Generator) Weather(start time.Time, hours int) model.WeatherSeries {
	start = start.Truncate(time.Hour)
	series := make(model.WeatherSeries, 0, hours)
	for i := 0; i < hours; i++ {
		h := start.Add(time.Duration(i) * time.Hour)
		hour := float64(h.Hour())
		temp := 4 + 6*math.Sin((hour-9)/24*2*math.Pi) + (g.rand.Float64()*2 - 1)
		wind := 12 + g.rand.Float64()*18
		solar := 0.0
		if hour >= 8 && hour <= 16 {
			solar = 400 * math.Sin((hour-8)/8*math.Pi)
		}
		series = append(series, model.WeatherPoint{
			Timestamp:    h,
			TemperatureC: temp,
			WindSpeedKmh: wind,
			SolarWM2:     solar,
		})
	}
	return series
}

func (g *Generator) jitter() float64 {
	j := 1 + (g.rand.Float64()*2-1)*g.cfg.JitterPct
	if j < 0.1 {
		j = 0.1
	}
	return j
}
