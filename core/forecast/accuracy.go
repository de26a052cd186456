package forecast

import (
	"math"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// AccuracySample is one forecasted hour matched against the price the
// provider later confirmed for it.
type AccuracySample struct {
	Hour         time.Time
	HorizonHours int // how far ahead the forecast was made
	ForecastSEK  float64
	ActualSEK    float64
}

// AbsError returns the absolute forecast error for the sample.
func (s AccuracySample) AbsError() float64 {
	return math.Abs(s.ForecastSEK - s.ActualSEK)
}

// Accuracy matches forecasted points produced at madeAt against confirmed
// points covering the same hours. Hours without a confirmed counterpart are
// skipped; confirmed points are matched by truncated hour.
func Accuracy(forecasted, confirmed model.PriceSeries, madeAt time.Time) []AccuracySample {
	actual := make(map[time.Time]float64, len(confirmed))
	for _, p := range confirmed {
		if !p.IsForecasted {
			actual[p.Timestamp.Truncate(time.Hour)] = p.Price
		}
	}
	base := madeAt.Truncate(time.Hour)
	var samples []AccuracySample
	for _, p := range forecasted {
		if !p.IsForecasted {
			continue
		}
		h := p.Timestamp.Truncate(time.Hour)
		a, ok := actual[h]
		if !ok {
			continue
		}
		samples = append(samples, AccuracySample{
			Hour:         h,
			HorizonHours: int(h.Sub(base) / time.Hour),
			ForecastSEK:  p.Price,
			ActualSEK:    a,
		})
	}
	return samples
}

// MAE returns the mean absolute error across the samples, zero when empty.
func MAE(samples []AccuracySample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.AbsError()
	}
	return sum / float64(len(samples))
}
