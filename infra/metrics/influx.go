package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// InfluxSink writes decision activity to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails, so a missing backend never blocks
// decision cycles.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDecision implements coremetrics.MetricsSink.
func (s *InfluxSink) RecordDecision(events []coremetrics.DecisionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ev := range events {
		d := ev.Decision
		p := write.NewPointWithMeasurement("decision").
			AddTag("vehicle_id", d.VehicleID).
			AddTag("action", string(d.Action)).
			AddTag("degraded", strconv.FormatBool(d.Degraded)).
			AddTag("overridden", strconv.FormatBool(d.Overridden)).
			AddField("target_soc", d.TargetSoC).
			AddField("urgency", round3(d.Urgency)).
			AddField("energy_needed_kwh", round3(ev.EnergyNeededKWh)).
			AddField("hours_needed", ev.HoursNeeded).
			AddField("hours_available", ev.HoursAvailable).
			AddField("price_now_sek", round3(ev.PriceNow)).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordCycle implements coremetrics.CycleRecorder.
func (s *InfluxSink) RecordCycle(ev coremetrics.CycleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("decision_cycle").
		AddField("duration_ms", float64(ev.Duration.Milliseconds())).
		AddField("vehicles", ev.Vehicles).
		AddField("degraded", ev.Degraded).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPrices implements coremetrics.PriceRecorder. Every point of the
// series is written so dashboards can chart the full horizon.
func (s *InfluxSink) RecordPrices(ev coremetrics.PriceEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, pt := range ev.Points {
		p := write.NewPointWithMeasurement("spot_price").
			AddTag("area", ev.Area).
			AddTag("forecasted", strconv.FormatBool(pt.IsForecasted)).
			AddField("price_sek", round3(pt.Price)).
			SetTime(pt.Timestamp)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordForecastAccuracy implements coremetrics.ForecastAccuracyRecorder.
func (s *InfluxSink) RecordForecastAccuracy(events []coremetrics.ForecastAccuracyEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ev := range events {
		p := write.NewPointWithMeasurement("forecast_accuracy").
			AddTag("horizon_hours", strconv.Itoa(ev.HorizonHours)).
			AddField("abs_error_sek", round3(ev.AbsErrorSEK)).
			SetTime(ev.Hour)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordSession implements coremetrics.SessionRecorder.
func (s *InfluxSink) RecordSession(ev coremetrics.SessionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charging_session").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("session_id", ev.SessionID).
		AddField("energy_kwh", round3(ev.EnergyKWh)).
		AddField("spot_cost_sek", round3(ev.SpotCostSEK)).
		AddField("grid_cost_sek", round3(ev.GridCostSEK)).
		AddField("start_soc", ev.StartSoC).
		AddField("end_soc", ev.EndSoC).
		AddField("duration_m", math.Round(ev.Ended.Sub(ev.Started).Minutes())).
		SetTime(ev.Ended)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOverride implements coremetrics.OverrideRecorder.
func (s *InfluxSink) RecordOverride(ev coremetrics.OverrideEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("manual_override").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("action", string(ev.Action)).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
