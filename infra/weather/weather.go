// Package weather fetches hourly forecasts from the Open-Meteo API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// Open-Meteo returns hourly timestamps as local ISO strings without offset.
const hourlyLayout = "2006-01-02T15:04"

// Config holds the Open-Meteo connection settings.
type Config struct {
	BaseURL      string  `json:"base_url"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ForecastDays int     `json:"forecast_days"`
	Timezone     string  `json:"timezone"`
	TimeoutS     int     `json:"timeout_s"`
}

// SetDefaults fills unset fields with sane values.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if c.ForecastDays == 0 {
		c.ForecastDays = 3
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Stockholm"
	}
	if c.TimeoutS == 0 {
		c.TimeoutS = 10
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %.4f out of range", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %.4f out of range", c.Longitude)
	}
	if c.ForecastDays < 1 || c.ForecastDays > 16 {
		return fmt.Errorf("forecast_days must be within [1,16], got %d", c.ForecastDays)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Client fetches temperature, wind and irradiance forecasts for one location.
type Client struct {
	cfg  Config
	http *http.Client
	loc  *time.Location
}

// New creates a weather client for the configured coordinates.
func New(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("weather config: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutS) * time.Second},
		loc:  loc,
	}, nil
}

// response mirrors the subset of the Open-Meteo payload we consume.
type response struct {
	Hourly struct {
		Time               []string  `json:"time"`
		Temperature2m      []float64 `json:"temperature_2m"`
		WindSpeed10m       []float64 `json:"wind_speed_10m"`
		ShortwaveRadiation []float64 `json:"shortwave_radiation"`
	} `json:"hourly"`
}

// Forecast returns the hourly forecast starting today for the configured
// number of days. Callers treat a failure as "no weather data" and proceed
// degraded.
func (c *Client) Forecast(ctx context.Context) (model.WeatherSeries, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.cfg.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(c.cfg.Longitude, 'f', 4, 64))
	q.Set("hourly", "temperature_2m,wind_speed_10m,shortwave_radiation")
	q.Set("forecast_days", strconv.Itoa(c.cfg.ForecastDays))
	q.Set("timezone", c.cfg.Timezone)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("weather API HTTP %d: %s", resp.StatusCode, string(body))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	series := make(model.WeatherSeries, 0, len(r.Hourly.Time))
	for i, raw := range r.Hourly.Time {
		ts, err := time.ParseInLocation(hourlyLayout, raw, c.loc)
		if err != nil {
			return nil, fmt.Errorf("bad hourly timestamp %q: %w", raw, err)
		}
		p := model.WeatherPoint{Timestamp: ts}
		if i < len(r.Hourly.Temperature2m) {
			p.TemperatureC = r.Hourly.Temperature2m[i]
		}
		if i < len(r.Hourly.WindSpeed10m) {
			p.WindSpeedKmh = r.Hourly.WindSpeed10m[i]
		}
		if i < len(r.Hourly.ShortwaveRadiation) {
			p.SolarWM2 = r.Hourly.ShortwaveRadiation[i]
		}
		series = append(series, p)
	}
	return series, nil
}
