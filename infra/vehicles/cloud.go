package vehicles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/smartcharge/auth"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// CloudSource polls an OEM cloud API with client-credential auth. The status
// payload is a container map in the Mercedes vehicle_status shape:
// {"soc": {"value": 45}, "rangeelectric": {"value": 120}, ...}.
type CloudSource struct {
	cfg   Config
	cred  *auth.ClientCred
	http  *http.Client
	log   logger.Logger
	cache snapshotCache
}

// NewCloudSource creates a source backed by an OEM cloud API.
func NewCloudSource(cfg Config) (*CloudSource, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Cloud == nil || cfg.Cloud.StatusURL == "" {
		return nil, fmt.Errorf("vehicle %s: cloud source needs a status_url", cfg.ID)
	}
	timeout := cfg.Cloud.TimeoutS
	if timeout == 0 {
		timeout = 10
	}
	return &CloudSource{
		cfg:  cfg,
		cred: auth.NewClientCred(cfg.Cloud.Auth),
		http: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		log:  logger.New("vehicles"),
	}, nil
}

// VehicleID implements Source.
func (s *CloudSource) VehicleID() string { return s.cfg.ID }

// container is one metric in the status payload.
type container struct {
	Value any `json:"value"`
}

// Snapshot implements Source.
func (s *CloudSource) Snapshot(ctx context.Context) (model.VehicleState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Cloud.StatusURL, nil)
	if err != nil {
		return model.VehicleState{}, fmt.Errorf("failed to create request: %w", err)
	}
	if err := s.cred.SetAuthHeader(req); err != nil {
		s.log.Warnf("vehicle %s: auth failed: %v", s.cfg.ID, err)
		return s.cache.stale(s.cfg.baseState()), nil
	}

	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Warnf("vehicle %s: cloud API unreachable: %v", s.cfg.ID, err)
		return s.cache.stale(s.cfg.baseState()), nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.log.Warnf("vehicle %s: cloud API HTTP %d: %s", s.cfg.ID, resp.StatusCode, string(body))
		return s.cache.stale(s.cfg.baseState()), nil
	}

	var payload map[string]container
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		s.log.Warnf("vehicle %s: cannot decode cloud status: %v", s.cfg.ID, err)
		return s.cache.stale(s.cfg.baseState()), nil
	}

	state := s.cfg.baseState()
	state.SoC = int(floatVal(payload, "soc"))
	state.RangeKm = floatVal(payload, "rangeelectric")
	state.OdometerKm = floatVal(payload, "odometer")
	state.Charging = boolVal(payload, "chargingactive")
	state.PluggedIn = boolVal(payload, "pluggedin") || state.Charging
	state.RetrievedAt = time.Now()

	s.cache.store(state)
	return state, nil
}

func floatVal(p map[string]container, key string) float64 {
	c, ok := p[key]
	if !ok {
		return 0
	}
	switch v := c.Value.(type) {
	case float64:
		return v
	case string:
		var f float64
		_, _ = fmt.Sscanf(v, "%f", &f)
		return f
	}
	return 0
}

// boolVal tolerates booleans and numeric 0/1, both appear in the wild.
func boolVal(p map[string]container, key string) bool {
	c, ok := p[key]
	if !ok {
		return false
	}
	switch v := c.Value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v == "true" || v == "1"
	}
	return false
}
