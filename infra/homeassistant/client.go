// Package homeassistant talks to a Home Assistant instance over its REST
// API using a long-lived access token.
package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/smartcharge/infra/logger"
)

// Config holds the hub connection settings.
type Config struct {
	BaseURL  string `json:"base_url"`
	Token    string `json:"token"`
	TimeoutS int    `json:"timeout_s"`
}

// SetDefaults fills unset fields with sane values.
func (c *Config) SetDefaults() {
	if c.TimeoutS == 0 {
		c.TimeoutS = 10
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("hub base_url is required")
	}
	if c.Token == "" {
		return errors.New("hub token is required")
	}
	return nil
}

// EntityState is one entity snapshot as returned by /api/states/{entity}.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Available reports whether the entity carries a usable value. Integrations
// publish "unavailable" or "unknown" while they cannot reach the device.
func (s EntityState) Available() bool {
	return s.State != "" && s.State != "unavailable" && s.State != "unknown"
}

// Float parses the state as a number.
func (s EntityState) Float() (float64, error) {
	return strconv.ParseFloat(s.State, 64)
}

// On reports whether a binary sensor reads "on".
func (s EntityState) On() bool {
	return s.State == "on"
}

// BoolAttr reads a boolean attribute, false when absent.
func (s EntityState) BoolAttr(key string) bool {
	v, ok := s.Attributes[key].(bool)
	return ok && v
}

// FloatAttr reads a numeric attribute, zero when absent.
func (s EntityState) FloatAttr(key string) float64 {
	if v, ok := s.Attributes[key].(float64); ok {
		return v
	}
	return 0
}

// Client is a minimal Home Assistant REST client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logger.Logger
}

// New creates a hub client.
func New(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hub config: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutS) * time.Second},
		log:     logger.New("homeassistant"),
	}, nil
}

// State fetches the current state of one entity.
func (c *Client) State(ctx context.Context, entityID string) (EntityState, error) {
	url := fmt.Sprintf("%s/api/states/%s", c.baseURL, entityID)
	c.log.Debugf("fetching state for %s", entityID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return EntityState{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return EntityState{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return EntityState{}, fmt.Errorf("entity %s not found", entityID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return EntityState{}, fmt.Errorf("hub HTTP %d: %s", resp.StatusCode, string(body))
	}

	var st EntityState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return EntityState{}, fmt.Errorf("failed to decode state of %s: %w", entityID, err)
	}
	return st, nil
}
