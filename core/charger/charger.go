// Package charger defines the boundary between decisions and the physical
// charge point. The MQTT implementation lives under infra/mqtt.
package charger

import (
	"context"
	"errors"
	"time"
)

// State is the last status the charge point reported about itself.
type State struct {
	ChargerID string    `json:"charger_id"`
	Online    bool      `json:"online"`
	Charging  bool      `json:"charging"`
	Plugged   bool      `json:"plugged"`
	// Phases is the number of phases the connected vehicle draws on,
	// zero when nothing is plugged.
	Phases     int       `json:"phases"`
	PowerKW    float64   `json:"power_kw"`
	ReportedAt time.Time `json:"reported_at"`
}

// Commander sends start/stop commands to the charge point and confirms they
// were applied.
type Commander interface {
	// Start begins delivery at up to maxCurrentA and returns the command
	// identifier used to track the acknowledgment.
	Start(ctx context.Context, maxCurrentA int) (commandID string, err error)

	// Stop halts delivery.
	Stop(ctx context.Context) (commandID string, err error)

	// WaitForAck blocks until the charge point acknowledged the command or
	// the timeout expired.
	WaitForAck(commandID string, timeout time.Duration) error

	// State returns the last reported charge point state. The second return
	// is false before the first report arrives.
	State() (State, bool)
}

// ErrAckTimeout is returned when no acknowledgment arrives before the
// timeout.
var ErrAckTimeout = errors.New("timeout waiting for charger ack")

// ErrUnplugged is returned when a start command is refused because the
// charge point reports no vehicle connected.
var ErrUnplugged = errors.New("charger reports no vehicle plugged")
