package config

import (
	"fmt"
	"time"
)

// CycleConfig paces the decision loop.
type CycleConfig struct {
	IntervalMin int `json:"interval_min"`
}

// SetDefaults fills unset fields.
func (c *CycleConfig) SetDefaults() {
	if c.IntervalMin == 0 {
		c.IntervalMin = 60
	}
}

// Validate rejects unusable intervals.
func (c *CycleConfig) Validate() error {
	if c.IntervalMin <= 0 {
		return fmt.Errorf("interval_min must be positive")
	}
	return nil
}

// Interval returns the cycle period as a duration.
func (c CycleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMin) * time.Minute
}
