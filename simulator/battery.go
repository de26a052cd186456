package simulator

import (
	"math"
	"time"
)

// Battery models the simulated pack. Energy is tracked in kWh so repeated
// hour steps do not accumulate percent rounding.
type Battery struct {
	CapacityKWh  float64
	ChargeRateKW float64
	energyKWh    float64
}

// NewBattery returns a battery filled to soc percent.
func NewBattery(capacityKWh, chargeRateKW float64, soc int) *Battery {
	b := &Battery{CapacityKWh: capacityKWh, ChargeRateKW: chargeRateKW}
	b.energyKWh = capacityKWh * float64(soc) / 100
	b.clamp()
	return b
}

// Charge stores up to powerKW for dt, limited by the charge rate and the
// remaining headroom, and returns the energy actually stored.
func (b *Battery) Charge(powerKW float64, dt time.Duration) float64 {
	hours := dt.Hours()
	if hours <= 0 || powerKW <= 0 {
		return 0
	}
	if powerKW > b.ChargeRateKW {
		powerKW = b.ChargeRateKW
	}
	stored := powerKW * hours
	if room := b.CapacityKWh - b.energyKWh; stored > room {
		stored = room
	}
	if stored < 0 {
		stored = 0
	}
	b.energyKWh += stored
	return stored
}

// Drain removes the energy spent driving, clamped at empty.
func (b *Battery) Drain(kwh float64) {
	b.energyKWh -= kwh
	b.clamp()
}

// SoC returns the state of charge as a rounded percent.
func (b *Battery) SoC() int {
	if b.CapacityKWh <= 0 {
		return 0
	}
	return int(math.Round(b.energyKWh / b.CapacityKWh * 100))
}

// EnergyKWh returns the energy currently stored.
func (b *Battery) EnergyKWh() float64 {
	return b.energyKWh
}

func (b *Battery) clamp() {
	if b.energyKWh < 0 {
		b.energyKWh = 0
	}
	if b.energyKWh > b.CapacityKWh {
		b.energyKWh = b.CapacityKWh
	}
}
