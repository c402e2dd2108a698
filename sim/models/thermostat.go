package models

import (
	"fmt"
	"math/rand"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/arch"
)

// Thermostat turns the heater on below low and off above high.
type Thermostat struct {
	low  float64
	high float64
	unit sim.TimeUnit

	pending *bool
	lastOn  *bool
}

// NewThermostat builds a thermostat. Params: low/high setpoints (°C,
// default 20/22).
func NewThermostat(id string, unit sim.TimeUnit, p arch.Params, _ *rand.Rand) (*sim.Atomic, error) {
	low, err := p.Float("low", 20)
	if err != nil {
		return nil, err
	}
	high, err := p.Float("high", 22)
	if err != nil {
		return nil, err
	}
	if low >= high {
		return nil, fmt.Errorf("low setpoint %g must be below high %g", low, high)
	}
	th := &Thermostat{low: low, high: high, unit: unit}
	return sim.NewAtomic(sim.AtomicConfig{
		ID:             id,
		TimeUnit:       unit,
		ImportedEvents: []sim.EventType{EventReading},
		ExportedEvents: []sim.EventType{EventSwitch},
	}, th)
}

func (th *Thermostat) InitialiseState(*sim.Atomic, sim.Time) error {
	th.pending = nil
	th.lastOn = nil
	return nil
}

func (th *Thermostat) TimeAdvance() sim.Duration {
	if th.pending != nil {
		return sim.ZeroDuration(th.unit)
	}
	return sim.InfiniteDuration(th.unit)
}

func (th *Thermostat) Output() ([]sim.Event, error) {
	if th.pending == nil {
		return nil, nil
	}
	return []sim.Event{sim.NewEvent(EventSwitch, *th.pending)}, nil
}

func (th *Thermostat) InternalTransition() error {
	th.lastOn = th.pending
	th.pending = nil
	return nil
}

func (th *Thermostat) ExternalTransition(_ sim.Duration, inputs []sim.Event) error {
	for _, ev := range inputs {
		p, _ := sim.Payload(ev)
		temp, ok := p.(float64)
		if !ok {
			return fmt.Errorf("reading payload is %T, not float64", p)
		}
		var want bool
		switch {
		case temp < th.low:
			want = true
		case temp > th.high:
			want = false
		default:
			continue
		}
		if th.lastOn == nil || *th.lastOn != want {
			th.pending = &want
		}
	}
	return nil
}
