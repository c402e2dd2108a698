package models

import (
	"math/rand"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/arch"
)

// Heater events.
const (
	// EventSwitch turns the heater on (payload true), off (false) or
	// toggles it (no boolean payload).
	EventSwitch sim.EventType = "switch"
	// EventHeaterState reports the new state after every switch.
	EventHeaterState sim.EventType = "heater_state"
)

// Heater is an HIOA exporting its power draw as the variable "power".
type Heater struct {
	power float64
	on0   bool
	unit  sim.TimeUnit
	m     *sim.Atomic

	on     bool
	report bool
}

// NewHeater builds a heater. Params: power in watts (default 1000),
// initially_on (default false).
func NewHeater(id string, unit sim.TimeUnit, p arch.Params, _ *rand.Rand) (*sim.Atomic, error) {
	power, err := p.Float("power", 1000)
	if err != nil {
		return nil, err
	}
	on0, err := p.Bool("initially_on", false)
	if err != nil {
		return nil, err
	}
	h := &Heater{power: power, on0: on0, unit: unit}
	return sim.NewAtomic(sim.AtomicConfig{
		ID:             id,
		TimeUnit:       unit,
		ImportedEvents: []sim.EventType{EventSwitch},
		ExportedEvents: []sim.EventType{EventHeaterState},
		Variables: []sim.VariableSpec{{
			Name:       "power",
			Type:       TypeFloat,
			Visibility: sim.Exported,
			Initialise: func(sim.VariableReader, sim.Time) (any, error) { return h.draw(), nil },
		}},
	}, h)
}

func (h *Heater) draw() float64 {
	if h.on {
		return h.power
	}
	return 0
}

func (h *Heater) InitialiseState(m *sim.Atomic, _ sim.Time) error {
	h.m = m
	h.on = h.on0
	h.report = false
	return nil
}

func (h *Heater) TimeAdvance() sim.Duration {
	if h.report {
		return sim.ZeroDuration(h.unit)
	}
	return sim.InfiniteDuration(h.unit)
}

func (h *Heater) Output() ([]sim.Event, error) {
	if !h.report {
		return nil, nil
	}
	return []sim.Event{sim.NewEvent(EventHeaterState, h.on)}, nil
}

func (h *Heater) InternalTransition() error {
	h.report = false
	return nil
}

func (h *Heater) ExternalTransition(_ sim.Duration, inputs []sim.Event) error {
	for _, ev := range inputs {
		p, _ := sim.Payload(ev)
		if on, ok := p.(bool); ok {
			h.on = on
		} else {
			h.on = !h.on
		}
	}
	if v, ok := h.m.Variable("power"); ok {
		v.Set(h.draw(), h.m.CurrentStateTime())
	}
	h.report = true
	return nil
}

// On reports whether the heater is running.
func (h *Heater) On() bool { return h.on }
