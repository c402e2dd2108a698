package models

import (
	"fmt"
	"math/rand"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/arch"
)

// EventReading carries a sampled room temperature in degrees Celsius.
const EventReading sim.EventType = "reading"

// Room is a thermal HIOA using fixpoint initialisation: "temperature"
// starts at the steady state for the imported "power", and "comfort"
// depends on "temperature". Every sample period it integrates
//
//	dT/dt = loss*(outside - T) + gain*power
//
// with an explicit Euler step and emits a reading.
type Room struct {
	outside float64
	loss    float64
	gain    float64
	low     float64
	high    float64
	sample  sim.Duration
	m       *sim.Atomic
}

// NewRoom builds a room. Params: outside (°C, default 5), loss (1/s,
// default 0.001), gain (°C/J, default 0.00002), comfort_low/comfort_high
// (°C, default 19/23), sample period (default 60).
func NewRoom(id string, unit sim.TimeUnit, p arch.Params, _ *rand.Rand) (*sim.Atomic, error) {
	r := &Room{}
	var err error
	floats := []struct {
		name string
		def  float64
		dst  *float64
	}{
		{"outside", 5, &r.outside},
		{"loss", 0.001, &r.loss},
		{"gain", 0.00002, &r.gain},
		{"comfort_low", 19, &r.low},
		{"comfort_high", 23, &r.high},
	}
	for _, f := range floats {
		if *f.dst, err = p.Float(f.name, f.def); err != nil {
			return nil, err
		}
	}
	if r.loss <= 0 {
		return nil, fmt.Errorf("loss must be positive, got %g", r.loss)
	}
	sample, err := p.Float("sample", 60)
	if err != nil {
		return nil, err
	}
	if sample <= 0 {
		return nil, fmt.Errorf("sample must be positive, got %g", sample)
	}
	r.sample = sim.DurationFromFloat(sample, unit)

	return sim.NewAtomic(sim.AtomicConfig{
		ID:             id,
		TimeUnit:       unit,
		ExportedEvents: []sim.EventType{EventReading},
		UsesFixpoint:   true,
		Variables: []sim.VariableSpec{
			{Name: "power", Type: TypeFloat, Visibility: sim.Imported},
			{
				Name:       "temperature",
				Type:       TypeFloat,
				Visibility: sim.Exported,
				DependsOn:  []string{"power"},
				Initialise: func(vr sim.VariableReader, _ sim.Time) (any, error) {
					power, err := readFloat(vr, "power")
					if err != nil {
						return nil, err
					}
					return r.outside + r.gain*power/r.loss, nil
				},
			},
			{
				Name:       "comfort",
				Type:       TypeBool,
				Visibility: sim.Exported,
				DependsOn:  []string{"temperature"},
				Initialise: func(vr sim.VariableReader, _ sim.Time) (any, error) {
					temp, err := readFloat(vr, "temperature")
					if err != nil {
						return nil, err
					}
					return r.comfortable(temp), nil
				},
			},
		},
	}, r)
}

func readFloat(vr sim.VariableReader, name string) (float64, error) {
	v, ok := vr.Variable(name)
	if !ok {
		return 0, fmt.Errorf("variable %q is not bound", name)
	}
	return v.Float64()
}

func (r *Room) comfortable(temp float64) bool { return temp >= r.low && temp <= r.high }

func (r *Room) InitialiseState(m *sim.Atomic, _ sim.Time) error {
	r.m = m
	return nil
}

func (r *Room) TimeAdvance() sim.Duration { return r.sample }

// Output reports the temperature integrated up to the sampling instant.
func (r *Room) Output() ([]sim.Event, error) {
	temp, err := r.integrate(r.m.TimeAdvance())
	if err != nil {
		return nil, err
	}
	return []sim.Event{sim.NewEvent(EventReading, temp)}, nil
}

func (r *Room) integrate(dt sim.Duration) (float64, error) {
	temp, err := readFloat(r.m, "temperature")
	if err != nil {
		return 0, err
	}
	power, err := readFloat(r.m, "power")
	if err != nil {
		return 0, err
	}
	return temp + dt.Seconds()*(r.loss*(r.outside-temp)+r.gain*power), nil
}

func (r *Room) InternalTransition() error {
	temp, err := r.integrate(r.sample)
	if err != nil {
		return err
	}
	t := r.m.CurrentStateTime()
	tv, _ := r.m.Variable("temperature")
	tv.Set(temp, t)
	cv, _ := r.m.Variable("comfort")
	cv.Set(r.comfortable(temp), t)
	return nil
}

func (r *Room) ExternalTransition(sim.Duration, []sim.Event) error { return nil }
