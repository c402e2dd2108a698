package models

import "github.com/devs-sim/devs-sim/sim"

// Invert negates a boolean payload. Other events pass unchanged.
func Invert(ev sim.Event) sim.Event {
	p, ok := sim.Payload(ev)
	if b, isBool := p.(bool); ok && isBool {
		return sim.NewEvent(ev.Type(), !b)
	}
	return ev
}

// CelsiusToFahrenheit converts a numeric payload.
func CelsiusToFahrenheit(ev sim.Event) sim.Event {
	p, _ := sim.Payload(ev)
	if c, ok := p.(float64); ok {
		return sim.NewEvent(ev.Type(), c*9/5+32)
	}
	return ev
}

// ToSwitch replaces any event with a switch command carrying on.
func ToSwitch(on bool) sim.EventConverter {
	return func(sim.Event) sim.Event { return sim.NewEvent(EventSwitch, on) }
}
