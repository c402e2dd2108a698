// Package models holds reference atomic models. Their init() registers them
// with arch.Default, so importing this package for its side effect makes the
// kinds available to architecture files.
package models

import "github.com/devs-sim/devs-sim/sim/arch"

// Kind names as used in architecture files.
const (
	KindGenerator  = "generator"
	KindCounter    = "counter"
	KindHeater     = "heater"
	KindRoom       = "room"
	KindThermostat = "thermostat"
)

// Variable type tags used by the reference models.
const (
	TypeFloat = "float"
	TypeInt   = "int"
	TypeBool  = "bool"
)

func init() {
	Register(arch.Default)
}

// Register adds every reference kind and converter to reg.
func Register(reg *arch.Registry) {
	reg.RegisterKind(KindGenerator, NewGenerator)
	reg.RegisterKind(KindCounter, NewCounter)
	reg.RegisterKind(KindHeater, NewHeater)
	reg.RegisterKind(KindRoom, NewRoom)
	reg.RegisterKind(KindThermostat, NewThermostat)
	reg.RegisterConverter("invert", Invert)
	reg.RegisterConverter("celsius-to-fahrenheit", CelsiusToFahrenheit)
	reg.RegisterConverter("to-switch-on", ToSwitch(true))
	reg.RegisterConverter("to-switch-off", ToSwitch(false))
}
