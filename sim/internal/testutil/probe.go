// Package testutil provides shared test infrastructure for the DEVS kernel.
// It consolidates the scriptable probe model and assertion helpers used
// across the sim/, sim/engine/ and sim/arch/ test packages.
package testutil

import (
	"fmt"
	"strings"

	"github.com/devs-sim/devs-sim/sim"
)

// Log records transitions across several probes in the order they happen.
type Log struct {
	Entries []string
}

func (l *Log) add(format string, args ...any) {
	if l != nil {
		l.Entries = append(l.Entries, fmt.Sprintf(format, args...))
	}
}

// String joins the entries with spaces.
func (l *Log) String() string { return strings.Join(l.Entries, " ") }

// Reset drops every entry.
func (l *Log) Reset() { l.Entries = l.Entries[:0] }

// ProbeConfig declares a probe model.
type ProbeConfig struct {
	ID   string
	Unit sim.TimeUnit // zero value is Nanosecond; most tests want sim.Second
	// Period is the time between internal events; 0 makes the probe passive.
	Period int64
	// Emit is the event type emitted at every internal event, carrying the
	// 1-based internal event count. Empty emits nothing.
	Emit         sim.EventType
	Imports      []sim.EventType
	Exports      []sim.EventType
	Variables    []sim.VariableSpec
	UsesFixpoint bool
	// Confluent gives the probe a dedicated confluent transition.
	Confluent bool
	Log       *Log
}

// Probe is an atomic behaviour that keeps its schedule across external
// events and records everything the kernel asks of it.
type Probe struct {
	cfg       ProbeConfig
	M         *sim.Atomic
	Received  []sim.Event
	Elapsed   []sim.Duration
	remaining sim.Duration
	fired     int
}

type confluentProbe struct{ *Probe }

func (p confluentProbe) ConfluentTransition(elapsed sim.Duration, inputs []sim.Event) error {
	p.cfg.Log.add("%s:conf@%s", p.cfg.ID, p.M.CurrentStateTime())
	p.fired++
	p.Received = append(p.Received, inputs...)
	p.Elapsed = append(p.Elapsed, elapsed)
	p.remaining = p.period()
	return nil
}

// NewProbe builds the probe and its atomic wrapper.
func NewProbe(cfg ProbeConfig) (*Probe, error) {
	p := &Probe{cfg: cfg}
	exports := append([]sim.EventType(nil), cfg.Exports...)
	if cfg.Emit != "" && !contains(exports, cfg.Emit) {
		exports = append(exports, cfg.Emit)
	}
	var b sim.AtomicBehavior = p
	if cfg.Confluent {
		b = confluentProbe{p}
	}
	m, err := sim.NewAtomic(sim.AtomicConfig{
		ID:             cfg.ID,
		TimeUnit:       cfg.Unit,
		ImportedEvents: cfg.Imports,
		ExportedEvents: exports,
		Variables:      cfg.Variables,
		UsesFixpoint:   cfg.UsesFixpoint,
	}, b)
	if err != nil {
		return nil, err
	}
	p.M = m
	return p, nil
}

// MustProbe is NewProbe for tests; it panics on a construction error.
func MustProbe(cfg ProbeConfig) *Probe {
	p, err := NewProbe(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

func contains(types []sim.EventType, t sim.EventType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func (p *Probe) period() sim.Duration {
	if p.cfg.Period <= 0 {
		return sim.InfiniteDuration(p.cfg.Unit)
	}
	return sim.NewDuration(p.cfg.Period, p.cfg.Unit)
}

func (p *Probe) InitialiseState(_ *sim.Atomic, _ sim.Time) error {
	p.remaining = p.period()
	p.fired = 0
	p.Received = nil
	p.Elapsed = nil
	return nil
}

func (p *Probe) TimeAdvance() sim.Duration { return p.remaining }

func (p *Probe) Output() ([]sim.Event, error) {
	if p.cfg.Emit == "" {
		return nil, nil
	}
	return []sim.Event{sim.NewEvent(p.cfg.Emit, p.fired+1)}, nil
}

func (p *Probe) InternalTransition() error {
	p.cfg.Log.add("%s:int@%s", p.cfg.ID, p.M.CurrentStateTime())
	p.fired++
	p.remaining = p.period()
	return nil
}

func (p *Probe) ExternalTransition(elapsed sim.Duration, inputs []sim.Event) error {
	p.cfg.Log.add("%s:ext@%s", p.cfg.ID, p.M.CurrentStateTime())
	p.Received = append(p.Received, inputs...)
	p.Elapsed = append(p.Elapsed, elapsed)
	if !p.remaining.IsInfinite() {
		p.remaining = p.remaining.Subtract(elapsed)
	}
	return nil
}

// Fired returns the number of internal events so far.
func (p *Probe) Fired() int { return p.fired }

// Report returns the wrapper's report.
func (p *Probe) Report() *sim.AtomicReport {
	return p.M.FinalReport().(*sim.AtomicReport)
}
