package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/trace"
)

// Coordinator is the Engine of one coupled model. Each step fires the
// imminent submodel, gives every submodel that received input an external
// transition, then closes the step with CommitStep.
//
// Callers must ask the coupled model for its Output before an internal or
// confluent step: Output is what routes the imminent submodel's events to
// their sinks.
type Coordinator struct {
	model   *sim.CoupledModel
	policy  ConfluentPolicy
	debug   sim.DebugLevel
	metrics *Metrics
	trace   *trace.SimulationTrace
}

// NewCoordinator creates a coordinator for m and attaches it as m's engine.
func NewCoordinator(m *sim.CoupledModel, opts Options) *Coordinator {
	opts = opts.withDefaults()
	c := &Coordinator{
		model:   m,
		policy:  opts.Policy,
		debug:   opts.DebugLevel,
		metrics: opts.Metrics,
		trace:   opts.Trace,
	}
	m.AttachEngine(c)
	return c
}

// Model returns the coupled model driven by c.
func (c *Coordinator) Model() *sim.CoupledModel { return c.model }

// Policy returns the confluent policy in use.
func (c *Coordinator) Policy() ConfluentPolicy { return c.policy }

func (c *Coordinator) DebugLevel() sim.DebugLevel { return c.debug }

// InternalEventStep fires the coupled model's next event.
func (c *Coordinator) InternalEventStep() error {
	t := c.model.TimeOfNextEvent()
	if t.IsInfinite() {
		return fmt.Errorf("%s: internal step with no scheduled event: %w", c.model.ID(), sim.ErrState)
	}
	return c.step(t, trace.StepInternal, true)
}

// ExternalEventStep processes input that arrived elapsed after the last
// transition. The imminent submodel does not fire, even when its event falls
// at the same time.
func (c *Coordinator) ExternalEventStep(elapsed sim.Duration) error {
	t := c.model.CurrentStateTime().Add(elapsed)
	if elapsed.Sign() < 0 || t.After(c.model.TimeOfNextEvent()) {
		return fmt.Errorf("%s: external step at %s outside [%s, %s]",
			c.model.ID(), t, c.model.CurrentStateTime(), c.model.TimeOfNextEvent())
	}
	return c.step(t, trace.StepExternal, false)
}

// ConfluentEventStep processes input arriving exactly at the next event.
func (c *Coordinator) ConfluentEventStep(elapsed sim.Duration) error {
	t := c.model.CurrentStateTime().Add(elapsed)
	if !t.Equal(c.model.TimeOfNextEvent()) {
		return fmt.Errorf("%s: confluent step at %s but next event is at %s",
			c.model.ID(), t, c.model.TimeOfNextEvent())
	}
	return c.step(t, trace.StepConfluent, true)
}

func (c *Coordinator) step(t sim.Time, kind trace.StepKind, fire bool) error {
	var imminent sim.Model
	if fire {
		imminent = c.model.SubmodelOfNextEvent()
		if imminent == nil {
			return fmt.Errorf("%s: %s step without an imminent submodel: %w", c.model.ID(), kind, sim.ErrState)
		}
		if !imminent.TimeOfNextEvent().Equal(t) {
			return fmt.Errorf("%s: imminent submodel %s is scheduled at %s, not %s",
				c.model.ID(), imminent.ID(), imminent.TimeOfNextEvent(), t)
		}
		elapsed := t.Subtract(imminent.CurrentStateTime())
		if c.model.IsActive(imminent.ID()) {
			subKind, err := c.policy.Resolve(imminent, elapsed)
			if err != nil {
				return fmt.Errorf("%s: %w", c.model.ID(), err)
			}
			c.metrics.ObserveTransition(imminent.ID(), subKind)
		} else {
			if err := imminent.InternalTransition(); err != nil {
				return fmt.Errorf("%s: %w", c.model.ID(), err)
			}
			c.metrics.ObserveTransition(imminent.ID(), trace.StepInternal)
		}
	}

	var influenced []string
	for _, sub := range c.model.ActiveSubmodels() {
		if sub == imminent {
			continue
		}
		if err := sub.ExternalTransition(t.Subtract(sub.CurrentStateTime())); err != nil {
			return fmt.Errorf("%s: %w", c.model.ID(), err)
		}
		c.metrics.ObserveTransition(sub.ID(), trace.StepExternal)
		influenced = append(influenced, sub.ID())
	}

	if err := c.model.CommitStep(t); err != nil {
		return err
	}
	c.record(t, kind, imminent, influenced)
	return nil
}

func (c *Coordinator) record(t sim.Time, kind trace.StepKind, imminent sim.Model, influenced []string) {
	imminentID := ""
	if imminent != nil {
		imminentID = imminent.ID()
	}
	if c.debug >= sim.DebugFull {
		logrus.WithFields(logrus.Fields{
			"model": c.model.ID(),
			"time":  t.String(),
		}).Debugf("%s step: imminent=%q influenced=%v", kind, imminentID, influenced)
	}
	c.metrics.ObserveStep(c.model.ID(), kind)
	if c.trace == nil || (c.trace.Config.RootOnly && !c.model.IsRoot()) {
		return
	}
	c.trace.RecordStep(trace.StepRecord{
		ModelID:     c.model.ID(),
		Time:        t.String(),
		TimeSeconds: t.Seconds(),
		Kind:        kind,
		Imminent:    imminentID,
		Influenced:  influenced,
	})
}
