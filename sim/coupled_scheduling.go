package sim

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

func (c *CoupledModel) State() ModelState      { return c.state }
func (c *CoupledModel) CurrentStateTime() Time { return c.tCurrent }
func (c *CoupledModel) TimeOfNextEvent() Time  { return c.tNext }

// TimeAdvance returns the value cached by the last scan; it is never
// recomputed on demand.
func (c *CoupledModel) TimeAdvance() Duration { return c.nextTA }

// SubmodelOfNextEvent returns the submodel selected to fire next, or nil
// when no submodel has a finite next event.
func (c *CoupledModel) SubmodelOfNextEvent() Model { return c.next }

// ElapsedTimes returns, per submodel, the time elapsed between the
// submodel's last transition and the coupled model's current state time.
func (c *CoupledModel) ElapsedTimes() []Duration {
	return append([]Duration(nil), c.elapsed...)
}

// IsActive reports whether the submodel received input during the current step.
func (c *CoupledModel) IsActive(id string) bool { return c.active[id] }

// ActiveSubmodels returns the submodels with pending input, in declaration order.
func (c *CoupledModel) ActiveSubmodels() []Model {
	var out []Model
	for _, sub := range c.submodels {
		if c.active[sub.ID()] {
			out = append(out, sub)
		}
	}
	return out
}

func (c *CoupledModel) debugLevel() DebugLevel {
	if c.engine == nil {
		return DebugNone
	}
	return c.engine.DebugLevel()
}

// InitialiseState initialises every submodel at t0 and picks the submodel
// with the earliest next event, the first one in declaration order on ties.
func (c *CoupledModel) InitialiseState(t0 Time) error {
	if c.state == Stepping || c.state == Ended {
		return &StateError{ModelID: c.id, Op: "InitialiseState", State: c.state}
	}
	for _, sub := range c.submodels {
		if err := sub.InitialiseState(t0); err != nil {
			return fmt.Errorf("%s: %w", c.id, err)
		}
	}
	c.tCurrent = t0.In(c.unit)
	c.elapsed = make([]Duration, len(c.submodels))
	for i := range c.elapsed {
		c.elapsed[i] = ZeroDuration(c.unit)
	}
	c.active = make(map[string]bool, len(c.submodels))
	c.pendingInput = false
	c.report = CoupledReport{ID: c.id}
	c.scan(false)
	c.state = Initialised
	return nil
}

// scan recomputes the next event. Ties go to the first candidate unless
// useTieBreaker is set, in which case the TieBreaker decides.
func (c *CoupledModel) scan(useTieBreaker bool) {
	var candidates []Model
	earliest := InfiniteTime(c.unit)
	for _, sub := range c.submodels {
		t := sub.TimeOfNextEvent()
		if t.IsInfinite() {
			continue
		}
		switch t.Cmp(earliest) {
		case -1:
			earliest = t
			candidates = append(candidates[:0], sub)
		case 0:
			candidates = append(candidates, sub)
		}
	}
	c.tNext = earliest.In(c.unit)
	c.nextTA = c.tNext.Subtract(c.tCurrent)
	switch {
	case len(candidates) == 0:
		c.next = nil
	case len(candidates) > 1 && useTieBreaker:
		c.next = c.Select(candidates)
	default:
		c.next = candidates[0]
	}
	if c.debugLevel() >= DebugBasic {
		next := "none"
		if c.next != nil {
			next = c.next.ID()
		}
		logrus.WithFields(logrus.Fields{
			"model": c.id,
			"time":  c.tCurrent.String(),
		}).Debugf("next event at %s from %s (%d candidate(s))", c.tNext, next, len(candidates))
	}
}

// Select breaks a tie among submodels with the same next-event time.
func (c *CoupledModel) Select(candidates []Model) Model {
	if len(candidates) == 0 {
		return nil
	}
	chosen := c.tieBreaker.Select(candidates)
	for _, m := range candidates {
		if m == chosen {
			return chosen
		}
	}
	logrus.Warnf("%s: tie breaker returned a non-candidate; using %s", c.id, candidates[0].ID())
	return candidates[0]
}

// InternalTransition forwards to the engine's internal event step.
func (c *CoupledModel) InternalTransition() error {
	return c.forward("InternalTransition", &c.report.Internal, func(e Engine) error { return e.InternalEventStep() })
}

// ExternalTransition forwards to the engine's external event step.
func (c *CoupledModel) ExternalTransition(elapsed Duration) error {
	return c.forward("ExternalTransition", &c.report.External, func(e Engine) error { return e.ExternalEventStep(elapsed) })
}

// ConfluentTransition forwards to the engine's confluent event step.
func (c *CoupledModel) ConfluentTransition(elapsed Duration) error {
	return c.forward("ConfluentTransition", &c.report.Confluent, func(e Engine) error { return e.ConfluentEventStep(elapsed) })
}

// forward runs one engine step. A step in progress rejects any other
// transition on the same instance.
func (c *CoupledModel) forward(op string, counter *int, step func(Engine) error) error {
	if c.state != Initialised {
		return &StateError{ModelID: c.id, Op: op, State: c.state}
	}
	if c.engine == nil {
		return fmt.Errorf("%s: %s without an attached engine: %w", c.id, op, ErrState)
	}
	c.state = Stepping
	err := step(c.engine)
	if c.state == Stepping {
		c.state = Initialised
	}
	if err == nil {
		*counter++
	}
	return err
}

// CommitStep closes a step at time t: the engine calls it after running
// the submodel transitions. It refreshes the elapsed times, clears the
// active set and selects the next event.
func (c *CoupledModel) CommitStep(t Time) error {
	if c.state != Stepping {
		return &StateError{ModelID: c.id, Op: "CommitStep", State: c.state}
	}
	c.tCurrent = t.In(c.unit)
	for i, sub := range c.submodels {
		e := c.tCurrent.Subtract(sub.CurrentStateTime())
		if e.Sign() < 0 {
			return fmt.Errorf("%s: submodel %s is ahead of its parent (%s > %s)", c.id, sub.ID(), sub.CurrentStateTime(), c.tCurrent)
		}
		c.elapsed[i] = e
	}
	for id := range c.active {
		delete(c.active, id)
	}
	c.pendingInput = false
	c.report.Steps++
	c.scan(true)
	return nil
}

// EndSimulation ends every submodel, depth first, then this model.
func (c *CoupledModel) EndSimulation(t Time) error {
	if c.state == Stepping {
		return &StateError{ModelID: c.id, Op: "EndSimulation", State: c.state}
	}
	for _, sub := range c.submodels {
		if err := sub.EndSimulation(t); err != nil {
			return fmt.Errorf("%s: %w", c.id, err)
		}
	}
	c.report.EndTime = t.In(c.unit)
	c.state = Ended
	return nil
}

// FinalReport returns this model's report with its submodels' reports nested.
func (c *CoupledModel) FinalReport() Report {
	r := c.report
	r.Submodels = make([]Report, len(c.submodels))
	for i, sub := range c.submodels {
		r.Submodels[i] = sub.FinalReport()
	}
	return &r
}

// CoupledReport summarises a coupled model's run.
type CoupledReport struct {
	ID             string
	Steps          int
	Internal       int
	External       int
	Confluent      int
	FixpointRounds int
	EndTime        Time
	Submodels      []Report
}

func (r *CoupledReport) ModelID() string { return r.ID }

func (r *CoupledReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: steps=%d internal=%d external=%d confluent=%d fixpoint_rounds=%d end=%s",
		r.ID, r.Steps, r.Internal, r.External, r.Confluent, r.FixpointRounds, r.EndTime)
	for _, sub := range r.Submodels {
		for _, line := range strings.Split(sub.String(), "\n") {
			b.WriteString("\n  " + line)
		}
	}
	return b.String()
}
