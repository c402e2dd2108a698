package engine

import (
	"fmt"
	"sort"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/trace"
)

// ConfluentPolicy decides how a coordinator steps an imminent submodel that
// also received input in the same step.
type ConfluentPolicy interface {
	Name() string
	// Resolve performs the transition(s) on m, elapsed being the time since
	// m's last transition. It returns the kind of step recorded for m.
	Resolve(m sim.Model, elapsed sim.Duration) (trace.StepKind, error)
}

// ConfluentTransitionPolicy delegates to the submodel's own confluent transition.
type ConfluentTransitionPolicy struct{}

func (ConfluentTransitionPolicy) Name() string { return "confluent" }

func (ConfluentTransitionPolicy) Resolve(m sim.Model, elapsed sim.Duration) (trace.StepKind, error) {
	return trace.StepConfluent, m.ConfluentTransition(elapsed)
}

// InternalFirstPolicy fires the internal transition, then delivers the input
// with a zero elapsed time.
type InternalFirstPolicy struct{}

func (InternalFirstPolicy) Name() string { return "internal-first" }

func (InternalFirstPolicy) Resolve(m sim.Model, _ sim.Duration) (trace.StepKind, error) {
	if err := m.InternalTransition(); err != nil {
		return trace.StepInternal, err
	}
	return trace.StepInternal, m.ExternalTransition(sim.ZeroDuration(m.TimeUnit()))
}

// ExternalFirstPolicy applies only the external transition. The internal
// event is superseded by whatever the external transition schedules; nested
// coupled models fire their imminent children in a later step at the same time.
type ExternalFirstPolicy struct{}

func (ExternalFirstPolicy) Name() string { return "external-first" }

func (ExternalFirstPolicy) Resolve(m sim.Model, elapsed sim.Duration) (trace.StepKind, error) {
	return trace.StepExternal, m.ExternalTransition(elapsed)
}

var policies = map[string]ConfluentPolicy{
	"confluent":      ConfluentTransitionPolicy{},
	"internal-first": InternalFirstPolicy{},
	"external-first": ExternalFirstPolicy{},
}

// PolicyNames returns the accepted confluent policy names, sorted.
func PolicyNames() []string {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewConfluentPolicy returns the policy registered under name. The empty
// name selects ConfluentTransitionPolicy.
func NewConfluentPolicy(name string) (ConfluentPolicy, error) {
	if name == "" {
		return ConfluentTransitionPolicy{}, nil
	}
	p, ok := policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown confluent policy %q; valid: %v", name, PolicyNames())
	}
	return p, nil
}
