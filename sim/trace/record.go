// Package trace provides step and fixpoint trace recording for a simulation run.
// This package has no dependencies on sim/ or sim/engine/; it stores pure data types.
package trace

// StepKind names the transition a coordinator performed on a submodel.
type StepKind string

const (
	StepInternal  StepKind = "internal"
	StepExternal  StepKind = "external"
	StepConfluent StepKind = "confluent"
)

// StepRecord captures one coupled-model step.
type StepRecord struct {
	ModelID     string   // coupled model that stepped
	Time        string   // exact simulated time, e.g. "7/2s"
	TimeSeconds float64  // same time as a float for plotting
	Kind        StepKind // transition requested by the parent or runner
	Imminent    string   // submodel whose next event fired; empty on pure external steps
	Influenced  []string // submodels given an external transition, declaration order
}

// FixpointRecord captures one round of root fixpoint initialisation.
type FixpointRecord struct {
	ModelID         string
	Round           int
	JustInitialised int
	StillPending    int
}
