// Package sim provides the DEVS simulation kernel: the model contract, the
// atomic wrapper and the coupled-model coordinator.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - model.go: the Model contract every submodel satisfies, and the Engine interface
//   - atomic.go: the leaf wrapper doing time bookkeeping around an AtomicBehavior
//   - coupled.go: construction and validation of a coupled model's routing tables
//   - coupled_scheduling.go: next-event selection, transitions and CommitStep
//   - coupled_variables.go: variable binding by aliasing and fixpoint initialisation
//
// # Architecture
//
// The sim package defines the model types and routing; the code that drives
// them lives in sub-packages:
//   - sim/engine/: per-coupled-model coordinators and the root Runner
//   - sim/arch/: architecture descriptors, YAML loading and tree building
//   - sim/models/: reference atomic models registered into sim/arch
//   - sim/trace/: step and fixpoint trace recording
//
// A CoupledModel never performs transitions itself. It forwards them to the
// Engine attached with AttachEngine, which steps the submodels and closes the
// step with CommitStep.
//
// # Time
//
// Time and Duration are exact rationals tagged with a TimeUnit. Infinity is
// the greatest element and absorbs addition; subtracting infinity from a
// finite value panics.
package sim
