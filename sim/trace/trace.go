package trace

// TraceLevel controls the verbosity of step tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSteps captures every coupled-model step and fixpoint round.
	TraceLevelSteps TraceLevel = "steps"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:  true,
	TraceLevelSteps: true,
	"":              true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// RootOnly drops records of nested coupled models.
	RootOnly bool
}

// SimulationTrace collects records during a simulation run.
type SimulationTrace struct {
	Config   TraceConfig
	Steps    []StepRecord
	Fixpoint []FixpointRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Steps:    make([]StepRecord, 0),
		Fixpoint: make([]FixpointRecord, 0),
	}
}

// RecordStep appends a step record.
func (st *SimulationTrace) RecordStep(record StepRecord) {
	st.Steps = append(st.Steps, record)
}

// RecordFixpoint appends a fixpoint round record.
func (st *SimulationTrace) RecordFixpoint(record FixpointRecord) {
	st.Fixpoint = append(st.Fixpoint, record)
}
