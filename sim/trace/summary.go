package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalSteps           int
	InternalCount        int
	ExternalCount        int
	ConfluentCount       int
	FixpointRounds       int
	MeanInfluenced       float64
	MaxInfluenced        int
	UniqueImminent       int
	ImminentDistribution map[string]int // submodel ID → number of steps it was imminent
	StepsByModel         map[string]int // coupled model ID → number of steps
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ImminentDistribution: make(map[string]int),
		StepsByModel:         make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalSteps = len(st.Steps)
	summary.FixpointRounds = len(st.Fixpoint)

	totalInfluenced := 0
	for _, s := range st.Steps {
		switch s.Kind {
		case StepInternal:
			summary.InternalCount++
		case StepExternal:
			summary.ExternalCount++
		case StepConfluent:
			summary.ConfluentCount++
		}
		if s.Imminent != "" {
			summary.ImminentDistribution[s.Imminent]++
		}
		summary.StepsByModel[s.ModelID]++
		totalInfluenced += len(s.Influenced)
		if len(s.Influenced) > summary.MaxInfluenced {
			summary.MaxInfluenced = len(s.Influenced)
		}
	}
	if len(st.Steps) > 0 {
		summary.MeanInfluenced = float64(totalInfluenced) / float64(len(st.Steps))
	}

	summary.UniqueImminent = len(summary.ImminentDistribution)

	return summary
}
