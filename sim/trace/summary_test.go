package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelSteps})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalSteps != 0 {
		t.Errorf("expected 0 total steps, got %d", summary.TotalSteps)
	}
	if summary.InternalCount != 0 || summary.ExternalCount != 0 || summary.ConfluentCount != 0 {
		t.Error("expected 0 steps of every kind")
	}
	if summary.UniqueImminent != 0 {
		t.Errorf("expected 0 unique imminent models, got %d", summary.UniqueImminent)
	}
	if summary.MeanInfluenced != 0 || summary.MaxInfluenced != 0 {
		t.Error("expected 0 influenced values")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary == nil {
		t.Fatal("expected non-nil summary")
	}
	if summary.TotalSteps != 0 || len(summary.StepsByModel) != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed step kinds and fixpoint rounds
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelSteps})
	st.RecordStep(StepRecord{ModelID: "root", Kind: StepInternal, Imminent: "gen", Influenced: []string{"a", "b"}})
	st.RecordStep(StepRecord{ModelID: "root", Kind: StepConfluent, Imminent: "gen"})
	st.RecordStep(StepRecord{ModelID: "sub", Kind: StepExternal, Influenced: []string{"a"}})
	st.RecordStep(StepRecord{ModelID: "root", Kind: StepInternal, Imminent: "heater", Influenced: []string{"a", "b", "c"}})
	st.RecordFixpoint(FixpointRecord{ModelID: "root", Round: 1})
	st.RecordFixpoint(FixpointRecord{ModelID: "root", Round: 2})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts reflect the records
	if summary.TotalSteps != 4 {
		t.Errorf("expected 4 steps, got %d", summary.TotalSteps)
	}
	if summary.InternalCount != 2 || summary.ExternalCount != 1 || summary.ConfluentCount != 1 {
		t.Errorf("unexpected kind counts %d/%d/%d", summary.InternalCount, summary.ExternalCount, summary.ConfluentCount)
	}
	if summary.FixpointRounds != 2 {
		t.Errorf("expected 2 fixpoint rounds, got %d", summary.FixpointRounds)
	}
	if summary.UniqueImminent != 2 {
		t.Errorf("expected 2 unique imminent models, got %d", summary.UniqueImminent)
	}
	if summary.ImminentDistribution["gen"] != 2 {
		t.Errorf("expected gen imminent twice, got %d", summary.ImminentDistribution["gen"])
	}
	if summary.StepsByModel["root"] != 3 || summary.StepsByModel["sub"] != 1 {
		t.Errorf("unexpected steps by model %v", summary.StepsByModel)
	}
	if summary.MaxInfluenced != 3 {
		t.Errorf("expected max influenced 3, got %d", summary.MaxInfluenced)
	}
	if summary.MeanInfluenced != 1.5 {
		t.Errorf("expected mean influenced 1.5, got %f", summary.MeanInfluenced)
	}
}
