package sim

import (
	"math"
	"math/rand"
	"testing"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"negative seed", -1},
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewSimulationKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

// === PartitionedRNG Tests ===

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// BDD: Same key+name produces same sequence
	rng1 := NewPartitionedRNG(NewSimulationKey(42))
	rng2 := NewPartitionedRNG(NewSimulationKey(42))

	name := SubsystemTieBreak("house")
	for i := 0; i < 3; i++ {
		v1 := rng1.ForSubsystem(name).Float64()
		v2 := rng2.ForSubsystem(name).Float64()
		if v1 != v2 {
			t.Errorf("Value %d: got %v and %v, want identical", i, v1, v2)
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// BDD: Drawing from one coupled model's tie breaker doesn't affect another's
	rngA := NewPartitionedRNG(NewSimulationKey(42))

	for i := 0; i < 10; i++ {
		rngA.ForSubsystem(SubsystemTieBreak("kitchen")).Float64()
	}
	aFirst := rngA.ForSubsystem(SubsystemTieBreak("house")).Float64()

	fresh := NewPartitionedRNG(NewSimulationKey(42))
	expectedFirst := fresh.ForSubsystem(SubsystemTieBreak("house")).Float64()

	if aFirst != expectedFirst {
		t.Errorf("house first value = %v, want %v (isolation broken)", aFirst, expectedFirst)
	}
}

func TestPartitionedRNG_SeedDerivation(t *testing.T) {
	// BDD: every subsystem is seeded with masterSeed XOR fnv1a64(name)
	seed := int64(42)
	name := SubsystemModel("gen")
	got := NewPartitionedRNG(NewSimulationKey(seed)).ForSubsystem(name)
	want := newRandFromSeed(seed ^ fnv1a64(name))

	for i := 0; i < 10; i++ {
		if g, w := got.Float64(), want.Float64(); g != w {
			t.Errorf("Value %d: subsystem RNG = %v, direct RNG = %v", i, g, w)
		}
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	// BDD: Same name returns same *rand.Rand instance
	rng := NewPartitionedRNG(NewSimulationKey(42))

	rng1 := rng.ForSubsystem(SubsystemModel("gen"))
	rng2 := rng.ForSubsystem(SubsystemModel("gen"))

	if rng1 != rng2 {
		t.Error("ForSubsystem returned different instances for same name")
	}
}

func TestPartitionedRNG_Key(t *testing.T) {
	seed := int64(12345)
	rng := NewPartitionedRNG(NewSimulationKey(seed))

	if rng.Key() != SimulationKey(seed) {
		t.Errorf("Key() = %v, want %v", rng.Key(), seed)
	}
}

func TestPartitionedRNG_EmptySubsystemName(t *testing.T) {
	// BDD: Empty string is valid subsystem name
	rng := NewPartitionedRNG(NewSimulationKey(42))
	result := rng.ForSubsystem("")

	if result == nil {
		t.Fatal("ForSubsystem(\"\") returned nil")
	}

	val1 := result.Float64()
	val2 := NewPartitionedRNG(NewSimulationKey(42)).ForSubsystem("").Float64()

	if val1 != val2 {
		t.Errorf("Empty subsystem not deterministic: %v != %v", val1, val2)
	}
}

func TestPartitionedRNG_NegativeSeed(t *testing.T) {
	// BDD: MinInt64 seed works correctly
	rng := NewPartitionedRNG(NewSimulationKey(math.MinInt64))

	tb := rng.ForSubsystem(SubsystemTieBreak("root"))
	if tb == nil {
		t.Fatal("ForSubsystem returned nil with MinInt64 seed")
	}

	val := tb.Float64()
	if val < 0 || val >= 1 {
		t.Errorf("Float64() returned %v, want [0, 1)", val)
	}
}

func TestPartitionedRNG_LazyInitialization(t *testing.T) {
	// BDD: Subsystems map is empty until ForSubsystem is called
	rng := NewPartitionedRNG(NewSimulationKey(42))

	if len(rng.subsystems) != 0 {
		t.Errorf("New PartitionedRNG has %d subsystems, want 0", len(rng.subsystems))
	}

	rng.ForSubsystem(SubsystemModel("gen"))

	if len(rng.subsystems) != 1 {
		t.Errorf("After one ForSubsystem call, have %d subsystems, want 1", len(rng.subsystems))
	}
}

// === fnv1a64 Tests ===

func TestFnv1a64_Deterministic(t *testing.T) {
	input := "test_subsystem"
	if fnv1a64(input) != fnv1a64(input) {
		t.Errorf("fnv1a64(%q) not deterministic", input)
	}
}

func TestFnv1a64_Collision(t *testing.T) {
	// Different subsystem names should produce different hashes (spot check)
	names := []string{
		SubsystemTieBreak("root"),
		SubsystemTieBreak("house"),
		SubsystemModel("root"),
		SubsystemModel("gen"),
		"",
	}

	hashes := make(map[int64]string)
	for _, name := range names {
		h := fnv1a64(name)
		if existing, ok := hashes[h]; ok {
			t.Errorf("Hash collision: %q and %q both hash to %d", name, existing, h)
		}
		hashes[h] = name
	}
}

func TestSubsystemNames(t *testing.T) {
	if got := SubsystemTieBreak("house"); got != "tiebreak/house" {
		t.Errorf("SubsystemTieBreak = %q", got)
	}
	if got := SubsystemModel("gen"); got != "model/gen" {
		t.Errorf("SubsystemModel = %q", got)
	}
}

// === Benchmark ===

func BenchmarkPartitionedRNG_ForSubsystem_CacheHit(b *testing.B) {
	rng := NewPartitionedRNG(NewSimulationKey(42))
	rng.ForSubsystem(SubsystemTieBreak("root"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rng.ForSubsystem(SubsystemTieBreak("root"))
	}
}

// === Helper ===

func newRandFromSeed(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
