package sim

import "math/rand"

// TieBreaker chooses one submodel among at least two whose next events are
// exactly simultaneous. Implementations must return one of the candidates.
type TieBreaker interface {
	Select(candidates []Model) Model
}

// RandomTieBreaker picks uniformly at random. It is the default policy; the
// RNG is supplied explicitly so runs stay reproducible.
type RandomTieBreaker struct {
	rng *rand.Rand
}

// NewRandomTieBreaker returns a RandomTieBreaker drawing from rng.
func NewRandomTieBreaker(rng *rand.Rand) *RandomTieBreaker {
	return &RandomTieBreaker{rng: rng}
}

func (r *RandomTieBreaker) Select(candidates []Model) Model {
	return candidates[r.rng.Intn(len(candidates))]
}

// FirstTieBreaker always picks the first candidate in declaration order.
type FirstTieBreaker struct{}

func (FirstTieBreaker) Select(candidates []Model) Model { return candidates[0] }

// PriorityTieBreaker picks the candidate with the lowest priority value.
// Models without a priority rank after all prioritised ones; remaining ties
// go to declaration order.
type PriorityTieBreaker struct {
	Priority map[string]int
}

func (p PriorityTieBreaker) Select(candidates []Model) Model {
	best := candidates[0]
	bestPrio, bestOK := p.Priority[best.ID()]
	for _, m := range candidates[1:] {
		prio, ok := p.Priority[m.ID()]
		if ok && (!bestOK || prio < bestPrio) {
			best, bestPrio, bestOK = m, prio, ok
		}
	}
	return best
}

// TieBreakerFunc adapts a function to the TieBreaker interface.
type TieBreakerFunc func(candidates []Model) Model

func (f TieBreakerFunc) Select(candidates []Model) Model { return f(candidates) }
