package engine

import (
	"github.com/devs-sim/devs-sim/sim"
)

// TimedEvent is an event stamped with the simulated time it crossed the
// root boundary.
type TimedEvent struct {
	Time  sim.Time
	Event sim.Event
}

// inputEntry wraps injected events with a sequence ID for deterministic FIFO
// ordering of injections at the same time.
type inputEntry struct {
	at     sim.Time
	events []sim.Event
	seqID  int64
}

// inputQueue is a min-heap ordered by (time, seqID).
// Implements heap.Interface.
type inputQueue []inputEntry

func (q inputQueue) Len() int { return len(q) }

func (q inputQueue) Less(i, j int) bool {
	if c := q[i].at.Cmp(q[j].at); c != 0 {
		return c < 0
	}
	return q[i].seqID < q[j].seqID
}

func (q inputQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *inputQueue) Push(x any) {
	*q = append(*q, x.(inputEntry))
}

func (q *inputQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
