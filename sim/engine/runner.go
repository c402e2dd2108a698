package engine

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/trace"
)

// ErrNoEvent is returned by Step when neither the root model nor the input
// queue has anything scheduled.
var ErrNoEvent = errors.New("no scheduled event")

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Options

	// Tracer emits one span per root step; nil uses the global provider.
	Tracer oteltrace.Tracer
	// Clock paces realtime runs; nil uses WallClock.
	Clock Clock
	// Acceleration is the number of simulated seconds per wall-clock second
	// in realtime runs; values <= 0 mean 1.
	Acceleration float64
	// OnOutput, when set, receives every event emitted at the root boundary.
	OnOutput func(TimedEvent)
}

// Runner drives the root of a model tree: initialisation, the step loop,
// external inputs and the end of the run. All wall-clock concerns live here.
//
// Thread-safety: Inject may be called from any goroutine. Every other
// method must be called from the goroutine driving the run.
type Runner struct {
	id     string
	root   sim.Model
	coords []*Coordinator
	cfg    RunnerConfig
	tracer oteltrace.Tracer
	clock  Clock

	mu    sync.Mutex
	queue inputQueue
	seq   int64
	now   sim.Time
	wake  chan struct{}

	outputs     []TimedEvent
	initialised bool
	ended       bool
}

// NewRunner attaches coordinators to the tree under root and returns its driver.
func NewRunner(root sim.Model, cfg RunnerConfig) (*Runner, error) {
	if root == nil {
		return nil, fmt.Errorf("runner: root model is nil")
	}
	if !root.IsRoot() {
		return nil, fmt.Errorf("runner: %q is a submodel of %q, not a root", root.ID(), root.ParentID())
	}
	cfg.Options = cfg.Options.withDefaults()
	if cfg.Acceleration <= 0 {
		cfg.Acceleration = 1
	}
	r := &Runner{
		id:     uuid.NewString(),
		root:   root,
		coords: Attach(root, cfg.Options),
		cfg:    cfg,
		tracer: cfg.Tracer,
		clock:  cfg.Clock,
		now:    sim.ZeroTime(root.TimeUnit()),
		wake:   make(chan struct{}, 1),
	}
	if r.tracer == nil {
		r.tracer = defaultTracer()
	}
	if r.clock == nil {
		r.clock = WallClock{}
	}
	return r, nil
}

// ID returns the unique id of this run.
func (r *Runner) ID() string { return r.id }

// Root returns the driven model.
func (r *Runner) Root() sim.Model { return r.root }

// Coordinators returns the attached coordinators, root first.
func (r *Runner) Coordinators() []*Coordinator { return r.coords }

// Now returns the simulated time of the last step.
func (r *Runner) Now() sim.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

// Outputs returns the events emitted at the root boundary so far.
func (r *Runner) Outputs() []TimedEvent { return append([]TimedEvent(nil), r.outputs...) }

// Initialise initialises the state of the whole tree at t0, then its
// variables: the simple protocol first, then the fixpoint loop.
func (r *Runner) Initialise(t0 sim.Time) error {
	if r.ended {
		return fmt.Errorf("runner %s: initialise after end: %w", r.id, sim.ErrState)
	}
	if cm, ok := r.root.(*sim.CoupledModel); ok {
		cm.OnFixpointRound(func(round, just, pending int) {
			r.observeFixpointRound(round, just, pending)
		})
	}
	if err := r.root.InitialiseState(t0); err != nil {
		return fmt.Errorf("initialising state: %w", err)
	}
	if err := r.root.InitialiseVariables(); err != nil {
		return fmt.Errorf("initialising variables: %w", err)
	}
	if r.root.IsAtomic() && r.root.UsesFixpointProtocol() {
		if err := r.atomicRootFixpoint(); err != nil {
			return fmt.Errorf("initialising variables: %w", err)
		}
	}
	if !r.root.AllVariablesInitialised() {
		return fmt.Errorf("initialising variables: still pending %v", r.root.PendingVariables())
	}

	r.mu.Lock()
	r.now = t0
	r.mu.Unlock()
	r.initialised = true
	r.cfg.Metrics.SetSimulatedTime(t0)
	logrus.WithFields(logrus.Fields{
		"run":   r.id,
		"model": r.root.ID(),
		"time":  t0.String(),
	}).Infof("simulation initialised; first event at %s", r.root.TimeOfNextEvent())
	return nil
}

// atomicRootFixpoint repeats rounds on an atomic root, which has no
// coupled model to do the looping for it.
func (r *Runner) atomicRootFixpoint() error {
	for round := 1; ; round++ {
		just, pending, err := r.root.FixpointInitialiseVariables()
		if err != nil {
			return err
		}
		r.observeFixpointRound(round, just, pending)
		if just > 0 {
			continue
		}
		if pending == 0 {
			return nil
		}
		return &sim.FixpointDeadlockError{ModelID: r.root.ID(), Round: round, Pending: r.root.PendingVariables()}
	}
}

func (r *Runner) observeFixpointRound(round, just, pending int) {
	r.cfg.Metrics.ObserveFixpointRound()
	if r.cfg.Trace != nil {
		r.cfg.Trace.RecordFixpoint(trace.FixpointRecord{
			ModelID:         r.root.ID(),
			Round:           round,
			JustInitialised: just,
			StillPending:    pending,
		})
	}
}

// Inject schedules events for delivery to the root at simulated time t.
// Injections at the same time are delivered in call order.
func (r *Runner) Inject(t sim.Time, events ...sim.Event) error {
	if len(events) == 0 {
		return nil
	}
	if t.IsInfinite() {
		return fmt.Errorf("runner %s: cannot inject at infinite time", r.id)
	}
	imported := make(map[sim.EventType]bool)
	for _, et := range r.root.ImportedEventTypes() {
		imported[et] = true
	}
	for _, ev := range events {
		if !imported[ev.Type()] {
			return &sim.LookupError{ModelID: r.root.ID(), Kind: "imported event", Name: string(ev.Type())}
		}
	}

	r.mu.Lock()
	if t.Less(r.now) {
		r.mu.Unlock()
		return fmt.Errorf("runner %s: injection at %s is before current time %s", r.id, t, r.now)
	}
	heap.Push(&r.queue, inputEntry{at: t, events: append([]sim.Event(nil), events...), seqID: r.seq})
	r.seq++
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

// peekInput returns the time of the earliest pending injection.
func (r *Runner) peekInput() (sim.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return sim.InfiniteTime(r.root.TimeUnit()), false
	}
	return r.queue[0].at, true
}

// popInputs removes and returns every injection scheduled at t.
func (r *Runner) popInputs(t sim.Time) []sim.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sim.Event
	for len(r.queue) > 0 && r.queue[0].at.Equal(t) {
		entry := heap.Pop(&r.queue).(inputEntry)
		out = append(out, entry.events...)
	}
	return out
}

// NextTime returns the time of the next root step: the earlier of the root's
// next event and the earliest pending injection.
func (r *Runner) NextTime() sim.Time {
	tI, _ := r.peekInput()
	return sim.MinTime(r.root.TimeOfNextEvent(), tI)
}

// Step performs one root step and returns its time.
func (r *Runner) Step(ctx context.Context) (sim.Time, error) {
	if !r.initialised || r.ended {
		return sim.Time{}, fmt.Errorf("runner %s: step outside an initialised run: %w", r.id, sim.ErrState)
	}
	tN := r.root.TimeOfNextEvent()
	tI, hasInput := r.peekInput()

	var (
		t    sim.Time
		kind trace.StepKind
	)
	switch {
	case hasInput && tI.Less(tN):
		t, kind = tI, trace.StepExternal
	case hasInput && tI.Equal(tN):
		t, kind = tN, trace.StepConfluent
	case !tN.IsInfinite():
		t, kind = tN, trace.StepInternal
	default:
		return tN, ErrNoEvent
	}

	_, span := r.tracer.Start(ctx, "devs.step", oteltrace.WithAttributes(
		attribute.String("devs.run", r.id),
		attribute.String("devs.model", r.root.ID()),
		attribute.String("devs.time", t.String()),
		attribute.String("devs.kind", string(kind)),
	))
	defer span.End()

	if err := r.stepAt(t, kind); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return t, err
	}

	r.mu.Lock()
	r.now = t
	r.mu.Unlock()
	r.cfg.Metrics.SetSimulatedTime(t)
	if r.root.IsAtomic() {
		r.cfg.Metrics.ObserveStep(r.root.ID(), kind)
	}
	return t, nil
}

func (r *Runner) stepAt(t sim.Time, kind trace.StepKind) error {
	elapsed := t.Subtract(r.root.CurrentStateTime())
	if kind != trace.StepExternal {
		out, err := r.root.Output()
		if err != nil {
			return err
		}
		r.emit(t, out)
	}
	if kind != trace.StepInternal {
		in := r.popInputs(t)
		if err := r.root.StoreInput(in); err != nil {
			return err
		}
		r.cfg.Metrics.ObserveInjected(len(in))
	}
	switch kind {
	case trace.StepExternal:
		return r.root.ExternalTransition(elapsed)
	case trace.StepConfluent:
		return r.root.ConfluentTransition(elapsed)
	default:
		return r.root.InternalTransition()
	}
}

func (r *Runner) emit(t sim.Time, events []sim.Event) {
	for _, ev := range events {
		te := TimedEvent{Time: t, Event: ev}
		r.outputs = append(r.outputs, te)
		if r.cfg.OnOutput != nil {
			r.cfg.OnOutput(te)
		}
	}
	r.cfg.Metrics.ObserveOutputs(len(events))
}

// RunUntil steps as fast as possible through every event at or before tEnd.
func (r *Runner) RunUntil(ctx context.Context, tEnd sim.Time) error {
	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := r.NextTime()
		if next.IsInfinite() || next.After(tEnd) {
			break
		}
		if _, err := r.Step(ctx); err != nil {
			return err
		}
		steps++
	}
	logrus.WithFields(logrus.Fields{
		"run":   r.id,
		"model": r.root.ID(),
	}).Debugf("ran %d step(s) up to %s", steps, tEnd)
	return nil
}

// StartRealtime runs from tStart to tEnd, executing each step when the
// wall clock reaches wallStart plus the simulated offset divided by the
// acceleration. Injections from other goroutines are picked up as they
// arrive. The run is initialised at tStart if it was not already.
func (r *Runner) StartRealtime(ctx context.Context, wallStart time.Time, tStart, tEnd sim.Time) error {
	if !r.initialised {
		if err := r.Initialise(tStart); err != nil {
			return err
		}
	}
	for {
		next := r.NextTime()
		target := sim.MinTime(next, tEnd)
		if target.IsInfinite() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.wake:
				continue
			}
		}
		due := wallStart.Add(r.wallOffset(target.Subtract(tStart)))
		if wait := due.Sub(r.clock.Now()); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.wake:
				continue
			case <-r.clock.After(wait):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if next.After(tEnd) {
			return nil
		}
		r.cfg.Metrics.ObserveLag(r.clock.Now().Sub(due))
		if _, err := r.Step(ctx); err != nil {
			return err
		}
	}
}

func (r *Runner) wallOffset(d sim.Duration) time.Duration {
	secs := d.Seconds() / r.cfg.Acceleration
	if secs*float64(time.Second) >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs * float64(time.Second))
}

// End ends the simulation at t, depth first through the tree.
func (r *Runner) End(t sim.Time) error {
	if r.ended {
		return nil
	}
	if err := r.root.EndSimulation(t); err != nil {
		return err
	}
	r.ended = true
	logrus.WithFields(logrus.Fields{
		"run":   r.id,
		"model": r.root.ID(),
		"time":  t.String(),
	}).Info("simulation ended")
	return nil
}

// Report returns the final report of the root model.
func (r *Runner) Report() sim.Report { return r.root.FinalReport() }
