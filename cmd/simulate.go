package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/arch"
	"github.com/devs-sim/devs-sim/sim/engine"
	_ "github.com/devs-sim/devs-sim/sim/models" // registers the built-in model kinds
	"github.com/devs-sim/devs-sim/sim/trace"
)

// runOptions is the fully resolved input of one simulation run.
type runOptions struct {
	ArchPath     string
	Seed         int64
	Start        float64
	End          float64
	Policy       string
	Trace        string
	Summarize    bool
	Debug        string
	Realtime     bool
	Acceleration float64
	MetricsAddr  string
	OtelStdout   bool
	Injections   []InjectionSpec
	Out          io.Writer
}

// applyConfig copies the values of cfg that no explicitly set flag overrides.
func (o *runOptions) applyConfig(cfg *RunConfig, changed func(string) bool) {
	if cfg.Seed != nil && !changed("seed") {
		o.Seed = *cfg.Seed
	}
	if cfg.Start != nil && !changed("start") {
		o.Start = *cfg.Start
	}
	if cfg.End != nil && !changed("end") {
		o.End = *cfg.End
	}
	if cfg.Policy != "" && !changed("policy") {
		o.Policy = cfg.Policy
	}
	if cfg.Trace != "" && !changed("trace") {
		o.Trace = cfg.Trace
	}
	if cfg.Debug != "" && !changed("debug") {
		o.Debug = cfg.Debug
	}
	if cfg.Realtime != nil && !changed("realtime") {
		o.Realtime = *cfg.Realtime
	}
	if cfg.Acceleration != nil && !changed("accel") {
		o.Acceleration = *cfg.Acceleration
	}
	if cfg.MetricsAddr != "" && !changed("metrics-addr") {
		o.MetricsAddr = cfg.MetricsAddr
	}
	o.Injections = append(o.Injections, cfg.Injections...)
}

// runResult is what a finished run leaves behind.
type runResult struct {
	RunID   string
	Report  sim.Report
	Outputs []engine.TimedEvent
	Trace   *trace.SimulationTrace
	Metrics *engine.Metrics
}

var debugLevels = map[string]sim.DebugLevel{
	"":      sim.DebugNone,
	"none":  sim.DebugNone,
	"basic": sim.DebugBasic,
	"full":  sim.DebugFull,
}

func parseDebugLevel(s string) (sim.DebugLevel, error) {
	l, ok := debugLevels[strings.ToLower(s)]
	if !ok {
		return sim.DebugNone, fmt.Errorf("unknown debug level %q; valid: none, basic, full", s)
	}
	return l, nil
}

// buildArchitecture loads, validates and instantiates an architecture file.
func buildArchitecture(path string, seed int64) (sim.Model, error) {
	a, err := arch.LoadArchitecture(path)
	if err != nil {
		return nil, err
	}
	return arch.Build(a, arch.Default, sim.NewPartitionedRNG(sim.NewSimulationKey(seed)))
}

// simulate builds the architecture and runs it from Start to End.
func simulate(ctx context.Context, opts runOptions) (*runResult, error) {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.End < opts.Start {
		return nil, fmt.Errorf("end time %g is before start time %g", opts.End, opts.Start)
	}
	if !trace.IsValidTraceLevel(opts.Trace) {
		return nil, fmt.Errorf("unknown trace level %q; valid: none, steps", opts.Trace)
	}
	if opts.Summarize && trace.TraceLevel(opts.Trace) != trace.TraceLevelSteps {
		logrus.Warn("--summarize-trace has no effect without --trace steps")
	}
	debug, err := parseDebugLevel(opts.Debug)
	if err != nil {
		return nil, err
	}
	policy, err := engine.NewConfluentPolicy(opts.Policy)
	if err != nil {
		return nil, err
	}

	root, err := buildArchitecture(opts.ArchPath, opts.Seed)
	if err != nil {
		return nil, err
	}
	unit := root.TimeUnit()

	metrics, err := engine.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	if opts.MetricsAddr != "" {
		srv := serveMetrics(opts.MetricsAddr, metrics.Handler())
		defer shutdownServer(srv)
	}

	shutdown, err := engine.InitTracing(ctx, engine.TracingConfig{
		Enabled:     opts.OtelStdout,
		ServiceName: "devs-sim",
		Exporter:    "stdout",
		Writer:      opts.Out,
	})
	if err != nil {
		return nil, err
	}
	defer engine.ShutdownWithTimeout(ctx, shutdown)

	var st *trace.SimulationTrace
	if trace.TraceLevel(opts.Trace) == trace.TraceLevelSteps {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelSteps})
	}

	runner, err := engine.NewRunner(root, engine.RunnerConfig{
		Options: engine.Options{
			Policy:     policy,
			DebugLevel: debug,
			Metrics:    metrics,
			Trace:      st,
		},
		Acceleration: opts.Acceleration,
		OnOutput: func(te engine.TimedEvent) {
			logrus.WithField("time", te.Time.String()).Debugf("output %v", te.Event)
		},
	})
	if err != nil {
		return nil, err
	}

	tStart := sim.TimeFromFloat(opts.Start, unit)
	tEnd := sim.TimeFromFloat(opts.End, unit)
	if err := runner.Initialise(tStart); err != nil {
		return nil, err
	}
	for _, inj := range opts.Injections {
		ev := sim.NewEvent(sim.EventType(inj.Type), inj.Payload)
		if err := runner.Inject(sim.TimeFromFloat(inj.Time, unit), ev); err != nil {
			return nil, fmt.Errorf("injecting %s at %g: %w", inj.Type, inj.Time, err)
		}
	}

	logrus.Infof("Starting simulation run %s: %s from %s to %s (policy=%s)",
		runner.ID(), root.ID(), tStart, tEnd, policy.Name())
	if opts.Realtime {
		err = runner.StartRealtime(ctx, time.Now(), tStart, tEnd)
	} else {
		err = runner.RunUntil(ctx, tEnd)
	}
	if err != nil {
		return nil, err
	}
	if err := runner.End(tEnd); err != nil {
		return nil, err
	}

	res := &runResult{
		RunID:   runner.ID(),
		Report:  runner.Report(),
		Outputs: runner.Outputs(),
		Trace:   st,
		Metrics: metrics,
	}
	printResult(opts.Out, res, opts.Summarize)
	return res, nil
}

func printResult(w io.Writer, res *runResult, summarize bool) {
	fmt.Fprintln(w, "=== Simulation Report ===")
	fmt.Fprintf(w, "Run: %s\n", res.RunID)
	fmt.Fprintln(w, res.Report.String())
	fmt.Fprintf(w, "Root outputs: %d\n", len(res.Outputs))
	for _, te := range res.Outputs {
		fmt.Fprintf(w, "  %s %v\n", te.Time, te.Event)
	}
	if !summarize || res.Trace == nil {
		return
	}
	s := trace.Summarize(res.Trace)
	fmt.Fprintln(w, "=== Trace Summary ===")
	fmt.Fprintf(w, "Steps: %d (internal=%d external=%d confluent=%d)\n",
		s.TotalSteps, s.InternalCount, s.ExternalCount, s.ConfluentCount)
	fmt.Fprintf(w, "Fixpoint rounds: %d\n", s.FixpointRounds)
	fmt.Fprintf(w, "Influenced per step: mean=%.2f max=%d\n", s.MeanInfluenced, s.MaxInfluenced)
	fmt.Fprintf(w, "Distinct imminent submodels: %d\n", s.UniqueImminent)
}

func serveMetrics(addr string, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server: %v", err)
		}
	}()
	logrus.Infof("Serving metrics on %s/metrics", addr)
	return srv
}

func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Warnf("metrics server shutdown: %v", err)
	}
}

// printTree writes the model tree under m, one model per line.
func printTree(w io.Writer, m sim.Model, depth int) {
	kind := "atomic"
	if !m.IsAtomic() {
		kind = "coupled"
	}
	fmt.Fprintf(w, "%s%s (%s, unit=%s)\n", strings.Repeat("  ", depth), m.ID(), kind, m.TimeUnit())
	cm, ok := m.(*sim.CoupledModel)
	if !ok {
		return
	}
	for _, sub := range cm.Submodels() {
		printTree(w, sub, depth+1)
	}
}
