package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devs-sim/devs-sim/sim/engine"
)

var (
	// CLI flags for the run
	archPath       string   // Architecture YAML file
	configPath     string   // Optional run configuration YAML file
	seed           int64    // Seed for tie-breaking and model randomness
	startTime      float64  // Simulated start time, in the architecture time unit
	endTime        float64  // Simulated end time, in the architecture time unit
	logLevel       string   // Log verbosity level
	policyName     string   // Confluent policy of the coordinators
	traceLevel     string   // Trace verbosity level
	summarizeTrace bool     // Print a trace summary at the end of the run
	debugLevel     string   // Kernel debug logging: none, basic, full
	realtime       bool     // Pace steps against the wall clock
	acceleration   float64  // Simulated seconds per wall-clock second in realtime mode
	metricsAddr    string   // Address serving Prometheus /metrics; empty disables
	otelStdout     bool     // Export one span per root step to stdout
	injections     []string // External events "time:type[:payload]"
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "devs-sim",
	Short: "Discrete-event simulator for hierarchical DEVS and HIOA models",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation of an architecture file",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		opts, err := resolveRunOptions(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if _, err := simulate(ctx, opts); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// validateCmd builds the architecture without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate and build an architecture file, then print its model tree",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		root, err := buildArchitecture(archPath, seed)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		printTree(os.Stdout, root, 0)
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&archPath, "arch", "", "Architecture YAML file")
		c.Flags().Int64Var(&seed, "seed", 42, "Seed for tie-breaking and model randomness")
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
		_ = c.MarkFlagRequired("arch")
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "Run configuration YAML file; flags override its values")
	runCmd.Flags().Float64Var(&startTime, "start", 0, "Simulated start time, in the architecture time unit")
	runCmd.Flags().Float64Var(&endTime, "end", 3600, "Simulated end time, in the architecture time unit")
	runCmd.Flags().StringVar(&policyName, "policy", "confluent", "Confluent policy: confluent, internal-first, external-first")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Trace level: none, steps")
	runCmd.Flags().BoolVar(&summarizeTrace, "summarize-trace", false, "Print a trace summary (requires --trace steps)")
	runCmd.Flags().StringVar(&debugLevel, "debug", "none", "Kernel debug logging: none, basic, full")
	runCmd.Flags().BoolVar(&realtime, "realtime", false, "Pace steps against the wall clock")
	runCmd.Flags().Float64Var(&acceleration, "accel", 1, "Simulated seconds per wall-clock second in realtime mode")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().BoolVar(&otelStdout, "otel-stdout", false, "Export a span per root step to stdout")
	runCmd.Flags().StringArrayVar(&injections, "inject", nil, "External event time:type[:payload]; repeatable")

	// Attach subcommands to `root`
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

// resolveRunOptions merges the run config file with the flags. A flag wins
// over the file only when set explicitly.
func resolveRunOptions(cmd *cobra.Command) (runOptions, error) {
	opts := runOptions{
		ArchPath:     archPath,
		Seed:         seed,
		Start:        startTime,
		End:          endTime,
		Policy:       policyName,
		Trace:        traceLevel,
		Summarize:    summarizeTrace,
		Debug:        debugLevel,
		Realtime:     realtime,
		Acceleration: acceleration,
		MetricsAddr:  metricsAddr,
		OtelStdout:   otelStdout,
		Out:          os.Stdout,
	}
	if configPath != "" {
		cfg, err := loadRunConfig(configPath)
		if err != nil {
			return opts, err
		}
		opts.applyConfig(cfg, cmd.Flags().Changed)
	}
	for _, s := range injections {
		inj, err := parseInjection(s)
		if err != nil {
			return opts, err
		}
		opts.Injections = append(opts.Injections, inj)
	}
	if _, err := engine.NewConfluentPolicy(opts.Policy); err != nil {
		return opts, err
	}
	return opts, nil
}
