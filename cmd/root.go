package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sherine-k/procflow/internal/logging"
	"github.com/sherine-k/procflow/internal/observability"
	"github.com/sherine-k/procflow/pkg/chart"
	"github.com/sherine-k/procflow/pkg/config"
	"github.com/sherine-k/procflow/pkg/simulation"
	"github.com/spf13/cobra"
)

var (
	configFile       string
	showTimeline     bool
	timelineLimit    int
	showEventSummary bool
	replications     int
	seed             int64
	runDuration      time.Duration
	logLevel         string
	logFormat        string
	enableTracing    bool
	showMetrics      bool
)

var rootCmd = &cobra.Command{
	Use:   "procflow",
	Short: "Discrete-event process flow simulator",
	Long: `A CLI tool that simulates a process flow model in discrete ticks.

This tool reads a model file describing generators, queues, servers gated by
thresholds, and sinks, runs it for a number of seeded replications, and
prints queue and utilisation charts along with warnings about items left
waiting at the end of a run.`,
	SilenceUsage: true,
	RunE:         runSimulation,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "model.yaml", "Path to model file")
	rootCmd.Flags().BoolVarP(&showTimeline, "timeline", "t", false, "Show detailed timeline of events")
	rootCmd.Flags().IntVarP(&timelineLimit, "timeline-limit", "l", 50, "Limit number of timeline events to display")
	rootCmd.Flags().BoolVarP(&showEventSummary, "summary", "s", true, "Show event summary")
	rootCmd.Flags().IntVarP(&replications, "replications", "r", 0, "Override the number of replications")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "Override the base random seed")
	rootCmd.Flags().DurationVar(&runDuration, "duration", 0, "Override the simulated run duration")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format (text or json); defaults to LOG_FORMAT")
	rootCmd.Flags().BoolVar(&enableTracing, "trace", false, "Export run and replication spans to stdout")
	rootCmd.Flags().BoolVar(&showMetrics, "metrics", false, "Show collected simulation metrics")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.NewFromEnv()
	if cmd.Flags().Changed("log-level") || cmd.Flags().Changed("log-format") {
		log = logging.New(logging.Config{Level: logLevel, Format: logFormat, Output: os.Stderr})
	}

	// Load configuration
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		return err
	}

	fmt.Printf("Loaded model from %s\n", configFile)
	fmt.Printf("  - Run Duration: %s\n", cfg.RunDuration)
	fmt.Printf("  - Replications: %d (base seed %d)\n", cfg.Replications, cfg.Seed)
	fmt.Printf("  - Thresholds: %d\n", len(cfg.Thresholds))
	fmt.Printf("  - Queues: %d\n", len(cfg.Queues))
	fmt.Printf("  - Servers: %d\n", len(cfg.Servers))
	fmt.Printf("  - Generators: %d\n", len(cfg.Generators))
	fmt.Printf("  - Sinks: %d\n\n", len(cfg.Sinks))

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     enableTracing,
		ServiceName: "procflow",
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	reg := prometheus.NewRegistry()
	collector, err := observability.NewSimCollector(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// Create and run simulator
	sim, err := simulation.NewSimulator(cfg, simulation.WithLogger(log), simulation.WithMetrics(collector))
	if err != nil {
		return err
	}
	if err := sim.Run(ctx); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	// Generate and display chart
	chartGen := chart.NewGenerator()
	results := sim.Results()
	first := results[0]

	fmt.Println(chartGen.GenerateQueueChart(first.TimePoints, len(first.Servers)))
	fmt.Println(chartGen.GenerateStateTable("Threshold States", first.Thresholds))

	servers := make([]simulation.EntityStates, 0, len(first.Servers))
	for _, s := range first.Servers {
		servers = append(servers, s.EntityStates)
	}
	fmt.Println(chartGen.GenerateStateTable("Server States", servers))
	fmt.Println(chartGen.GenerateStatistics(first))

	if len(results) > 1 {
		fmt.Println(chartGen.GenerateReplicationSummary(results))
	}

	// Display event summary
	if showEventSummary {
		fmt.Println(chartGen.GenerateEventSummary(first.Events))
	}

	// Display warnings
	fmt.Println(chartGen.GenerateWarnings(sim.GetWarnings()))

	// Display detailed timeline if requested
	if showTimeline {
		fmt.Println(chartGen.GenerateDetailedTimeline(first.Events, timelineLimit))
	}

	if showMetrics {
		families, err := collector.Gatherer().Gather()
		if err != nil {
			return fmt.Errorf("failed to gather metrics: %w", err)
		}
		fmt.Println(chartGen.GenerateMetrics(families))
	}

	return nil
}

// applyOverrides copies explicitly set flags onto the model and validates
// the result again
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("replications") {
		cfg.Replications = replications
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("duration") {
		cfg.RunDuration = runDuration
		if cfg.SampleInterval > runDuration {
			cfg.SampleInterval = runDuration
		}
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid overrides: %w", err)
	}
	return nil
}
