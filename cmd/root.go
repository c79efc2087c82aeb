package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/respond-sim/respond/sim/batch"
)

// version is overridden at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

// runOptions holds the flags of the run command.
type runOptions struct {
	inputDir string // directory holding input<i> sets
	first    int    // first input set index
	last     int    // last input set index (inclusive)
	workers  int    // concurrent runs; 0 means GOMAXPROCS
	logLevel string // log verbosity level for progress and per-run logs
}

// rootCmd is the base command for the CLI
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "respond",
		Short:         "Markov cohort model of opioid use disorder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

// newRunCmd executes input sets using parameters from CLI flags, falling
// back to RESPOND_* environment variables for flags not given.
func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run input sets <input-dir>/input<first> .. input<last>",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ParseEnv()
			if err != nil {
				return err
			}
			applyEnv(cmd, opts, env)
			return runBatch(cmd, opts)
		},
	}
	runCmd.Flags().StringVar(&opts.inputDir, "input-dir", "", "Directory containing input<i> sets (env RESPOND_INPUT_DIR)")
	runCmd.Flags().IntVar(&opts.first, "first", 1, "First input set index")
	runCmd.Flags().IntVar(&opts.last, "last", 1, "Last input set index (inclusive)")
	runCmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent runs; 0 uses all CPUs (env RESPOND_WORKERS)")
	runCmd.Flags().StringVar(&opts.logLevel, "log", "info", "Log level (trace, debug, info, warn, error) (env RESPOND_LOG_LEVEL)")
	return runCmd
}

// applyEnv fills options whose flags were not set explicitly.
func applyEnv(cmd *cobra.Command, opts *runOptions, env Env) {
	if !cmd.Flags().Changed("input-dir") && env.InputDir != "" {
		opts.inputDir = env.InputDir
	}
	if !cmd.Flags().Changed("workers") && env.Workers != 0 {
		opts.workers = env.Workers
	}
	if !cmd.Flags().Changed("log") && env.LogLevel != "" {
		opts.logLevel = env.LogLevel
	}
}

func runBatch(cmd *cobra.Command, opts *runOptions) error {
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.logLevel, err)
	}
	if opts.inputDir == "" {
		return fmt.Errorf("--input-dir (or RESPOND_INPUT_DIR) is required")
	}
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(level)

	logger.Infof("Starting runs %d..%d from %s", opts.first, opts.last, opts.inputDir)
	startTime := time.Now()
	runner := batch.Runner{
		Root:    opts.inputDir,
		First:   opts.first,
		Last:    opts.last,
		Workers: opts.workers,
		Level:   level,
		Logger:  logger,
	}
	reports, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, rep := range reports {
		if rep.Err != nil {
			fmt.Fprintf(out, "Output %d Failed: %v\n", rep.Index, rep.Err)
			continue
		}
		fmt.Fprintf(out, "Output %d Complete (%d periods, run %s)\n", rep.Index, rep.Periods, rep.RunID)
	}
	if failed := batch.Failed(reports); len(failed) > 0 {
		return fmt.Errorf("%d of %d runs failed", len(failed), len(reports))
	}
	logger.Infof("All runs complete in %s", time.Since(startTime).Round(time.Millisecond))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "respond %s\n", version)
		},
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
