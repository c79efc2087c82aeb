// Package batch runs many independent input sets concurrently. Input set i
// lives at <root>/input<i> and its results go to <root>/output<i>.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/accounting"
	"github.com/respond-sim/respond/sim/inputs"
	"github.com/respond-sim/respond/sim/output"
	"github.com/respond-sim/respond/sim/trace"
)

// LogFile is the per-run log written inside each output directory.
const LogFile = "log.txt"

// Runner executes input sets First..Last under Root.
type Runner struct {
	Root    string
	First   int
	Last    int
	Workers int          // concurrent runs; <= 0 means GOMAXPROCS
	Level   logrus.Level // level of the per-run log files
	Logger  logrus.FieldLogger
}

// RunReport is the outcome of one input set. Err is nil on success.
type RunReport struct {
	Index     int
	RunID     uuid.UUID
	InputDir  string
	OutputDir string
	Periods   int
	Totals    *accounting.Totals
	Trace     *trace.TraceSummary
	Duration  time.Duration
	Err       error
}

// Validate checks the run range and root directory.
func (r *Runner) Validate() error {
	if r.Root == "" {
		return fmt.Errorf("input root is required: %w", sim.ErrConfiguration)
	}
	if r.First < 0 || r.Last < r.First {
		return fmt.Errorf("run range %d..%d is empty: %w", r.First, r.Last, sim.ErrConfiguration)
	}
	info, err := os.Stat(r.Root)
	if err != nil {
		return fmt.Errorf("input root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input root %s is not a directory: %w", r.Root, sim.ErrConfiguration)
	}
	return nil
}

// InputDir returns the input directory of run i.
func (r *Runner) InputDir(i int) string {
	return filepath.Join(r.Root, "input"+strconv.Itoa(i))
}

// OutputDir returns the output directory of run i.
func (r *Runner) OutputDir(i int) string {
	return filepath.Join(r.Root, "output"+strconv.Itoa(i))
}

// Run executes every input set and returns one report per set in index
// order. A failing set is recorded in its report and does not stop the
// others; the returned error covers only an invalid Runner or a cancelled ctx.
func (r *Runner) Run(ctx context.Context) ([]RunReport, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	logger := r.Logger
	if logger == nil {
		logger = sim.DiscardLogger()
	}
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	reports := make([]RunReport, r.Last-r.First+1)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for n := range reports {
		i := r.First + n
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				reports[n] = RunReport{Index: i, InputDir: r.InputDir(i), OutputDir: r.OutputDir(i), Err: err}
				return nil
			}
			reports[n] = RunOne(gCtx, i, r.InputDir(i), r.OutputDir(i), r.Level)
			if err := reports[n].Err; err != nil {
				logger.Errorf("run %d failed: %v", i, err)
			} else {
				logger.Infof("run %d complete in %s", i, reports[n].Duration.Round(time.Millisecond))
			}
			return nil
		})
	}
	_ = g.Wait()
	return reports, ctx.Err()
}

// Failed returns the reports that carry an error.
func Failed(reports []RunReport) []RunReport {
	var out []RunReport
	for _, rep := range reports {
		if rep.Err != nil {
			out = append(out, rep)
		}
	}
	return out
}

// RunOne loads, simulates, evaluates and writes one input set. It owns its
// logger, which writes to <outputDir>/log.txt.
func RunOne(ctx context.Context, index int, inputDir, outputDir string, level logrus.Level) RunReport {
	start := time.Now()
	rep := RunReport{Index: index, RunID: uuid.New(), InputDir: inputDir, OutputDir: outputDir}
	if _, err := output.EnsureDirectory(outputDir); err != nil {
		rep.Err = err
		return rep
	}
	logFile, err := os.Create(filepath.Join(outputDir, LogFile))
	if err != nil {
		rep.Err = fmt.Errorf("creating run log: %w", err)
		return rep
	}
	defer func() { _ = logFile.Close() }()

	base := logrus.New()
	base.SetOutput(logFile)
	base.SetLevel(level)
	base.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	logger := base.WithFields(logrus.Fields{"run": index, "run_id": rep.RunID.String()})

	rep.Err = execute(ctx, &rep, logger)
	rep.Duration = time.Since(start)
	if rep.Err != nil {
		logger.Errorf("run failed: %v", rep.Err)
	}
	return rep
}

func execute(ctx context.Context, rep *RunReport, logger logrus.FieldLogger) error {
	logger.Infof("loading input set %s", rep.InputDir)
	set, err := inputs.LoadSet(rep.InputDir, logger)
	if err != nil {
		return err
	}
	cfg := set.Config

	markov, err := sim.NewMarkov(set.Inputs, logger)
	if err != nil {
		return err
	}
	var st *trace.StepTrace
	if level := trace.TraceLevel(cfg.Output.Trace); level == trace.TraceLevelStages {
		st = trace.NewStepTrace(trace.TraceConfig{Level: level})
		markov = markov.WithTrace(st)
	}
	history, err := markov.Run()
	if err != nil {
		return err
	}
	rep.Periods = history.Horizon()
	if st != nil {
		rep.Trace = trace.Summarize(st)
		logger.Infof("trace: %d stage records, largest exit %.4f (period %d %s)",
			rep.Trace.TotalRecords, rep.Trace.LargestExit, rep.Trace.LargestExitAt.Period, rep.Trace.LargestExitAt.Stage)
	}

	var evaluation *accounting.Evaluation
	if set.Evaluation.Costs != nil {
		if evaluation, err = accounting.Evaluate(history, set.Evaluation); err != nil {
			return err
		}
		rep.Totals = &evaluation.Totals
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	artifacts := output.Artifacts{History: history, Evaluation: evaluation}
	if cfg.Output.WriteInputs {
		artifacts.Config = cfg
	}
	writer := output.NewWriter(rep.OutputDir, output.AxesFromConfig(cfg),
		output.NewDataFormatter(cfg.Output.Periods), cfg.Output.PivotLong, logger)
	if _, err := writer.WriteAll(output.FileOutput, artifacts); err != nil {
		return err
	}

	if cfg.Output.SQLite != "" {
		if err := save(ctx, rep, set, history, logger); err != nil {
			return err
		}
	}
	return nil
}

func save(ctx context.Context, rep *RunReport, set *inputs.Set, history *sim.History, logger logrus.FieldLogger) error {
	path := set.Config.Output.SQLite
	if !filepath.IsAbs(path) {
		path = filepath.Join(rep.OutputDir, path)
	}
	store, err := output.OpenResultStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.SaveRun(ctx, output.RunRecord{
		RunID:    rep.RunID,
		InputDir: rep.InputDir,
		Labels:   set.Inputs.Labels,
		History:  history,
		Totals:   rep.Totals,
	}); err != nil {
		return err
	}
	logger.Infof("saved run to %s", path)
	return nil
}
