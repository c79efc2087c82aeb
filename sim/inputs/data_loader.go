package inputs

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/matrix"
)

// Table file names inside an input directory.
const (
	InitCohortFile              = "init_cohort.csv"
	EnteringCohortFile          = "entering_cohort.csv"
	BehaviorTransitionsFile     = "behavior_transitions.csv"
	InterventionTransitionsFile = "intervention_transitions.csv"
	InterventionInitEffectsFile = "intervention_init_effects.csv"
	OverdoseFile                = "overdose.csv"
	BackgroundMortalityFile     = "background_mortality.csv"
	SMRFile                     = "smr.csv"
)

// DataLoader reads the population and transition tables of one input set.
type DataLoader struct {
	dir    string
	cfg    *Config
	index  axisIndex
	logger logrus.FieldLogger
}

// NewDataLoader creates a loader for dir. A nil logger discards output.
func NewDataLoader(dir string, cfg *Config, logger logrus.FieldLogger) *DataLoader {
	if logger == nil {
		logger = sim.DiscardLogger()
	}
	return &DataLoader{dir: dir, cfg: cfg, index: newAxisIndex(cfg.Labels()), logger: logger}
}

// Load reads every table. init_cohort.csv is required; any other table may
// be absent, which disables its stage.
func (l *DataLoader) Load() (*sim.Inputs, error) {
	in := &sim.Inputs{
		Shape:   l.cfg.Shape(),
		Labels:  l.cfg.Labels(),
		Horizon: l.cfg.Simulation.Duration,
	}
	var err error
	if in.InitialCohort, err = l.loadInitialCohort(); err != nil {
		return nil, err
	}
	if in.Entering, err = l.loadEntering(); err != nil {
		return nil, err
	}
	if in.Interventions, err = l.loadTransitions(InterventionTransitionsFile, matrix.Intervention); err != nil {
		return nil, err
	}
	if in.InitEffect, err = l.loadInitEffect(); err != nil {
		return nil, err
	}
	if in.Behaviors, err = l.loadTransitions(BehaviorTransitionsFile, matrix.Behavior); err != nil {
		return nil, err
	}
	if in.Overdoses, in.FatalOverdoses, err = l.loadOverdoses(); err != nil {
		return nil, err
	}
	if in.Mortality, err = l.loadMortality(); err != nil {
		return nil, err
	}
	return in, nil
}

// cellTable loads a table keyed by intervention, behavior and demographic
// with one value column, split into change-time segments. Rows for post
// interventions are ignored when skipPost is set.
func (l *DataLoader) cellTable(t *table, value string, skipPost bool) ([]matrix.Matrix3d, error) {
	if err := t.require(colIntervention, colBehavior, colDemographic, value); err != nil {
		return nil, err
	}
	horizon := l.cfg.Simulation.Duration
	segs := newSegments(l.cfg.Shape(), 1)
	for r := range t.rows {
		i, b, d, err := l.cell(t, r)
		if err != nil {
			return nil, err
		}
		v, err := t.float(r, value)
		if err != nil {
			return nil, err
		}
		if skipPost && IsPostIntervention(l.cfg.State.Interventions[i]) {
			if v != 0 {
				l.logger.Warnf("%s row %d: ignoring %v for post intervention %s", t.name, r+2, v, l.cfg.State.Interventions[i])
			}
			continue
		}
		until, err := t.until(r, horizon)
		if err != nil {
			return nil, err
		}
		segs.set(until, 0, i, b, d, v)
	}
	expanded, err := segs.expand(horizon)
	if err != nil {
		return nil, err
	}
	out := make([]matrix.Matrix3d, len(expanded))
	for n, e := range expanded {
		out[n] = e[0]
	}
	return out, nil
}

func (l *DataLoader) cell(t *table, r int) (i, b, d int, err error) {
	if i, err = l.index.lookup(t, r, colIntervention, matrix.Intervention); err != nil {
		return
	}
	if b, err = l.index.lookup(t, r, colBehavior, matrix.Behavior); err != nil {
		return
	}
	d, err = l.index.lookup(t, r, colDemographic, matrix.Demographic)
	return
}

func (l *DataLoader) loadInitialCohort() (matrix.Matrix3d, error) {
	t, err := readTable(l.dir, InitCohortFile)
	if err != nil {
		return matrix.Matrix3d{}, err
	}
	if t.has(colUntil) {
		return matrix.Matrix3d{}, fmt.Errorf("%s: initial cohort cannot vary over time: %w", t.name, sim.ErrConfiguration)
	}
	series, err := l.cellTable(t, "count", true)
	if err != nil {
		return matrix.Matrix3d{}, err
	}
	if len(series) == 0 {
		return matrix.NewMatrix3d(l.cfg.Shape())
	}
	return series[0], nil
}

func (l *DataLoader) loadEntering() ([]matrix.Matrix3d, error) {
	t, err := readOptionalTable(l.dir, EnteringCohortFile)
	if err != nil {
		return nil, err
	}
	if t == nil {
		l.skipped(EnteringCohortFile, "migration")
		return nil, nil
	}
	return l.cellTable(t, "count", true)
}

// loadTransitions reads a from/to table along dim. The remaining two axes
// are keyed by their own columns.
func (l *DataLoader) loadTransitions(name string, dim matrix.Dimension) ([]sim.AxisTransition, error) {
	t, err := readOptionalTable(l.dir, name)
	if err != nil {
		return nil, err
	}
	if t == nil {
		l.skipped(name, dim.String()+" transitions")
		return nil, nil
	}
	blocks, err := l.blockTable(t, dim, l.cfg.Simulation.Duration)
	if err != nil {
		return nil, err
	}
	out := make([]sim.AxisTransition, len(blocks))
	for n, b := range blocks {
		out[n] = sim.AxisTransition{Along: dim, Blocks: b}
	}
	return out, nil
}

func (l *DataLoader) loadInitEffect() (*sim.AxisTransition, error) {
	t, err := readOptionalTable(l.dir, InterventionInitEffectsFile)
	if err != nil {
		return nil, err
	}
	if t == nil {
		l.skipped(InterventionInitEffectsFile, "intervention init effect")
		return nil, nil
	}
	if t.has(colUntil) {
		return nil, fmt.Errorf("%s: init effects cannot vary over time: %w", t.name, sim.ErrConfiguration)
	}
	blocks, err := l.blockTable(t, matrix.Behavior, 1)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return &sim.AxisTransition{Along: matrix.Behavior, Blocks: blocks[0]}, nil
}

// blockTable parses rows of (from, to, other axes..., probability) into
// per-period block lists along dim.
func (l *DataLoader) blockTable(t *table, dim matrix.Dimension, horizon int) ([][]matrix.Matrix3d, error) {
	others := make([]matrix.Dimension, 0, 2)
	for _, d := range matrix.Dimensions() {
		if d != dim {
			others = append(others, d)
		}
	}
	cols := []string{colFrom, colTo, "probability"}
	for _, d := range others {
		cols = append(cols, d.String())
	}
	if err := t.require(cols...); err != nil {
		return nil, err
	}
	shape := l.cfg.Shape()
	segs := newSegments(shape, shape.Extent(dim))
	for r := range t.rows {
		from, err := l.index.lookup(t, r, colFrom, dim)
		if err != nil {
			return nil, err
		}
		to, err := l.index.lookup(t, r, colTo, dim)
		if err != nil {
			return nil, err
		}
		coord := map[matrix.Dimension]int{dim: to}
		for _, d := range others {
			if coord[d], err = l.index.lookup(t, r, d.String(), d); err != nil {
				return nil, err
			}
		}
		p, err := t.float(r, "probability")
		if err != nil {
			return nil, err
		}
		until, err := t.until(r, horizon)
		if err != nil {
			return nil, err
		}
		segs.set(until, from, coord[matrix.Intervention], coord[matrix.Behavior], coord[matrix.Demographic], p)
	}
	return segs.expand(horizon)
}

func (l *DataLoader) loadOverdoses() (ods, fatal []matrix.Matrix3d, err error) {
	t, err := readOptionalTable(l.dir, OverdoseFile)
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		l.skipped(OverdoseFile, "overdose")
		return nil, nil, nil
	}
	if ods, err = l.cellTable(t, "overdose", false); err != nil {
		return nil, nil, err
	}
	if fatal, err = l.cellTable(t, "fatal", false); err != nil {
		return nil, nil, err
	}
	return ods, fatal, nil
}

// loadMortality combines background mortality (per demographic) with the
// standardized mortality ratio (per cell):
//
//	mortality = 1 - exp(ln(1 - background) * SMR)
//
// The result is time-invariant and repeated for every period.
func (l *DataLoader) loadMortality() ([]matrix.Matrix3d, error) {
	bgTable, err := readOptionalTable(l.dir, BackgroundMortalityFile)
	if err != nil {
		return nil, err
	}
	smrTable, err := readOptionalTable(l.dir, SMRFile)
	if err != nil {
		return nil, err
	}
	if bgTable == nil && smrTable == nil {
		l.logger.Infof("%s and %s absent, mortality stage disabled", BackgroundMortalityFile, SMRFile)
		return nil, nil
	}
	if bgTable == nil || smrTable == nil {
		return nil, fmt.Errorf("%s and %s must be given together: %w", BackgroundMortalityFile, SMRFile, sim.ErrConfiguration)
	}

	if err := bgTable.require(colDemographic, "probability"); err != nil {
		return nil, err
	}
	shape := l.cfg.Shape()
	background := make([]float64, shape.Demographics)
	for r := range bgTable.rows {
		d, err := l.index.lookup(bgTable, r, colDemographic, matrix.Demographic)
		if err != nil {
			return nil, err
		}
		if background[d], err = bgTable.float(r, "probability"); err != nil {
			return nil, err
		}
		if v := background[d]; !(v >= 0 && v <= 1) {
			return nil, fmt.Errorf("%s row %d: background mortality %v outside [0,1]: %w", bgTable.name, r+2, v, sim.ErrInvalidProbability)
		}
	}

	if err := smrTable.require(colIntervention, colBehavior, colDemographic, "smr"); err != nil {
		return nil, err
	}
	smr, err := matrix.NewMatrix3d(shape)
	if err != nil {
		return nil, err
	}
	values := smr.Values()
	for r := range smrTable.rows {
		i, b, d, err := l.cell(smrTable, r)
		if err != nil {
			return nil, err
		}
		v, err := smrTable.float(r, "smr")
		if err != nil {
			return nil, err
		}
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("%s row %d: negative SMR %v: %w", smrTable.name, r+2, v, sim.ErrInvalidProbability)
		}
		values[(i*shape.Behaviors+b)*shape.Demographics+d] = v
	}
	if smr, err = matrix.FromSlice(shape, values); err != nil {
		return nil, err
	}

	mortality, err := matrix.FromFunc(shape, func(i, b, d int) float64 {
		return MortalityProbability(background[d], smr.At(i, b, d))
	})
	if err != nil {
		return nil, err
	}
	out := make([]matrix.Matrix3d, l.cfg.Simulation.Duration)
	for n := range out {
		out[n] = mortality
	}
	return out, nil
}

// MortalityProbability scales a background death probability by an SMR on
// the hazard scale: 1 - exp(ln(1-background) * smr).
func MortalityProbability(background, smr float64) float64 {
	if smr == 0 {
		return 0
	}
	return 1 - math.Exp(math.Log1p(-background)*smr)
}

func (l *DataLoader) skipped(name, stage string) {
	l.logger.Infof("%s absent, %s stage disabled", name, stage)
}
