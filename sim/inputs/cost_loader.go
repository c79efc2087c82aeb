package inputs

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/accounting"
	"github.com/respond-sim/respond/sim/matrix"
)

// Cost and utility table file names.
const (
	HealthcareCostFile     = "healthcare_cost.csv"
	PharmaceuticalCostFile = "pharmaceutical_cost.csv"
	TreatmentCostFile      = "treatment_cost.csv"
	OverdoseCostFile       = "overdose_cost.csv"
	BackgroundUtilityFile  = "background_utility.csv"
	BehaviorUtilityFile    = "behavior_utility.csv"
	SettingUtilityFile     = "setting_utility.csv"
)

// CostLoader reads unit cost tables. A missing table contributes zero cost.
type CostLoader struct {
	dir    string
	cfg    *Config
	index  axisIndex
	logger logrus.FieldLogger
}

func NewCostLoader(dir string, cfg *Config, logger logrus.FieldLogger) *CostLoader {
	if logger == nil {
		logger = sim.DiscardLogger()
	}
	return &CostLoader{dir: dir, cfg: cfg, index: newAxisIndex(cfg.Labels()), logger: logger}
}

// Load reads healthcare_cost.csv (per cell), pharmaceutical_cost.csv and
// treatment_cost.csv (per intervention) and overdose_cost.csv (per event type).
func (l *CostLoader) Load() (accounting.CostInputs, error) {
	var (
		in  accounting.CostInputs
		err error
	)
	if in.Healthcare, err = l.loadCellCost(HealthcareCostFile); err != nil {
		return in, err
	}
	if in.Pharmaceutical, err = l.loadInterventionCost(PharmaceuticalCostFile); err != nil {
		return in, err
	}
	if in.Treatment, err = l.loadInterventionCost(TreatmentCostFile); err != nil {
		return in, err
	}
	in.NonFatalOverdose, in.FatalOverdose, err = l.loadOverdoseCost()
	return in, err
}

func (l *CostLoader) zero(name string) (matrix.Matrix3d, error) {
	l.logger.Warnf("%s absent, cost defaults to zero", name)
	return matrix.NewMatrix3d(l.cfg.Shape())
}

func (l *CostLoader) loadCellCost(name string) (matrix.Matrix3d, error) {
	t, err := readOptionalTable(l.dir, name)
	if err != nil {
		return matrix.Matrix3d{}, err
	}
	if t == nil {
		return l.zero(name)
	}
	if err := t.require(colIntervention, colBehavior, colDemographic, "cost"); err != nil {
		return matrix.Matrix3d{}, err
	}
	shape := l.cfg.Shape()
	values := make([]float64, shape.Size())
	for r := range t.rows {
		i, err := l.index.lookup(t, r, colIntervention, matrix.Intervention)
		if err != nil {
			return matrix.Matrix3d{}, err
		}
		b, err := l.index.lookup(t, r, colBehavior, matrix.Behavior)
		if err != nil {
			return matrix.Matrix3d{}, err
		}
		d, err := l.index.lookup(t, r, colDemographic, matrix.Demographic)
		if err != nil {
			return matrix.Matrix3d{}, err
		}
		if values[(i*shape.Behaviors+b)*shape.Demographics+d], err = nonNegative(t, r, "cost"); err != nil {
			return matrix.Matrix3d{}, err
		}
	}
	return matrix.FromSlice(shape, values)
}

func (l *CostLoader) loadInterventionCost(name string) (matrix.Matrix3d, error) {
	t, err := readOptionalTable(l.dir, name)
	if err != nil {
		return matrix.Matrix3d{}, err
	}
	if t == nil {
		return l.zero(name)
	}
	if err := t.require(colIntervention, "cost"); err != nil {
		return matrix.Matrix3d{}, err
	}
	shape := l.cfg.Shape()
	per := make([]float64, shape.Interventions)
	for r := range t.rows {
		i, err := l.index.lookup(t, r, colIntervention, matrix.Intervention)
		if err != nil {
			return matrix.Matrix3d{}, err
		}
		if per[i], err = nonNegative(t, r, "cost"); err != nil {
			return matrix.Matrix3d{}, err
		}
	}
	ones, err := matrix.Full(shape, 1)
	if err != nil {
		return matrix.Matrix3d{}, err
	}
	return matrix.VectorMultiplied(ones, matrix.Intervention, per)
}

func (l *CostLoader) loadOverdoseCost() (nonFatal, fatal matrix.Matrix3d, err error) {
	t, err := readOptionalTable(l.dir, OverdoseCostFile)
	if err != nil {
		return
	}
	shape := l.cfg.Shape()
	if t == nil {
		if nonFatal, err = l.zero(OverdoseCostFile); err != nil {
			return
		}
		fatal = nonFatal
		return
	}
	if err = t.require("type", "cost"); err != nil {
		return
	}
	costs := map[accounting.CostCategory]float64{}
	for r := range t.rows {
		cat, perr := accounting.ParseCostCategory(t.str(r, "type"))
		if perr != nil || (cat != accounting.NonFatalOverdose && cat != accounting.FatalOverdose) {
			return nonFatal, fatal, fmt.Errorf("%s row %d: type must be non_fatal_overdose or fatal_overdose, got %q: %w",
				t.name, r+2, t.str(r, "type"), sim.ErrConfiguration)
		}
		if costs[cat], err = nonNegative(t, r, "cost"); err != nil {
			return
		}
	}
	if nonFatal, err = matrix.Full(shape, costs[accounting.NonFatalOverdose]); err != nil {
		return
	}
	fatal, err = matrix.Full(shape, costs[accounting.FatalOverdose])
	return
}

func nonNegative(t *table, r int, col string) (float64, error) {
	v, err := t.float(r, col)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%s row %d: %s must be >= 0, got %v: %w", t.name, r+2, col, v, sim.ErrConfiguration)
	}
	return v, nil
}

// UtilityLoader reads the per-category utility tables. A missing table
// leaves its category out of the combination.
type UtilityLoader struct {
	dir    string
	cfg    *Config
	index  axisIndex
	logger logrus.FieldLogger
}

func NewUtilityLoader(dir string, cfg *Config, logger logrus.FieldLogger) *UtilityLoader {
	if logger == nil {
		logger = sim.DiscardLogger()
	}
	return &UtilityLoader{dir: dir, cfg: cfg, index: newAxisIndex(cfg.Labels()), logger: logger}
}

// Load reads background_utility.csv (per demographic), behavior_utility.csv
// (per behavior) and setting_utility.csv (per intervention).
func (l *UtilityLoader) Load() (accounting.UtilityInputs, error) {
	var (
		in  accounting.UtilityInputs
		err error
	)
	if in.Background, err = l.loadVector(BackgroundUtilityFile, matrix.Demographic); err != nil {
		return in, err
	}
	if in.Behavior, err = l.loadVector(BehaviorUtilityFile, matrix.Behavior); err != nil {
		return in, err
	}
	in.Setting, err = l.loadVector(SettingUtilityFile, matrix.Intervention)
	return in, err
}

func (l *UtilityLoader) loadVector(name string, dim matrix.Dimension) ([]float64, error) {
	t, err := readOptionalTable(l.dir, name)
	if err != nil {
		return nil, err
	}
	if t == nil {
		l.logger.Infof("%s absent, %s utility not applied", name, dim)
		return nil, nil
	}
	if err := t.require(dim.String(), "utility"); err != nil {
		return nil, err
	}
	out := make([]float64, l.cfg.Shape().Extent(dim))
	seen := make([]bool, len(out))
	for r := range t.rows {
		k, err := l.index.lookup(t, r, dim.String(), dim)
		if err != nil {
			return nil, err
		}
		if out[k], err = t.float(r, "utility"); err != nil {
			return nil, err
		}
		seen[k] = true
	}
	for k, ok := range seen {
		if !ok {
			l.logger.Warnf("%s: no row for %s %q, utility defaults to 0", name, dim, l.cfg.Labels().Of(dim)[k])
		}
	}
	return out, nil
}
