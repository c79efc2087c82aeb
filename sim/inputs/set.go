package inputs

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/accounting"
)

// Set is one fully loaded input directory.
type Set struct {
	Dir        string
	Config     *Config
	Inputs     *sim.Inputs
	Evaluation accounting.EvaluationInputs
}

// LoadSet reads sim.yaml and every table in dir. Cost and utility tables
// are read only when cost.enabled is set, and are validated against the
// state shape before any period is simulated.
func LoadSet(dir string, logger logrus.FieldLogger) (*Set, error) {
	if logger == nil {
		logger = sim.DiscardLogger()
	}
	cfg, err := LoadConfig(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, err
	}
	in, err := NewDataLoader(dir, cfg, logger).Load()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", dir, err)
	}
	perspectives, err := cfg.PerspectiveMapping()
	if err != nil {
		return nil, err
	}
	set := &Set{
		Dir:    dir,
		Config: cfg,
		Inputs: in,
		Evaluation: accounting.EvaluationInputs{
			UtilityType:        cfg.UtilityKind(),
			Perspectives:       perspectives,
			AnnualDiscountRate: cfg.Cost.DiscountRate,
			PeriodsPerYear:     cfg.Simulation.PeriodsPerYear,
		},
	}
	if !cfg.Cost.Enabled {
		logger.Infof("cost.enabled is false, skipping cost and utility tables")
		return set, nil
	}
	costs, err := NewCostLoader(dir, cfg, logger).Load()
	if err != nil {
		return nil, fmt.Errorf("loading costs from %s: %w", dir, err)
	}
	utils, err := NewUtilityLoader(dir, cfg, logger).Load()
	if err != nil {
		return nil, fmt.Errorf("loading utilities from %s: %w", dir, err)
	}
	set.Evaluation.Costs = &costs
	if len(utils.Background)+len(utils.Behavior)+len(utils.Setting) > 0 {
		set.Evaluation.Utilities = &utils
	}
	if err := set.Evaluation.Validate(in.Shape); err != nil {
		return nil, fmt.Errorf("evaluation inputs in %s: %w", dir, err)
	}
	return set, nil
}
