package sim

import (
	"fmt"

	"github.com/respond-sim/respond/sim/matrix"
)

// Stage is one step of the per-period transition chain.
type Stage int

const (
	StageMigration Stage = iota
	StageIntervention
	StageBehavior
	StageOverdose
	StageMortality
)

// Stages returns the transition chain in application order. Later stages see
// the population already adjusted by earlier ones in the same period.
func Stages() []Stage {
	return []Stage{StageMigration, StageIntervention, StageBehavior, StageOverdose, StageMortality}
}

func (s Stage) String() string {
	switch s {
	case StageMigration:
		return "migration"
	case StageIntervention:
		return "intervention"
	case StageBehavior:
		return "behavior"
	case StageOverdose:
		return "overdose"
	case StageMortality:
		return "mortality"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Migrate adds the period's entering cohort. Negative entries are net exits;
// cells that would go below zero are clamped at zero.
func Migrate(state, entering matrix.Matrix3d) (matrix.Matrix3d, error) {
	next, err := state.Add(entering)
	if err != nil {
		return matrix.Matrix3d{}, fmt.Errorf("entering cohort: %w", err)
	}
	return next.ClampMin(0), nil
}

// Intervene moves mass along the intervention axis. Mass that lands in a
// different intervention than it started in is returned as admissions (per
// destination cell); when p.InitEffect is set, that mass also has its
// behavior redistributed before it is counted.
func Intervene(state matrix.Matrix3d, p InterventionParams) (next, admissions matrix.Matrix3d, err error) {
	t := p.Transition
	if t.Along != matrix.Intervention {
		return next, admissions, fmt.Errorf("intervention transition along %s: %w", t.Along, ErrConfiguration)
	}
	if err := t.Validate("intervention transition", state.Shape()); err != nil {
		return next, admissions, err
	}
	if p.InitEffect != nil {
		if p.InitEffect.Along != matrix.Behavior {
			return next, admissions, fmt.Errorf("intervention init effect along %s: %w", p.InitEffect.Along, ErrConfiguration)
		}
		if err := p.InitEffect.Validate("intervention init effect", state.Shape()); err != nil {
			return next, admissions, err
		}
	}

	shape := state.Shape()
	stayed, _ := matrix.NewMatrix3d(shape)
	moved, _ := matrix.NewMatrix3d(shape)
	for src, block := range t.Blocks {
		flow, err := matrix.Spread(state, matrix.Intervention, src, block)
		if err != nil {
			return next, admissions, err
		}
		keep, _ := matrix.FromFunc(shape, func(i, b, d int) float64 {
			if i == src {
				return flow.At(i, b, d)
			}
			return 0
		})
		leave, err := flow.Sub(keep)
		if err != nil {
			return next, admissions, err
		}
		if stayed, err = stayed.Add(keep); err != nil {
			return next, admissions, err
		}
		if moved, err = moved.Add(leave); err != nil {
			return next, admissions, err
		}
	}
	if p.InitEffect != nil {
		if moved, err = p.InitEffect.Apply(moved); err != nil {
			return next, admissions, err
		}
	}
	if next, err = stayed.Add(moved); err != nil {
		return next, admissions, err
	}
	return next, moved, nil
}

// Behave moves mass along the behavior axis.
func Behave(state matrix.Matrix3d, t AxisTransition) (matrix.Matrix3d, error) {
	if t.Along != matrix.Behavior {
		return matrix.Matrix3d{}, fmt.Errorf("behavior transition along %s: %w", t.Along, ErrConfiguration)
	}
	return t.Apply(state)
}

// Overdose computes overdoses = state * od and fatal = overdoses * fatal.
// Fatal overdoses leave the cohort; non-fatal ones stay in place.
func Overdose(state, od, fatal matrix.Matrix3d) (next, overdoses, fatalities matrix.Matrix3d, err error) {
	if err = checkProbabilities("overdose", od); err != nil {
		return
	}
	if err = checkProbabilities("fatal overdose", fatal); err != nil {
		return
	}
	if overdoses, err = state.Mul(od); err != nil {
		return next, overdoses, fatalities, fmt.Errorf("overdose: %w", err)
	}
	if fatalities, err = overdoses.Mul(fatal); err != nil {
		return next, overdoses, fatalities, fmt.Errorf("fatal overdose: %w", err)
	}
	next, err = state.Sub(fatalities)
	return next, overdoses, fatalities, err
}

// Die removes state * mortality from the cohort and returns the deaths.
func Die(state, mortality matrix.Matrix3d) (next, deaths matrix.Matrix3d, err error) {
	if err = checkProbabilities("mortality", mortality); err != nil {
		return
	}
	if deaths, err = state.Mul(mortality); err != nil {
		return next, deaths, fmt.Errorf("mortality: %w", err)
	}
	next, err = state.Sub(deaths)
	return next, deaths, err
}
