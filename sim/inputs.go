package sim

import (
	"fmt"
	"math"

	"github.com/respond-sim/respond/sim/matrix"
)

// rowSumTolerance bounds how far a transition row may drift from 1 before a
// warning is logged.
const rowSumTolerance = 1e-6

// AxisTransition moves mass between the indices of one axis.
// Blocks[k] has the run's full shape; its value at a cell whose coordinate
// along Along is j is the probability of moving from k to j, for that cell's
// coordinates on the other two axes.
type AxisTransition struct {
	Along  matrix.Dimension
	Blocks []matrix.Matrix3d
}

// Validate checks the block count, block shapes and probability range
// against shape.
func (t AxisTransition) Validate(name string, shape matrix.Shape) error {
	if !t.Along.Valid() {
		return fmt.Errorf("%s: unknown axis %s: %w", name, t.Along, ErrConfiguration)
	}
	if want := shape.Extent(t.Along); len(t.Blocks) != want {
		return fmt.Errorf("%s: expected %d %s blocks, got %d: %w", name, want, t.Along, len(t.Blocks), ErrVectorLengthMismatch)
	}
	for k, b := range t.Blocks {
		if b.Shape() != shape {
			return fmt.Errorf("%s block %d: expected shape %s, got %s: %w", name, k, shape, b.Shape(), ErrDimensionMismatch)
		}
		if err := checkProbabilities(fmt.Sprintf("%s block %d", name, k), b); err != nil {
			return err
		}
	}
	return nil
}

// Apply redistributes state along the transition's axis.
func (t AxisTransition) Apply(state matrix.Matrix3d) (matrix.Matrix3d, error) {
	if err := t.Validate(t.Along.String()+" transition", state.Shape()); err != nil {
		return matrix.Matrix3d{}, err
	}
	out, err := matrix.NewMatrix3d(state.Shape())
	if err != nil {
		return matrix.Matrix3d{}, err
	}
	for k, b := range t.Blocks {
		moved, err := matrix.Spread(state, t.Along, k, b)
		if err != nil {
			return matrix.Matrix3d{}, err
		}
		if out, err = out.Add(moved); err != nil {
			return matrix.Matrix3d{}, err
		}
	}
	return out, nil
}

// unbalancedRow returns the first source index whose outgoing probabilities
// do not sum to 1.
func (t AxisTransition) unbalancedRow() (src int, sum float64, ok bool) {
	for k, b := range t.Blocks {
		rows := b.SumOver(t.Along)
		i, bh, d, found := rows.Any(func(v float64) bool { return math.Abs(v-1) > rowSumTolerance })
		if found {
			return k, rows.At(i, bh, d), true
		}
	}
	return 0, 0, false
}

// emptyRowTolerance is the largest row sum treated as no outgoing
// probability at all.
const emptyRowTolerance = 1e-12

// emptyRow returns the first source index and cell whose outgoing
// probabilities sum to zero.
func (t AxisTransition) emptyRow() (src, i, b, d int, ok bool) {
	for k, blk := range t.Blocks {
		rows := blk.SumOver(t.Along)
		if i, b, d, found := rows.Any(func(v float64) bool { return math.Abs(v) < emptyRowTolerance }); found {
			return k, i, b, d, true
		}
	}
	return 0, 0, 0, 0, false
}

// InterventionParams drives one period of the intervention stage.
// InitEffect, when set, is a Behavior-axis transition applied to mass that
// has just changed intervention (behavior shift on treatment entry).
type InterventionParams struct {
	Transition AxisTransition
	InitEffect *AxisTransition
}

// Labels names the entries along each axis. Any of the slices may be empty.
type Labels struct {
	Interventions []string
	Behaviors     []string
	Demographics  []string
}

// Of returns the labels for dim.
func (l Labels) Of(dim matrix.Dimension) []string {
	switch dim {
	case matrix.Intervention:
		return l.Interventions
	case matrix.Behavior:
		return l.Behaviors
	case matrix.Demographic:
		return l.Demographics
	}
	return nil
}

// Inputs is everything one run consumes. Per-period series are indexed by
// period-1: entry 0 drives the step from period 0 to period 1. An empty
// series disables its stage, which then passes the population through.
type Inputs struct {
	Shape   matrix.Shape
	Labels  Labels
	Horizon int // number of simulated periods (N)

	InitialCohort matrix.Matrix3d

	// Entering cohort per period, already stratified. Negative cells are exits.
	Entering []matrix.Matrix3d
	// Intervention axis transitions per period.
	Interventions []AxisTransition
	// Behavior shift for mass entering a new intervention; time-invariant.
	InitEffect *AxisTransition
	// Behavior axis transitions per period.
	Behaviors []AxisTransition
	// Overdose probability and fatal-given-overdose probability per period.
	Overdoses      []matrix.Matrix3d
	FatalOverdoses []matrix.Matrix3d
	// All-cause mortality probability per period.
	Mortality []matrix.Matrix3d
}

func checkProbabilities(name string, m matrix.Matrix3d) error {
	i, b, d, bad := m.Any(func(v float64) bool { return !(v >= 0 && v <= 1) })
	if bad {
		return fmt.Errorf("%s: entry (%d,%d,%d) = %v outside [0,1]: %w", name, i, b, d, m.At(i, b, d), ErrInvalidProbability)
	}
	return nil
}
