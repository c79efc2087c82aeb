package sim

import (
	"testing"

	"github.com/respond-sim/respond/sim/internal/testutil"
	"github.com/respond-sim/respond/sim/matrix"
)

// twoState is one intervention, two behaviors (active, nonactive), one demographic.
var twoState = matrix.Shape{Interventions: 1, Behaviors: 2, Demographics: 1}

// shiftBehavior builds a twoState behavior transition that moves p of the
// active state to nonactive each period and keeps nonactive in place.
func shiftBehavior(t *testing.T, p float64) AxisTransition {
	t.Helper()
	return AxisTransition{
		Along: matrix.Behavior,
		Blocks: []matrix.Matrix3d{
			testutil.Matrix(t, twoState, 1-p, p),
			testutil.Matrix(t, twoState, 0, 1),
		},
	}
}

// repeatTransition returns n copies of tr.
func repeatTransition(tr AxisTransition, n int) []AxisTransition {
	out := make([]AxisTransition, n)
	for i := range out {
		out[i] = tr
	}
	return out
}

// repeatMatrix returns n copies of m.
func repeatMatrix(m matrix.Matrix3d, n int) []matrix.Matrix3d {
	out := make([]matrix.Matrix3d, n)
	for i := range out {
		out[i] = m
	}
	return out
}

// identityBlocks returns the do-nothing transition along dim for shape.
func identityBlocks(t *testing.T, shape matrix.Shape, dim matrix.Dimension) AxisTransition {
	t.Helper()
	blocks := make([]matrix.Matrix3d, shape.Extent(dim))
	for k := range blocks {
		m, err := matrix.FromFunc(shape, func(i, b, d int) float64 {
			idx := map[matrix.Dimension]int{matrix.Intervention: i, matrix.Behavior: b, matrix.Demographic: d}[dim]
			if idx == k {
				return 1
			}
			return 0
		})
		if err != nil {
			t.Fatal(err)
		}
		blocks[k] = m
	}
	return AxisTransition{Along: dim, Blocks: blocks}
}

// behaviorOnlyInputs is the two-period, [100, 0] cohort with a 10% shift.
func behaviorOnlyInputs(t *testing.T) *Inputs {
	t.Helper()
	return &Inputs{
		Shape:         twoState,
		Horizon:       2,
		InitialCohort: testutil.Matrix(t, twoState, 100, 0),
		Behaviors:     repeatTransition(shiftBehavior(t, 0.1), 2),
	}
}
