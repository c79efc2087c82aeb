package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/respond-sim/respond/sim/internal/testutil"
)

func TestMarkov_Run_GoldenDataset(t *testing.T) {
	dataset := testutil.LoadGoldenDataset(t)
	for _, tc := range dataset.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			// GIVEN a two-behavior cohort with a constant shift and mortality
			in := &Inputs{
				Shape:         twoState,
				Horizon:       tc.Periods,
				InitialCohort: testutil.Matrix(t, twoState, tc.Active, tc.Nonactive),
				Behaviors:     repeatTransition(shiftBehavior(t, tc.Shift), tc.Periods),
				Mortality:     repeatMatrix(testutil.Fill(t, twoState, tc.Mortality), tc.Periods),
			}
			m, err := NewMarkov(in, nil)
			require.NoError(t, err)

			// WHEN run to the horizon
			h, err := m.Run()
			require.NoError(t, err)

			// THEN the final state and cumulative deaths match the closed form
			final, ok := h.Final()
			require.True(t, ok)
			testutil.AssertFloat64Equal(t, "active", tc.Outcome.Active, final.At(0, 0, 0), 1e-9)
			testutil.AssertFloat64Equal(t, "nonactive", tc.Outcome.Nonactive, final.At(0, 1, 0), 1e-9)
			testutil.AssertFloat64Equal(t, "population", tc.Outcome.Population, final.Sum(), 1e-9)

			var deaths float64
			for _, hs := range h.Stamps() {
				deaths += hs.Deaths.Sum()
			}
			testutil.AssertFloat64Equal(t, "deaths", tc.Outcome.Deaths, deaths, 1e-9)
		})
	}
}
