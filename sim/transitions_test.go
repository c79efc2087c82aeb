package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/respond-sim/respond/sim/internal/testutil"
	"github.com/respond-sim/respond/sim/matrix"
)

func TestStages_FixedOrder(t *testing.T) {
	got := make([]string, 0, 5)
	for _, s := range Stages() {
		got = append(got, s.String())
	}
	assert.Equal(t, []string{"migration", "intervention", "behavior", "overdose", "mortality"}, got)
}

func TestMigrate_AddsAndClampsExits(t *testing.T) {
	// GIVEN a cohort and an entering table that removes more than exists in one cell
	state := testutil.Matrix(t, twoState, 10, 5)
	entering := testutil.Matrix(t, twoState, 3, -8)

	// WHEN migrated
	next, err := Migrate(state, entering)
	require.NoError(t, err)

	// THEN arrivals are added and the over-drawn cell stops at zero
	assert.Equal(t, []float64{13, 0}, next.Values())
	assert.Equal(t, []float64{10, 5}, state.Values(), "input must not be mutated")
}

func TestMigrate_ShapeMismatch(t *testing.T) {
	state := testutil.Matrix(t, twoState, 10, 5)
	entering := testutil.Fill(t, matrix.Shape{Interventions: 2, Behaviors: 2, Demographics: 1}, 1)
	_, err := Migrate(state, entering)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBehave_ConservesMass(t *testing.T) {
	state := testutil.Matrix(t, twoState, 100, 0)
	next, err := Behave(state, shiftBehavior(t, 0.1))
	require.NoError(t, err)
	testutil.AssertMatrixClose(t, "behavior", testutil.Matrix(t, twoState, 90, 10), next, 1e-12)
	testutil.AssertFloat64Equal(t, "total", state.Sum(), next.Sum(), testutil.Tolerance)
}

func TestBehave_InvalidProbability(t *testing.T) {
	tests := []struct {
		name  string
		block matrix.Matrix3d
	}{
		{"above one", testutil.Matrix(t, twoState, 1.2, -0.2)},
		{"negative", testutil.Matrix(t, twoState, -0.1, 1.1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := AxisTransition{Along: matrix.Behavior, Blocks: []matrix.Matrix3d{tc.block, testutil.Matrix(t, twoState, 0, 1)}}
			_, err := Behave(testutil.Matrix(t, twoState, 1, 1), tr)
			assert.ErrorIs(t, err, ErrInvalidProbability)
		})
	}
}

func TestBehave_WrongAxis(t *testing.T) {
	tr := shiftBehavior(t, 0.1)
	tr.Along = matrix.Intervention
	_, err := Behave(testutil.Matrix(t, twoState, 1, 1), tr)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestIntervene_InitEffectShiftsAdmittedBehavior(t *testing.T) {
	// GIVEN two interventions (none, treatment) and two behaviors (active, nonactive)
	shape := matrix.Shape{Interventions: 2, Behaviors: 2, Demographics: 1}
	state := testutil.Matrix(t, shape, 100, 0, 0, 0)
	// 20% of "none" moves to treatment; treatment keeps everyone
	transition := AxisTransition{Along: matrix.Intervention, Blocks: []matrix.Matrix3d{
		testutil.Matrix(t, shape, 0.8, 0.8, 0.2, 0.2),
		testutil.Matrix(t, shape, 0, 0, 1, 1),
	}}
	// entering treatment moves half of the active users to nonactive
	initEffect := AxisTransition{Along: matrix.Behavior, Blocks: []matrix.Matrix3d{
		testutil.Matrix(t, shape, 1, 0, 0.5, 0.5),
		testutil.Matrix(t, shape, 0, 1, 0, 1),
	}}

	// WHEN the intervention stage runs with the init effect
	next, admissions, err := Intervene(state, InterventionParams{Transition: transition, InitEffect: &initEffect})
	require.NoError(t, err)

	// THEN the admitted 20 are split across behaviors and stayers are untouched
	testutil.AssertMatrixClose(t, "next", testutil.Matrix(t, shape, 80, 0, 10, 10), next, 1e-12)
	testutil.AssertMatrixClose(t, "admissions", testutil.Matrix(t, shape, 0, 0, 10, 10), admissions, 1e-12)
	testutil.AssertFloat64Equal(t, "total", 100, next.Sum(), testutil.Tolerance)
}

func TestIntervene_WithoutInitEffect(t *testing.T) {
	shape := matrix.Shape{Interventions: 2, Behaviors: 1, Demographics: 1}
	state := testutil.Matrix(t, shape, 50, 50)
	transition := AxisTransition{Along: matrix.Intervention, Blocks: []matrix.Matrix3d{
		testutil.Matrix(t, shape, 0.6, 0.4),
		testutil.Matrix(t, shape, 0.1, 0.9),
	}}

	next, admissions, err := Intervene(state, InterventionParams{Transition: transition})
	require.NoError(t, err)

	testutil.AssertMatrixClose(t, "next", testutil.Matrix(t, shape, 35, 65), next, 1e-12)
	testutil.AssertMatrixClose(t, "admissions", testutil.Matrix(t, shape, 5, 20), admissions, 1e-12)
}

func TestIntervene_BlockCountMismatch(t *testing.T) {
	shape := matrix.Shape{Interventions: 2, Behaviors: 1, Demographics: 1}
	transition := AxisTransition{Along: matrix.Intervention, Blocks: []matrix.Matrix3d{testutil.Matrix(t, shape, 1, 0)}}
	_, _, err := Intervene(testutil.Matrix(t, shape, 1, 1), InterventionParams{Transition: transition})
	assert.ErrorIs(t, err, ErrVectorLengthMismatch)
}

func TestOverdose_FatalLeaveNonFatalStay(t *testing.T) {
	shape := matrix.Shape{Interventions: 1, Behaviors: 1, Demographics: 1}
	next, ods, fatal, err := Overdose(testutil.Matrix(t, shape, 100), testutil.Matrix(t, shape, 0.1), testutil.Matrix(t, shape, 0.2))
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "overdoses", 10, ods.Sum(), testutil.Tolerance)
	testutil.AssertFloat64Equal(t, "fatal", 2, fatal.Sum(), testutil.Tolerance)
	testutil.AssertFloat64Equal(t, "next", 98, next.Sum(), testutil.Tolerance)
}

func TestDie_RemovesDeaths(t *testing.T) {
	shape := matrix.Shape{Interventions: 1, Behaviors: 1, Demographics: 1}
	next, deaths, err := Die(testutil.Matrix(t, shape, 98), testutil.Matrix(t, shape, 0.01))
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "deaths", 0.98, deaths.Sum(), testutil.Tolerance)
	testutil.AssertFloat64Equal(t, "next", 97.02, next.Sum(), testutil.Tolerance)

	_, _, err = Die(testutil.Matrix(t, shape, 98), testutil.Matrix(t, shape, -0.01))
	assert.ErrorIs(t, err, ErrInvalidProbability)
}
