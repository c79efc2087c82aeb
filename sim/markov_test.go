package sim

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/respond-sim/respond/sim/internal/testutil"
	"github.com/respond-sim/respond/sim/matrix"
	"github.com/respond-sim/respond/sim/trace"
)

func TestMarkov_Run_BehaviorOnlyScenario(t *testing.T) {
	// GIVEN 2 periods, a [100, 0] cohort and a 10% active→nonactive shift
	m, err := NewMarkov(behaviorOnlyInputs(t), nil)
	require.NoError(t, err)

	// WHEN the run completes
	h, err := m.Run()
	require.NoError(t, err)

	// THEN the state ledger is [[100,0],[90,10],[81,19]]
	want := [][]float64{{100, 0}, {90, 10}, {81, 19}}
	require.Equal(t, 3, h.Len())
	for p, w := range want {
		got, ok := h.State.At(p)
		require.True(t, ok, "period %d missing", p)
		testutil.AssertMatrixClose(t, "state", testutil.Matrix(t, twoState, w...), got, 1e-9)
	}
	assert.Equal(t, 2, h.Horizon())
}

func TestMarkov_Run_PeriodZeroEventsAreZero(t *testing.T) {
	m, err := NewMarkov(behaviorOnlyInputs(t), nil)
	require.NoError(t, err)
	h, err := m.Run()
	require.NoError(t, err)

	hs, ok := h.Stamp(0)
	require.True(t, ok)
	for name, ledger := range map[string]matrix.Matrix3d{
		"entering":   hs.Entering,
		"admissions": hs.InterventionAdmissions,
		"overdoses":  hs.Overdoses,
		"fatal":      hs.FatalOverdoses,
		"deaths":     hs.Deaths,
	} {
		assert.Equal(t, 0.0, ledger.Sum(), name)
		assert.Equal(t, twoState, ledger.Shape(), name)
	}
	assert.Len(t, h.Stamps(), 3)
}

func TestMarkov_Run_RepeatableAndIndependent(t *testing.T) {
	// GIVEN one Markov
	m, err := NewMarkov(behaviorOnlyInputs(t), nil)
	require.NoError(t, err)

	// WHEN it runs twice
	first, err := m.Run()
	require.NoError(t, err)
	second, err := m.Run()
	require.NoError(t, err)

	// THEN the histories match and are distinct values
	a, _ := first.Final()
	b, _ := second.Final()
	assert.True(t, a.Equal(b))
	assert.NotSame(t, first, second)
}

func TestMarkov_Run_StageOrder(t *testing.T) {
	// GIVEN 10 entering and 50% mortality on a cohort of 100
	shape := matrix.Shape{Interventions: 1, Behaviors: 1, Demographics: 1}
	in := &Inputs{
		Shape:         shape,
		Horizon:       1,
		InitialCohort: testutil.Matrix(t, shape, 100),
		Entering:      []matrix.Matrix3d{testutil.Matrix(t, shape, 10)},
		Mortality:     []matrix.Matrix3d{testutil.Matrix(t, shape, 0.5)},
	}
	m, err := NewMarkov(in, nil)
	require.NoError(t, err)

	// WHEN run
	h, err := m.Run()
	require.NoError(t, err)

	// THEN mortality applies to the population after migration (110 * 0.5)
	final, _ := h.Final()
	testutil.AssertFloat64Equal(t, "final", 55, final.Sum(), testutil.Tolerance)
	hs, _ := h.Stamp(1)
	testutil.AssertFloat64Equal(t, "deaths", 55, hs.Deaths.Sum(), testutil.Tolerance)
	testutil.AssertFloat64Equal(t, "entering", 10, hs.Entering.Sum(), testutil.Tolerance)
}

func TestMarkov_Run_OverdoseBeforeMortality(t *testing.T) {
	// GIVEN 100 people, 10% overdose, 50% of overdoses fatal, 10% mortality
	shape := matrix.Shape{Interventions: 1, Behaviors: 1, Demographics: 1}
	in := &Inputs{
		Shape:          shape,
		Horizon:        1,
		InitialCohort:  testutil.Matrix(t, shape, 100),
		Overdoses:      []matrix.Matrix3d{testutil.Matrix(t, shape, 0.1)},
		FatalOverdoses: []matrix.Matrix3d{testutil.Matrix(t, shape, 0.5)},
		Mortality:      []matrix.Matrix3d{testutil.Matrix(t, shape, 0.1)},
	}
	m, err := NewMarkov(in, nil)
	require.NoError(t, err)
	h, err := m.Run()
	require.NoError(t, err)

	// THEN mortality sees 95 survivors of overdose: 9.5 deaths, 85.5 remain
	hs, _ := h.Stamp(1)
	testutil.AssertFloat64Equal(t, "overdoses", 10, hs.Overdoses.Sum(), testutil.Tolerance)
	testutil.AssertFloat64Equal(t, "fatal", 5, hs.FatalOverdoses.Sum(), testutil.Tolerance)
	testutil.AssertFloat64Equal(t, "deaths", 9.5, hs.Deaths.Sum(), testutil.Tolerance)
	testutil.AssertFloat64Equal(t, "state", 85.5, hs.State.Sum(), testutil.Tolerance)
}

func TestMarkov_Run_MassConservedWithoutExits(t *testing.T) {
	// GIVEN intervention and behavior transitions only, over several periods
	shape := matrix.Shape{Interventions: 2, Behaviors: 2, Demographics: 2}
	intervention := AxisTransition{Along: matrix.Intervention, Blocks: []matrix.Matrix3d{
		testutil.Matrix(t, shape, 0.7, 0.6, 0.9, 0.5, 0.3, 0.4, 0.1, 0.5),
		testutil.Matrix(t, shape, 0.2, 0.25, 0.05, 0.5, 0.8, 0.75, 0.95, 0.5),
	}}
	behavior := AxisTransition{Along: matrix.Behavior, Blocks: []matrix.Matrix3d{
		testutil.Matrix(t, shape, 0.85, 0.8, 0.15, 0.2, 0.9, 0.7, 0.1, 0.3),
		testutil.Matrix(t, shape, 0.05, 0.1, 0.95, 0.9, 0.3, 0.2, 0.7, 0.8),
	}}
	in := &Inputs{
		Shape:         shape,
		Horizon:       12,
		InitialCohort: testutil.Matrix(t, shape, 120, 80, 40, 60, 10, 5, 33.3, 1),
		Interventions: repeatTransition(intervention, 12),
		InitEffect:    ptr(identityBlocks(t, shape, matrix.Behavior)),
		Behaviors:     repeatTransition(behavior, 12),
	}
	m, err := NewMarkov(in, nil)
	require.NoError(t, err)

	// WHEN run
	h, err := m.Run()
	require.NoError(t, err)

	// THEN every period's total equals the initial total
	total := in.InitialCohort.Sum()
	for _, hs := range h.Stamps() {
		testutil.AssertFloat64Equal(t, "total", total, hs.State.Sum(), 1e-9)
	}
}

func TestMarkov_WithTrace_RecordsEveryStageInOrder(t *testing.T) {
	// GIVEN every stage present
	shape := matrix.Shape{Interventions: 1, Behaviors: 2, Demographics: 1}
	in := &Inputs{
		Shape:          shape,
		Horizon:        1,
		InitialCohort:  testutil.Matrix(t, shape, 100, 0),
		Entering:       []matrix.Matrix3d{testutil.Matrix(t, shape, 10, 0)},
		Interventions:  []AxisTransition{identityBlocks(t, shape, matrix.Intervention)},
		Behaviors:      []AxisTransition{shiftBehavior(t, 0.1)},
		Overdoses:      []matrix.Matrix3d{testutil.Fill(t, shape, 0.1)},
		FatalOverdoses: []matrix.Matrix3d{testutil.Fill(t, shape, 0.1)},
		Mortality:      []matrix.Matrix3d{testutil.Fill(t, shape, 0.01)},
	}
	st := trace.NewStepTrace(trace.TraceConfig{Level: trace.TraceLevelStages})
	m, err := NewMarkov(in, nil)
	require.NoError(t, err)

	// WHEN run with a trace attached
	_, err = m.WithTrace(st).Run()
	require.NoError(t, err)

	// THEN each stage is recorded once, in chain order, each starting where the last ended
	require.Len(t, st.Stages, 5)
	for n, s := range Stages() {
		assert.Equal(t, s.String(), st.Stages[n].Stage)
		if n > 0 {
			assert.Equal(t, st.Stages[n-1].After, st.Stages[n].Before)
		}
	}
	assert.Equal(t, 100.0, st.Stages[0].Before)
	assert.Equal(t, 110.0, st.Stages[0].After)
}

func TestMarkov_DebugLogsPerStage(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	m, err := NewMarkov(behaviorOnlyInputs(t), logger)
	require.NoError(t, err)
	_, err = m.Run()
	require.NoError(t, err)

	var debug int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.DebugLevel {
			debug++
			assert.Contains(t, e.Message, "behavior")
		}
	}
	assert.Equal(t, 2, debug, "one debug line per executed stage per period")
	assert.Contains(t, hook.LastEntry().Message, "run complete")
}

func TestMarkov_Step_PeriodOutOfRange(t *testing.T) {
	m, err := NewMarkov(behaviorOnlyInputs(t), nil)
	require.NoError(t, err)
	_, err = m.Step(3, testutil.Matrix(t, twoState, 1, 1))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestMarkov_Step_DoesNotMutateState(t *testing.T) {
	m, err := NewMarkov(behaviorOnlyInputs(t), nil)
	require.NoError(t, err)
	state := testutil.Matrix(t, twoState, 100, 0)
	_, err = m.Step(1, state)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 0}, state.Values())
}

func ptr[T any](v T) *T { return &v }
