package accounting

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/internal/testutil"
	"github.com/respond-sim/respond/sim/matrix"
)

var single = matrix.Shape{Interventions: 1, Behaviors: 1, Demographics: 1}

// stamp builds a single-cell history stamp.
func stamp(t *testing.T, period int, state, overdoses, fatal float64) sim.HistoryStamp {
	t.Helper()
	zero := testutil.Fill(t, single, 0)
	return sim.HistoryStamp{
		Period:                 period,
		State:                  testutil.Fill(t, single, state),
		Entering:               zero,
		InterventionAdmissions: zero,
		Overdoses:              testutil.Fill(t, single, overdoses),
		FatalOverdoses:         testutil.Fill(t, single, fatal),
		Deaths:                 zero,
	}
}

func unitCosts(t *testing.T) CostInputs {
	t.Helper()
	return CostInputs{
		Healthcare:       testutil.Fill(t, single, 2),
		Pharmaceutical:   testutil.Fill(t, single, 3),
		Treatment:        testutil.Fill(t, single, 5),
		NonFatalOverdose: testutil.Fill(t, single, 100),
		FatalOverdose:    testutil.Fill(t, single, 1000),
	}
}

func TestDiscount_ZeroRateIsExactIdentity(t *testing.T) {
	values := []float64{0, 0.1, 1000, 942.5959, 1e300, -3.7, math.SmallestNonzeroFloat64}
	for _, v := range values {
		for _, period := range []int{0, 1, 2, 52, 10000} {
			got := Discount(v, 0, period)
			assert.Equal(t, math.Float64bits(v), math.Float64bits(got), "value %v period %d", v, period)
		}
	}
}

func TestDiscount_ThreePercentAtPeriodTwo(t *testing.T) {
	assert.InDelta(t, 942.596, Discount(1000, 0.03, 2), 1e-3)
	assert.Equal(t, 1000.0, Discount(1000, 0.03, 0))
}

func TestDiscountCostStamp_PerCategory(t *testing.T) {
	s := CostStamp{Period: 2, Costs: map[CostCategory]matrix.Matrix3d{
		Healthcare:    testutil.Fill(t, single, 1000),
		FatalOverdose: testutil.Fill(t, single, 2000),
	}}
	got := DiscountCostStamp(s, 0.03).Totals()
	assert.InDelta(t, 942.596, got[Healthcare], 1e-3)
	assert.InDelta(t, 1885.192, got[FatalOverdose], 1e-3)
	assert.Equal(t, 1000.0, s.Totals()[Healthcare], "input stamp must not change")
}

func TestPeriodRate(t *testing.T) {
	assert.InDelta(t, 0.03/52, PeriodRate(0.03, 52), 1e-15)
	assert.Equal(t, 0.0, PeriodRate(0, 52))
}

func TestStampCosts_ByCategory(t *testing.T) {
	// GIVEN 10 people, 4 overdoses of which 1 fatal
	hs := stamp(t, 1, 10, 4, 1)

	// WHEN priced
	s, err := StampCosts(hs, unitCosts(t))
	require.NoError(t, err)

	// THEN person costs use the population and event costs use the events
	assert.Equal(t, map[CostCategory]float64{
		Healthcare:       20,
		Pharmaceutical:   30,
		Treatment:        50,
		NonFatalOverdose: 300,
		FatalOverdose:    1000,
	}, s.Totals())

	// AND an overdose that kills is priced only as fatal
	s, err = StampCosts(stamp(t, 1, 10, 2, 2), unitCosts(t))
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Totals()[NonFatalOverdose])
	assert.Equal(t, 2000.0, s.Totals()[FatalOverdose])
}

func TestStampCosts_ShapeMismatch(t *testing.T) {
	in := unitCosts(t)
	in.Treatment = testutil.Fill(t, matrix.Shape{Interventions: 2, Behaviors: 1, Demographics: 1}, 1)
	_, err := StampCosts(stamp(t, 1, 10, 0, 0), in)
	assert.ErrorIs(t, err, sim.ErrDimensionMismatch)
}

func TestStampCostsOverTime_SkipsInitialCohort(t *testing.T) {
	h, err := sim.NewHistory(stamp(t, 0, 100, 0, 0), stamp(t, 1, 90, 0, 0), stamp(t, 2, 80, 0, 0))
	require.NoError(t, err)

	stamps, err := StampCostsOverTime(h, unitCosts(t), 0)
	require.NoError(t, err)

	require.Len(t, stamps, 2)
	assert.Equal(t, 1, stamps[0].Period)
	assert.Equal(t, 160.0, stamps[1].Totals()[Healthcare])
}

func TestCalculateTotalCosts_OrderInvariant(t *testing.T) {
	// GIVEN stamps with values spanning many magnitudes
	rng := rand.New(rand.NewSource(7))
	stamps := make([]CostStamp, 200)
	for n := range stamps {
		v := math.Pow(10, float64(rng.Intn(12))) * rng.Float64()
		stamps[n] = CostStamp{Period: n + 1, Costs: map[CostCategory]matrix.Matrix3d{
			Healthcare: testutil.Fill(t, single, v),
			Treatment:  testutil.Fill(t, single, 1/(v+1)),
		}}
	}

	// WHEN summed in the original order and in shuffled orders
	want := CalculateTotalCosts(stamps)
	for i := 0; i < 5; i++ {
		shuffled := append([]CostStamp(nil), stamps...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := CalculateTotalCosts(shuffled)

		// THEN totals agree within tolerance
		for c, v := range want {
			testutil.AssertFloat64Equal(t, c.String(), v, got[c], 1e-12)
		}
	}
}

func TestCalculatePerspectives_CategoryInSeveralPerspectives(t *testing.T) {
	totals := map[CostCategory]float64{Healthcare: 10, FatalOverdose: 5}
	mapping := PerspectiveMapping{
		"payer":    {Healthcare},
		"societal": {Healthcare, FatalOverdose},
	}

	got, err := CalculatePerspectives(totals, mapping)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"payer": 10, "societal": 15}, got)
}

func TestCalculatePerspectives_UnknownCategory(t *testing.T) {
	_, err := CalculatePerspectives(nil, PerspectiveMapping{"payer": {CostCategory(42)}})
	assert.ErrorIs(t, err, sim.ErrConfiguration)

	_, err = CalculatePerspectives(nil, PerspectiveMapping{"empty": nil})
	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestParseCostCategory(t *testing.T) {
	for _, c := range CostCategories() {
		got, err := ParseCostCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCostCategory("dental")
	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestUtilityWeights_MinVsMult(t *testing.T) {
	// GIVEN two interventions, two behaviors, one demographic
	shape := matrix.Shape{Interventions: 2, Behaviors: 2, Demographics: 1}
	in := UtilityInputs{
		Background: []float64{0.95},
		Behavior:   []float64{0.8, 1},
		Setting:    []float64{1, 0.9},
	}
	tests := []struct {
		ut   UtilityType
		want []float64
	}{
		{UtilityMin, []float64{0.8, 0.95, 0.8, 0.9}},
		{UtilityMult, []float64{0.76, 0.95, 0.684, 0.855}},
	}
	for _, tc := range tests {
		t.Run(tc.ut.String(), func(t *testing.T) {
			got, err := in.Weights(shape, tc.ut)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tc.want, got.Values(), 1e-12)
		})
	}
}

func TestUtilityWeights_Errors(t *testing.T) {
	shape := matrix.Shape{Interventions: 2, Behaviors: 2, Demographics: 1}
	tests := []struct {
		name string
		in   UtilityInputs
		ut   UtilityType
		want error
	}{
		{"length", UtilityInputs{Behavior: []float64{1, 1, 1}}, UtilityMin, sim.ErrVectorLengthMismatch},
		{"range", UtilityInputs{Setting: []float64{1, 1.1}}, UtilityMin, sim.ErrInvalidProbability},
		{"none", UtilityInputs{}, UtilityMult, sim.ErrConfiguration},
		{"type", UtilityInputs{Background: []float64{1}}, UtilityType(9), sim.ErrConfiguration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.in.Weights(shape, tc.ut)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStampUtilities_WeightsPopulation(t *testing.T) {
	hs := stamp(t, 3, 20, 0, 0)
	s, err := StampUtilities(hs, UtilityInputs{Background: []float64{0.5}}, UtilityMin)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Period)
	assert.Equal(t, 10.0, s.Utility.Sum())
}

func TestCalculateLifeYears_ByDemographic(t *testing.T) {
	// GIVEN two demographics over two periods, weekly steps
	shape := matrix.Shape{Interventions: 1, Behaviors: 1, Demographics: 2}
	zero := testutil.Fill(t, shape, 0)
	mk := func(period int, a, b float64) sim.HistoryStamp {
		return sim.HistoryStamp{Period: period, State: testutil.Matrix(t, shape, a, b),
			Entering: zero, InterventionAdmissions: zero, Overdoses: zero, FatalOverdoses: zero, Deaths: zero}
	}
	h, err := sim.NewHistory(mk(0, 10, 20), mk(1, 52, 104), mk(2, 52, 0))
	require.NoError(t, err)

	// WHEN life years are computed without discounting
	ly, err := CalculateLifeYears(h, 0, 52)
	require.NoError(t, err)

	// THEN period 0 is excluded and each period contributes population/52
	assert.InDeltaSlice(t, []float64{2, 2}, ly.ByDemographic, 1e-12)
	assert.InDelta(t, 4, ly.Total, 1e-12)
}

func TestCalculateLifeYears_Discounted(t *testing.T) {
	h, err := sim.NewHistory(stamp(t, 0, 52, 0, 0), stamp(t, 1, 52, 0, 0))
	require.NoError(t, err)
	ly, err := CalculateLifeYears(h, 0.5, 52)
	require.NoError(t, err)
	assert.InDelta(t, 1/1.5, ly.Total, 1e-12)

	_, err = CalculateLifeYears(h, 0, 0)
	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestEvaluate_BaseAndDiscounted(t *testing.T) {
	// GIVEN a history with costs and utilities
	h, err := sim.NewHistory(stamp(t, 0, 100, 0, 0), stamp(t, 1, 100, 2, 1), stamp(t, 2, 99, 2, 1))
	require.NoError(t, err)
	costs := unitCosts(t)
	ev := EvaluationInputs{
		Costs:              &costs,
		Utilities:          &UtilityInputs{Background: []float64{0.8}},
		UtilityType:        UtilityMin,
		AnnualDiscountRate: 0.52,
		PeriodsPerYear:     52,
	}

	// WHEN evaluated
	got, err := Evaluate(h, ev)
	require.NoError(t, err)

	// THEN base totals are plain sums and discounted totals are smaller
	base, disc := got.Totals.Base, got.Totals.Discounted
	assert.Equal(t, 398.0, base.Costs[Healthcare])
	assert.Equal(t, 2000.0, base.Costs[FatalOverdose])
	assert.Less(t, disc.Costs[Healthcare], base.Costs[Healthcare])
	assert.InDelta(t, 200/1.01+198/(1.01*1.01), disc.Costs[Healthcare], 1e-9)
	assert.Contains(t, base.Perspectives, "societal")
	assert.InDelta(t, 199.0/52, base.LifeYears.Total, 1e-12)
	assert.InDelta(t, 0.8*199/52, base.Utility, 1e-12)
	assert.Len(t, got.CostStamps, 2)
	assert.Len(t, got.DiscountedUtilityStamps, 2)
}

func TestEvaluate_ZeroRateDiscountedEqualsBase(t *testing.T) {
	h, err := sim.NewHistory(stamp(t, 0, 100, 0, 0), stamp(t, 1, 90, 3, 1))
	require.NoError(t, err)
	costs := unitCosts(t)
	got, err := Evaluate(h, EvaluationInputs{Costs: &costs, PeriodsPerYear: 52})
	require.NoError(t, err)
	assert.Equal(t, got.Totals.Base, got.Totals.Discounted)
}

func TestEvaluate_RejectsBadConstants(t *testing.T) {
	h, err := sim.NewHistory(stamp(t, 0, 1, 0, 0), stamp(t, 1, 1, 0, 0))
	require.NoError(t, err)
	_, err = Evaluate(h, EvaluationInputs{PeriodsPerYear: 0})
	assert.ErrorIs(t, err, sim.ErrConfiguration)
	_, err = Evaluate(h, EvaluationInputs{PeriodsPerYear: 52, AnnualDiscountRate: -0.1})
	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestEvaluationInputs_Validate(t *testing.T) {
	shape := matrix.Shape{Interventions: 2, Behaviors: 2, Demographics: 1}
	costs := func(mutate func(*CostInputs)) *CostInputs {
		full := testutil.Fill(t, shape, 1)
		c := &CostInputs{Healthcare: full, Pharmaceutical: full, Treatment: full, NonFatalOverdose: full, FatalOverdose: full}
		if mutate != nil {
			mutate(c)
		}
		return c
	}
	tests := []struct {
		name string
		ev   EvaluationInputs
		want error
	}{
		{"valid", EvaluationInputs{Costs: costs(nil), Utilities: &UtilityInputs{Behavior: []float64{0.6, 0.9}}, PeriodsPerYear: 52}, nil},
		{"no costs or utilities", EvaluationInputs{PeriodsPerYear: 52}, nil},
		{"cost shape", EvaluationInputs{Costs: costs(func(c *CostInputs) { c.Treatment = testutil.Fill(t, single, 1) }), PeriodsPerYear: 52}, sim.ErrDimensionMismatch},
		{"missing cost category", EvaluationInputs{Costs: costs(func(c *CostInputs) { c.FatalOverdose = matrix.Matrix3d{} }), PeriodsPerYear: 52}, sim.ErrDimensionMismatch},
		{"negative cost", EvaluationInputs{Costs: costs(func(c *CostInputs) { c.Healthcare = testutil.Matrix(t, shape, 1, -1, 1, 1) }), PeriodsPerYear: 52}, sim.ErrConfiguration},
		{"NaN cost", EvaluationInputs{Costs: costs(func(c *CostInputs) { c.Pharmaceutical = testutil.Fill(t, shape, math.NaN()) }), PeriodsPerYear: 52}, sim.ErrConfiguration},
		{"infinite cost", EvaluationInputs{Costs: costs(func(c *CostInputs) { c.NonFatalOverdose = testutil.Fill(t, shape, math.Inf(1)) }), PeriodsPerYear: 52}, sim.ErrConfiguration},
		{"utility length", EvaluationInputs{Utilities: &UtilityInputs{Setting: []float64{1}}, PeriodsPerYear: 52}, sim.ErrVectorLengthMismatch},
		{"utility above one", EvaluationInputs{Utilities: &UtilityInputs{Behavior: []float64{1.5, 1}}, PeriodsPerYear: 52}, sim.ErrInvalidProbability},
		{"NaN utility", EvaluationInputs{Utilities: &UtilityInputs{Background: []float64{math.NaN()}}, PeriodsPerYear: 52}, sim.ErrInvalidProbability},
		{"periods per year", EvaluationInputs{}, sim.ErrConfiguration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ev.Validate(shape)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEvaluate_CostShapeCheckedAgainstHistory(t *testing.T) {
	// GIVEN a single-cell history and two-demographic cost matrices
	h, err := sim.NewHistory(stamp(t, 0, 1, 0, 0), stamp(t, 1, 1, 0, 0))
	require.NoError(t, err)
	wide := testutil.Fill(t, matrix.Shape{Interventions: 1, Behaviors: 1, Demographics: 2}, 1)
	costs := CostInputs{Healthcare: wide, Pharmaceutical: wide, Treatment: wide, NonFatalOverdose: wide, FatalOverdose: wide}

	// WHEN evaluated
	_, err = Evaluate(h, EvaluationInputs{Costs: &costs, PeriodsPerYear: 52})

	// THEN the mismatch is reported before any stamp is built
	require.ErrorIs(t, err, sim.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "healthcare cost")
}
