package accounting

import (
	"fmt"
	"math"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/matrix"
)

// ResultSets is one flavor (base or discounted) of run results.
type ResultSets struct {
	Costs        map[CostCategory]float64
	Perspectives map[string]float64
	LifeYears    LifeYears
	Utility      float64 // quality-adjusted life years
}

// Totals pairs undiscounted and discounted results.
type Totals struct {
	Base       ResultSets
	Discounted ResultSets
}

// EvaluationInputs configures Evaluate. Costs and Utilities are optional.
type EvaluationInputs struct {
	Costs              *CostInputs
	Utilities          *UtilityInputs
	UtilityType        UtilityType
	Perspectives       PerspectiveMapping
	AnnualDiscountRate float64
	PeriodsPerYear     int
}

// Validate checks the run-level constants and, when present, the cost
// matrices and utility vectors against the run's state shape.
func (ev EvaluationInputs) Validate(shape matrix.Shape) error {
	if ev.PeriodsPerYear <= 0 {
		return fmt.Errorf("periods per year must be > 0, got %d: %w", ev.PeriodsPerYear, sim.ErrConfiguration)
	}
	if ev.AnnualDiscountRate < 0 {
		return fmt.Errorf("discount rate must be >= 0, got %v: %w", ev.AnnualDiscountRate, sim.ErrConfiguration)
	}
	if err := ev.Perspectives.Validate(); err != nil {
		return err
	}
	if ev.Costs != nil {
		if err := ev.Costs.Validate(shape); err != nil {
			return err
		}
	}
	if ev.Utilities != nil {
		if err := ev.Utilities.Validate(shape); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every category's shape and that unit costs are finite
// and non-negative.
func (in CostInputs) Validate(shape matrix.Shape) error {
	for _, c := range CostCategories() {
		m := in.Of(c)
		if m.Shape() != shape {
			return fmt.Errorf("%s cost: expected shape %s, got %s: %w", c, shape, m.Shape(), sim.ErrDimensionMismatch)
		}
		if i, b, d, bad := m.Any(func(v float64) bool { return !(v >= 0) || math.IsInf(v, 0) }); bad {
			return fmt.Errorf("%s cost at (%d,%d,%d) = %v, want a finite value >= 0: %w", c, i, b, d, m.At(i, b, d), sim.ErrConfiguration)
		}
	}
	return nil
}

// Validate checks that each given vector has one entry per index of its
// axis and that every entry is in [0,1]. Absent vectors are skipped.
func (in UtilityInputs) Validate(shape matrix.Shape) error {
	for _, c := range UtilityCategories() {
		vec, dim := in.Of(c)
		if len(vec) == 0 {
			continue
		}
		if len(vec) != shape.Extent(dim) {
			return fmt.Errorf("%s utility: expected %d values, got %d: %w",
				c, shape.Extent(dim), len(vec), sim.ErrVectorLengthMismatch)
		}
		for k, v := range vec {
			if !(v >= 0 && v <= 1) {
				return fmt.Errorf("%s utility %d = %v outside [0,1]: %w", c, k, v, sim.ErrInvalidProbability)
			}
		}
	}
	return nil
}

// Evaluation holds the stamp series behind a Totals.
type Evaluation struct {
	CostStamps              []CostStamp
	DiscountedCostStamps    []CostStamp
	UtilityStamps           []UtilityStamp
	DiscountedUtilityStamps []UtilityStamp
	Totals                  Totals
}

// Evaluate stamps h and reduces the stamps twice: once undiscounted and once
// at the per-period equivalent of the annual rate.
func Evaluate(h *sim.History, ev EvaluationInputs) (*Evaluation, error) {
	final, ok := h.Final()
	if !ok {
		return nil, fmt.Errorf("evaluate: empty history: %w", sim.ErrConfiguration)
	}
	if err := ev.Validate(final.Shape()); err != nil {
		return nil, err
	}
	rate := PeriodRate(ev.AnnualDiscountRate, ev.PeriodsPerYear)
	out := &Evaluation{}

	if ev.Costs != nil {
		var err error
		if out.CostStamps, err = StampCostsOverTime(h, *ev.Costs, 0); err != nil {
			return nil, err
		}
		out.DiscountedCostStamps = make([]CostStamp, len(out.CostStamps))
		for n, s := range out.CostStamps {
			out.DiscountedCostStamps[n] = DiscountCostStamp(s, rate)
		}
	}
	if ev.Utilities != nil {
		var err error
		if out.UtilityStamps, err = StampUtilitiesOverTime(h, *ev.Utilities, ev.UtilityType, 0); err != nil {
			return nil, err
		}
		out.DiscountedUtilityStamps = make([]UtilityStamp, len(out.UtilityStamps))
		for n, s := range out.UtilityStamps {
			out.DiscountedUtilityStamps[n] = DiscountUtilityStamp(s, rate)
		}
	}

	base, err := reduce(h, out.CostStamps, out.UtilityStamps, ev, 0)
	if err != nil {
		return nil, err
	}
	disc, err := reduce(h, out.DiscountedCostStamps, out.DiscountedUtilityStamps, ev, rate)
	if err != nil {
		return nil, err
	}
	out.Totals = Totals{Base: base, Discounted: disc}
	return out, nil
}

func reduce(h *sim.History, costs []CostStamp, utils []UtilityStamp, ev EvaluationInputs, rate float64) (ResultSets, error) {
	rs := ResultSets{Costs: CalculateTotalCosts(costs)}
	perspectives := ev.Perspectives
	if len(perspectives) == 0 {
		perspectives = DefaultPerspectives()
	}
	var err error
	if ev.Costs != nil {
		if rs.Perspectives, err = CalculatePerspectives(rs.Costs, perspectives); err != nil {
			return ResultSets{}, err
		}
	}
	if rs.LifeYears, err = CalculateLifeYears(h, rate, ev.PeriodsPerYear); err != nil {
		return ResultSets{}, err
	}
	if rs.Utility, err = CalculateUtility(utils, ev.PeriodsPerYear); err != nil {
		return ResultSets{}, err
	}
	return rs, nil
}
