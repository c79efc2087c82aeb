package accounting

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/matrix"
)

// CostInputs holds unit costs with the run's shape. Healthcare,
// Pharmaceutical and Treatment are per person per period; the overdose
// categories are per event.
type CostInputs struct {
	Healthcare       matrix.Matrix3d
	Pharmaceutical   matrix.Matrix3d
	Treatment        matrix.Matrix3d
	NonFatalOverdose matrix.Matrix3d
	FatalOverdose    matrix.Matrix3d
}

// Of returns the unit cost matrix for c.
func (in CostInputs) Of(c CostCategory) matrix.Matrix3d {
	switch c {
	case Healthcare:
		return in.Healthcare
	case Pharmaceutical:
		return in.Pharmaceutical
	case Treatment:
		return in.Treatment
	case NonFatalOverdose:
		return in.NonFatalOverdose
	case FatalOverdose:
		return in.FatalOverdose
	}
	return matrix.Matrix3d{}
}

// CostStamp is the cost of one period, by category.
type CostStamp struct {
	Period int
	Costs  map[CostCategory]matrix.Matrix3d
}

// Totals reduces each category to a scalar.
func (s CostStamp) Totals() map[CostCategory]float64 {
	out := make(map[CostCategory]float64, len(s.Costs))
	for c, m := range s.Costs {
		out[c] = m.Sum()
	}
	return out
}

// StampCosts prices one period. Non-fatal overdose cost applies to
// overdoses minus fatal overdoses.
func StampCosts(hs sim.HistoryStamp, in CostInputs) (CostStamp, error) {
	nonFatal, err := hs.Overdoses.Sub(hs.FatalOverdoses)
	if err != nil {
		return CostStamp{}, fmt.Errorf("period %d non-fatal overdoses: %w", hs.Period, err)
	}
	base := map[CostCategory]matrix.Matrix3d{
		Healthcare:       hs.State,
		Pharmaceutical:   hs.State,
		Treatment:        hs.State,
		NonFatalOverdose: nonFatal,
		FatalOverdose:    hs.FatalOverdoses,
	}
	out := CostStamp{Period: hs.Period, Costs: make(map[CostCategory]matrix.Matrix3d, len(base))}
	for _, c := range CostCategories() {
		priced, err := base[c].Mul(in.Of(c))
		if err != nil {
			return CostStamp{}, fmt.Errorf("period %d %s cost: %w", hs.Period, c, err)
		}
		out.Costs[c] = priced
	}
	return out, nil
}

// StampCostsOverTime prices periods 1..N of h and discounts each stamp at
// the per-period rate. Period 0, the initial cohort, is not costed.
func StampCostsOverTime(h *sim.History, in CostInputs, rate float64) ([]CostStamp, error) {
	stamps := h.Stamps()
	if len(stamps) == 0 {
		return nil, fmt.Errorf("cost stamping: %w", matrix.ErrEmptyTimedMatrix)
	}
	out := make([]CostStamp, 0, len(stamps)-1)
	for _, hs := range stamps[1:] {
		s, err := StampCosts(hs, in)
		if err != nil {
			return nil, err
		}
		out = append(out, DiscountCostStamp(s, rate))
	}
	return out, nil
}

// UtilityInputs holds one utility vector per category, each along its own
// axis. An empty vector leaves its category out of the combination.
type UtilityInputs struct {
	Background []float64 // per demographic
	Behavior   []float64 // per behavior
	Setting    []float64 // per intervention
}

// Of returns the vector for c and the axis it runs along.
func (in UtilityInputs) Of(c UtilityCategory) ([]float64, matrix.Dimension) {
	switch c {
	case UtilityBackground:
		return in.Background, matrix.Demographic
	case UtilityBehavior:
		return in.Behavior, matrix.Behavior
	case UtilitySetting:
		return in.Setting, matrix.Intervention
	}
	return nil, matrix.Demographic
}

// Weights combines the categories into one per-cell utility weight.
func (in UtilityInputs) Weights(shape matrix.Shape, ut UtilityType) (matrix.Matrix3d, error) {
	var (
		start float64
		apply func(matrix.Matrix3d, matrix.Dimension, []float64) (matrix.Matrix3d, error)
	)
	switch ut {
	case UtilityMin:
		start, apply = math.Inf(1), matrix.VectorMinimum
	case UtilityMult:
		start, apply = 1, matrix.VectorMultiplied
	default:
		return matrix.Matrix3d{}, fmt.Errorf("utility type %s: %w", ut, sim.ErrConfiguration)
	}
	w, err := matrix.Full(shape, start)
	if err != nil {
		return matrix.Matrix3d{}, err
	}
	used := 0
	for _, c := range UtilityCategories() {
		vec, dim := in.Of(c)
		if len(vec) == 0 {
			continue
		}
		if len(vec) != shape.Extent(dim) {
			return matrix.Matrix3d{}, fmt.Errorf("%s utility: expected %d values, got %d: %w",
				c, shape.Extent(dim), len(vec), sim.ErrVectorLengthMismatch)
		}
		for k, v := range vec {
			if !(v >= 0 && v <= 1) {
				return matrix.Matrix3d{}, fmt.Errorf("%s utility %d = %v outside [0,1]: %w", c, k, v, sim.ErrInvalidProbability)
			}
		}
		if w, err = apply(w, dim, vec); err != nil {
			return matrix.Matrix3d{}, err
		}
		used++
	}
	if used == 0 {
		return matrix.Matrix3d{}, fmt.Errorf("no utility categories given: %w", sim.ErrConfiguration)
	}
	return w, nil
}

// UtilityStamp is the utility-weighted population of one period.
type UtilityStamp struct {
	Period  int
	Utility matrix.Matrix3d
}

// StampUtilities weights one period's population by its combined utility.
func StampUtilities(hs sim.HistoryStamp, in UtilityInputs, ut UtilityType) (UtilityStamp, error) {
	w, err := in.Weights(hs.State.Shape(), ut)
	if err != nil {
		return UtilityStamp{}, err
	}
	u, err := hs.State.Mul(w)
	if err != nil {
		return UtilityStamp{}, fmt.Errorf("period %d utility: %w", hs.Period, err)
	}
	return UtilityStamp{Period: hs.Period, Utility: u}, nil
}

// StampUtilitiesOverTime stamps periods 1..N of h, discounted at the per-period rate.
func StampUtilitiesOverTime(h *sim.History, in UtilityInputs, ut UtilityType, rate float64) ([]UtilityStamp, error) {
	stamps := h.Stamps()
	if len(stamps) == 0 {
		return nil, fmt.Errorf("utility stamping: %w", matrix.ErrEmptyTimedMatrix)
	}
	out := make([]UtilityStamp, 0, len(stamps)-1)
	for _, hs := range stamps[1:] {
		s, err := StampUtilities(hs, in, ut)
		if err != nil {
			return nil, err
		}
		out = append(out, DiscountUtilityStamp(s, rate))
	}
	return out, nil
}

// CostSeries collects one category of stamps into a time series.
func CostSeries(stamps []CostStamp, c CostCategory) (matrix.TimedMatrix3d, error) {
	var t matrix.TimedMatrix3d
	for _, s := range stamps {
		var err error
		if t, err = t.Append(s.Period, s.Costs[c]); err != nil {
			return matrix.TimedMatrix3d{}, fmt.Errorf("%s series: %w", c, err)
		}
	}
	return t, nil
}

// UtilitySeries collects utility stamps into a time series.
func UtilitySeries(stamps []UtilityStamp) (matrix.TimedMatrix3d, error) {
	var t matrix.TimedMatrix3d
	for _, s := range stamps {
		var err error
		if t, err = t.Append(s.Period, s.Utility); err != nil {
			return matrix.TimedMatrix3d{}, fmt.Errorf("utility series: %w", err)
		}
	}
	return t, nil
}

func sumCompensated(vs []float64) float64 {
	return floats.SumCompensated(vs)
}
