package accounting

import (
	"math"

	"github.com/respond-sim/respond/sim/matrix"
)

// Discount returns value / (1+rate)^period. A zero rate returns value
// unchanged, bit for bit.
func Discount(value, rate float64, period int) float64 {
	if rate == 0 {
		return value
	}
	return value / discountFactor(rate, period)
}

func discountFactor(rate float64, period int) float64 {
	return math.Pow(1+rate, float64(period))
}

// DiscountMatrix applies Discount to every cell of m.
func DiscountMatrix(m matrix.Matrix3d, rate float64, period int) matrix.Matrix3d {
	if rate == 0 {
		return m
	}
	return m.Scale(1 / discountFactor(rate, period))
}

// DiscountCostStamp discounts every category of s at s.Period.
func DiscountCostStamp(s CostStamp, rate float64) CostStamp {
	out := CostStamp{Period: s.Period, Costs: make(map[CostCategory]matrix.Matrix3d, len(s.Costs))}
	for c, m := range s.Costs {
		out.Costs[c] = DiscountMatrix(m, rate, s.Period)
	}
	return out
}

// DiscountUtilityStamp discounts s at s.Period.
func DiscountUtilityStamp(s UtilityStamp, rate float64) UtilityStamp {
	return UtilityStamp{Period: s.Period, Utility: DiscountMatrix(s.Utility, rate, s.Period)}
}

// PeriodRate converts an annual discount rate to a per-period rate.
func PeriodRate(annual float64, periodsPerYear int) float64 {
	if annual == 0 || periodsPerYear <= 0 {
		return annual
	}
	return annual / float64(periodsPerYear)
}

// DiscountSeries discounts every period of t at its own period index.
func DiscountSeries(t matrix.TimedMatrix3d, rate float64) matrix.TimedMatrix3d {
	if rate == 0 {
		return t
	}
	out, _ := t.Map(func(period int, m matrix.Matrix3d) (matrix.Matrix3d, error) {
		return DiscountMatrix(m, rate, period), nil
	})
	return out
}
