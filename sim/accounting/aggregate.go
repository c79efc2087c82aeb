package accounting

import (
	"fmt"
	"sort"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/matrix"
)

// CalculateTotalCosts sums each category over all stamps. Summation is
// compensated, so the result does not depend on stamp order beyond
// floating-point tolerance.
func CalculateTotalCosts(stamps []CostStamp) map[CostCategory]float64 {
	parts := make(map[CostCategory][]float64)
	for _, s := range stamps {
		for c, v := range s.Totals() {
			parts[c] = append(parts[c], v)
		}
	}
	out := make(map[CostCategory]float64, len(parts))
	for c, vs := range parts {
		out[c] = sumCompensated(vs)
	}
	return out
}

// PerspectiveMapping names the cost categories each stakeholder perspective
// pays for. A category may appear under several perspectives.
type PerspectiveMapping map[string][]CostCategory

// DefaultPerspectives is used when a run configures none.
func DefaultPerspectives() PerspectiveMapping {
	return PerspectiveMapping{
		"healthcare": {Healthcare, Pharmaceutical, Treatment, NonFatalOverdose},
		"societal":   CostCategories(),
	}
}

// Names returns the perspective names in sorted order.
func (p PerspectiveMapping) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate rejects empty perspectives and unknown categories.
func (p PerspectiveMapping) Validate() error {
	for _, name := range p.Names() {
		if len(p[name]) == 0 {
			return fmt.Errorf("perspective %q: no cost categories: %w", name, sim.ErrConfiguration)
		}
		for _, c := range p[name] {
			if !c.Valid() {
				return fmt.Errorf("perspective %q: unknown %s: %w", name, c, sim.ErrConfiguration)
			}
		}
	}
	return nil
}

// CalculatePerspectives regroups category totals by perspective. Categories
// absent from totals count as zero.
func CalculatePerspectives(totals map[CostCategory]float64, mapping PerspectiveMapping) (map[string]float64, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(mapping))
	for name, cats := range mapping {
		vs := make([]float64, 0, len(cats))
		for _, c := range cats {
			vs = append(vs, totals[c])
		}
		out[name] = sumCompensated(vs)
	}
	return out, nil
}

// LifeYears is the time alive accumulated by the cohort.
type LifeYears struct {
	ByDemographic []float64
	Total         float64
}

// CalculateLifeYears integrates the surviving population over periods 1..N.
// Each period's population is already net of deaths and fatal overdoses; it
// contributes 1/periodsPerYear years per person, discounted at its period.
func CalculateLifeYears(h *sim.History, rate float64, periodsPerYear int) (LifeYears, error) {
	if periodsPerYear <= 0 {
		return LifeYears{}, fmt.Errorf("periods per year must be > 0, got %d: %w", periodsPerYear, sim.ErrConfiguration)
	}
	if h.Len() < 2 {
		return LifeYears{}, fmt.Errorf("life years need at least one simulated period: %w", matrix.ErrEmptyTimedMatrix)
	}
	var alive matrix.TimedMatrix3d
	for _, hs := range h.Stamps()[1:] {
		var err error
		if alive, err = alive.Append(hs.Period, hs.State); err != nil {
			return LifeYears{}, err
		}
	}
	alive = matrix.MultiplyByDouble(DiscountSeries(alive, rate), 1/float64(periodsPerYear))
	byDemo, err := matrix.SummedOverDimensions(alive, matrix.Intervention, matrix.Behavior)
	if err != nil {
		return LifeYears{}, err
	}
	ly := LifeYears{ByDemographic: byDemo.Values()}
	ly.Total = sumCompensated(ly.ByDemographic)
	return ly, nil
}

// CalculateUtility sums utility stamps into quality-adjusted life years.
func CalculateUtility(stamps []UtilityStamp, periodsPerYear int) (float64, error) {
	if periodsPerYear <= 0 {
		return 0, fmt.Errorf("periods per year must be > 0, got %d: %w", periodsPerYear, sim.ErrConfiguration)
	}
	vs := make([]float64, len(stamps))
	for n, s := range stamps {
		vs[n] = s.Utility.Sum()
	}
	return sumCompensated(vs) / float64(periodsPerYear), nil
}
