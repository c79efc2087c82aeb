package output

import (
	"fmt"
	"slices"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/accounting"
)

// DataFormatter narrows run results to the periods selected for output.
// An empty Periods keeps everything.
type DataFormatter struct {
	Periods []int
}

// NewDataFormatter sorts and de-duplicates periods.
func NewDataFormatter(periods []int) DataFormatter {
	p := slices.Clone(periods)
	slices.Sort(p)
	return DataFormatter{Periods: slices.Compact(p)}
}

func (f DataFormatter) keeps(period int) bool {
	if len(f.Periods) == 0 {
		return true
	}
	_, found := slices.BinarySearch(f.Periods, period)
	return found
}

// ExtractPeriods returns a history holding only the selected periods. A
// selected period missing from h is a configuration error.
func (f DataFormatter) ExtractPeriods(h *sim.History) (*sim.History, error) {
	if len(f.Periods) == 0 {
		return h, nil
	}
	stamps := make([]sim.HistoryStamp, 0, len(f.Periods))
	for _, p := range f.Periods {
		hs, ok := h.Stamp(p)
		if !ok {
			return nil, fmt.Errorf("output period %d not in history (0..%d): %w", p, h.Horizon(), sim.ErrConfiguration)
		}
		stamps = append(stamps, hs)
	}
	return sim.NewHistory(stamps...)
}

// ExtractCostStamps keeps the stamps of selected periods.
func (f DataFormatter) ExtractCostStamps(stamps []accounting.CostStamp) []accounting.CostStamp {
	out := make([]accounting.CostStamp, 0, len(stamps))
	for _, s := range stamps {
		if f.keeps(s.Period) {
			out = append(out, s)
		}
	}
	return out
}

// ExtractUtilityStamps keeps the stamps of selected periods.
func (f DataFormatter) ExtractUtilityStamps(stamps []accounting.UtilityStamp) []accounting.UtilityStamp {
	out := make([]accounting.UtilityStamp, 0, len(stamps))
	for _, s := range stamps {
		if f.keeps(s.Period) {
			out = append(out, s)
		}
	}
	return out
}
