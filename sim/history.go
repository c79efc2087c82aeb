package sim

import (
	"fmt"

	"github.com/respond-sim/respond/sim/matrix"
)

// HistoryStamp is the record of one period: the population at the end of
// the period and the events that produced it. Stamps are built once and
// never changed.
type HistoryStamp struct {
	Period                 int
	State                  matrix.Matrix3d
	Entering               matrix.Matrix3d
	InterventionAdmissions matrix.Matrix3d
	Overdoses              matrix.Matrix3d
	FatalOverdoses         matrix.Matrix3d
	Deaths                 matrix.Matrix3d
}

// History holds one ledger per stamp field, each covering periods 0..N.
// Period 0 is the initial cohort with all event ledgers zero.
type History struct {
	State                  matrix.TimedMatrix3d
	Entering               matrix.TimedMatrix3d
	InterventionAdmissions matrix.TimedMatrix3d
	Overdoses              matrix.TimedMatrix3d
	FatalOverdoses         matrix.TimedMatrix3d
	Deaths                 matrix.TimedMatrix3d
}

// Len is the number of recorded periods, initial cohort included.
func (h *History) Len() int { return h.State.Len() }

// Horizon is the number of simulated periods.
func (h *History) Horizon() int {
	if h.Len() == 0 {
		return 0
	}
	return h.Len() - 1
}

// Stamp reassembles the record for period.
func (h *History) Stamp(period int) (HistoryStamp, bool) {
	state, ok := h.State.At(period)
	if !ok {
		return HistoryStamp{}, false
	}
	hs := HistoryStamp{Period: period, State: state}
	hs.Entering, _ = h.Entering.At(period)
	hs.InterventionAdmissions, _ = h.InterventionAdmissions.At(period)
	hs.Overdoses, _ = h.Overdoses.At(period)
	hs.FatalOverdoses, _ = h.FatalOverdoses.At(period)
	hs.Deaths, _ = h.Deaths.At(period)
	return hs, true
}

// Stamps returns every period's record in order.
func (h *History) Stamps() []HistoryStamp {
	out := make([]HistoryStamp, 0, h.Len())
	for _, p := range h.State.Periods() {
		hs, _ := h.Stamp(p)
		out = append(out, hs)
	}
	return out
}

// Final returns the population after the last period.
func (h *History) Final() (matrix.Matrix3d, bool) {
	_, m, ok := h.State.Last()
	return m, ok
}

// ledgers lists every field in a fixed order for bulk operations.
func (h *History) ledgers() []*matrix.TimedMatrix3d {
	return []*matrix.TimedMatrix3d{
		&h.State, &h.Entering, &h.InterventionAdmissions,
		&h.Overdoses, &h.FatalOverdoses, &h.Deaths,
	}
}

// appended returns a copy of h with hs recorded. h itself is left unchanged.
func (h History) appended(hs HistoryStamp) (History, error) {
	values := []matrix.Matrix3d{
		hs.State, hs.Entering, hs.InterventionAdmissions,
		hs.Overdoses, hs.FatalOverdoses, hs.Deaths,
	}
	for n, l := range h.ledgers() {
		next, err := l.Append(hs.Period, values[n])
		if err != nil {
			return History{}, fmt.Errorf("stamp period %d: %w", hs.Period, err)
		}
		*l = next
	}
	return h, nil
}

// NewHistory builds a history from stamps given in period order.
func NewHistory(stamps ...HistoryStamp) (*History, error) {
	var h History
	for _, hs := range stamps {
		var err error
		if h, err = h.appended(hs); err != nil {
			return nil, err
		}
	}
	return &h, nil
}
