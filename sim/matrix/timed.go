package matrix

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// TimedMatrix3d is an ordered sequence of (period, Matrix3d) pairs.
// Periods are strictly increasing. Append never touches the receiver's
// backing arrays, so earlier values stay valid after later appends.
type TimedMatrix3d struct {
	periods []int
	mats    []Matrix3d
}

// NewTimedMatrix3d builds a sequence from matrices numbered 0..len(ms)-1.
func NewTimedMatrix3d(ms ...Matrix3d) TimedMatrix3d {
	t := TimedMatrix3d{periods: make([]int, len(ms)), mats: make([]Matrix3d, len(ms))}
	for i, m := range ms {
		t.periods[i] = i
		t.mats[i] = m
	}
	return t
}

// Append returns a new sequence with m recorded at period.
func (t TimedMatrix3d) Append(period int, m Matrix3d) (TimedMatrix3d, error) {
	if n := len(t.periods); n > 0 {
		if period <= t.periods[n-1] {
			return t, fmt.Errorf("append period %d after %d: %w", period, t.periods[n-1], ErrPeriodOrder)
		}
		if m.shape != t.mats[0].shape {
			return t, fmt.Errorf("append period %d: shape %s, history shape %s: %w", period, m.shape, t.mats[0].shape, ErrDimensionMismatch)
		}
	}
	return TimedMatrix3d{
		periods: append(slices.Clip(t.periods), period),
		mats:    append(slices.Clip(t.mats), m),
	}, nil
}

// Len is the number of recorded periods.
func (t TimedMatrix3d) Len() int { return len(t.periods) }

// Periods returns the recorded periods in order.
func (t TimedMatrix3d) Periods() []int { return slices.Clone(t.periods) }

// Matrices returns the recorded matrices in period order.
func (t TimedMatrix3d) Matrices() []Matrix3d { return slices.Clone(t.mats) }

// At returns the matrix recorded at period.
func (t TimedMatrix3d) At(period int) (Matrix3d, bool) {
	i, ok := slices.BinarySearch(t.periods, period)
	if !ok {
		return Matrix3d{}, false
	}
	return t.mats[i], true
}

// Index returns the n-th (period, matrix) pair.
func (t TimedMatrix3d) Index(n int) (int, Matrix3d) {
	return t.periods[n], t.mats[n]
}

// Last returns the most recent period and matrix.
func (t TimedMatrix3d) Last() (int, Matrix3d, bool) {
	if len(t.periods) == 0 {
		return 0, Matrix3d{}, false
	}
	n := len(t.periods) - 1
	return t.periods[n], t.mats[n], true
}

// Map applies f to every period's matrix.
func (t TimedMatrix3d) Map(f func(period int, m Matrix3d) (Matrix3d, error)) (TimedMatrix3d, error) {
	out := TimedMatrix3d{periods: slices.Clone(t.periods), mats: make([]Matrix3d, len(t.mats))}
	for n, m := range t.mats {
		r, err := f(t.periods[n], m)
		if err != nil {
			return TimedMatrix3d{}, fmt.Errorf("period %d: %w", t.periods[n], err)
		}
		out.mats[n] = r
	}
	return out, nil
}

// Summed folds the whole sequence into one matrix by elementwise addition.
// A sequence of length one yields its single matrix unchanged.
func Summed(t TimedMatrix3d) (Matrix3d, error) {
	if t.Len() == 0 {
		return Matrix3d{}, fmt.Errorf("Summed: %w", ErrEmptyTimedMatrix)
	}
	if t.Len() == 1 {
		return t.mats[0], nil
	}
	shape := t.mats[0].shape
	out := Matrix3d{shape: shape, data: make([]float64, shape.Size())}
	column := make([]float64, t.Len())
	for k := range out.data {
		for n, m := range t.mats {
			column[n] = m.data[k]
		}
		out.data[k] = floats.SumCompensated(column)
	}
	return out, nil
}

// SummedOverDimensions sums over time and then collapses dims. Collapsed
// axes keep extent 1; collapsing all three leaves a single cell.
func SummedOverDimensions(t TimedMatrix3d, dims ...Dimension) (Matrix3d, error) {
	s, err := Summed(t)
	if err != nil {
		return Matrix3d{}, err
	}
	return s.SumOver(dims...), nil
}

// Total sums every cell of every period.
func Total(t TimedMatrix3d) (float64, error) {
	s, err := SummedOverDimensions(t, Dimensions()...)
	if err != nil {
		return 0, err
	}
	return s.data[0], nil
}

// MultiplyByDouble scales every period's matrix by f.
func MultiplyByDouble(t TimedMatrix3d, f float64) TimedMatrix3d {
	out, _ := t.Map(func(_ int, m Matrix3d) (Matrix3d, error) { return m.Scale(f), nil })
	return out
}

// MultiplyByMatrix multiplies every period's matrix elementwise by m.
func MultiplyByMatrix(t TimedMatrix3d, m Matrix3d) (TimedMatrix3d, error) {
	return t.Map(func(_ int, x Matrix3d) (Matrix3d, error) { return x.Mul(m) })
}
