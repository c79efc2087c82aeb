// Package matrix holds the three-axis population containers the cohort engine
// carries across periods.
//
// A Matrix3d is indexed by (intervention, behavior, demographic). Values are
// immutable: every operation returns a new matrix and never writes into its
// operands, so a matrix appended to a history can be shared freely.
package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Dimension names one axis of a Matrix3d.
type Dimension int

const (
	// Intervention is the treatment/setting axis (e.g. no treatment, buprenorphine).
	Intervention Dimension = iota
	// Behavior is the opioid use disorder state axis (e.g. active injection).
	Behavior
	// Demographic is the demographic combination axis (e.g. 18_24_male).
	Demographic
)

// Dimensions returns every axis in storage order.
func Dimensions() []Dimension {
	return []Dimension{Intervention, Behavior, Demographic}
}

func (d Dimension) String() string {
	switch d {
	case Intervention:
		return "intervention"
	case Behavior:
		return "behavior"
	case Demographic:
		return "demographic"
	}
	return fmt.Sprintf("dimension(%d)", int(d))
}

// Valid reports whether d is one of the three known axes.
func (d Dimension) Valid() bool {
	switch d {
	case Intervention, Behavior, Demographic:
		return true
	}
	return false
}

// Shape holds the extent of each axis.
type Shape struct {
	Interventions int
	Behaviors     int
	Demographics  int
}

// Extent returns the number of entries along d.
func (s Shape) Extent(d Dimension) int {
	switch d {
	case Intervention:
		return s.Interventions
	case Behavior:
		return s.Behaviors
	case Demographic:
		return s.Demographics
	}
	return 0
}

// WithExtent returns a copy of s with the extent along d replaced.
func (s Shape) WithExtent(d Dimension, n int) Shape {
	switch d {
	case Intervention:
		s.Interventions = n
	case Behavior:
		s.Behaviors = n
	case Demographic:
		s.Demographics = n
	}
	return s
}

// Size is the number of cells.
func (s Shape) Size() int {
	return s.Interventions * s.Behaviors * s.Demographics
}

// Validate rejects non-positive extents.
func (s Shape) Validate() error {
	for _, d := range Dimensions() {
		if s.Extent(d) <= 0 {
			return fmt.Errorf("%s extent must be > 0, got %d: %w", d, s.Extent(d), ErrDimensionMismatch)
		}
	}
	return nil
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Interventions, s.Behaviors, s.Demographics)
}

// Matrix3d is a dense row-major (intervention, behavior, demographic) array.
// The zero value is an empty matrix with no cells.
type Matrix3d struct {
	shape Shape
	data  []float64
}

// NewMatrix3d returns a zero-filled matrix of the given shape.
func NewMatrix3d(shape Shape) (Matrix3d, error) {
	if err := shape.Validate(); err != nil {
		return Matrix3d{}, err
	}
	return Matrix3d{shape: shape, data: make([]float64, shape.Size())}, nil
}

// Full returns a matrix with every cell set to v.
func Full(shape Shape, v float64) (Matrix3d, error) {
	m, err := NewMatrix3d(shape)
	if err != nil {
		return Matrix3d{}, err
	}
	for i := range m.data {
		m.data[i] = v
	}
	return m, nil
}

// FromSlice copies data, laid out row-major over (intervention, behavior,
// demographic), into a new matrix.
func FromSlice(shape Shape, data []float64) (Matrix3d, error) {
	if err := shape.Validate(); err != nil {
		return Matrix3d{}, err
	}
	if len(data) != shape.Size() {
		return Matrix3d{}, fmt.Errorf("FromSlice: %d values for shape %s: %w", len(data), shape, ErrDimensionMismatch)
	}
	out := make([]float64, len(data))
	copy(out, data)
	return Matrix3d{shape: shape, data: out}, nil
}

// FromFunc builds a matrix by evaluating f at every cell.
func FromFunc(shape Shape, f func(i, b, d int) float64) (Matrix3d, error) {
	m, err := NewMatrix3d(shape)
	if err != nil {
		return Matrix3d{}, err
	}
	for i := 0; i < shape.Interventions; i++ {
		for b := 0; b < shape.Behaviors; b++ {
			for d := 0; d < shape.Demographics; d++ {
				m.data[m.offset(i, b, d)] = f(i, b, d)
			}
		}
	}
	return m, nil
}

// Shape returns the matrix extents.
func (m Matrix3d) Shape() Shape { return m.shape }

// Empty reports whether m has no cells (the zero value).
func (m Matrix3d) Empty() bool { return len(m.data) == 0 }

// At returns the value at (intervention, behavior, demographic).
// It panics when an index is out of range, like a slice index would.
func (m Matrix3d) At(i, b, d int) float64 {
	if i < 0 || i >= m.shape.Interventions || b < 0 || b >= m.shape.Behaviors || d < 0 || d >= m.shape.Demographics {
		panic(fmt.Sprintf("matrix: index (%d,%d,%d) out of range for shape %s", i, b, d, m.shape))
	}
	return m.data[m.offset(i, b, d)]
}

// Values returns a copy of the row-major backing data.
func (m Matrix3d) Values() []float64 {
	out := make([]float64, len(m.data))
	copy(out, m.data)
	return out
}

func (m Matrix3d) offset(i, b, d int) int {
	return (i*m.shape.Behaviors+b)*m.shape.Demographics + d
}

// index returns the coordinate of cell n along dim.
func (m Matrix3d) index(n int, dim Dimension) int {
	switch dim {
	case Intervention:
		return n / (m.shape.Behaviors * m.shape.Demographics)
	case Behavior:
		return (n / m.shape.Demographics) % m.shape.Behaviors
	case Demographic:
		return n % m.shape.Demographics
	}
	return 0
}

func (m Matrix3d) clone() Matrix3d {
	return Matrix3d{shape: m.shape, data: m.Values()}
}

func (m Matrix3d) sameShape(op string, o Matrix3d) error {
	if m.shape != o.shape {
		return fmt.Errorf("%s: shapes %s and %s: %w", op, m.shape, o.shape, ErrDimensionMismatch)
	}
	return nil
}

func (m Matrix3d) zip(op string, o Matrix3d, f func(a, b float64) float64) (Matrix3d, error) {
	if err := m.sameShape(op, o); err != nil {
		return Matrix3d{}, err
	}
	out := m.clone()
	for n := range out.data {
		out.data[n] = f(m.data[n], o.data[n])
	}
	return out, nil
}

// Add returns m + o elementwise.
func (m Matrix3d) Add(o Matrix3d) (Matrix3d, error) {
	return m.zip("Add", o, func(a, b float64) float64 { return a + b })
}

// Sub returns m - o elementwise.
func (m Matrix3d) Sub(o Matrix3d) (Matrix3d, error) {
	return m.zip("Sub", o, func(a, b float64) float64 { return a - b })
}

// Mul returns the elementwise (Hadamard) product.
func (m Matrix3d) Mul(o Matrix3d) (Matrix3d, error) {
	return m.zip("Mul", o, func(a, b float64) float64 { return a * b })
}

// Min returns the elementwise minimum.
func (m Matrix3d) Min(o Matrix3d) (Matrix3d, error) {
	return m.zip("Min", o, math.Min)
}

// Scale multiplies every cell by f.
func (m Matrix3d) Scale(f float64) Matrix3d {
	out := m.clone()
	for n := range out.data {
		out.data[n] *= f
	}
	return out
}

// ClampMin raises every cell below floor to floor.
func (m Matrix3d) ClampMin(floor float64) Matrix3d {
	out := m.clone()
	for n, v := range out.data {
		if v < floor {
			out.data[n] = floor
		}
	}
	return out
}

// Sum returns the total over all cells.
func (m Matrix3d) Sum() float64 {
	return floats.SumCompensated(m.data)
}

// Equal reports whether m and o have the same shape and identical values.
func (m Matrix3d) Equal(o Matrix3d) bool {
	return m.shape == o.shape && floats.Equal(m.data, o.data)
}

// EqualApprox reports whether m and o agree within absolute or relative tolerance tol.
func (m Matrix3d) EqualApprox(o Matrix3d, tol float64) bool {
	if m.shape != o.shape {
		return false
	}
	for n := range m.data {
		if !scalar.EqualWithinAbsOrRel(m.data[n], o.data[n], tol, tol) {
			return false
		}
	}
	return true
}

// Any reports whether pred holds for some cell, returning the first matching coordinate.
func (m Matrix3d) Any(pred func(v float64) bool) (i, b, d int, ok bool) {
	for n, v := range m.data {
		if pred(v) {
			return m.index(n, Intervention), m.index(n, Behavior), m.index(n, Demographic), true
		}
	}
	return 0, 0, 0, false
}

// SumOver collapses the given axes by summation. Collapsed axes keep extent 1.
func (m Matrix3d) SumOver(dims ...Dimension) Matrix3d {
	target := m.shape
	for _, d := range dims {
		target = target.WithExtent(d, 1)
	}
	if target == m.shape {
		return m.clone()
	}
	groups := make([][]float64, target.Size())
	out := Matrix3d{shape: target, data: make([]float64, target.Size())}
	for n, v := range m.data {
		i, b, d := m.index(n, Intervention), m.index(n, Behavior), m.index(n, Demographic)
		for _, dim := range dims {
			switch dim {
			case Intervention:
				i = 0
			case Behavior:
				b = 0
			case Demographic:
				d = 0
			}
		}
		k := out.offset(i, b, d)
		groups[k] = append(groups[k], v)
	}
	for k, g := range groups {
		out.data[k] = floats.SumCompensated(g)
	}
	return out
}

func broadcast(op string, m Matrix3d, dim Dimension, vec []float64, f func(a, b float64) float64) (Matrix3d, error) {
	if !dim.Valid() {
		return Matrix3d{}, fmt.Errorf("%s: unknown %s: %w", op, dim, ErrDimensionMismatch)
	}
	if len(vec) != m.shape.Extent(dim) {
		return Matrix3d{}, fmt.Errorf("%s: vector length %d, %s extent %d: %w",
			op, len(vec), dim, m.shape.Extent(dim), ErrDimensionMismatch)
	}
	out := m.clone()
	for n, v := range m.data {
		out.data[n] = f(v, vec[m.index(n, dim)])
	}
	return out, nil
}

// Spread takes the slice of m at index src along dim and distributes it over
// every index of that axis: the result at a cell with coordinate j along dim
// is m's value at src (same other coordinates) times weights at that cell.
// Only mass originating from src appears in the result.
func Spread(m Matrix3d, dim Dimension, src int, weights Matrix3d) (Matrix3d, error) {
	if err := m.sameShape("Spread", weights); err != nil {
		return Matrix3d{}, err
	}
	if !dim.Valid() || src < 0 || src >= m.shape.Extent(dim) {
		return Matrix3d{}, fmt.Errorf("Spread: source %d along %s, extent %d: %w",
			src, dim, m.shape.Extent(dim), ErrDimensionMismatch)
	}
	out := Matrix3d{shape: m.shape, data: make([]float64, len(m.data))}
	for n := range out.data {
		i, b, d := m.index(n, Intervention), m.index(n, Behavior), m.index(n, Demographic)
		switch dim {
		case Intervention:
			i = src
		case Behavior:
			b = src
		case Demographic:
			d = src
		}
		out.data[n] = m.data[m.offset(i, b, d)] * weights.data[n]
	}
	return out, nil
}

// VectorMultiplied multiplies every cell by vec[k], where k is the cell's
// index along dim. The vector is broadcast across the other two axes.
func VectorMultiplied(m Matrix3d, dim Dimension, vec []float64) (Matrix3d, error) {
	return broadcast("VectorMultiplied", m, dim, vec, func(a, b float64) float64 { return a * b })
}

// VectorMinimum takes the minimum of every cell and vec[k], where k is the
// cell's index along dim.
func VectorMinimum(m Matrix3d, dim Dimension, vec []float64) (Matrix3d, error) {
	return broadcast("VectorMinimum", m, dim, vec, math.Min)
}

// Multiplied returns the elementwise product of all matrices.
func Multiplied(ms []Matrix3d) (Matrix3d, error) {
	if len(ms) == 0 {
		return Matrix3d{}, fmt.Errorf("Multiplied: no matrices: %w", ErrDimensionMismatch)
	}
	out := ms[0]
	for _, m := range ms[1:] {
		var err error
		if out, err = out.Mul(m); err != nil {
			return Matrix3d{}, err
		}
	}
	return out, nil
}

// Minimum returns the elementwise minimum of all matrices.
func Minimum(ms []Matrix3d) (Matrix3d, error) {
	if len(ms) == 0 {
		return Matrix3d{}, fmt.Errorf("Minimum: no matrices: %w", ErrDimensionMismatch)
	}
	out := ms[0]
	for _, m := range ms[1:] {
		var err error
		if out, err = out.Min(m); err != nil {
			return Matrix3d{}, err
		}
	}
	return out, nil
}
