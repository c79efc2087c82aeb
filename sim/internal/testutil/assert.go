// Package testutil provides shared test helpers for the cohort engine packages.
package testutil

import (
	"math"
	"testing"

	"github.com/respond-sim/respond/sim/matrix"
)

// Tolerance is the default relative tolerance for floating-point comparisons.
const Tolerance = 1e-9

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == got {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertMatrixClose fails the test when got differs from want in shape or in
// any cell beyond tol (absolute or relative).
func AssertMatrixClose(t *testing.T, name string, want, got matrix.Matrix3d, tol float64) {
	t.Helper()
	if want.Shape() != got.Shape() {
		t.Fatalf("%s: shape %s, want %s", name, got.Shape(), want.Shape())
	}
	if !want.EqualApprox(got, tol) {
		t.Errorf("%s: got\n%v\nwant\n%v", name, got, want)
	}
}

// Matrix builds a matrix from row-major values and fails the test on error.
func Matrix(t *testing.T, shape matrix.Shape, values ...float64) matrix.Matrix3d {
	t.Helper()
	m, err := matrix.FromSlice(shape, values)
	if err != nil {
		t.Fatalf("building %s matrix: %v", shape, err)
	}
	return m
}

// Fill builds a matrix with every cell set to v and fails the test on error.
func Fill(t *testing.T, shape matrix.Shape, v float64) matrix.Matrix3d {
	t.Helper()
	m, err := matrix.Full(shape, v)
	if err != nil {
		t.Fatalf("building %s matrix: %v", shape, err)
	}
	return m
}
