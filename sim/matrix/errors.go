package matrix

import "errors"

// Sentinel errors for the matrix package. Return them wrapped with call-site
// context (fmt.Errorf("ctx: %w", ErrX)); callers match with errors.Is.
var (
	// ErrDimensionMismatch indicates incompatible extents between operands, a
	// non-positive extent, or a vector whose length differs from the target axis.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmptyTimedMatrix is returned by reductions over a TimedMatrix3d with no periods.
	ErrEmptyTimedMatrix = errors.New("timed matrix is empty")

	// ErrPeriodOrder is returned when a period is appended out of time order.
	ErrPeriodOrder = errors.New("period out of order")
)
