package sim

import (
	"errors"

	"github.com/respond-sim/respond/sim/matrix"
)

// Classified run failures. Callers match them with errors.Is; the wrapping
// message names the offending input and the expected vs actual extent.
var (
	// ErrDimensionMismatch: matrix or vector extents disagree.
	ErrDimensionMismatch = matrix.ErrDimensionMismatch
	// ErrInvalidProbability: a transition entry is outside [0,1], or a rate is negative.
	ErrInvalidProbability = errors.New("invalid probability")
	// ErrVectorLengthMismatch: an input series disagrees with the horizon or a category count.
	ErrVectorLengthMismatch = errors.New("vector length mismatch")
	// ErrConfiguration: run parameters are missing or inconsistent.
	ErrConfiguration = errors.New("configuration error")
)
