package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/respond-sim/respond/sim/matrix"
)

// CheckVectorLengths validates in before any state exists: the horizon is
// positive, every non-empty per-period series has exactly Horizon entries,
// every matrix has the configured shape, block counts match axis extents,
// population counts are finite and non-negative and every probability is in
// [0,1]. A transition row with no outgoing probability is an error; rows that
// otherwise do not sum to 1 are only warned about.
func CheckVectorLengths(in *Inputs, logger logrus.FieldLogger) error {
	logger = orDiscard(logger)
	if in == nil {
		return fmt.Errorf("inputs: nil: %w", ErrConfiguration)
	}
	if err := in.Shape.Validate(); err != nil {
		return fmt.Errorf("state shape: %w", err)
	}
	if in.Horizon <= 0 {
		return fmt.Errorf("horizon must be > 0, got %d: %w", in.Horizon, ErrConfiguration)
	}
	for _, dim := range matrix.Dimensions() {
		labels := in.Labels.Of(dim)
		if len(labels) != 0 && len(labels) != in.Shape.Extent(dim) {
			return fmt.Errorf("%s labels: expected %d, got %d: %w", dim, in.Shape.Extent(dim), len(labels), ErrVectorLengthMismatch)
		}
	}

	if in.InitialCohort.Shape() != in.Shape {
		return fmt.Errorf("initial cohort: expected shape %s, got %s: %w", in.Shape, in.InitialCohort.Shape(), ErrDimensionMismatch)
	}
	if err := checkCounts("initial cohort", in.InitialCohort); err != nil {
		return err
	}

	if err := checkSeries("entering cohort", in.Entering, in.Shape, in.Horizon, false); err != nil {
		return err
	}
	if err := checkTransitions("intervention transitions", in.Interventions, matrix.Intervention, in, logger); err != nil {
		return err
	}
	if in.InitEffect != nil {
		if in.InitEffect.Along != matrix.Behavior {
			return fmt.Errorf("intervention init effect along %s: %w", in.InitEffect.Along, ErrConfiguration)
		}
		if err := in.InitEffect.Validate("intervention init effect", in.Shape); err != nil {
			return err
		}
		if err := checkRows("intervention init effect", *in.InitEffect, logger); err != nil {
			return err
		}
	}
	if err := checkTransitions("behavior transitions", in.Behaviors, matrix.Behavior, in, logger); err != nil {
		return err
	}

	if len(in.Overdoses) != 0 || len(in.FatalOverdoses) != 0 {
		if err := checkSeries("overdose rates", in.Overdoses, in.Shape, in.Horizon, true); err != nil {
			return err
		}
		if err := checkSeries("fatal overdose rates", in.FatalOverdoses, in.Shape, in.Horizon, true); err != nil {
			return err
		}
		if len(in.Overdoses) == 0 || len(in.FatalOverdoses) == 0 {
			return fmt.Errorf("overdose and fatal overdose rates must be given together: %w", ErrVectorLengthMismatch)
		}
	}
	return checkSeries("mortality rates", in.Mortality, in.Shape, in.Horizon, true)
}

func checkLength(name string, got, horizon int) error {
	if got != horizon {
		return fmt.Errorf("%s: expected %d periods, got %d: %w", name, horizon, got, ErrVectorLengthMismatch)
	}
	return nil
}

func checkSeries(name string, series []matrix.Matrix3d, shape matrix.Shape, horizon int, probabilities bool) error {
	if len(series) == 0 {
		return nil
	}
	if err := checkLength(name, len(series), horizon); err != nil {
		return err
	}
	for n, m := range series {
		if m.Shape() != shape {
			return fmt.Errorf("%s period %d: expected shape %s, got %s: %w", name, n+1, shape, m.Shape(), ErrDimensionMismatch)
		}
		periodName := fmt.Sprintf("%s period %d", name, n+1)
		check := checkCounts
		if probabilities {
			check = checkProbabilities
		}
		if err := check(periodName, m); err != nil {
			return err
		}
	}
	return nil
}

// checkCounts rejects negative, NaN and infinite population counts.
func checkCounts(name string, m matrix.Matrix3d) error {
	i, b, d, bad := m.Any(func(v float64) bool { return !(v >= 0) || math.IsInf(v, 0) })
	if bad {
		return fmt.Errorf("%s: population at (%d,%d,%d) = %v, want a finite count >= 0: %w", name, i, b, d, m.At(i, b, d), ErrConfiguration)
	}
	return nil
}

func checkTransitions(name string, series []AxisTransition, along matrix.Dimension, in *Inputs, logger logrus.FieldLogger) error {
	if len(series) == 0 {
		return nil
	}
	if err := checkLength(name, len(series), in.Horizon); err != nil {
		return err
	}
	for n, t := range series {
		periodName := fmt.Sprintf("%s period %d", name, n+1)
		if t.Along != along {
			return fmt.Errorf("%s: along %s, expected %s: %w", periodName, t.Along, along, ErrConfiguration)
		}
		if err := t.Validate(periodName, in.Shape); err != nil {
			return err
		}
		if err := checkRows(periodName, t, logger); err != nil {
			return err
		}
	}
	return nil
}

// checkRows rejects a source row with no outgoing probability and warns on
// any other row that does not sum to 1.
func checkRows(name string, t AxisTransition, logger logrus.FieldLogger) error {
	if src, i, b, d, ok := t.emptyRow(); ok {
		return fmt.Errorf("%s: no outgoing probability from %s index %d at (%d,%d,%d): %w", name, t.Along, src, i, b, d, ErrConfiguration)
	}
	if src, sum, ok := t.unbalancedRow(); ok {
		logger.Warnf("%s: probabilities out of %s index %d sum to %.6f, not 1", name, t.Along, src, sum)
	}
	return nil
}
