package matrix

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Fprint writes m one demographic block at a time: rows are behaviors,
// columns are interventions, blocks separated by a rule.
func Fprint(w io.Writer, m Matrix3d) error {
	s := m.shape
	for d := 0; d < s.Demographics; d++ {
		for b := 0; b < s.Behaviors; b++ {
			cells := make([]string, s.Interventions)
			for i := 0; i < s.Interventions; i++ {
				cells[i] = strconv.FormatFloat(m.At(i, b, d), 'g', -1, 64)
			}
			if _, err := fmt.Fprintln(w, strings.Join(cells, " ")); err != nil {
				return err
			}
		}
		if d != s.Demographics-1 {
			if _, err := fmt.Fprintln(w, "==========================="); err != nil {
				return err
			}
		}
	}
	return nil
}

// FprintTimed writes every period of t with a period header.
func FprintTimed(w io.Writer, t TimedMatrix3d) error {
	for n := range t.periods {
		if _, err := fmt.Fprintf(w, "++++++++ PERIOD %d ++++++++\n", t.periods[n]); err != nil {
			return err
		}
		if err := Fprint(w, t.mats[n]); err != nil {
			return err
		}
	}
	return nil
}

// String renders m with Fprint.
func (m Matrix3d) String() string {
	var sb strings.Builder
	_ = Fprint(&sb, m)
	return sb.String()
}
