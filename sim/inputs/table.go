package inputs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/matrix"
)

// Column names shared by the CSV tables.
const (
	colIntervention = "intervention"
	colBehavior     = "behavior"
	colDemographic  = "demographic"
	colFrom         = "from"
	colTo           = "to"
	colUntil        = "until"
)

// table is a parsed CSV file with a header row.
type table struct {
	name   string
	header map[string]int
	rows   [][]string
}

// readTable loads dir/name. A missing file is reported with fs.ErrNotExist.
func readTable(dir, name string) (*table, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	head, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file: %w", name, sim.ErrConfiguration)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", name, err)
	}
	t := &table{name: name, header: make(map[string]int, len(head))}
	for i, h := range head {
		t.header[strings.TrimSpace(h)] = i
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s at row %d: %w", name, len(t.rows)+2, err)
		}
		t.rows = append(t.rows, record)
	}
	return t, nil
}

// readOptionalTable is readTable that returns (nil, nil) when the file is absent.
func readOptionalTable(dir, name string) (*table, error) {
	t, err := readTable(dir, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return t, err
}

func (t *table) has(col string) bool {
	_, ok := t.header[col]
	return ok
}

func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if !t.has(c) {
			return fmt.Errorf("%s: missing column %q: %w", t.name, c, sim.ErrConfiguration)
		}
	}
	return nil
}

func (t *table) str(row int, col string) string {
	return strings.TrimSpace(t.rows[row][t.header[col]])
}

func (t *table) float(row int, col string) (float64, error) {
	v, err := strconv.ParseFloat(t.str(row, col), 64)
	if err != nil {
		return 0, fmt.Errorf("%s row %d: invalid %s %q: %w", t.name, row+2, col, t.str(row, col), sim.ErrConfiguration)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s row %d: %s must be finite, got %q: %w", t.name, row+2, col, t.str(row, col), sim.ErrConfiguration)
	}
	return v, nil
}

// until returns the row's last period, or horizon when the table has no until column.
func (t *table) until(row, horizon int) (int, error) {
	if !t.has(colUntil) {
		return horizon, nil
	}
	v, err := strconv.Atoi(t.str(row, colUntil))
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s row %d: invalid until %q: %w", t.name, row+2, t.str(row, colUntil), sim.ErrConfiguration)
	}
	return v, nil
}

// axisIndex maps labels to positions along each axis.
type axisIndex struct {
	pos map[matrix.Dimension]map[string]int
}

func newAxisIndex(l sim.Labels) axisIndex {
	idx := axisIndex{pos: make(map[matrix.Dimension]map[string]int)}
	for _, d := range matrix.Dimensions() {
		m := make(map[string]int)
		for i, name := range l.Of(d) {
			m[name] = i
		}
		idx.pos[d] = m
	}
	return idx
}

// lookup resolves the label in column col of row along dim.
func (a axisIndex) lookup(t *table, row int, col string, dim matrix.Dimension) (int, error) {
	label := t.str(row, col)
	i, ok := a.pos[dim][label]
	if !ok {
		return 0, fmt.Errorf("%s row %d: unknown %s %q: %w", t.name, row+2, dim, label, sim.ErrConfiguration)
	}
	return i, nil
}

// segments accumulates change-time segments, each holding `width` matrices.
type segments struct {
	shape matrix.Shape
	width int
	byEnd map[int][][]float64
}

func newSegments(shape matrix.Shape, width int) *segments {
	return &segments{shape: shape, width: width, byEnd: make(map[int][][]float64)}
}

func (s *segments) set(until, k, i, b, d int, v float64) {
	seg, ok := s.byEnd[until]
	if !ok {
		seg = make([][]float64, s.width)
		for n := range seg {
			seg[n] = make([]float64, s.shape.Size())
		}
		s.byEnd[until] = seg
	}
	seg[k][(i*s.shape.Behaviors+b)*s.shape.Demographics+d] = v
}

// expand turns the segments into one entry per period 1..horizon. A segment
// ending at u covers the periods after the previous segment's end through u.
// Periods past the last segment are left out, so a short table yields a
// short series.
func (s *segments) expand(horizon int) ([][]matrix.Matrix3d, error) {
	ends := make([]int, 0, len(s.byEnd))
	for u := range s.byEnd {
		ends = append(ends, u)
	}
	sort.Ints(ends)
	out := make([][]matrix.Matrix3d, 0, horizon)
	for _, end := range ends {
		mats := make([]matrix.Matrix3d, s.width)
		for k, data := range s.byEnd[end] {
			m, err := matrix.FromSlice(s.shape, data)
			if err != nil {
				return nil, err
			}
			mats[k] = m
		}
		for len(out) < end && len(out) < horizon {
			out = append(out, mats)
		}
	}
	return out, nil
}
