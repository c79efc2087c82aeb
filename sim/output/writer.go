package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/accounting"
	"github.com/respond-sim/respond/sim/inputs"
	"github.com/respond-sim/respond/sim/matrix"
)

// Axes names the entries along each axis for row headers.
type Axes struct {
	Interventions    []string
	Behaviors        []string
	DemographicNames []string   // one column per demographic attribute
	Demographics     [][]string // one tuple per demographic combination
}

// AxesFromConfig builds row headers from a run configuration.
func AxesFromConfig(cfg *inputs.Config) Axes {
	return Axes{
		Interventions:    cfg.State.Interventions,
		Behaviors:        cfg.State.Behaviors,
		DemographicNames: cfg.DemographicNames(),
		Demographics:     cfg.DemographicTuples(),
	}
}

// combos joins each demographic tuple with "_".
func (a Axes) combos() []string {
	out := make([]string, len(a.Demographics))
	for n, t := range a.Demographics {
		out[n] = strings.Join(t, "_")
	}
	return out
}

func (a Axes) shape() matrix.Shape {
	return matrix.Shape{Interventions: len(a.Interventions), Behaviors: len(a.Behaviors), Demographics: len(a.Demographics)}
}

// Artifacts is everything a Writer can render. Config is only echoed when
// set; Evaluation is nil when cost analysis is disabled.
type Artifacts struct {
	Config     *inputs.Config
	History    *sim.History
	Evaluation *accounting.Evaluation
}

// document is one rendered artifact: a file in FileOutput mode, a section in
// StringOutput mode.
type document struct {
	name   string
	render func(io.Writer) error
}

// Writer renders run artifacts as CSV (YAML for the input echo).
type Writer struct {
	dir       string
	axes      Axes
	formatter DataFormatter
	pivotLong bool
	logger    logrus.FieldLogger
}

// NewWriter creates a writer targeting dir. pivotLong selects one row per
// cell and period instead of one column per period.
func NewWriter(dir string, axes Axes, formatter DataFormatter, pivotLong bool, logger logrus.FieldLogger) *Writer {
	if logger == nil {
		logger = sim.DiscardLogger()
	}
	return &Writer{dir: dir, axes: axes, formatter: formatter, pivotLong: pivotLong, logger: logger}
}

// Write renders one artifact. StringOutput returns the rendered text;
// FileOutput writes files and returns their paths, one per line.
func (w *Writer) Write(wt WriterType, ot OutputType, a Artifacts) (string, error) {
	docs, err := w.documents(wt, a)
	if err != nil {
		return "", fmt.Errorf("%s output: %w", wt, err)
	}
	return w.emit(ot, docs)
}

// WriteAll renders every artifact that a carries data for.
func (w *Writer) WriteAll(ot OutputType, a Artifacts) (string, error) {
	var out []string
	for _, wt := range WriterTypes() {
		if !a.has(wt) {
			w.logger.Debugf("no data for %s output, skipping", wt)
			continue
		}
		s, err := w.Write(wt, ot, a)
		if err != nil {
			return "", err
		}
		out = append(out, s)
	}
	return strings.Join(out, ""), nil
}

func (a Artifacts) has(wt WriterType) bool {
	switch wt {
	case InputEcho:
		return a.Config != nil
	case GeneralOutput, HistoryOutput:
		return a.History != nil
	case CostOutput, TotalsOutput:
		return a.Evaluation != nil
	case UtilityOutput:
		return a.Evaluation != nil && len(a.Evaluation.UtilityStamps) > 0
	}
	return false
}

func (w *Writer) emit(ot OutputType, docs []document) (string, error) {
	switch ot {
	case StringOutput:
		var buf bytes.Buffer
		for _, d := range docs {
			fmt.Fprintf(&buf, "# %s\n", d.name)
			if err := d.render(&buf); err != nil {
				return "", fmt.Errorf("rendering %s: %w", d.name, err)
			}
		}
		return buf.String(), nil
	case FileOutput:
		if _, err := EnsureDirectory(w.dir); err != nil {
			return "", err
		}
		var paths strings.Builder
		for _, d := range docs {
			path := filepath.Join(w.dir, d.name)
			if err := writeFile(path, d.render); err != nil {
				return "", err
			}
			w.logger.Debugf("wrote %s", path)
			paths.WriteString(path + "\n")
		}
		return paths.String(), nil
	}
	return "", fmt.Errorf("unknown output type %s: %w", ot, sim.ErrConfiguration)
}

func writeFile(path string, render func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := render(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func (w *Writer) documents(wt WriterType, a Artifacts) ([]document, error) {
	if !a.has(wt) {
		return nil, fmt.Errorf("no data: %w", sim.ErrConfiguration)
	}
	switch wt {
	case InputEcho:
		return []document{{name: "input_echo.yaml", render: func(out io.Writer) error {
			data, err := yaml.Marshal(a.Config)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			_, err = out.Write(data)
			return err
		}}}, nil
	case GeneralOutput:
		h, err := w.formatter.ExtractPeriods(a.History)
		if err != nil {
			return nil, err
		}
		return []document{{name: "general_outputs.csv", render: func(out io.Writer) error { return writeGeneral(out, h) }}}, nil
	case HistoryOutput:
		h, err := w.formatter.ExtractPeriods(a.History)
		if err != nil {
			return nil, err
		}
		return []document{
			w.seriesDoc("state_history.csv", h.State),
			w.seriesDoc("entering_history.csv", h.Entering),
			w.seriesDoc("admission_history.csv", h.InterventionAdmissions),
			w.seriesDoc("overdose_history.csv", h.Overdoses),
			w.seriesDoc("fatal_overdose_history.csv", h.FatalOverdoses),
			w.seriesDoc("mortality_history.csv", h.Deaths),
		}, nil
	case CostOutput:
		var docs []document
		base := w.formatter.ExtractCostStamps(a.Evaluation.CostStamps)
		disc := w.formatter.ExtractCostStamps(a.Evaluation.DiscountedCostStamps)
		for _, c := range accounting.CostCategories() {
			b, err := accounting.CostSeries(base, c)
			if err != nil {
				return nil, err
			}
			d, err := accounting.CostSeries(disc, c)
			if err != nil {
				return nil, err
			}
			docs = append(docs,
				w.seriesDoc("cost_"+c.String()+".csv", b),
				w.seriesDoc("discounted_cost_"+c.String()+".csv", d))
		}
		return docs, nil
	case UtilityOutput:
		b, err := accounting.UtilitySeries(w.formatter.ExtractUtilityStamps(a.Evaluation.UtilityStamps))
		if err != nil {
			return nil, err
		}
		d, err := accounting.UtilitySeries(w.formatter.ExtractUtilityStamps(a.Evaluation.DiscountedUtilityStamps))
		if err != nil {
			return nil, err
		}
		return []document{w.seriesDoc("utility.csv", b), w.seriesDoc("discounted_utility.csv", d)}, nil
	case TotalsOutput:
		totals := a.Evaluation.Totals
		return []document{{name: "totals.csv", render: func(out io.Writer) error { return writeTotals(out, totals, w.axes.combos()) }}}, nil
	}
	return nil, fmt.Errorf("unknown writer type %s: %w", wt, sim.ErrConfiguration)
}

func (w *Writer) seriesDoc(name string, t matrix.TimedMatrix3d) document {
	return document{name: name, render: func(out io.Writer) error {
		if w.pivotLong {
			return w.writeLong(out, t)
		}
		return w.writeWide(out, t)
	}}
}

func (w *Writer) cellHeader() []string {
	return append([]string{"intervention", "behavior"}, w.axes.DemographicNames...)
}

func (w *Writer) cellLabels(i, b, d int) []string {
	return append([]string{w.axes.Interventions[i], w.axes.Behaviors[b]}, w.axes.Demographics[d]...)
}

func (w *Writer) checkShape(t matrix.TimedMatrix3d) error {
	if t.Len() == 0 {
		return nil
	}
	_, m := t.Index(0)
	if got, want := m.Shape(), w.axes.shape(); got != want {
		return fmt.Errorf("series shape %s, labels %s: %w", got, want, sim.ErrDimensionMismatch)
	}
	return nil
}

// writeWide emits one row per cell and one t+<period> column per period.
func (w *Writer) writeWide(out io.Writer, t matrix.TimedMatrix3d) error {
	if err := w.checkShape(t); err != nil {
		return err
	}
	cw := csv.NewWriter(out)
	header := w.cellHeader()
	for _, p := range t.Periods() {
		header = append(header, "t+"+strconv.Itoa(p))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	mats := t.Matrices()
	shape := w.axes.shape()
	for i := range shape.Interventions {
		for b := range shape.Behaviors {
			for d := range shape.Demographics {
				row := w.cellLabels(i, b, d)
				for _, m := range mats {
					row = append(row, formatFloat(m.At(i, b, d)))
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeLong emits one row per cell and period.
func (w *Writer) writeLong(out io.Writer, t matrix.TimedMatrix3d) error {
	if err := w.checkShape(t); err != nil {
		return err
	}
	cw := csv.NewWriter(out)
	if err := cw.Write(append(w.cellHeader(), "period", "value")); err != nil {
		return err
	}
	shape := w.axes.shape()
	for n := range t.Len() {
		p, m := t.Index(n)
		for i := range shape.Interventions {
			for b := range shape.Behaviors {
				for d := range shape.Demographics {
					row := append(w.cellLabels(i, b, d), strconv.Itoa(p), formatFloat(m.At(i, b, d)))
					if err := cw.Write(row); err != nil {
						return err
					}
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

var generalColumns = []string{
	"period", "population", "entering", "intervention_admissions",
	"overdoses", "fatal_overdoses", "deaths",
}

// writeGeneral emits population and event totals per period.
func writeGeneral(out io.Writer, h *sim.History) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(generalColumns); err != nil {
		return err
	}
	for _, hs := range h.Stamps() {
		row := []string{
			strconv.Itoa(hs.Period),
			formatFloat(hs.State.Sum()),
			formatFloat(hs.Entering.Sum()),
			formatFloat(hs.InterventionAdmissions.Sum()),
			formatFloat(hs.Overdoses.Sum()),
			formatFloat(hs.FatalOverdoses.Sum()),
			formatFloat(hs.Deaths.Sum()),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// TotalRow is one line of the totals table.
type TotalRow struct {
	Measure    string
	Base       float64
	Discounted float64
}

// TotalRows flattens totals into measure rows: one per cost category, one
// per perspective, life years overall and per demographic, and utility.
// demographics labels the per-demographic life years.
func TotalRows(totals accounting.Totals, demographics []string) []TotalRow {
	base, disc := totals.Base, totals.Discounted
	var rows []TotalRow
	for _, c := range accounting.CostCategories() {
		rows = append(rows, TotalRow{"cost:" + c.String(), base.Costs[c], disc.Costs[c]})
	}
	for _, name := range sortedKeys(base.Perspectives) {
		rows = append(rows, TotalRow{"perspective:" + name, base.Perspectives[name], disc.Perspectives[name]})
	}
	rows = append(rows, TotalRow{"life_years", base.LifeYears.Total, disc.LifeYears.Total})
	for d, v := range base.LifeYears.ByDemographic {
		var dv float64
		if d < len(disc.LifeYears.ByDemographic) {
			dv = disc.LifeYears.ByDemographic[d]
		}
		label := strconv.Itoa(d)
		if d < len(demographics) {
			label = demographics[d]
		}
		rows = append(rows, TotalRow{"life_years:" + label, v, dv})
	}
	rows = append(rows, TotalRow{"utility", base.Utility, disc.Utility})
	return rows
}

func sortedKeys(m map[string]float64) []string {
	return slices.Sorted(maps.Keys(m))
}

func writeTotals(out io.Writer, totals accounting.Totals, demographics []string) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"measure", "base", "discounted"}); err != nil {
		return err
	}
	for _, r := range TotalRows(totals, demographics) {
		if err := cw.Write([]string{r.Measure, formatFloat(r.Base), formatFloat(r.Discounted)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
