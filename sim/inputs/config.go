// Package inputs reads one input set (sim.yaml plus CSV tables) into the
// values the cohort engine and the accounting layer consume.
package inputs

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/accounting"
	"github.com/respond-sim/respond/sim/matrix"
	"github.com/respond-sim/respond/sim/trace"
)

// ConfigFile is the run configuration's name inside an input directory.
const ConfigFile = "sim.yaml"

// DefaultPeriodsPerYear is used when simulation.periods_per_year is unset (weekly steps).
const DefaultPeriodsPerYear = 52

// Config represents the full sim.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	State      StateConfig      `yaml:"state"`
	Cost       CostConfig       `yaml:"cost"`
	Output     OutputConfig     `yaml:"output"`
}

type SimulationConfig struct {
	Duration       int `yaml:"duration"`         // number of simulated periods
	PeriodsPerYear int `yaml:"periods_per_year"` // default 52
}

// StateConfig names the entries along each axis.
type StateConfig struct {
	Interventions []string               `yaml:"interventions"`
	Behaviors     []string               `yaml:"behaviors"`
	Demographics  []DemographicAttribute `yaml:"demographics"`
}

// DemographicAttribute is one demographic variable, e.g. age group or sex.
type DemographicAttribute struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

type CostConfig struct {
	Enabled      bool                `yaml:"enabled"`
	DiscountRate float64             `yaml:"discount_rate"` // annual
	UtilityType  string              `yaml:"utility_type"`  // "min" (default) or "mult"
	Perspectives map[string][]string `yaml:"perspectives"`  // perspective → cost category names
}

type OutputConfig struct {
	Periods     []int  `yaml:"periods"`      // periods to write; empty = all
	PivotLong   bool   `yaml:"pivot_long"`   // one row per cell-period instead of one column per period
	WriteInputs bool   `yaml:"write_inputs"` // echo the parsed configuration
	SQLite      string `yaml:"sqlite"`       // optional database file, relative to the output directory
	Trace       string `yaml:"trace"`        // "none" (default) or "stages"
}

// LoadConfig reads and parses a sim.yaml file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %v: %w", path, err, sim.ErrConfiguration)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Simulation.PeriodsPerYear == 0 {
		c.Simulation.PeriodsPerYear = DefaultPeriodsPerYear
	}
	if c.Cost.UtilityType == "" {
		c.Cost.UtilityType = accounting.UtilityMin.String()
	}
}

// Validate checks every section. Errors wrap sim.ErrConfiguration and name the key.
func (c *Config) Validate() error {
	if c.Simulation.Duration <= 0 {
		return fmt.Errorf("simulation.duration must be > 0, got %d: %w", c.Simulation.Duration, sim.ErrConfiguration)
	}
	if c.Simulation.PeriodsPerYear <= 0 {
		return fmt.Errorf("simulation.periods_per_year must be > 0, got %d: %w", c.Simulation.PeriodsPerYear, sim.ErrConfiguration)
	}
	if err := validateLabels("state.interventions", c.State.Interventions); err != nil {
		return err
	}
	if err := validateLabels("state.behaviors", c.State.Behaviors); err != nil {
		return err
	}
	if len(c.State.Demographics) == 0 {
		return fmt.Errorf("state.demographics: at least one attribute required: %w", sim.ErrConfiguration)
	}
	for i, a := range c.State.Demographics {
		if a.Name == "" {
			return fmt.Errorf("state.demographics[%d]: name required: %w", i, sim.ErrConfiguration)
		}
		if err := validateLabels("state.demographics."+a.Name, a.Values); err != nil {
			return err
		}
	}
	if err := c.validateCombos(); err != nil {
		return err
	}
	if c.Cost.DiscountRate < 0 {
		return fmt.Errorf("cost.discount_rate must be >= 0, got %v: %w", c.Cost.DiscountRate, sim.ErrConfiguration)
	}
	if _, err := accounting.ParseUtilityType(c.Cost.UtilityType); err != nil {
		return fmt.Errorf("cost.utility_type: %w", err)
	}
	if _, err := c.PerspectiveMapping(); err != nil {
		return err
	}
	for _, p := range c.Output.Periods {
		if p < 0 || p > c.Simulation.Duration {
			return fmt.Errorf("output.periods: %d outside 0..%d: %w", p, c.Simulation.Duration, sim.ErrConfiguration)
		}
	}
	if !trace.IsValidTraceLevel(c.Output.Trace) {
		return fmt.Errorf("output.trace: unknown level %q; valid: none, stages: %w", c.Output.Trace, sim.ErrConfiguration)
	}
	return nil
}

func validateLabels(key string, labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("%s: at least one entry required: %w", key, sim.ErrConfiguration)
	}
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("%s: empty entry: %w", key, sim.ErrConfiguration)
		}
		if seen[l] {
			return fmt.Errorf("%s: duplicate entry %q: %w", key, l, sim.ErrConfiguration)
		}
		seen[l] = true
	}
	return nil
}

// DemographicTuples returns the cartesian product of the demographic
// attribute values. The first attribute varies slowest.
func (c *Config) DemographicTuples() [][]string {
	tuples := [][]string{{}}
	for _, a := range c.State.Demographics {
		next := make([][]string, 0, len(tuples)*len(a.Values))
		for _, prefix := range tuples {
			for _, v := range a.Values {
				next = append(next, append(slices.Clip(prefix), v))
			}
		}
		tuples = next
	}
	return tuples
}

// DemographicCombos returns DemographicTuples joined with "_". These are the
// labels of the demographic axis.
func (c *Config) DemographicCombos() []string {
	tuples := c.DemographicTuples()
	combos := make([]string, len(tuples))
	for n, t := range tuples {
		combos[n] = strings.Join(t, "_")
	}
	return combos
}

// validateCombos rejects attribute values whose joined labels collide,
// e.g. a+b_c and a_b+c both naming a_b_c.
func (c *Config) validateCombos() error {
	tuples := c.DemographicTuples()
	seen := make(map[string][]string, len(tuples))
	for _, t := range tuples {
		label := strings.Join(t, "_")
		if prev, ok := seen[label]; ok {
			return fmt.Errorf("state.demographics: %v and %v both name demographic %q: %w", prev, t, label, sim.ErrConfiguration)
		}
		seen[label] = t
	}
	return nil
}

// DemographicNames returns the attribute names in order.
func (c *Config) DemographicNames() []string {
	names := make([]string, len(c.State.Demographics))
	for n, a := range c.State.Demographics {
		names[n] = a.Name
	}
	return names
}

// Shape returns the matrix extents implied by the state section.
func (c *Config) Shape() matrix.Shape {
	return matrix.Shape{
		Interventions: len(c.State.Interventions),
		Behaviors:     len(c.State.Behaviors),
		Demographics:  len(c.DemographicCombos()),
	}
}

// Labels returns the axis labels for the run.
func (c *Config) Labels() sim.Labels {
	return sim.Labels{
		Interventions: append([]string(nil), c.State.Interventions...),
		Behaviors:     append([]string(nil), c.State.Behaviors...),
		Demographics:  c.DemographicCombos(),
	}
}

// PerspectiveMapping parses cost.perspectives. An empty section yields the
// default healthcare and societal perspectives.
func (c *Config) PerspectiveMapping() (accounting.PerspectiveMapping, error) {
	if len(c.Cost.Perspectives) == 0 {
		return accounting.DefaultPerspectives(), nil
	}
	out := make(accounting.PerspectiveMapping, len(c.Cost.Perspectives))
	for name, cats := range c.Cost.Perspectives {
		out[name] = make([]accounting.CostCategory, 0, len(cats))
		for _, s := range cats {
			cat, err := accounting.ParseCostCategory(s)
			if err != nil {
				return nil, fmt.Errorf("cost.perspectives.%s: %w", name, err)
			}
			out[name] = append(out[name], cat)
		}
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("cost.perspectives: %w", err)
	}
	return out, nil
}

// UtilityKind returns the parsed cost.utility_type.
func (c *Config) UtilityKind() accounting.UtilityType {
	ut, _ := accounting.ParseUtilityType(c.Cost.UtilityType)
	return ut
}

// IsPostIntervention reports whether name is a post-treatment state. These
// receive no initial or entering cohort.
func IsPostIntervention(name string) bool {
	return strings.HasPrefix(name, "post")
}
