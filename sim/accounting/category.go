// Package accounting turns a completed cohort history into cost and utility
// stamps, discounts them, and reduces them to run totals.
package accounting

import (
	"fmt"

	"github.com/respond-sim/respond/sim"
)

// CostCategory is a kind of cost attached to the cohort.
type CostCategory int

const (
	Healthcare CostCategory = iota
	Pharmaceutical
	Treatment
	NonFatalOverdose
	FatalOverdose
)

// CostCategories returns every category in reporting order.
func CostCategories() []CostCategory {
	return []CostCategory{Healthcare, Pharmaceutical, Treatment, NonFatalOverdose, FatalOverdose}
}

func (c CostCategory) String() string {
	switch c {
	case Healthcare:
		return "healthcare"
	case Pharmaceutical:
		return "pharmaceutical"
	case Treatment:
		return "treatment"
	case NonFatalOverdose:
		return "non_fatal_overdose"
	case FatalOverdose:
		return "fatal_overdose"
	}
	return fmt.Sprintf("cost_category(%d)", int(c))
}

// Valid reports whether c is a known category.
func (c CostCategory) Valid() bool {
	switch c {
	case Healthcare, Pharmaceutical, Treatment, NonFatalOverdose, FatalOverdose:
		return true
	}
	return false
}

// ParseCostCategory maps a category name to its value.
func ParseCostCategory(s string) (CostCategory, error) {
	for _, c := range CostCategories() {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown cost category %q: %w", s, sim.ErrConfiguration)
}

// UtilityCategory is a source of health-state utility.
type UtilityCategory int

const (
	UtilityBackground UtilityCategory = iota // varies by demographic
	UtilityBehavior                          // varies by behavior
	UtilitySetting                           // varies by intervention
)

// UtilityCategories returns every category.
func UtilityCategories() []UtilityCategory {
	return []UtilityCategory{UtilityBackground, UtilityBehavior, UtilitySetting}
}

func (c UtilityCategory) String() string {
	switch c {
	case UtilityBackground:
		return "background"
	case UtilityBehavior:
		return "behavior"
	case UtilitySetting:
		return "setting"
	}
	return fmt.Sprintf("utility_category(%d)", int(c))
}

// UtilityType selects how simultaneous utility categories combine.
type UtilityType int

const (
	// UtilityMin keeps the lowest utility of all categories.
	UtilityMin UtilityType = iota
	// UtilityMult multiplies the categories together.
	UtilityMult
)

func (u UtilityType) String() string {
	switch u {
	case UtilityMin:
		return "min"
	case UtilityMult:
		return "mult"
	}
	return fmt.Sprintf("utility_type(%d)", int(u))
}

// ParseUtilityType accepts "min" or "mult".
func ParseUtilityType(s string) (UtilityType, error) {
	switch s {
	case "min":
		return UtilityMin, nil
	case "mult":
		return UtilityMult, nil
	}
	return 0, fmt.Errorf("unknown utility type %q (want min or mult): %w", s, sim.ErrConfiguration)
}
