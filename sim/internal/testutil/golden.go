package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is a one-intervention, two-behavior, one-demographic run
// whose outcome has a closed form.
type GoldenTestCase struct {
	Name      string        `json:"name"`
	Periods   int           `json:"periods"`
	Active    float64       `json:"active"`
	Nonactive float64       `json:"nonactive"`
	Shift     float64       `json:"shift"`     // active to nonactive per period
	Mortality float64       `json:"mortality"` // per-period death probability
	Outcome   GoldenOutcome `json:"outcome"`
}

// GoldenOutcome is the expected state after the final period.
type GoldenOutcome struct {
	Active     float64 `json:"active"`
	Nonactive  float64 `json:"nonactive"`
	Population float64 `json:"population"`
	Deaths     float64 `json:"deaths"` // summed over periods 1..N
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	if len(dataset.Tests) == 0 {
		t.Fatal("golden dataset has no cases")
	}
	return &dataset
}
