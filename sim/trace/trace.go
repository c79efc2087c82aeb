// Package trace records per-stage population totals during a cohort run.
// It has no dependencies on sim/ and stores pure data types.
package trace

// TraceLevel controls the verbosity of step tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelStages captures the population before and after every stage of every period.
	TraceLevelStages TraceLevel = "stages"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelStages: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// StageRecord captures one stage of one period.
type StageRecord struct {
	Period int
	Stage  string
	Before float64 // total population entering the stage
	After  float64 // total population leaving the stage
}

// Change is After - Before.
func (r StageRecord) Change() float64 { return r.After - r.Before }

// StepTrace collects stage records during a run.
type StepTrace struct {
	Config TraceConfig
	Stages []StageRecord
}

// NewStepTrace creates a StepTrace ready for recording.
func NewStepTrace(config TraceConfig) *StepTrace {
	return &StepTrace{
		Config: config,
		Stages: make([]StageRecord, 0),
	}
}

// Enabled reports whether records should be collected.
func (st *StepTrace) Enabled() bool {
	return st.Config.Level == TraceLevelStages
}

// RecordStage appends a stage record.
func (st *StepTrace) RecordStage(record StageRecord) {
	st.Stages = append(st.Stages, record)
}
