package trace

// TraceSummary aggregates statistics from a StepTrace.
type TraceSummary struct {
	TotalRecords  int
	Periods       int
	ChangeByStage map[string]float64 // stage → net population change over all periods
	LargestExit   float64            // largest single-stage population drop (positive number)
	LargestExitAt StageRecord        // record of that drop; zero value if nothing left the cohort
}

// Summarize computes aggregate statistics from a StepTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *StepTrace) *TraceSummary {
	summary := &TraceSummary{
		ChangeByStage: make(map[string]float64),
	}
	if st == nil {
		return summary
	}

	summary.TotalRecords = len(st.Stages)
	periods := make(map[int]bool)
	for _, r := range st.Stages {
		periods[r.Period] = true
		summary.ChangeByStage[r.Stage] += r.Change()
		if drop := -r.Change(); drop > summary.LargestExit {
			summary.LargestExit = drop
			summary.LargestExitAt = r
		}
	}
	summary.Periods = len(periods)

	return summary
}
