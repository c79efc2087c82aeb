// Package sim provides the discrete-time Markov cohort engine for the
// opioid use disorder model.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - inputs.go: Inputs, AxisTransition and the per-period series a run consumes
//   - transitions.go: the five stages applied each period (migration,
//     intervention, behavior, overdose, mortality)
//   - markov.go: the run loop that steps the state from period 0 to the horizon
//     and records a History
//
// # Architecture
//
// The state is a matrix.Matrix3d indexed by intervention, behavior and
// demographic. Supporting code lives in sub-packages:
//   - sim/matrix/: the 3-axis matrix and its per-period ledger (TimedMatrix3d)
//   - sim/inputs/: YAML configuration and CSV table loading into Inputs
//   - sim/accounting/: cost, utility and life-year evaluation with discounting
//   - sim/trace/: optional per-stage step records
//   - sim/output/: CSV/YAML writers and the SQLite result store
//   - sim/batch/: concurrent execution of numbered input sets
//
// # Key Types
//
//   - Markov: runs one set of Inputs; safe to Run repeatedly
//   - History: the state and event ledgers, one entry per period
//   - HistoryStamp: one period's state and events
//
// Engine code never logs through the global logrus logger; callers pass a
// logrus.FieldLogger to NewMarkov.
package sim
