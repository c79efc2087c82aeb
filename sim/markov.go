package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/respond-sim/respond/sim/matrix"
	"github.com/respond-sim/respond/sim/trace"
)

// Markov runs one cohort projection. It holds only its inputs, so Run can be
// called repeatedly and each call yields an independent History.
type Markov struct {
	inputs *Inputs
	logger logrus.FieldLogger
	trace  *trace.StepTrace
}

// NewMarkov validates in with CheckVectorLengths and returns a runner.
// A nil logger discards output.
func NewMarkov(in *Inputs, logger logrus.FieldLogger) (*Markov, error) {
	logger = orDiscard(logger)
	if err := CheckVectorLengths(in, logger); err != nil {
		logger.Errorf("input check failed: %v", err)
		return nil, err
	}
	return &Markov{inputs: in, logger: logger}, nil
}

// WithTrace attaches a step trace that receives the population total before
// and after every stage. Tracing is skipped when st is nil or its level is none.
func (m *Markov) WithTrace(st *trace.StepTrace) *Markov {
	m.trace = st
	return m
}

// Inputs returns the validated inputs the run consumes.
func (m *Markov) Inputs() *Inputs { return m.inputs }

// Run simulates periods 1..N. A failure in any period aborts the run and no
// partial history is returned.
func (m *Markov) Run() (*History, error) {
	in := m.inputs
	m.logger.Infof("run started: %d periods, shape %s", in.Horizon, in.Shape)

	h, err := m.init()
	if err != nil {
		return nil, err
	}
	state := in.InitialCohort
	for t := 1; t <= in.Horizon; t++ {
		hs, err := m.Step(t, state)
		if err != nil {
			m.logger.Errorf("[period %04d] step failed: %v", t, err)
			return nil, fmt.Errorf("period %d: %w", t, err)
		}
		if h, err = h.appended(hs); err != nil {
			return nil, err
		}
		state = hs.State
	}
	return m.finalize(h), nil
}

func (m *Markov) init() (History, error) {
	zero, err := matrix.NewMatrix3d(m.inputs.Shape)
	if err != nil {
		return History{}, err
	}
	return History{}.appended(HistoryStamp{
		Period:                 0,
		State:                  m.inputs.InitialCohort,
		Entering:               zero,
		InterventionAdmissions: zero,
		Overdoses:              zero,
		FatalOverdoses:         zero,
		Deaths:                 zero,
	})
}

func (m *Markov) finalize(h History) *History {
	final, _ := h.Final()
	m.logger.Infof("run complete: %d periods, final population %.4f", h.Horizon(), final.Sum())
	return &h
}

// Step applies the transition chain to state and returns the record of
// period t (t >= 1). Stages whose inputs are absent pass state through.
func (m *Markov) Step(t int, state matrix.Matrix3d) (HistoryStamp, error) {
	in := m.inputs
	if t < 1 || t > in.Horizon {
		return HistoryStamp{}, fmt.Errorf("period %d outside 1..%d: %w", t, in.Horizon, ErrConfiguration)
	}
	zero, err := matrix.NewMatrix3d(in.Shape)
	if err != nil {
		return HistoryStamp{}, err
	}
	hs := HistoryStamp{
		Period:                 t,
		Entering:               zero,
		InterventionAdmissions: zero,
		Overdoses:              zero,
		FatalOverdoses:         zero,
		Deaths:                 zero,
	}
	idx := t - 1
	for _, stage := range Stages() {
		before := state.Sum()
		switch stage {
		case StageMigration:
			if len(in.Entering) == 0 {
				continue
			}
			hs.Entering = in.Entering[idx]
			state, err = Migrate(state, hs.Entering)
		case StageIntervention:
			if len(in.Interventions) == 0 {
				continue
			}
			state, hs.InterventionAdmissions, err = Intervene(state, InterventionParams{
				Transition: in.Interventions[idx],
				InitEffect: in.InitEffect,
			})
		case StageBehavior:
			if len(in.Behaviors) == 0 {
				continue
			}
			state, err = Behave(state, in.Behaviors[idx])
		case StageOverdose:
			if len(in.Overdoses) == 0 {
				continue
			}
			state, hs.Overdoses, hs.FatalOverdoses, err = Overdose(state, in.Overdoses[idx], in.FatalOverdoses[idx])
		case StageMortality:
			if len(in.Mortality) == 0 {
				continue
			}
			state, hs.Deaths, err = Die(state, in.Mortality[idx])
		}
		if err != nil {
			return HistoryStamp{}, fmt.Errorf("%s: %w", stage, err)
		}
		after := state.Sum()
		m.logger.Debugf("[period %04d] %-12s population %.6f -> %.6f", t, stage, before, after)
		if m.trace != nil && m.trace.Enabled() {
			m.trace.RecordStage(trace.StageRecord{Period: t, Stage: stage.String(), Before: before, After: after})
		}
	}
	hs.State = state
	return hs, nil
}
