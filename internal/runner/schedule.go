package runner

import (
	"fmt"
	"math"
	"time"
)

// RunState is the lifecycle of a run: Pending → Ramping/Holding per stage → Completed.
type RunState int

const (
	StatePending RunState = iota
	StateRamping
	StateHolding
	StateCompleted
)

func (s RunState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRamping:
		return "ramping"
	case StateHolding:
		return "holding"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RunState) UnmarshalText(text []byte) error {
	for _, st := range []RunState{StatePending, StateRamping, StateHolding, StateCompleted} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown run state %q", text)
}

// Schedule turns a stage list into a target VU count over elapsed time.
type Schedule struct {
	start  int
	stages []Stage
	total  time.Duration
}

func NewSchedule(startUsers int, stages []Stage) (*Schedule, error) {
	if len(stages) == 0 {
		return nil, configErr("stages", "at least one stage has to be specified")
	}
	if startUsers < 0 {
		return nil, configErr("start_users", "must not be negative, got %d", startUsers)
	}

	s := &Schedule{start: startUsers, stages: make([]Stage, len(stages))}
	for i, st := range stages {
		if st.Duration < 0 {
			return nil, configErr("stages", "stage %d has a negative duration %s", i+1, st.Duration)
		}
		if st.Target < 0 {
			return nil, configErr("stages", "stage %d has a negative target %d", i+1, st.Target)
		}
		s.stages[i] = st
		s.total += st.Duration
	}
	return s, nil
}

// Duration is the length of the whole run.
func (s *Schedule) Duration() time.Duration {
	return s.total
}

func (s *Schedule) Stages() []Stage {
	out := make([]Stage, len(s.stages))
	copy(out, s.stages)
	return out
}

// Target returns the VU count wanted at elapsed and whether the last stage has ended.
func (s *Schedule) Target(elapsed time.Duration) (int, bool) {
	users, _, _, done := s.locate(elapsed)
	return users, done
}

// Phase returns the run state at elapsed and the index of the active stage.
// The index is -1 before the start and len(stages) after the end.
func (s *Schedule) Phase(elapsed time.Duration) (RunState, int) {
	if elapsed < 0 {
		return StatePending, -1
	}
	_, from, idx, done := s.locate(elapsed)
	if done {
		return StateCompleted, len(s.stages)
	}
	if s.stages[idx].Target == from {
		return StateHolding, idx
	}
	return StateRamping, idx
}

// locate walks the cumulative stage boundaries. Stage i covers
// [start_i, start_i+duration_i); a zero-duration stage covers nothing, so
// the next stage starts from its target.
func (s *Schedule) locate(elapsed time.Duration) (users, from, idx int, done bool) {
	if elapsed < 0 {
		return s.start, s.start, 0, false
	}

	from = s.start
	var stageStart time.Duration
	for i, st := range s.stages {
		end := stageStart + st.Duration
		if elapsed < end {
			progress := float64(elapsed-stageStart) / float64(st.Duration)
			users = from + int(math.Round(float64(st.Target-from)*progress))
			return users, from, i, false
		}
		from = st.Target
		stageStart = end
	}
	return from, from, len(s.stages) - 1, true
}
