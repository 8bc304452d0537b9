package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampHoldRamp(t *testing.T) *Schedule {
	t.Helper()
	s, err := NewSchedule(0, []Stage{
		{Duration: 30 * time.Second, Target: 10},
		{Duration: 3 * time.Minute, Target: 10},
		{Duration: 30 * time.Second, Target: 0},
	})
	require.NoError(t, err)
	return s
}

func TestNewScheduleValidation(t *testing.T) {
	t.Run("no stages", func(t *testing.T) {
		_, err := NewSchedule(0, nil)
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
		assert.Contains(t, err.Error(), "at least one stage")
	})
	t.Run("negative duration", func(t *testing.T) {
		_, err := NewSchedule(0, []Stage{{Duration: -time.Second, Target: 1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stage 1 has a negative duration")
	})
	t.Run("negative target", func(t *testing.T) {
		_, err := NewSchedule(0, []Stage{{Duration: time.Second, Target: 1}, {Duration: time.Second, Target: -2}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stage 2 has a negative target")
	})
	t.Run("negative start", func(t *testing.T) {
		_, err := NewSchedule(-1, []Stage{{Duration: time.Second, Target: 1}})
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})
}

func TestScheduleRampHoldRamp(t *testing.T) {
	s := rampHoldRamp(t)
	assert.Equal(t, 4*time.Minute, s.Duration())

	tests := []struct {
		at    time.Duration
		users int
		state RunState
		stage int
		done  bool
	}{
		{0, 0, StateRamping, 0, false},
		{15 * time.Second, 5, StateRamping, 0, false},
		{30 * time.Second, 10, StateHolding, 1, false},
		{209 * time.Second, 10, StateHolding, 1, false},
		{210 * time.Second, 10, StateRamping, 2, false},
		{237 * time.Second, 1, StateRamping, 2, false},
		{240 * time.Second, 0, StateCompleted, 3, true},
		{time.Hour, 0, StateCompleted, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.at.String(), func(t *testing.T) {
			users, done := s.Target(tt.at)
			assert.Equal(t, tt.users, users)
			assert.Equal(t, tt.done, done)

			state, stage := s.Phase(tt.at)
			assert.Equal(t, tt.state, state)
			assert.Equal(t, tt.stage, stage)
		})
	}
}

func TestScheduleMonotonicWithinStage(t *testing.T) {
	s, err := NewSchedule(3, []Stage{
		{Duration: 10 * time.Second, Target: 50},
		{Duration: 7 * time.Second, Target: 2},
		{Duration: 5 * time.Second, Target: 2},
		{Duration: 13 * time.Second, Target: 9},
	})
	require.NoError(t, err)

	var start time.Duration
	from := 3
	for i, st := range s.Stages() {
		prev := from
		for at := start; at < start+st.Duration; at += 10 * time.Millisecond {
			users, _ := s.Target(at)
			if st.Target >= from {
				require.GreaterOrEqual(t, users, prev, "stage %d at %s", i, at)
			} else {
				require.LessOrEqual(t, users, prev, "stage %d at %s", i, at)
			}
			prev = users
		}
		end := start + st.Duration
		users, _ := s.Target(end)
		assert.Equal(t, st.Target, users, "stage %d must end on its target", i)
		from = st.Target
		start = end
	}
}

func TestScheduleZeroDurationSnaps(t *testing.T) {
	s, err := NewSchedule(5, []Stage{
		{Duration: time.Second, Target: 5},
		{Duration: 0, Target: 20},
		{Duration: time.Second, Target: 20},
	})
	require.NoError(t, err)

	users, _ := s.Target(999 * time.Millisecond)
	assert.Equal(t, 5, users)

	users, _ = s.Target(time.Second)
	assert.Equal(t, 20, users, "zero-duration stage applies at its start")

	state, stage := s.Phase(time.Second)
	assert.Equal(t, StateHolding, state)
	assert.Equal(t, 2, stage)
}

func TestScheduleSingleZeroStageCompletesImmediately(t *testing.T) {
	s, err := NewSchedule(0, []Stage{{Duration: 0, Target: 4}})
	require.NoError(t, err)

	users, done := s.Target(0)
	assert.True(t, done)
	assert.Equal(t, 4, users)
}

func TestSchedulePending(t *testing.T) {
	s := rampHoldRamp(t)
	state, stage := s.Phase(-time.Second)
	assert.Equal(t, StatePending, state)
	assert.Equal(t, -1, stage)
}

func TestRunStateString(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "ramping", StateRamping.String())
	assert.Equal(t, "holding", StateHolding.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "unknown", RunState(42).String())
}

func TestRunStateText(t *testing.T) {
	for _, st := range []RunState{StatePending, StateRamping, StateHolding, StateCompleted} {
		b, err := st.MarshalText()
		require.NoError(t, err)
		var got RunState
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, st, got)
	}
	var bad RunState
	assert.Error(t, bad.UnmarshalText([]byte("sprinting")))
}
