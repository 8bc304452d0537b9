package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stageq/internal/runner"
	"stageq/internal/stats"
)

var stages = []runner.Stage{
	{Duration: 30 * time.Second, Target: 10},
	{Duration: 3 * time.Minute, Target: 10},
	{Duration: 30 * time.Second, Target: 0},
}

func TestPhase(t *testing.T) {
	m := NewModel(stages)

	m.Stats = runner.StatsSnapshot{State: runner.StateRamping, Stage: 0, Elapsed: 10 * time.Second, Duration: 4 * time.Minute}
	assert.Equal(t, "ramping · stage 1/3 → 10 VUs", m.Phase())

	m.Stats = runner.StatsSnapshot{State: runner.StateHolding, Stage: 2, Elapsed: 4 * time.Minute, Duration: 4 * time.Minute, RunningVUs: 2}
	assert.Equal(t, "draining · 2 in flight", m.Phase())

	m.Stats = runner.StatsSnapshot{State: runner.StateCompleted, Stage: 3}
	assert.Equal(t, "completed", m.Phase())
	assert.Equal(t, 1.0, m.Percent())

	m.Stats = runner.StatsSnapshot{State: runner.StatePending, Stage: -1, Duration: time.Minute}
	assert.Equal(t, "pending", m.Phase())
	assert.Zero(t, m.Percent())
}

func TestUpdateFromSnapshot(t *testing.T) {
	m := NewModel(stages)
	m.LastUpdate = time.Now().Add(-time.Second)

	m, _ = m.Update(runner.StatsSnapshot{
		State:      runner.StateHolding,
		Stage:      1,
		Elapsed:    time.Minute,
		Duration:   4 * time.Minute,
		ActiveVUs:  10,
		TargetVUs:  10,
		Iterations: 20,
		P90Ms:      350,
		Checks:     []stats.CheckSummary{{Name: "status is 200", Passes: 19, Fails: 1}},
	})

	assert.Equal(t, uint64(20), m.LastIters)
	assert.Len(t, m.IterLine.Data, 1)
	assert.InDelta(t, 20, m.IterLine.Last(), 5)
	assert.Equal(t, 350.0, m.LatencyLine.Last())
	assert.InDelta(t, 0.25, m.Percent(), 0.001)

	view := m.View()
	assert.Contains(t, view, "VUS: 10/10")
	assert.Contains(t, view, "status is 200")
	assert.Contains(t, view, "holding · stage 2/3")
}
