package stats

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksConcurrentRecordLosesNothing(t *testing.T) {
	const (
		callers   = 64
		perCaller = 2000
	)
	c := NewChecks("status is 200", "response is not empty")

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				c.Record("status is 200", j%2 == 0)
				c.Record("response is not empty", true)
				// names first seen under contention
				c.Record(fmt.Sprintf("late-%d", j%3), false)
			}
		}(i)
	}
	wg.Wait()

	sum := c.Summary()
	require.Len(t, sum, 5)
	assert.Equal(t, "status is 200", sum[0].Name)
	assert.Equal(t, "response is not empty", sum[1].Name)

	assert.Equal(t, uint64(callers*perCaller), sum[0].Total())
	assert.Equal(t, uint64(callers*perCaller/2), sum[0].Passes)
	assert.Equal(t, uint64(callers*perCaller), sum[1].Passes)
	assert.Zero(t, sum[1].Fails)

	var late uint64
	for _, s := range sum[2:] {
		late += s.Fails
	}
	assert.Equal(t, uint64(callers*perCaller), late)

	passes, fails := c.Totals()
	assert.Equal(t, uint64(callers*perCaller*3), passes+fails)
}

func TestCheckSummaryPassRate(t *testing.T) {
	assert.Zero(t, CheckSummary{}.PassRate())
	assert.InDelta(t, 0.75, CheckSummary{Passes: 3, Fails: 1}.PassRate(), 1e-9)
}

func TestChecksRecordAll(t *testing.T) {
	c := NewChecks()
	c.RecordAll([]CheckResult{{Name: "a", Passed: true}, {Name: "b", Passed: false}})
	c.RecordAll([]CheckResult{{Name: "a", Passed: false}})

	sum := c.Summary()
	require.Len(t, sum, 2)
	assert.Equal(t, CheckSummary{Name: "a", Passes: 1, Fails: 1}, sum[0])
	assert.Equal(t, CheckSummary{Name: "b", Fails: 1}, sum[1])

	p, f := c.Totals()
	assert.Equal(t, uint64(1), p)
	assert.Equal(t, uint64(2), f)
}
