package stats

import (
	"sync"
	"sync/atomic"
)

// CheckResult is the outcome of one named assertion in one iteration.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// CheckSummary aggregates every outcome recorded for a check name.
type CheckSummary struct {
	Name   string `json:"name"`
	Passes uint64 `json:"passes"`
	Fails  uint64 `json:"fails"`
}

func (c CheckSummary) Total() uint64 {
	return c.Passes + c.Fails
}

// PassRate is in [0,1]; a check that never ran has rate 0.
func (c CheckSummary) PassRate() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Passes) / float64(total)
}

type checkCounter struct {
	passes atomic.Uint64
	fails  atomic.Uint64
}

// Checks counts check outcomes from many virtual users at once.
// The name index is guarded by a RWMutex; counters themselves are atomic,
// so Record on a known name never takes the write lock.
type Checks struct {
	mu       sync.RWMutex
	order    []string
	counters map[string]*checkCounter
}

func NewChecks(names ...string) *Checks {
	c := &Checks{counters: make(map[string]*checkCounter)}
	for _, n := range names {
		c.counter(n)
	}
	return c
}

func (c *Checks) Record(name string, passed bool) {
	ctr := c.counter(name)
	if passed {
		ctr.passes.Add(1)
	} else {
		ctr.fails.Add(1)
	}
}

func (c *Checks) RecordAll(results []CheckResult) {
	for _, r := range results {
		c.Record(r.Name, r.Passed)
	}
}

func (c *Checks) counter(name string) *checkCounter {
	c.mu.RLock()
	ctr, ok := c.counters[name]
	c.mu.RUnlock()
	if ok {
		return ctr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok = c.counters[name]; ok {
		return ctr
	}
	ctr = &checkCounter{}
	c.counters[name] = ctr
	c.order = append(c.order, name)
	return ctr
}

// Summary returns per-check counts in registration order.
func (c *Checks) Summary() []CheckSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]CheckSummary, 0, len(c.order))
	for _, name := range c.order {
		ctr := c.counters[name]
		out = append(out, CheckSummary{
			Name:   name,
			Passes: ctr.passes.Load(),
			Fails:  ctr.fails.Load(),
		})
	}
	return out
}

// Totals sums passes and fails over all checks.
func (c *Checks) Totals() (passes, fails uint64) {
	for _, s := range c.Summary() {
		passes += s.Passes
		fails += s.Fails
	}
	return passes, fails
}
