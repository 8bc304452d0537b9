package runner

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"stageq/internal/stats"
)

type VUState int32

const (
	VUStateIdle VUState = iota
	VUStateRunning
	VUStateStopping
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VirtualUser is one simulated client. It owns nothing across iterations
// except its ID and iteration counter.
type VirtualUser struct {
	ID int

	r         *Runner
	state     atomic.Int32
	iteration atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

func newVirtualUser(id int, r *Runner) *VirtualUser {
	return &VirtualUser{ID: id, r: r, stop: make(chan struct{})}
}

func (vu *VirtualUser) State() VUState {
	return VUState(vu.state.Load())
}

func (vu *VirtualUser) Iterations() uint64 {
	return vu.iteration.Load()
}

// Retire asks the VU to stop after its in-flight iteration. A pending
// sleep is cut short.
func (vu *VirtualUser) Retire() {
	vu.stopOnce.Do(func() {
		vu.state.Store(int32(VUStateStopping))
		close(vu.stop)
	})
}

func (vu *VirtualUser) retiring() bool {
	select {
	case <-vu.stop:
		return true
	default:
		return false
	}
}

// loop runs iterations back to back until retired or ctx is done.
func (vu *VirtualUser) loop(ctx context.Context) {
	defer vu.state.Store(int32(VUStateStopped))

	sleep := vu.r.Cfg.Sleep
	for {
		if vu.retiring() || ctx.Err() != nil {
			return
		}

		vu.RunIteration(ctx)

		if sleep <= 0 {
			continue
		}
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-vu.stop:
			t.Stop()
			return
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

// RunIteration builds the payload, sends it, evaluates checks and records
// the outcome. Failures never escape: they become failed checks.
func (vu *VirtualUser) RunIteration(ctx context.Context) IterationResult {
	vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning))
	defer vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))

	r := vu.r
	n := vu.iteration.Add(1)
	res := IterationResult{
		TimeStamp: time.Now(),
		UserID:    vu.ID,
		Iteration: n,
		Stage:     r.currentStage(),
	}

	resp := vu.send(ctx)
	res.Latency = time.Since(res.TimeStamp)

	if resp.Err != nil && ctx.Err() != nil {
		res.Interrupted = true
		res.Err = resp.Err.Error()
		r.Stats.AddInterrupted()
		r.logger.Debug("iteration interrupted", zap.Int("vu", vu.ID), zap.Uint64("iteration", n))
		r.keep(res)
		return res
	}

	res.Status = resp.Status
	res.Bytes = int64(len(resp.Body))
	if resp.Err != nil {
		res.Err = resp.Err.Error()
		r.logger.Debug("request failed",
			zap.Int("vu", vu.ID),
			zap.Uint64("iteration", n),
			zap.Duration("latency", res.Latency),
			zap.Error(resp.Err))
	}

	res.Checks = make([]stats.CheckResult, 0, len(r.checks))
	for _, c := range r.checks {
		cr := c.Eval(resp)
		res.Checks = append(res.Checks, cr)
		r.metrics.ObserveCheck(cr.Name, cr.Passed)
	}
	r.Checks.RecordAll(res.Checks)

	r.Stats.AddIteration(resp.Err != nil, res.Bytes, res.Latency)
	r.metrics.ObserveIteration(res.Latency, resp.Err != nil)
	r.keep(res)
	return res
}

func (vu *VirtualUser) send(ctx context.Context) Response {
	r := vu.r
	body, err := r.payload.Render(vu.ID, vu.iteration.Load())
	if err != nil {
		return Response{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Response{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.Cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return Response{Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	// a body cut off by the timeout counts as no response
	if err != nil {
		return Response{Status: resp.StatusCode, Err: err}
	}
	return Response{Status: resp.StatusCode, Body: b}
}
