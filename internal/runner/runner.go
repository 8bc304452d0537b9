package runner

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"stageq/internal/metrics"
	"stageq/internal/stats"
)

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	State    RunState      `json:"state"`
	Stage    int           `json:"stage"`
	Elapsed  time.Duration `json:"elapsed"`
	Duration time.Duration `json:"duration"`

	TargetVUs  int `json:"target_vus"`
	ActiveVUs  int `json:"active_vus"`
	RunningVUs int `json:"running_vus"`

	Iterations  uint64 `json:"iterations"`
	Errors      uint64 `json:"request_errors"`
	Interrupted uint64 `json:"interrupted"`
	Bytes       uint64 `json:"bytes"`

	CheckPasses uint64               `json:"check_passes"`
	CheckFails  uint64               `json:"check_fails"`
	Checks      []stats.CheckSummary `json:"checks"`

	// Pre-calculated percentiles for the UI (cheap copy)
	P50Ms float64 `json:"p50_ms"`
	P90Ms float64 `json:"p90_ms"`
	P99Ms float64 `json:"p99_ms"`
	MaxMs float64 `json:"max_ms"`
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithUpdates(ch StatsUpdateChan) Option {
	return func(r *Runner) { r.Updates = ch }
}

// WithResults keeps every IterationResult in memory for export.
func WithResults(keep bool) Option {
	return func(r *Runner) { r.keepResults = keep }
}

// Runner drives one run: the schedule sets the VU target each tick and the
// runner spawns or retires VUs to match.
type Runner struct {
	Cfg      Config
	Schedule *Schedule
	Stats    *stats.Stats
	Checks   *stats.Checks
	Client   *http.Client

	// Event Channel
	Updates StatsUpdateChan

	payload     *Payload
	checks      []Check
	logger      *zap.Logger
	metrics     *metrics.Metrics
	keepResults bool

	started atomic.Bool

	mu      sync.Mutex
	users   map[int]*VirtualUser
	nextID  int
	peak    int
	results []IterationResult
	wg      sync.WaitGroup

	progMu    sync.RWMutex
	state     RunState
	stage     int
	target    int
	startedAt time.Time
}

// NewRunner validates cfg and prepares a runner. Every error it returns is
// a *ConfigError.
func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sched, err := NewSchedule(cfg.StartUsers, cfg.Stages)
	if err != nil {
		return nil, err
	}
	checks, err := CompileChecks(cfg.Checks)
	if err != nil {
		return nil, err
	}
	payload, err := CompilePayload(NewTemplateEngine(), cfg.Payload)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(checks))
	for i, c := range checks {
		names[i] = c.Name
	}

	r := &Runner{
		Cfg:         cfg,
		Schedule:    sched,
		Stats:       stats.NewStats(),
		Checks:      stats.NewChecks(names...),
		Client:      newHTTPClient(cfg),
		payload:     payload,
		checks:      checks,
		logger:      zap.NewNop(),
		keepResults: cfg.OutPrefix != "",
		users:       make(map[int]*VirtualUser),
		stage:       -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Updates == nil {
		// Avoid nil panics if not provided
		r.Updates = make(StatsUpdateChan, 10)
	}
	return r, nil
}

func newHTTPClient(cfg Config) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.ForceAttemptHTTP2 = true
	t.DialContext = (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	if cfg.Insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: t,
	}
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

func (r *Runner) sendUpdate() {
	s := r.Snapshot()

	// Non-blocking send
	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// Snapshot returns the live state of the run.
func (r *Runner) Snapshot() StatsSnapshot {
	r.progMu.RLock()
	state, stage, target, startedAt := r.state, r.stage, r.target, r.startedAt
	r.progMu.RUnlock()

	var elapsed time.Duration
	if !startedAt.IsZero() {
		elapsed = time.Since(startedAt)
	}
	checks := r.Checks.Summary()
	var passes, fails uint64
	for _, c := range checks {
		passes += c.Passes
		fails += c.Fails
	}

	return StatsSnapshot{
		State:       state,
		Stage:       stage,
		Elapsed:     elapsed,
		Duration:    r.Schedule.Duration(),
		TargetVUs:   target,
		ActiveVUs:   r.ActiveUsers(),
		RunningVUs:  r.RunningUsers(),
		Iterations:  atomic.LoadUint64(&r.Stats.Iterations),
		Errors:      atomic.LoadUint64(&r.Stats.Errors),
		Interrupted: atomic.LoadUint64(&r.Stats.Interrupted),
		Bytes:       atomic.LoadUint64(&r.Stats.Bytes),
		CheckPasses: passes,
		CheckFails:  fails,
		Checks:      checks,
		P50Ms:       r.Stats.GetP50(),
		P90Ms:       r.Stats.GetP90(),
		P99Ms:       r.Stats.GetP99(),
		MaxMs:       r.Stats.MaxMs(),
	}
}

// Run executes the whole stage schedule and returns the final summary.
// Cancelling ctx aborts in-flight requests; the summary is still returned
// with Aborted set. A Runner can run once.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if !r.started.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("runner already started")
	}

	iterCtx, iterCancel := context.WithCancel(ctx)
	defer iterCancel()

	start := time.Now()
	r.progMu.Lock()
	r.startedAt = start
	r.progMu.Unlock()

	// Start Tick Loop for UI
	tickCtx, stopTicks := context.WithCancel(context.Background())
	defer stopTicks()
	r.StartTickLoop(tickCtx, 200*time.Millisecond)

	r.logger.Info("run started",
		zap.String("url", r.Cfg.URL),
		zap.Int("stages", len(r.Cfg.Stages)),
		zap.Duration("duration", r.Schedule.Duration()))

	ticker := time.NewTicker(r.Cfg.TickInterval)
	defer ticker.Stop()

	aborted := false
	for {
		elapsed := time.Since(start)
		target, done := r.Schedule.Target(elapsed)
		state, stage := r.Schedule.Phase(elapsed)
		if done {
			break
		}
		r.setProgress(state, stage, target)
		r.resize(iterCtx, target)

		select {
		case <-ctx.Done():
			aborted = true
		case <-ticker.C:
		}
		if aborted {
			r.logger.Warn("run aborted", zap.Duration("elapsed", time.Since(start)))
			break
		}
	}

	// no new iterations from here on
	r.resize(iterCtx, 0)
	r.drain(iterCancel)
	r.setProgress(StateCompleted, len(r.Cfg.Stages), 0)

	sum := r.summary(start, time.Now(), aborted)
	r.sendUpdate()
	r.logger.Info("run completed",
		zap.Uint64("iterations", sum.Iterations),
		zap.Uint64("request_errors", sum.Errors),
		zap.Bool("aborted", aborted))
	return sum, nil
}

// drain waits for retired VUs to finish their in-flight iteration. With a
// GracefulStop the wait is bounded; whatever is still running after it is
// cancelled and counted as interrupted.
func (r *Runner) drain(cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	if r.Cfg.GracefulStop <= 0 {
		<-done
		return
	}

	t := time.NewTimer(r.Cfg.GracefulStop)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		r.logger.Warn("graceful stop expired, interrupting in-flight iterations",
			zap.Int("vus", r.RunningUsers()))
		cancel()
		<-done
	}
}

func (r *Runner) setProgress(state RunState, stage, target int) {
	r.progMu.Lock()
	changed := state != r.state || stage != r.stage
	r.state, r.stage, r.target = state, stage, target
	r.progMu.Unlock()

	r.metrics.SetTargetVUs(target)
	if changed {
		r.logger.Info("stage transition",
			zap.Stringer("state", state),
			zap.Int("stage", stage),
			zap.Int("target_vus", target))
	}
}

func (r *Runner) currentStage() int {
	r.progMu.RLock()
	defer r.progMu.RUnlock()
	return r.stage
}

// State returns the current run state.
func (r *Runner) State() RunState {
	r.progMu.RLock()
	defer r.progMu.RUnlock()
	return r.state
}

// resize spawns or retires VUs until exactly target are active. Retired
// VUs leave the arena when their goroutine exits.
func (r *Runner) resize(ctx context.Context, target int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]int, 0, len(r.users))
	for id, vu := range r.users {
		if !vu.retiring() {
			active = append(active, id)
		}
	}

	switch n := len(active); {
	case n < target:
		for i := n; i < target; i++ {
			r.spawnLocked(ctx)
		}
	case n > target:
		// newest first, the way a ramp-down unwinds a ramp-up
		sort.Sort(sort.Reverse(sort.IntSlice(active)))
		for _, id := range active[:n-target] {
			r.users[id].Retire()
			r.logger.Debug("vu retired", zap.Int("vu", id))
		}
	}

	if target > r.peak {
		r.peak = target
	}
	r.metrics.SetActiveVUs(target)
}

func (r *Runner) spawnLocked(ctx context.Context) {
	id := r.nextID
	r.nextID++
	vu := newVirtualUser(id, r)
	r.users[id] = vu
	r.logger.Debug("vu spawned", zap.Int("vu", id))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.remove(id)
		vu.loop(ctx)
		r.logger.Debug("vu stopped", zap.Int("vu", id), zap.Uint64("iterations", vu.Iterations()))
	}()
}

func (r *Runner) remove(id int) {
	r.mu.Lock()
	delete(r.users, id)
	r.mu.Unlock()
}

// ActiveUsers counts VUs that are not retiring.
func (r *Runner) ActiveUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, vu := range r.users {
		if !vu.retiring() {
			n++
		}
	}
	return n
}

// RunningUsers counts every VU goroutine still alive, retiring or not.
func (r *Runner) RunningUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *Runner) keep(res IterationResult) {
	if !r.keepResults {
		return
	}
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

// Results returns a copy of the retained iteration results.
func (r *Runner) Results() []IterationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]IterationResult, len(r.results))
	copy(out, r.results)
	return out
}

func (r *Runner) summary(start, end time.Time, aborted bool) *Summary {
	r.mu.Lock()
	peak := r.peak
	r.mu.Unlock()

	return &Summary{
		StartedAt:   start,
		FinishedAt:  end,
		Iterations:  atomic.LoadUint64(&r.Stats.Iterations),
		Interrupted: atomic.LoadUint64(&r.Stats.Interrupted),
		Errors:      atomic.LoadUint64(&r.Stats.Errors),
		Bytes:       atomic.LoadUint64(&r.Stats.Bytes),
		PeakUsers:   peak,
		ErrorRate:   r.Stats.ErrorRate(),
		AvgMs:       r.Stats.AvgMs(),
		P50Ms:       r.Stats.GetP50(),
		P90Ms:       r.Stats.GetP90(),
		P95Ms:       r.Stats.GetP95(),
		P99Ms:       r.Stats.GetP99(),
		MaxMs:       r.Stats.MaxMs(),
		Checks:      r.Checks.Summary(),
		Aborted:     aborted,
	}
}
