package runner

import (
	"time"

	"stageq/internal/stats"
)

// Stage is one ramp/hold segment: concurrency moves linearly to Target over Duration.
type Stage struct {
	Duration time.Duration `json:"duration" mapstructure:"duration"`
	Target   int           `json:"target" mapstructure:"target"`
}

type Config struct {
	URL     string            `json:"url"`
	Payload string            `json:"payload"`
	Headers map[string]string `json:"headers,omitempty"`

	Stages     []Stage `json:"stages"`
	StartUsers int     `json:"start_users"`

	Sleep          time.Duration `json:"sleep"`
	RequestTimeout time.Duration `json:"request_timeout"`
	GracefulStop   time.Duration `json:"graceful_stop"`
	TickInterval   time.Duration `json:"tick"`

	Checks []CheckSpec `json:"checks,omitempty"`

	OutPrefix string `json:"out,omitempty"`
	Insecure  bool   `json:"insecure,omitempty"`
}

const (
	DefaultSleep          = 30 * time.Second
	DefaultRequestTimeout = 60 * time.Second
	DefaultTickInterval   = time.Second
)

// WithDefaults fills the request timeout, tick and checks when unset.
// Sleep is left alone: zero means back-to-back iterations.
func (c Config) WithDefaults() Config {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
	if len(c.Checks) == 0 {
		c.Checks = DefaultChecks()
	}
	return c
}

// TotalDuration is the sum of all stage durations.
func (c Config) TotalDuration() time.Duration {
	var d time.Duration
	for _, s := range c.Stages {
		d += s.Duration
	}
	return d
}

// IterationResult is one request/check cycle of a virtual user.
type IterationResult struct {
	TimeStamp   time.Time           `json:"timestamp"`
	UserID      int                 `json:"vu"`
	Iteration   uint64              `json:"iteration"`
	Latency     time.Duration       `json:"latency"`
	Status      int                 `json:"status"`
	Bytes       int64               `json:"bytes"`
	Err         string              `json:"error,omitempty"`
	Checks      []stats.CheckResult `json:"checks"`
	Interrupted bool                `json:"interrupted,omitempty"`
	Stage       int                 `json:"stage"`
}

// Passed reports whether every check of the iteration passed.
func (r IterationResult) Passed() bool {
	if r.Interrupted {
		return false
	}
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Summary is the end-of-run report.
type Summary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Iterations  uint64 `json:"iterations"`
	Interrupted uint64 `json:"interrupted"`
	Errors      uint64 `json:"request_errors"`
	Bytes       uint64 `json:"bytes"`
	PeakUsers   int    `json:"peak_vus"`

	ErrorRate float64 `json:"request_error_rate"`

	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P90Ms float64 `json:"p90_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
	MaxMs float64 `json:"max_ms"`

	Checks  []stats.CheckSummary `json:"checks"`
	Aborted bool                 `json:"aborted"`
}

func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
