package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds real-time aggregated metrics
type Stats struct {
	Iterations  uint64
	Errors      uint64 // transport errors and timeouts
	Interrupted uint64
	Bytes       uint64

	// Request latency (microseconds)
	Latency *SafeHistogram
}

func NewStats() *Stats {
	return &Stats{
		Latency: NewSafeHistogram(),
	}
}

// AddIteration records a finished request. failed means no response was received.
func (s *Stats) AddIteration(failed bool, bytes int64, latency time.Duration) {
	atomic.AddUint64(&s.Iterations, 1)
	if failed {
		atomic.AddUint64(&s.Errors, 1)
	}
	if bytes > 0 {
		atomic.AddUint64(&s.Bytes, uint64(bytes))
	}
	s.Latency.Record(latency)
}

// AddInterrupted counts an iteration cut off by the end of the run.
func (s *Stats) AddInterrupted() {
	atomic.AddUint64(&s.Interrupted, 1)
}

func (s *Stats) ErrorRate() float64 {
	its := atomic.LoadUint64(&s.Iterations)
	if its == 0 {
		return 0
	}
	errs := atomic.LoadUint64(&s.Errors)
	return (float64(errs) / float64(its)) * 100
}

func (s *Stats) percentileMs(q float64) float64 {
	if s.Latency.TotalCount() == 0 {
		return 0
	}
	return float64(s.Latency.ValueAtQuantile(q)) / 1000.0
}

func (s *Stats) GetP50() float64 { return s.percentileMs(50) }
func (s *Stats) GetP90() float64 { return s.percentileMs(90) }
func (s *Stats) GetP95() float64 { return s.percentileMs(95) }
func (s *Stats) GetP99() float64 { return s.percentileMs(99) }

// AvgMs is the mean request latency in milliseconds.
func (s *Stats) AvgMs() float64 {
	return s.Latency.Mean() / 1000.0
}

// MaxMs returns the slowest recorded request in milliseconds.
func (s *Stats) MaxMs() float64 {
	return float64(s.Latency.Max()) / 1000.0
}
