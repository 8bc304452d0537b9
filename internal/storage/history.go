package storage

import (
	"time"

	"github.com/google/uuid"

	"stageq/internal/runner"
)

// MaxItems is how many runs the history keeps; older ones are pruned on Save.
const MaxItems = 100

// Redacted replaces every header value kept in history.
const Redacted = "[redacted]"

// HistoryItem is one finished run as stored in the history database.
type HistoryItem struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Config    runner.Config  `json:"config"`
	Summary   runner.Summary `json:"summary"`
}

// NewHistoryItem stamps a run with a time-ordered ID so the database keys
// sort oldest to newest. Header values are redacted; names are kept.
func NewHistoryItem(cfg runner.Config, sum runner.Summary) (HistoryItem, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return HistoryItem{}, err
	}
	ts := sum.FinishedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	cfg.Headers = redactHeaders(cfg.Headers)
	return HistoryItem{ID: id.String(), Timestamp: ts, Config: cfg, Summary: sum}, nil
}

func redactHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = Redacted
	}
	return out
}

// Failed counts failed checks over all check names.
func (h HistoryItem) Failed() uint64 {
	var n uint64
	for _, c := range h.Summary.Checks {
		n += c.Fails
	}
	return n
}
