package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stageq/internal/runner"
	"stageq/internal/stats"
)

func sampleResults() []runner.IterationResult {
	ts := time.UnixMilli(1700000000000)
	return []runner.IterationResult{
		{
			TimeStamp: ts, UserID: 0, Iteration: 1, Latency: 120 * time.Millisecond,
			Status: 200, Bytes: 17, Stage: 0,
			Checks: []stats.CheckResult{{Name: "status is 200", Passed: true}, {Name: "response is not empty", Passed: true}},
		},
		{
			TimeStamp: ts.Add(time.Second), UserID: 1, Iteration: 1, Latency: 60 * time.Second,
			Err: "context deadline exceeded", Stage: 1,
			Checks: []stats.CheckResult{{Name: "status is 200", Passed: false}, {Name: "response is not empty", Passed: false}},
		},
	}
}

func sampleSummary() *runner.Summary {
	start := time.Now()
	return &runner.Summary{
		StartedAt:  start,
		FinishedAt: start.Add(4 * time.Minute),
		Iterations: 2,
		Errors:     1,
		Bytes:      17,
		PeakUsers:  10,
		P50Ms:      120, P90Ms: 60000, P95Ms: 60000, P99Ms: 60000, MaxMs: 60000,
		Checks: []stats.CheckSummary{
			{Name: "status is 200", Passes: 1, Fails: 1},
			{Name: "response is not empty", Passes: 2},
		},
	}
}

func TestWriteAll(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "run")
	cfg := runner.Config{
		URL:    "http://localhost:8080/ask",
		Stages: []runner.Stage{{Duration: 30 * time.Second, Target: 10}},
		Sleep:  30 * time.Second,
	}
	require.NoError(t, WriteAll(prefix, cfg, sampleSummary(), sampleResults()))

	f, err := os.Open(prefix + ".csv")
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "check:status is 200", rows[0][11])
	assert.Equal(t, "check:response is not empty", rows[0][12])
	assert.Equal(t, []string{"1700000000000", "120", "stageq iteration", "200", "OK", "VU-0", "1", "1", "true", "", "17", "true", "true"}, rows[1])
	assert.Equal(t, "0", rows[2][3])
	assert.Equal(t, "false", rows[2][8])
	assert.Equal(t, "context deadline exceeded", rows[2][9])

	var results []runner.IterationResult
	b, err := os.ReadFile(prefix + ".json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &results))
	assert.Len(t, results, 2)

	var sf SummaryFile
	b, err = os.ReadFile(prefix + "_summary.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &sf))
	assert.Equal(t, cfg.URL, sf.URL)
	assert.Equal(t, "4m0s", sf.Duration)
	assert.Equal(t, uint64(1), sf.Summary.Checks[0].Fails)
}

func TestExportJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, ExportJSON(nil, path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestFailureMessage(t *testing.T) {
	res := runner.IterationResult{Status: 500, Checks: []stats.CheckResult{{Name: "status is 200"}, {Name: "response is not empty", Passed: true}}}
	assert.Equal(t, "failed: status is 200", failureMessage(res))
}

func TestSummaryRendering(t *testing.T) {
	out := Summary(sampleSummary())
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "status is 200")
	assert.Contains(t, out, "↳ 50% ✓ 1 / ✗ 1")
	assert.Contains(t, out, "75.00% ✓ 3 ✗ 1")
	assert.Contains(t, out, "17 B")
	assert.NotContains(t, out, "aborted")

	sum := sampleSummary()
	sum.Aborted = true
	assert.Contains(t, Summary(sum), "aborted")
}

func TestHeader(t *testing.T) {
	out := Header(runner.Config{
		URL:    "http://localhost:8080/ask",
		Stages: []runner.Stage{{Duration: 30 * time.Second, Target: 10}, {Duration: 30 * time.Second, Target: 0}},
	})
	assert.Contains(t, out, "http://localhost:8080/ask")
	assert.Contains(t, out, "30s→10, 30s→0")
	assert.Contains(t, out, "1m0s")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 MiB", formatBytes(2*1024*1024))
}
