package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stageq/internal/runner"
	"stageq/internal/stats"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func item(t *testing.T, iterations uint64) HistoryItem {
	t.Helper()
	cfg := runner.Config{
		URL:    "http://localhost:8080/ask",
		Stages: []runner.Stage{{Duration: 30 * time.Second, Target: 10}},
		Sleep:  30 * time.Second,
	}
	sum := runner.Summary{
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		Iterations: iterations,
		Checks: []stats.CheckSummary{
			{Name: "status is 200", Passes: iterations - 1, Fails: 1},
			{Name: "response is not empty", Passes: iterations},
		},
	}
	it, err := NewHistoryItem(cfg, sum)
	require.NoError(t, err)
	return it
}

func TestStoreRoundTrip(t *testing.T) {
	s := openStore(t)
	want := item(t, 42)
	require.NoError(t, s.Save(want))

	got, err := s.Get(want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Config.URL, got.Config.URL)
	assert.Equal(t, want.Config.Stages, got.Config.Stages)
	assert.Equal(t, uint64(42), got.Summary.Iterations)
	assert.Equal(t, want.Summary.Checks, got.Summary.Checks)
	assert.Equal(t, uint64(1), got.Failed())
	assert.True(t, want.Timestamp.Equal(got.Timestamp))

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListNewestFirst(t *testing.T) {
	s := openStore(t)
	var ids []string
	for i := 1; i <= 3; i++ {
		it := item(t, uint64(i*10))
		ids = append(ids, it.ID)
		require.NoError(t, s.Save(it))
		time.Sleep(2 * time.Millisecond)
	}

	items, err := s.List()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestStorePrunesOldest(t *testing.T) {
	s := openStore(t)
	var first string
	for i := 0; i < MaxItems+5; i++ {
		it := item(t, 2)
		it.ID = fmt.Sprintf("run-%04d", i)
		if i == 0 {
			first = it.ID
		}
		require.NoError(t, s.Save(it))
	}

	items, err := s.List()
	require.NoError(t, err)
	assert.Len(t, items, MaxItems)
	assert.Equal(t, fmt.Sprintf("run-%04d", MaxItems+4), items[0].ID)

	_, err = s.Get(first)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	it := item(t, 5)
	require.NoError(t, s.Save(it))
	require.NoError(t, s.Close())

	s, err = NewStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(it.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.Summary.Iterations)
}

func TestSaveRequiresID(t *testing.T) {
	s := openStore(t)
	assert.Error(t, s.Save(HistoryItem{}))
}

func TestHistoryRedactsHeaderValues(t *testing.T) {
	s := openStore(t)
	cfg := runner.Config{
		URL:     "http://localhost:8080/ask",
		Headers: map[string]string{"Authorization": "Bearer secret-token", "X-Trace": "1"},
		Stages:  []runner.Stage{{Duration: time.Second, Target: 1}},
	}
	it, err := NewHistoryItem(cfg, runner.Summary{FinishedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.Save(it))

	got, err := s.Get(it.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": Redacted, "X-Trace": Redacted}, got.Config.Headers)
	assert.Equal(t, "Bearer secret-token", cfg.Headers["Authorization"], "caller's headers untouched")
}
