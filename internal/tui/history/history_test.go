package history

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stageq/internal/runner"
	"stageq/internal/stats"
	"stageq/internal/storage"
)

func items() []storage.HistoryItem {
	return []storage.HistoryItem{
		{
			ID:        "run-b",
			Timestamp: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
			Config:    runner.Config{URL: "http://localhost:8080/ask"},
			Summary: runner.Summary{
				Iterations: 40, PeakUsers: 10, P95Ms: 812.5,
				Checks: []stats.CheckSummary{{Name: "status is 200", Passes: 38, Fails: 2}},
			},
		},
		{ID: "run-a", Config: runner.Config{URL: "http://localhost:8080/slow"}},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(items())
	require.Len(t, rows, 2)
	assert.Equal(t, "http://localhost:8080/ask", rows[0][1])
	assert.Equal(t, "10", rows[0][2])
	assert.Equal(t, "40", rows[0][3])
	assert.Equal(t, "2", rows[0][4])
	assert.Equal(t, "812.5", rows[0][5])
}

func TestEnterShowsDetails(t *testing.T) {
	m := NewModel(items())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	sel := next.(Model)
	require.NotNil(t, sel.Selected)
	assert.Equal(t, "run-b", sel.Selected.ID)
	assert.Contains(t, sel.View(), "status is 200")

	back, _ := sel.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, back.(Model).Selected)
}

func TestEmptyHistory(t *testing.T) {
	assert.Contains(t, NewModel(nil).View(), "No stored runs")
}
