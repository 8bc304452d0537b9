package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stageq/internal/runner"
	"stageq/internal/tui/components"
	"stageq/internal/tui/styles"
)

// Model renders the live dashboard from StatsSnapshots.
type Model struct {
	Stats    runner.StatsSnapshot
	Stages   []runner.Stage
	Progress progress.Model

	IterLine    components.Sparkline
	LatencyLine components.Sparkline

	LastUpdate time.Time
	LastIters  uint64

	Width  int
	Height int
}

func NewModel(stages []runner.Stage) Model {
	return Model{
		Stages:      stages,
		Progress:    progress.New(progress.WithDefaultGradient()),
		IterLine:    components.NewSparkline(40, "Iterations", "/s", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P90", "ms", styles.Warn),
		LastUpdate:  time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		delta := msg.Iterations - m.LastIters
		if msg.Iterations < m.LastIters {
			delta = 0
		}
		m.IterLine.Add(float64(delta) / dt)
		m.LatencyLine.Add(msg.P90Ms)

		m.Stats = msg
		m.LastIters = msg.Iterations
		m.LastUpdate = now

		return m, m.Progress.SetPercent(m.Percent())

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.IterLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// Percent is the share of the schedule already elapsed.
func (m Model) Percent() float64 {
	if m.Stats.State == runner.StateCompleted {
		return 1
	}
	if m.Stats.Duration <= 0 {
		return 0
	}
	pct := float64(m.Stats.Elapsed) / float64(m.Stats.Duration)
	if pct > 1 {
		pct = 1
	}
	return pct
}

// Phase describes where the run is, e.g. "ramping · stage 1/3 → 10 VUs".
func (m Model) Phase() string {
	s := m.Stats
	switch {
	case s.State == runner.StateCompleted:
		return "completed"
	case s.Elapsed >= s.Duration && s.RunningVUs > 0:
		return fmt.Sprintf("draining · %d in flight", s.RunningVUs)
	case s.Stage < 0 || s.Stage >= len(m.Stages):
		return s.State.String()
	default:
		return fmt.Sprintf("%s · stage %d/%d → %d VUs",
			s.State, s.Stage+1, len(m.Stages), m.Stages[s.Stage].Target)
	}
}

func (m Model) View() string {
	s := strings.Builder{}
	st := m.Stats

	var fails uint64
	for _, c := range st.Checks {
		fails += c.Fails
	}
	failStyle := styles.Active
	if fails > 0 {
		failStyle = styles.Error
	}

	col1 := fmt.Sprintf("VUS: %d/%d\nRUN: %d", st.ActiveVUs, st.TargetVUs, st.RunningVUs)
	col2 := fmt.Sprintf("ITER: %d\nINT: %d", st.Iterations, st.Interrupted)
	col3 := failStyle.Render(fmt.Sprintf("ERR: %d\nFAIL: %d", st.Errors, fails))
	col4 := fmt.Sprintf("KB: %d\n%s", st.Bytes/1024, styles.Subtle.Render(st.Elapsed.Round(time.Second).String()))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
		styles.Box.Render(col4),
	))
	s.WriteString("\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.IterLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n")

	if len(st.Checks) > 0 {
		var checks strings.Builder
		for i, c := range st.Checks {
			if i > 0 {
				checks.WriteString("\n")
			}
			fmt.Fprintf(&checks, "%s %s %s", styles.CheckMark(c.Fails == 0), c.Name,
				styles.Subtle.Render(fmt.Sprintf("✓ %d ✗ %d", c.Passes, c.Fails)))
		}
		s.WriteString(styles.Box.Render(checks.String()))
		s.WriteString("\n")
	}

	latencies := fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %.2f ms",
		st.P50Ms, st.P90Ms, st.P99Ms, st.MaxMs,
	)
	box := styles.Box
	if m.Width > 4 {
		box = box.Width(m.Width - 4)
	}
	s.WriteString(box.Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render(m.Phase()))
	s.WriteString("\n")
	s.WriteString(m.Progress.View())

	return s.String()
}
