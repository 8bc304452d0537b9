// Package tui is the interactive dashboard shown with --tui.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"stageq/internal/runner"
	"stageq/internal/tui/live"
	"stageq/internal/tui/styles"
)

// DoneMsg tells the dashboard the run has finished.
type DoneMsg struct {
	Summary *runner.Summary
}

type Model struct {
	Cfg     runner.Config
	Live    live.Model
	Updates runner.StatsUpdateChan

	// Abort cancels the run when the user quits early.
	Abort context.CancelFunc

	Summary  *runner.Summary
	Quitting bool
}

func NewModel(cfg runner.Config, updates runner.StatsUpdateChan, abort context.CancelFunc) Model {
	return Model{
		Cfg:     cfg,
		Live:    live.NewModel(cfg.Stages),
		Updates: updates,
		Abort:   abort,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.Quitting = true
			if m.Abort != nil {
				m.Abort()
			}
			return m, tea.Quit
		}

	case DoneMsg:
		m.Summary = msg.Summary
		m.Quitting = true
		return m, tea.Quit

	case runner.StatsSnapshot:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, tea.Batch(cmd, waitForUpdate(m.Updates))

	case updatesClosedMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.Live, cmd = m.Live.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Quitting {
		if m.Summary == nil {
			return "Stopping, waiting for in-flight iterations...\n"
		}
		return ""
	}

	s := strings.Builder{}
	s.WriteString(styles.Title.Render("🚀 stageq"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("URL: %s\n", m.Cfg.URL))
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("Stages: %d | Sleep: %s | Timeout: %s",
		len(m.Cfg.Stages), m.Cfg.Sleep, m.Cfg.RequestTimeout)))
	s.WriteString("\n\n")
	s.WriteString(m.Live.View())
	s.WriteString("\n")
	s.WriteString(styles.RenderKey("q", "abort run"))
	return s.String()
}

type updatesClosedMsg struct{}

func waitForUpdate(ch runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return s
	}
}

// Run shows the dashboard until the run finishes (done yields the summary)
// or the user quits, which calls abort.
func Run(cfg runner.Config, updates runner.StatsUpdateChan, abort context.CancelFunc, done <-chan *runner.Summary, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(NewModel(cfg, updates, abort), opts...)

	go func() {
		if sum, ok := <-done; ok {
			p.Send(DoneMsg{Summary: sum})
		}
	}()

	_, err := p.Run()
	return err
}
