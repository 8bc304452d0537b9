package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stageq/internal/report"
	"stageq/internal/storage"
	"stageq/internal/tui/styles"
)

// Model is a browser over stored runs: a table, and the full summary of the
// selected run on enter.
type Model struct {
	Items []storage.HistoryItem
	Table table.Model

	Selected *storage.HistoryItem

	Width  int
	Height int
}

func NewModel(items []storage.HistoryItem) Model {
	columns := []table.Column{
		{Title: "Time", Width: 20},
		{Title: "URL", Width: 36},
		{Title: "Peak VUs", Width: 9},
		{Title: "Iterations", Width: 11},
		{Title: "Failed", Width: 8},
		{Title: "P95 (ms)", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.ColorPrimary)
	s.Selected = s.Selected.
		Foreground(styles.ColorBg).
		Background(styles.ColorPrimary).
		Bold(true)
	t.SetStyles(s)

	m := Model{Items: items, Table: t}
	m.Table.SetRows(Rows(items))
	return m
}

// Rows is the table content, shared with the plain `history` listing.
func Rows(items []storage.HistoryItem) []table.Row {
	rows := make([]table.Row, len(items))
	for i, item := range items {
		rows[i] = table.Row{
			item.Timestamp.Local().Format(time.DateTime),
			item.Config.URL,
			fmt.Sprintf("%d", item.Summary.PeakUsers),
			fmt.Sprintf("%d", item.Summary.Iterations),
			fmt.Sprintf("%d", item.Failed()),
			fmt.Sprintf("%.1f", item.Summary.P95Ms),
		}
	}
	return rows
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
		if msg.Height > 8 {
			m.Table.SetHeight(msg.Height - 6)
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.Selected = nil
			return m, nil
		case "enter":
			if i := m.Table.Cursor(); i >= 0 && i < len(m.Items) {
				item := m.Items[i]
				m.Selected = &item
			}
			return m, nil
		}
	}

	if m.Selected != nil {
		return m, nil
	}
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Selected != nil {
		head := styles.Title.Render("Run " + m.Selected.ID)
		return head + "\n" + report.Summary(&m.Selected.Summary) + "\n" + styles.RenderKey("esc", "back")
	}
	if len(m.Items) == 0 {
		return styles.Subtle.Render("No stored runs yet.") + "\n"
	}
	return styles.Box.Render(m.Table.View()) + "\n" +
		lipgloss.JoinHorizontal(lipgloss.Top, styles.RenderKey("enter", "details"), "  ", styles.RenderKey("q", "quit"))
}

// Browse opens the interactive browser.
func Browse(items []storage.HistoryItem, opts ...tea.ProgramOption) error {
	_, err := tea.NewProgram(NewModel(items), opts...).Run()
	return err
}
