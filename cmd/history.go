package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"stageq/internal/report"
	"stageq/internal/storage"
	"stageq/internal/tui/history"
	"stageq/internal/tui/styles"
)

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List stored runs, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}
		path, err := historyPath()
		if err != nil {
			return err
		}
		store, err := storage.NewStore(path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			item, err := store.Get(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Print(report.Header(item.Config))
			fmt.Print(report.Summary(&item.Summary))
			return nil
		}

		items, err := store.List()
		if err != nil {
			return err
		}
		if browse, _ := cmd.Flags().GetBool("browse"); browse {
			return history.Browse(items)
		}
		if len(items) == 0 {
			fmt.Println("No stored runs yet.")
			return nil
		}

		rows := history.Rows(items)
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(styles.ColorBorder)).
			Headers("ID", "TIME", "URL", "PEAK VUS", "ITERATIONS", "FAILED", "P95 (MS)")
		for i, row := range rows {
			t.Row(append([]string{items[i].ID}, row...)...)
		}
		fmt.Println(t)
		return nil
	},
}

func init() {
	historyCmd.Flags().String("history-db", "", "Run history database (default $HOME/.stageq/history.db)")
	historyCmd.Flags().Bool("browse", false, "Browse runs interactively")
}
