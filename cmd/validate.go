package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stageq/internal/report"
	"stageq/internal/runner"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration without sending any request",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		r, err := runner.NewRunner(cfg)
		if err != nil {
			return err
		}
		fmt.Print(report.Header(r.Cfg))
		fmt.Printf("✅ configuration valid: %d stage(s), %d check(s), %s total\n",
			len(r.Cfg.Stages), len(r.Cfg.Checks), r.Schedule.Duration())
		return nil
	},
}

func init() {
	addRunFlags(validateCmd)
}
