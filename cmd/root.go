package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stageq/internal/banner"
	"stageq/internal/config"
	"stageq/internal/runner"
)

var (
	cfgFile string

	v = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "stageq",
	Short: "stageq - stage-ramped virtual user load testing",
	Long: `
stageq ramps virtual users through stages, each POSTing a JSON payload to
one endpoint, checking every response and sleeping between iterations.

  stageq run -u http://localhost:8080/ask -s 30s:10 -s 3m:10 -s 30s:0
  stageq run --config loadtest.yaml --tui
  stageq validate --config loadtest.yaml
  stageq history`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return initConfig() },
	RunE: func(cmd *cobra.Command, args []string) error {
		// bare `stageq` runs when there is something to run
		if cmd.Flags().Changed("url") || cfgFile != "" || v.IsSet(config.KeyURL) {
			return runRun(cmd, args)
		}
		return cmd.Help()
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		var ce *runner.ConfigError
		if errors.As(err, &ce) {
			fmt.Fprintf(os.Stderr, "❌ configuration error: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stageq.yaml)")

	addRunFlags(rootCmd)
	rootCmd.AddCommand(runCmd, validateCmd, historyCmd, dummyCmd)
}

// initConfig reads the config file. A missing default file is fine; a
// missing or broken --config file is not.
func initConfig() error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return &runner.ConfigError{Field: "config", Reason: "cannot read " + cfgFile, Err: err}
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, ".stageq.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return &runner.ConfigError{Field: "config", Reason: "cannot read " + path, Err: err}
	}
	return nil
}
