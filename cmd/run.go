package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stageq/internal/cli"
	"stageq/internal/config"
	"stageq/internal/logging"
	"stageq/internal/runner"
	"stageq/internal/storage"
)

// Keys for settings that shape the command rather than the run.
const (
	keyTUI         = "tui"
	keyMetricsAddr = "metrics_addr"
	keyHistoryDB   = "history_db"
	keyNoHistory   = "no_history"
	keyLogLevel    = "log_level"
	keyLogFile     = "log_file"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test",
	RunE:  runRun,
}

func init() {
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("url", "u", "", "Target URL")
	f.StringP("body", "b", "", "JSON payload (template tokens allowed)")
	f.StringArrayP("header", "H", nil, "HTTP Header (e.g. \"Key: Value\"), repeatable")
	f.StringSliceP("stage", "s", nil, "Stage as duration:target (e.g. 30s:10), repeatable, in order")
	f.Int("start-users", 0, "Virtual users at t=0")
	f.Duration("sleep", runner.DefaultSleep, "Pause after each iteration")
	f.Duration("timeout", runner.DefaultRequestTimeout, "Request timeout")
	f.Duration("graceful-stop", 0, "Max wait for in-flight iterations after the last stage (0 = wait)")
	f.Duration("tick", runner.DefaultTickInterval, "Scheduler tick")
	f.StringP("out", "o", "", "Output filename prefix for auto-reporting")
	f.Bool("insecure", false, "Skip TLS verification")

	f.Bool("tui", false, "Show the interactive dashboard")
	f.String("metrics-addr", "", "Serve /metrics, /summary and /live on this address")
	f.String("history-db", "", "Run history database (default $HOME/.stageq/history.db)")
	f.Bool("no-history", false, "Do not save the run to history")
	f.String("log-level", logging.DefaultLevel, "Log level: debug, info, warn, error")
	f.String("log-file", "", "Write logs to this file instead of stderr")
}

// flagKeys maps flag names to viper keys.
var flagKeys = map[string]string{
	"url":           config.KeyURL,
	"body":          config.KeyPayload,
	"header":        config.KeyHeaderFlags,
	"stage":         config.KeyStageFlags,
	"start-users":   config.KeyStartUsers,
	"sleep":         config.KeySleep,
	"timeout":       config.KeyRequestTimeout,
	"graceful-stop": config.KeyGracefulStop,
	"tick":          config.KeyTick,
	"out":           config.KeyOut,
	"insecure":      config.KeyInsecure,
	"tui":           keyTUI,
	"metrics-addr":  keyMetricsAddr,
	"history-db":    keyHistoryDB,
	"no-history":    keyNoHistory,
	"log-level":     keyLogLevel,
	"log-file":      keyLogFile,
}

func bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if fl := cmd.Flags().Lookup(name); fl != nil {
			if err := v.BindPFlag(key, fl); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (runner.Config, error) {
	if err := bindFlags(cmd); err != nil {
		return runner.Config{}, err
	}
	return config.Load(v)
}

func historyPath() (string, error) {
	if p := v.GetString(keyHistoryDB); p != "" {
		return p, nil
	}
	return storage.DefaultPath()
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(v.GetString(keyLogLevel), v.GetString(keyLogFile))
	if err != nil {
		return &runner.ConfigError{Field: keyLogLevel, Reason: "cannot build logger", Err: err}
	}
	defer logger.Sync()

	opts := cli.Options{
		MetricsAddr: v.GetString(keyMetricsAddr),
		TUI:         v.GetBool(keyTUI),
		Logger:      logger,
		Out:         os.Stdout,
	}
	if !v.GetBool(keyNoHistory) {
		if opts.HistoryPath, err = historyPath(); err != nil {
			logger.Warn("no history location, run will not be saved")
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = cli.Start(ctx, cfg, opts)
	return err
}
