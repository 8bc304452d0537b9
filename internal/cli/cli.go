// Package cli drives one run from the command line: header, live progress
// (a status line or the TUI), final report, exports and history.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stageq/internal/metrics"
	"stageq/internal/monitor"
	"stageq/internal/report"
	"stageq/internal/runner"
	"stageq/internal/storage"
	"stageq/internal/tui"
)

type Options struct {
	// MetricsAddr serves /metrics, /summary and /live when set.
	MetricsAddr string
	// HistoryPath is the bbolt file runs are saved to; empty disables history.
	HistoryPath string
	TUI         bool

	Logger *zap.Logger
	Out    io.Writer
}

// Start runs cfg to completion and prints the report. It returns an error
// only when the run could not start; failed checks are not errors.
func Start(ctx context.Context, cfg runner.Config, opts Options) (*runner.Summary, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	out := opts.Out

	m := metrics.New()
	updates := make(runner.StatsUpdateChan, 100)
	r, err := runner.NewRunner(cfg,
		runner.WithLogger(opts.Logger),
		runner.WithMetrics(m),
		runner.WithUpdates(updates),
	)
	if err != nil {
		return nil, err
	}
	cfg = r.Cfg

	if !opts.TUI {
		fmt.Fprint(out, report.Header(cfg))
	}

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	g, gctx := errgroup.WithContext(runCtx)
	monCtx, stopMonitor := context.WithCancel(gctx)
	defer stopMonitor()

	var mon *monitor.Server
	if opts.MetricsAddr != "" {
		mon = monitor.New(opts.MetricsAddr, r.Snapshot, m, opts.Logger)
		g.Go(func() error {
			if err := mon.Run(monCtx, cfg.TickInterval); err != nil {
				return fmt.Errorf("monitor: %w", err)
			}
			return nil
		})
		if !opts.TUI {
			fmt.Fprintf(out, "📡 Monitor on http://%s (/metrics, /summary, /live)\n\n", opts.MetricsAddr)
		}
	}

	done := make(chan *runner.Summary, 1)
	var sum *runner.Summary
	g.Go(func() error {
		defer stopMonitor()
		defer close(done)
		s, err := r.Run(gctx)
		if err != nil {
			return err
		}
		sum = s
		done <- s
		return nil
	})

	if opts.TUI {
		g.Go(func() error {
			return tui.Run(cfg, updates, abort, done)
		})
	} else {
		g.Go(func() error {
			progressLoop(out, updates, done)
			return nil
		})
	}

	if err := g.Wait(); err != nil && sum == nil {
		return nil, err
	} else if err != nil {
		opts.Logger.Warn("run finished with errors", zap.Error(err))
		fmt.Fprintf(out, "\n⚠️  %v\n", err)
	}

	fmt.Fprint(out, report.Summary(sum))
	handleAutoReport(out, opts.Logger, r, cfg, sum)
	saveHistory(out, opts.Logger, opts.HistoryPath, cfg, sum)
	return sum, nil
}

// progressLoop prints a status line for each snapshot until done closes.
func progressLoop(out io.Writer, updates runner.StatsUpdateChan, done <-chan *runner.Summary) {
	for {
		select {
		case s := <-updates:
			fmt.Fprint(out, "\r"+progressLine(s))
		case _, ok := <-done:
			if !ok {
				fmt.Fprintln(out)
				return
			}
		}
	}
}

func progressLine(s runner.StatsSnapshot) string {
	pct := 1.0
	if s.Duration > 0 && s.State != runner.StateCompleted {
		pct = float64(s.Elapsed) / float64(s.Duration)
		if pct > 1 {
			pct = 1
		}
	}

	var fails uint64
	for _, c := range s.Checks {
		fails += c.Fails
	}

	if s.Elapsed >= s.Duration && s.State != runner.StateCompleted {
		return fmt.Sprintf("%s %3.0f%% | %s/%s | Draining: %d iterations...           ",
			progressBar(1, 20), 100.0,
			s.Elapsed.Round(time.Second), s.Duration, s.RunningVUs)
	}

	return fmt.Sprintf("%s %3.0f%% | %s/%s | %-9s | VUs: %3d/%-3d | It: %d | Err: %d | ✗ %d",
		progressBar(pct, 20), pct*100,
		s.Elapsed.Round(time.Second), s.Duration,
		s.State, s.ActiveVUs, s.TargetVUs,
		s.Iterations, s.Errors, fails,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func handleAutoReport(out io.Writer, logger *zap.Logger, r *runner.Runner, cfg runner.Config, sum *runner.Summary) {
	if cfg.OutPrefix == "" {
		return
	}

	fmt.Fprintf(out, "\n💾 Generating reports with prefix: %s\n", cfg.OutPrefix)
	if err := report.WriteAll(cfg.OutPrefix, cfg, sum, r.Results()); err != nil {
		logger.Error("report export failed", zap.Error(err))
		fmt.Fprintf(out, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(out, "✅ Reports saved to %s.{csv,json,_summary.json}\n", cfg.OutPrefix)
}

func saveHistory(out io.Writer, logger *zap.Logger, path string, cfg runner.Config, sum *runner.Summary) {
	if path == "" {
		return
	}

	store, err := storage.NewStore(path)
	if err != nil {
		logger.Warn("history unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	defer store.Close()

	item, err := storage.NewHistoryItem(cfg, *sum)
	if err == nil {
		err = store.Save(item)
	}
	if err != nil {
		logger.Warn("history save failed", zap.Error(err))
		return
	}
	fmt.Fprintf(out, "🗂  Saved as run %s\n", item.ID)
}
