// Package report renders the end-of-run summary and writes export files.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"stageq/internal/runner"
	"stageq/internal/tui/styles"
)

// Header describes the run before it starts.
func Header(cfg runner.Config) string {
	var b strings.Builder
	rule := styles.Subtle.Render(strings.Repeat("=", 70))

	fmt.Fprintf(&b, "\n🚀 %s\n", styles.Active.Render("STARTING STAGEQ LOAD TEST"))
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Target URL : %s\n", cfg.URL)
	fmt.Fprintf(&b, "Stages     : %s\n", formatStages(cfg.Stages))
	fmt.Fprintf(&b, "Duration   : %s\n", cfg.TotalDuration())
	fmt.Fprintf(&b, "Sleep      : %s\n", cfg.Sleep)
	fmt.Fprintf(&b, "Timeout    : %s\n", cfg.RequestTimeout)
	if cfg.GracefulStop > 0 {
		fmt.Fprintf(&b, "Grace      : %s\n", cfg.GracefulStop)
	}
	b.WriteString(rule + "\n")
	return b.String()
}

// Summary renders the final report: checks first, k6 style, then counters
// and latency percentiles.
func Summary(sum *runner.Summary) string {
	var b strings.Builder
	rule := styles.Subtle.Render(strings.Repeat("=", 70))

	title := "📊 LOAD TEST RESULTS"
	if sum.Aborted {
		title += " " + styles.Warn.Render("(aborted)")
	}
	fmt.Fprintf(&b, "\n%s\n%s\n", title, rule)

	for _, c := range sum.Checks {
		mark := styles.Success.Render("✓")
		if c.Fails > 0 {
			mark = styles.Error.Render("✗")
		}
		fmt.Fprintf(&b, "  %s %s\n", mark, c.Name)
		if c.Fails > 0 {
			fmt.Fprintf(&b, "   %s\n", styles.Subtle.Render(fmt.Sprintf("↳ %.0f%% ✓ %d / ✗ %d", c.PassRate()*100, c.Passes, c.Fails)))
		}
	}
	b.WriteString("\n")

	rows := [][2]string{
		{"checks", checkLine(sum)},
		{"iterations", fmt.Sprintf("%d  %.2f/s", sum.Iterations, perSecond(sum.Iterations, sum.Duration()))},
		{"interrupted", fmt.Sprintf("%d", sum.Interrupted)},
		{"request errors", fmt.Sprintf("%d  %.2f%%", sum.Errors, sum.ErrorRate)},
		{"data received", formatBytes(sum.Bytes)},
		{"vus max", fmt.Sprintf("%d", sum.PeakUsers)},
		{"duration", sum.Duration().Round(time.Millisecond).String()},
		{"iteration time", fmt.Sprintf("avg=%.2fms p50=%.2fms p90=%.2fms p95=%.2fms p99=%.2fms max=%.2fms",
			sum.AvgMs, sum.P50Ms, sum.P90Ms, sum.P95Ms, sum.P99Ms, sum.MaxMs)},
	}
	label := lipgloss.NewStyle().Width(16)
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s %s\n", label.Render(r[0]+dots(r[0])), styles.Value.Render(r[1]))
	}
	b.WriteString(rule + "\n")
	return b.String()
}

func checkLine(sum *runner.Summary) string {
	var passes, fails uint64
	for _, c := range sum.Checks {
		passes += c.Passes
		fails += c.Fails
	}
	total := passes + fails
	if total == 0 {
		return "0"
	}
	return fmt.Sprintf("%.2f%% ✓ %d ✗ %d", float64(passes)/float64(total)*100, passes, fails)
}

func dots(label string) string {
	n := 15 - len(label)
	if n < 1 {
		return ""
	}
	return strings.Repeat(".", n)
}

func perSecond(n uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

func formatStages(stages []runner.Stage) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = fmt.Sprintf("%s→%d", s.Duration, s.Target)
	}
	return strings.Join(parts, ", ")
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
