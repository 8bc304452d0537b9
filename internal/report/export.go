package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"stageq/internal/runner"
)

// ExportCSV writes one row per iteration in a JMeter-like layout, with one
// extra column per check.
func ExportCSV(results []runner.IterationResult, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
		"threadName", "iteration", "stage", "success", "failureMessage", "bytes",
	}
	names := checkNames(results)
	for _, n := range names {
		header = append(header, "check:"+n)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, res := range results {
		record := []string{
			strconv.FormatInt(res.TimeStamp.UnixMilli(), 10),
			strconv.FormatInt(res.Latency.Milliseconds(), 10),
			"stageq iteration",
			strconv.Itoa(res.Status),
			http.StatusText(res.Status),
			fmt.Sprintf("VU-%d", res.UserID),
			strconv.FormatUint(res.Iteration, 10),
			strconv.Itoa(res.Stage + 1),
			strconv.FormatBool(res.Passed()),
			failureMessage(res),
			strconv.FormatInt(res.Bytes, 10),
		}

		outcome := make(map[string]bool, len(res.Checks))
		for _, c := range res.Checks {
			outcome[c.Name] = c.Passed
		}
		for _, n := range names {
			if passed, ok := outcome[n]; ok {
				record = append(record, strconv.FormatBool(passed))
			} else {
				record = append(record, "")
			}
		}

		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// ExportJSON writes the raw iteration results.
func ExportJSON(results []runner.IterationResult, filename string) error {
	if results == nil {
		results = []runner.IterationResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// SummaryFile is the layout of <prefix>_summary.json.
type SummaryFile struct {
	URL      string          `json:"url"`
	Stages   []runner.Stage  `json:"stages"`
	Sleep    string          `json:"sleep"`
	Duration string          `json:"duration"`
	Summary  *runner.Summary `json:"summary"`
}

// ExportSummary writes <prefix>_summary.json.
func ExportSummary(cfg runner.Config, sum *runner.Summary, prefix string) error {
	data, err := json.MarshalIndent(SummaryFile{
		URL:      cfg.URL,
		Stages:   cfg.Stages,
		Sleep:    cfg.Sleep.String(),
		Duration: sum.Duration().String(),
		Summary:  sum,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(prefix+"_summary.json", data, 0644)
}

// WriteAll produces <prefix>.csv, <prefix>.json and <prefix>_summary.json.
func WriteAll(prefix string, cfg runner.Config, sum *runner.Summary, results []runner.IterationResult) error {
	if err := ExportCSV(results, prefix+".csv"); err != nil {
		return fmt.Errorf("csv report: %w", err)
	}
	if err := ExportJSON(results, prefix+".json"); err != nil {
		return fmt.Errorf("json report: %w", err)
	}
	if err := ExportSummary(cfg, sum, prefix); err != nil {
		return fmt.Errorf("summary report: %w", err)
	}
	return nil
}

func failureMessage(res runner.IterationResult) string {
	if res.Err != "" {
		return res.Err
	}
	var failed []string
	for _, c := range res.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	if len(failed) == 0 {
		return ""
	}
	return "failed: " + strings.Join(failed, ", ")
}

func checkNames(results []runner.IterationResult) []string {
	var names []string
	seen := make(map[string]bool)
	for _, res := range results {
		for _, c := range res.Checks {
			if !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		}
	}
	return names
}
