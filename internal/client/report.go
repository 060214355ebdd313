package client

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Render writes a human-readable summary table to w.
func Render(w io.Writer, s Summary) error {
	fmt.Fprintln(w, color.CyanString("=== %s benchmark (%s, %d workers) ===",
		s.Operation, s.Mode, s.Workers))

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")

	rows := [][]string{
		{"Requests", fmt.Sprintf("%d", s.Requests)},
		{"Succeeded", color.GreenString("%d", s.Succeeded)},
		{"Failed", color.RedString("%d", s.Failed)},
		{"Elapsed", s.Elapsed.String()},
		{"Payload", formatBytes(s.Bytes)},
		{"Min latency", s.MinLatency.String()},
		{"Max latency", s.MaxLatency.String()},
		{"Mean latency", s.MeanLatency.String()},
		{"Throughput", fmt.Sprintf("%.2f MB/s", s.AggregateMBps)},
	}
	for _, row := range rows {
		table.Append(row)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render summary table: %w", err)
	}

	for _, msg := range s.Errors {
		fmt.Fprintln(w, color.RedString("error: %s", msg))
	}
	return nil
}

// WriteYAML saves the summary to path for later comparison between runs.
func WriteYAML(path string, s Summary) error {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary file: %w", err)
	}
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
