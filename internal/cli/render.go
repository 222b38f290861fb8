package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/calcflow-labs/calcflow/internal/engine"
	"github.com/calcflow-labs/calcflow/internal/state"
)

// renderRunReport prints the node results and the step summary.
func renderRunReport(w io.Writer, report *engine.RunReport) {
	if len(report.Results) > 0 {
		ids := make([]string, 0, len(report.Results))
		for id := range report.Results {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Node", "Value", "Error"})
		for _, id := range ids {
			res := report.Results[id]
			t.AppendRow(table.Row{id, formatValue(res.Value), res.Error})
		}
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d nodes)\n", len(ids))
	}

	if len(report.Steps) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Step", "Kind", "Rows", "Unit", "Warning"})
		for _, s := range report.Steps {
			t.AppendRow(table.Row{s.ID, s.Kind, s.Rows, s.Unit, s.Warning})
		}
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d steps)\n", len(report.Steps))
	}

	if report.Run != nil {
		_, _ = fmt.Fprintf(w, "Run %s: %s\n", report.Run.ID, report.Run.Status)
	}
}

// renderRuns prints the run history.
func renderRuns(w io.Writer, runs []*state.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "(0 runs)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Workbook", "Status", "Nodes", "Errors", "Steps", "Started", "Duration"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID, run.Workbook, run.Status,
			run.Nodes, run.NodeErrors, run.Steps,
			run.StartedAt.Local().Format(time.RFC3339),
			formatDuration(run),
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d runs)\n", len(runs))
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func formatDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}
