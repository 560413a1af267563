package commands

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pterm/pterm"
	"github.com/walteh/docmill/pkg/log"
	"github.com/walteh/docmill/pkg/pipeline"
)

// printRunSummary renders the final run report: a counts table plus
// per-file failure detail, enough to re-run just the failed subset.
func printRunSummary(ui *log.Logger, summary *pipeline.RunSummary) {
	ui.LogNewline()

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "count"})
	tw.AppendRows([]table.Row{
		{"documents found", strconv.Itoa(summary.TotalJobs)},
		{"transformed", strconv.Itoa(summary.SuccessfulCount)},
		{"failed", strconv.Itoa(summary.FailedCount)},
		{"files copied", strconv.Itoa(summary.Copies.CopiedCount)},
		{"copies failed", strconv.Itoa(summary.Copies.FailedCount)},
	})
	tw.AppendFooter(table.Row{"output", summary.OutputRoot})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignLeft},
	})
	fmt.Println(tw.Render())

	for _, failure := range summary.Failed {
		pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}).
			Printf("transform failed: %s (%s)\n", failure.Path, failure.Err)
	}
	for _, failure := range summary.Copies.Failed {
		pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).
			Printf("copy failed: %s (%s)\n", failure.Path, failure.Err)
	}

	if summary.FailedCount == 0 && summary.Copies.FailedCount == 0 {
		ui.Successf("all %d documents transformed, %d files copied (run %s)",
			summary.SuccessfulCount, summary.Copies.CopiedCount, summary.RunID)
	} else {
		ui.Warningf("%d of %d documents failed (run %s)",
			summary.FailedCount, summary.TotalJobs, summary.RunID)
	}
}
