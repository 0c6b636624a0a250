package ui

import (
	"fmt"
	"strings"

	"feedmirror/pkg/orchestrator"
)

// PrintReport renders a run report the way the sync command ends
func PrintReport(r *orchestrator.Report) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(Output)
	fmt.Fprintln(Output, Dim(rule))
	PrintHighlight("  Sync summary  " + Dim("run "+r.RunID))
	fmt.Fprintln(Output, Dim(rule))

	for _, a := range r.Accounts {
		name := a.Identity
		if name == "" {
			name = fmt.Sprintf("%d", a.AccountID)
		}
		switch a.Status {
		case orchestrator.StatusError:
			fmt.Fprintf(Output, "%s %s\n", Red("✗ "+name), Dim(a.Error))
		default:
			line := fmt.Sprintf("%d posts, %d new files, %d pending in %.2fs",
				a.ProcessedPosts, a.DownloadedMedia, a.FailedMedia, a.DurationSeconds)
			mark := Green("✓ " + name)
			if a.Status == orchestrator.StatusInterrupted {
				mark = Yellow("‖ " + name)
			}
			fmt.Fprintf(Output, "%s %s\n", mark, line)
		}
	}

	fmt.Fprintln(Output)
	PrintInfo("Total new files", fmt.Sprintf("%d", r.TotalDownloaded))
	if r.TotalFailed > 0 {
		PrintWarning(fmt.Sprintf("%d downloads pending retry on the next run", r.TotalFailed))
	}
	if r.Interrupted {
		PrintWarning("Run interrupted; remaining accounts were skipped")
	}
	if r.SummaryPath != "" {
		PrintInfo("Report", r.SummaryPath)
	}
	fmt.Fprintln(Output, Dim(rule))
}
