package main

import (
	"errors"
	"fmt"
	"time"

	"feedmirror/pkg/archivedb"
	"feedmirror/pkg/orchestrator"
	"feedmirror/pkg/storage"
	"feedmirror/pkg/ui"
	"github.com/spf13/cobra"
)

var (
	statsIdentity string
	statsLimit    uint64
	statsRuns     int
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the download index and recent runs",
	Long: `Summarize what has been mirrored so far.

Without flags, prints the number of indexed downloads per account. With
--identity, lists the most recent downloads of that account. With --runs,
also prints the last entries of the processing time log.`,
	Example: `  feedmirror stats
  feedmirror stats --identity SomeAuthor --limit 20
  feedmirror stats --runs 10`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsIdentity, "identity", "", "list recent downloads of one account")
	statsCmd.Flags().Uint64Var(&statsLimit, "limit", 10, "number of downloads listed with --identity")
	statsCmd.Flags().IntVar(&statsRuns, "runs", 0, "number of run log records to print")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.Archive.Enabled {
		return errors.New("the download index is disabled (archive.enabled: false)")
	}

	db, err := archivedb.Open(cmd.Context(), cfg.ArchivePath())
	if err != nil {
		return fmt.Errorf("failed to open download index: %w", err)
	}
	defer db.Close()

	if statsIdentity != "" {
		downloads, err := db.Downloads(cmd.Context(), statsIdentity, statsLimit)
		if err != nil {
			return err
		}
		ui.PrintHighlight(fmt.Sprintf("Recent downloads for %s", statsIdentity))
		for _, d := range downloads {
			at := time.Unix(d.DownloadedAt, 0).Format("2006-01-02 15:04")
			fmt.Fprintf(ui.Output, "  %s %s\n", ui.Dim(at), d.Path)
		}
	} else {
		counts, err := db.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			ui.PrintWarning("The download index is empty")
		}
		total := 0
		for _, c := range counts {
			last := time.Unix(c.LastAt, 0).Format("2006-01-02 15:04")
			fmt.Fprintf(ui.Output, "  %-32s %6d  %s\n", ui.Cyan(c.Identity), c.Count, ui.Dim("last "+last))
			total += c.Count
		}
		ui.PrintInfo("Total files", fmt.Sprintf("%d", total))
	}

	if statsRuns > 0 {
		return printRuns(cfg.Output.BaseDirectory, statsRuns)
	}
	return nil
}

func printRuns(base string, n int) error {
	archive, err := storage.NewOS(base, time.Local)
	if err != nil {
		return err
	}
	records, err := orchestrator.NewRunLog(archive).Records()
	if err != nil {
		return err
	}
	if len(records) > n {
		records = records[len(records)-n:]
	}

	fmt.Fprintln(ui.Output)
	ui.PrintHighlight("Recent runs")
	for _, r := range records {
		fmt.Fprintf(ui.Output, "  %s %-24s %-11s %4d posts %4d new %4d pending %7.2fs\n",
			ui.Dim(r.Timestamp), r.Identity, r.Status, r.ProcessedPosts, r.DownloadedMedia, r.FailedMedia, r.DurationSeconds)
	}
	return nil
}
