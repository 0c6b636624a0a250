package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"feedmirror/pkg/archivedb"
	"feedmirror/pkg/config"
	"feedmirror/pkg/ledger"
	"feedmirror/pkg/storage"
	"feedmirror/pkg/ui"
	"github.com/spf13/cobra"
)

// ledgerCmd represents the ledger command
var ledgerCmd = &cobra.Command{
	Use:   "ledger <identity>",
	Short: "List the media pending retry for an account",
	Long: `List the entries of an account's retry ledger.

The identity is the account's folder name in the archive. Pending entries are
retried automatically at the start of the next sync of that account. Entries
the download index already holds are marked; the next sync finds their files
present and drops them.`,
	Example: `  feedmirror ledger SomeAuthor --output ./mirror`,
	Args:    cobra.ExactArgs(1),
	RunE:    runLedger,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
}

func runLedger(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	archive, err := storage.NewOS(cfg.Output.BaseDirectory, loc)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	identity := args[0]
	entries, err := ledger.NewManager(archive, nil).Load(identity)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.PrintSuccess(fmt.Sprintf("No downloads pending for %s", identity))
		return nil
	}

	index, err := openIndexIfPresent(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if index != nil {
		defer index.Close()
	}

	ui.PrintHighlight(fmt.Sprintf("%d downloads pending for %s", len(entries), identity))
	for _, e := range entries {
		posted := time.Unix(e.Timestamp, 0).In(loc).Format("2006-01-02 15:04")
		line := fmt.Sprintf("  %s #%d %s %s", ui.Cyan(e.ID), e.Ordinal, ui.Dim(posted), e.Locator)
		if index != nil {
			indexed, err := index.Exists(cmd.Context(), archivedb.EntryKey(e.Identity, e.ID, e.Ordinal))
			if err != nil {
				return err
			}
			if indexed {
				line += " " + ui.Green("(indexed, dropped on next sync)")
			}
		}
		fmt.Fprintln(ui.Output, line)
	}
	return nil
}

// openIndexIfPresent opens the download index for reading, or returns nil when
// it is disabled or has not been created yet
func openIndexIfPresent(ctx context.Context, cfg *config.Config) (*archivedb.DB, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	if _, err := os.Stat(cfg.ArchivePath()); err != nil {
		return nil, nil
	}
	db, err := archivedb.Open(ctx, cfg.ArchivePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open download index: %w", err)
	}
	return db, nil
}
