package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"feedmirror/internal/downloader"
	"feedmirror/pkg/archivedb"
	"feedmirror/pkg/auth"
	"feedmirror/pkg/config"
	errs "feedmirror/pkg/errors"
	"feedmirror/pkg/fetcher"
	"feedmirror/pkg/gallerydl"
	"feedmirror/pkg/identity"
	"feedmirror/pkg/ledger"
	"feedmirror/pkg/logger"
	"feedmirror/pkg/orchestrator"
	"feedmirror/pkg/ratelimit"
	"feedmirror/pkg/storage"
	"feedmirror/pkg/syncer"
	"feedmirror/pkg/ui"
	"github.com/spf13/cobra"
)

var (
	// Sync command flags
	noIncremental bool
	cookieFile    string
	cookieProfile string
	notify        bool
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [account-id...]",
	Short: "Mirror the configured accounts into the archive",
	Long: `Mirror every account into the archive, in order.

Accounts given as arguments replace the accounts from the configuration file
and FEEDMIRROR_ACCOUNTS. Each account is walked newest first; in incremental
mode the walk stops at the first post that already has a content record.

Press Ctrl+C to stop. The current post finishes its bookkeeping, the retry
ledger is saved and the remaining accounts are skipped.`,
	Example: `  # Sync the accounts listed in ~/.feedmirror.yaml
  feedmirror sync

  # Sync two accounts into a specific directory
  feedmirror sync 12345 67890 --output ./mirror

  # Walk every post, not just the new ones
  feedmirror sync 12345 --no-incremental`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&noIncremental, "no-incremental", false, "walk the whole feed instead of stopping at the first synchronized post")
	syncCmd.Flags().StringVar(&cookieFile, "cookies", "", "cookies.txt file passed to the feed source")
	syncCmd.Flags().StringVar(&cookieProfile, "profile", auth.DefaultProfile, "stored cookie profile used when --cookies is not set")
	syncCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")
}

func runSync(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{
		"no-incremental": noIncremental,
		"cookies":        cookieFile,
	}
	if len(args) > 0 {
		ids, err := config.ParseAccountList(strings.Join(args, ","))
		if err != nil {
			return err
		}
		flags["accounts"] = ids
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("feedmirror starting")

	if len(cfg.Accounts) == 0 {
		return errs.ErrNoAccounts
	}
	if cfg.FeedSource.CookieFile == "" {
		if path := auth.NewManager().CookieFile(cookieProfile); path != "" {
			cfg.FeedSource.CookieFile = path
			log.WithField("profile", cookieProfile).Info("Using stored cookie reference")
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := gallerydl.New(gallerydl.Options{
		Command:    cfg.FeedSource.Command,
		CookieFile: cfg.FeedSource.CookieFile,
		Timeout:    cfg.FeedSource.Timeout,
		Attempts:   cfg.FeedSource.MaxAttempts,
		RetryDelay: cfg.FeedSource.RetryDelay,
		Limiter:    ratelimit.PerMinute(cfg.FeedSource.RequestsPerMinute),
	}, log)

	toolVersion, err := source.CheckAvailable(ctx)
	if err != nil {
		ui.PrintError("Feed source is not available", err.Error())
		return err
	}
	ui.PrintInfo("Feed source", fmt.Sprintf("%s %s", cfg.FeedSource.Command, toolVersion))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	archive, err := storage.NewOS(cfg.Output.BaseDirectory, loc)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	ui.PrintInfo("Archive", archive.Root())

	opts := downloader.Options{
		Attempts:   cfg.Download.RetryAttempts,
		RetryDelay: cfg.Download.RetryDelay,
	}
	if cfg.Archive.Enabled {
		db, err := archivedb.Open(ctx, cfg.ArchivePath())
		if err != nil {
			return fmt.Errorf("failed to open download index: %w", err)
		}
		defer db.Close()
		opts.Index = db
	}

	client := fetcher.NewClient(cfg.Download.DownloadTimeout, cfg.Download.UserAgent, log)
	if referer := refererFor(cfg); referer != "" {
		client.SetHeader("Referer", referer)
	}

	media := downloader.New(client, archive, opts, log)
	feedSync := syncer.NewFeedSynchronizer(
		source,
		identity.NewResolver(cfg.Names, source, archive, log),
		archive,
		ledger.NewManager(archive, log),
		media,
		cfg.Incremental,
		log,
	)
	runner := orchestrator.New(feedSync, archive, orchestrator.Options{
		WriteSummary: cfg.Output.WriteSummary,
		SummaryDir:   cfg.Output.SummaryDirectory,
	}, log)

	accounts := make([]syncer.Account, 0, len(cfg.Accounts))
	for _, id := range cfg.Accounts {
		accounts = append(accounts, syncer.Account{ID: id, Locator: cfg.FeedURL(id)})
	}

	report, err := runner.Run(ctx, accounts)
	if report != nil {
		ui.PrintReport(report)
		if notify {
			if nerr := ui.NewNotifier().RunFinished(len(report.Accounts), report.TotalDownloaded, report.TotalFailed, report.Interrupted); nerr != nil {
				log.WithError(nerr).Warn("Failed to send notification")
			}
		}
	}
	if err != nil {
		return err
	}
	if report.Interrupted {
		return errs.ErrInterrupted
	}
	ui.PrintSuccess("Sync complete")
	return nil
}

// refererFor returns the origin of the feed url template, which media hosts
// expect as the referer
func refererFor(cfg *config.Config) string {
	u, err := url.Parse(strings.Replace(cfg.FeedSource.URLTemplate, "%d", "0", 1))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

func exitCode(err error) int {
	if errors.Is(err, errs.ErrInterrupted) || errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}
