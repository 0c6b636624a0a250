package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feedmirror/internal/downloader"
	errs "feedmirror/pkg/errors"
	"feedmirror/pkg/feed"
	"feedmirror/pkg/identity"
	"feedmirror/pkg/ledger"
	"feedmirror/pkg/logger"
	"feedmirror/pkg/storage"
)

// Account is a remote account to mirror
type Account struct {
	ID      int64
	Locator string
}

// Stats summarizes one account's sync
type Stats struct {
	Identity       string
	IdentitySource identity.Source
	// ProcessedPosts counts posts fetched and worked on this run
	ProcessedPosts int
	// DownloadedMedia includes ledger entries recovered during replay
	DownloadedMedia int
	// FailedMedia is the number of entries left in the ledger after the run
	FailedMedia int
	// Halted is set when the walk stopped at a previously synchronized post
	Halted   bool
	Duration time.Duration
}

// FeedSynchronizer mirrors whole accounts
type FeedSynchronizer struct {
	source   feed.Source
	resolver *identity.Resolver
	archive  *storage.Archive
	ledger   *ledger.Manager
	media    MediaDownloader
	posts    *PostSynchronizer
	logger   logger.Logger
}

// NewFeedSynchronizer wires a feed synchronizer
func NewFeedSynchronizer(
	source feed.Source,
	resolver *identity.Resolver,
	archive *storage.Archive,
	ledgers *ledger.Manager,
	media MediaDownloader,
	incremental bool,
	log logger.Logger,
) *FeedSynchronizer {
	log = logger.OrDefault(log)
	return &FeedSynchronizer{
		source:   source,
		resolver: resolver,
		archive:  archive,
		ledger:   ledgers,
		media:    media,
		posts:    NewPostSynchronizer(source, archive, media, incremental, log),
		logger:   log,
	}
}

// Sync mirrors account. Per-post and per-media failures never surface as an
// error; cancellation of ctx returns the stats so far with errs.ErrInterrupted.
func (f *FeedSynchronizer) Sync(ctx context.Context, account Account) (Stats, error) {
	start := time.Now()
	logger.LogAccountStart(f.logger, account.ID, account.Locator)

	listing, err := f.source.ListPosts(ctx, account.Locator)
	if err != nil {
		if ctx.Err() != nil {
			return Stats{}, errs.ErrInterrupted
		}
		f.logger.WithError(err).WarnWithFields("Skipping account: listing unavailable", map[string]interface{}{
			"account_id": account.ID,
		})
		return Stats{Duration: time.Since(start)}, nil
	}
	if listing.Empty() {
		f.logger.InfoWithFields("Skipping account: listing is empty", map[string]interface{}{
			"account_id": account.ID,
		})
		return Stats{Duration: time.Since(start)}, nil
	}

	id := f.resolver.Resolve(ctx, account.ID, listing)
	stats := Stats{Identity: id.Name, IdentitySource: id.Source}
	log := f.logger.WithFields(map[string]interface{}{
		"account_id": account.ID,
		"identity":   id.Name,
	})

	if err := f.archive.EnsureDir(id.Name); err != nil {
		stats.Duration = time.Since(start)
		return stats, fmt.Errorf("creating identity folder: %w", err)
	}
	if err := f.archive.WriteFile(storage.ListingPath(id.Name, account.Locator), listing.Raw); err != nil {
		log.WithError(err).Warn("Failed to save listing")
	}

	pending, recovered, ledgerKnown := f.replay(ctx, id.Name, log)
	stats.DownloadedMedia += recovered

	var fresh []ledger.Entry
	interrupted := false
	locators := listing.Locators()
	for i, locator := range locators {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		log.DebugWithFields("Processing post", map[string]interface{}{
			"position": i + 1,
			"total":    len(locators),
		})
		res := f.posts.ProcessPost(ctx, id.Name, locator)
		if res.Processed {
			stats.ProcessedPosts++
		}
		stats.DownloadedMedia += res.Downloaded
		fresh = append(fresh, res.Failures...)

		if !res.Continue {
			stats.Halted = true
			break
		}
	}

	if ledgerKnown {
		merged := ledger.Merge(pending, fresh)
		if err := f.ledger.Save(id.Name, merged); err != nil {
			log.WithError(err).Warn("Failed to save ledger")
		}
		stats.FailedMedia = len(merged)
	} else {
		// the unreadable ledger is left as is; this run's failures wait beside it
		if err := f.ledger.Stash(id.Name, fresh); err != nil {
			log.WithError(err).Error("Failed to stash failed downloads")
		}
		stats.FailedMedia = len(fresh)
	}
	stats.Duration = time.Since(start)

	logger.LogMetrics(log, "sync_account", stats.Duration, map[string]interface{}{
		"processed_posts":  stats.ProcessedPosts,
		"downloaded_media": stats.DownloadedMedia,
		"failed_media":     stats.FailedMedia,
		"halted":           stats.Halted,
	})

	if interrupted {
		return stats, errs.ErrInterrupted
	}
	return stats, nil
}

// replay retries every ledger entry of identity. It returns the entries that
// are still pending, how many were downloaded and whether the ledger could be
// read at all. Entries not attempted because ctx was cancelled stay pending.
func (f *FeedSynchronizer) replay(ctx context.Context, identity string, log logger.Logger) ([]ledger.Entry, int, bool) {
	entries, err := f.ledger.Load(identity)
	if errors.Is(err, ledger.ErrCorrupt) {
		log.WithError(err).Warn("Ledger is corrupt, moving it aside")
		if qerr := f.ledger.Quarantine(identity); qerr != nil {
			log.WithError(qerr).Error("Failed to move corrupt ledger aside")
			return nil, 0, false
		}
		entries, err = f.ledger.Load(identity)
	}
	if err != nil {
		log.WithError(err).Error("Ledger unreadable, keeping it for the next run")
		return nil, 0, false
	}
	if len(entries) == 0 {
		return nil, 0, true
	}

	log.InfoWithFields("Replaying ledger", map[string]interface{}{"pending": len(entries)})

	var pending []ledger.Entry
	recovered := 0
	for i, e := range entries {
		if ctx.Err() != nil {
			pending = append(pending, entries[i:]...)
			break
		}
		switch res := f.media.Download(ctx, e); res.Outcome {
		case downloader.Success:
			recovered++
		case downloader.Failed:
			pending = append(pending, e)
		}
	}
	return pending, recovered, true
}
