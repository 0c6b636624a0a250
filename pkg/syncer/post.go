package syncer

import (
	"context"

	"feedmirror/internal/downloader"
	"feedmirror/pkg/feed"
	"feedmirror/pkg/ledger"
	"feedmirror/pkg/logger"
	"feedmirror/pkg/storage"
)

// MediaDownloader downloads a single media item into the archive
type MediaDownloader interface {
	Download(ctx context.Context, item ledger.Entry) downloader.Result
}

// PostResult is the outcome of processing one post
type PostResult struct {
	// Continue is false when the post was already synchronized and the walk should stop
	Continue bool
	// Processed is true when the post was fetched and worked on
	Processed  bool
	Downloaded int
	Failures   []ledger.Entry
}

// PostSynchronizer mirrors a single post
type PostSynchronizer struct {
	source      feed.Source
	archive     *storage.Archive
	media       MediaDownloader
	incremental bool
	logger      logger.Logger
}

// NewPostSynchronizer creates a post synchronizer
func NewPostSynchronizer(source feed.Source, archive *storage.Archive, media MediaDownloader, incremental bool, log logger.Logger) *PostSynchronizer {
	return &PostSynchronizer{
		source:      source,
		archive:     archive,
		media:       media,
		incremental: incremental,
		logger:      logger.OrDefault(log),
	}
}

// ProcessPost mirrors the post at locator into identity's folder
func (p *PostSynchronizer) ProcessPost(ctx context.Context, identity, locator string) PostResult {
	log := p.logger.WithFields(map[string]interface{}{
		"identity": identity,
		"locator":  locator,
	})

	post, err := p.source.GetPost(ctx, locator)
	if err != nil {
		log.WithError(err).Warn("Skipping post: record unavailable")
		return PostResult{Continue: true}
	}
	if !post.Valid() {
		log.Warn("Skipping post: record has no id or timestamp")
		return PostResult{Continue: true}
	}

	date := p.archive.Date(post.Timestamp)
	log = log.WithField("post_id", post.ID)

	synced, err := p.archive.Exists(storage.CanonicalPath(identity, date, post.ID))
	if err != nil {
		log.WithError(err).Warn("Could not check content record")
	}
	if synced && p.incremental {
		log.Info("Reached previously synchronized post")
		return PostResult{Continue: false}
	}

	if _, err := p.archive.WriteFileIfAbsent(storage.RawPostPath(identity, date, post.ID), post.Raw); err != nil {
		log.WithError(err).Warn("Failed to save raw post record")
	}

	result := PostResult{Continue: true, Processed: true}
	for _, m := range post.Media {
		item := ledger.Entry{
			Locator:   m.Locator,
			DestDir:   identity,
			Timestamp: post.Timestamp,
			ID:        post.ID,
			Ordinal:   m.Ordinal,
			Identity:  identity,
		}
		switch res := p.media.Download(ctx, item); res.Outcome {
		case downloader.Success:
			result.Downloaded++
		case downloader.Failed:
			result.Failures = append(result.Failures, item)
		}
	}

	written, err := writeRecord(p.archive, identity, date, post.ID, locator)
	if err != nil {
		log.WithError(err).Warn("Failed to write content record")
	}

	log.DebugWithFields("Post processed", map[string]interface{}{
		"media":          len(post.Media),
		"downloaded":     result.Downloaded,
		"failed":         len(result.Failures),
		"record_written": written,
	})
	return result
}
