package downloader

import (
	"context"
	"fmt"
	"time"

	"feedmirror/pkg/archivedb"
	errs "feedmirror/pkg/errors"
	"feedmirror/pkg/feed"
	"feedmirror/pkg/fetcher"
	"feedmirror/pkg/ledger"
	"feedmirror/pkg/logger"
	"feedmirror/pkg/retry"
	"feedmirror/pkg/storage"
)

// Outcome classifies a single media download
type Outcome int

const (
	Failed Outcome = iota
	Success
	AlreadyPresent
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case AlreadyPresent:
		return "already_present"
	default:
		return "failed"
	}
}

// Result represents the result of a download
type Result struct {
	Item     ledger.Entry
	Outcome  Outcome
	Path     string
	Size     int64
	Error    error
	Duration time.Duration
}

// Recorder indexes successful downloads
type Recorder interface {
	Record(ctx context.Context, dl archivedb.Download) error
}

// Options tune the retry budget of a Downloader
type Options struct {
	// Attempts is the total number of tries per item
	Attempts   int
	RetryDelay time.Duration
	// Index, when set, is told about every successful download
	Index Recorder
}

// Downloader fetches media into the archive one item at a time
type Downloader struct {
	fetcher fetcher.Fetcher
	archive *storage.Archive
	index   Recorder
	retry   *retry.Config
	logger  logger.Logger
}

// New creates a downloader
func New(f fetcher.Fetcher, archive *storage.Archive, opts Options, log logger.Logger) *Downloader {
	log = logger.OrDefault(log)
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}

	return &Downloader{
		fetcher: f,
		archive: archive,
		index:   opts.Index,
		retry:   retry.FixedConfig(opts.Attempts, opts.RetryDelay, log),
		logger:  log,
	}
}

// Path is the deterministic destination of item
func (d *Downloader) Path(item ledger.Entry) string {
	return storage.MediaPath(item.DestDir, d.archive.Date(item.Timestamp), item.ID, item.Ordinal, feed.ExtensionFor(item.Locator))
}

// Download transfers item unless its destination already exists. Each
// transfer runs to completion even if ctx is cancelled; cancellation only
// cuts short the pause between attempts, which yields Failed.
func (d *Downloader) Download(ctx context.Context, item ledger.Entry) Result {
	start := time.Now()
	result := Result{Item: item, Outcome: Failed, Path: d.Path(item)}

	exists, err := d.archive.Exists(result.Path)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		logger.LogDownload(d.logger, item.Identity, item.ID, item.Ordinal, result.Outcome.String(), err)
		return result
	}
	if exists {
		result.Outcome = AlreadyPresent
		result.Duration = time.Since(start)
		logger.LogDownload(d.logger, item.Identity, item.ID, item.Ordinal, result.Outcome.String(), nil)
		return result
	}

	err = retry.Do(ctx, func(ctx context.Context) error {
		n, err := d.transfer(context.WithoutCancel(ctx), item.Locator, result.Path)
		result.Size = n
		return err
	}, d.retry)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		logger.LogDownload(d.logger, item.Identity, item.ID, item.Ordinal, result.Outcome.String(), result.Error)
		return result
	}

	result.Outcome = Success
	d.record(ctx, item, result.Path)
	logger.LogDownload(d.logger, item.Identity, item.ID, item.Ordinal, result.Outcome.String(), nil)
	return result
}

func (d *Downloader) transfer(ctx context.Context, locator, dest string) (int64, error) {
	body, err := d.fetcher.Fetch(ctx, locator)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := d.archive.SaveStream(dest, body)
	if err != nil {
		if errs.TypeOf(err) == errs.ErrorTypeUnknown {
			return n, errs.Wrap(errs.ErrorTypeIO, "save failed", err)
		}
		return n, err
	}
	return n, nil
}

func (d *Downloader) record(ctx context.Context, item ledger.Entry, path string) {
	if d.index == nil {
		return
	}
	dl := archivedb.Download{
		Entry:    archivedb.EntryKey(item.Identity, item.ID, item.Ordinal),
		Identity: item.Identity,
		PostID:   item.ID,
		Ordinal:  item.Ordinal,
		Path:     path,
	}
	if err := d.index.Record(context.WithoutCancel(ctx), dl); err != nil {
		d.logger.WithError(err).WarnWithFields("Failed to index download", map[string]interface{}{
			"entry": dl.Entry,
		})
	}
}
