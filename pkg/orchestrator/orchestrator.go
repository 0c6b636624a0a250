// Package orchestrator runs the mirror over every configured account and
// reports what each one produced.
package orchestrator

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/google/uuid"

	errs "feedmirror/pkg/errors"
	"feedmirror/pkg/logger"
	"feedmirror/pkg/storage"
	"feedmirror/pkg/syncer"
)

// Account statuses
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusInterrupted = "interrupted"
)

// Syncer mirrors a single account
type Syncer interface {
	Sync(ctx context.Context, account syncer.Account) (syncer.Stats, error)
}

// AccountReport is the outcome of one account in a run
type AccountReport struct {
	AccountID       int64   `json:"account_id"`
	Identity        string  `json:"identity"`
	IdentitySource  string  `json:"identity_source"`
	Status          string  `json:"status"`
	ProcessedPosts  int     `json:"processed_posts"`
	DownloadedMedia int     `json:"downloaded_media"`
	FailedMedia     int     `json:"failed_media"`
	Halted          bool    `json:"halted_at_checkpoint"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

// Report summarizes a run
type Report struct {
	RunID           string          `json:"run_id"`
	GeneratedAt     time.Time       `json:"generated_at"`
	TotalProcessed  int             `json:"total_processed"`
	TotalDownloaded int             `json:"total_downloaded"`
	TotalFailed     int             `json:"total_failed"`
	Interrupted     bool            `json:"interrupted"`
	Accounts        []AccountReport `json:"accounts"`

	// SummaryPath is where the report was written, relative to the archive root
	SummaryPath string `json:"-"`
}

// Options control run reporting
type Options struct {
	WriteSummary bool
	// SummaryDir is relative to the archive root
	SummaryDir string
}

// Orchestrator drives a run over a list of accounts
type Orchestrator struct {
	syncer  Syncer
	archive *storage.Archive
	runLog  *RunLog
	opts    Options
	logger  logger.Logger

	now   func() time.Time
	newID func() string
}

// New creates an orchestrator
func New(s Syncer, archive *storage.Archive, opts Options, log logger.Logger) *Orchestrator {
	if opts.SummaryDir == "" {
		opts.SummaryDir = "summaries"
	}
	return &Orchestrator{
		syncer:  s,
		archive: archive,
		runLog:  NewRunLog(archive),
		opts:    opts,
		logger:  logger.OrDefault(log),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Run syncs accounts in order. A failing account is recorded and the run moves
// on; cancellation of ctx stops the run after the current account and the
// report covers what finished.
func (o *Orchestrator) Run(ctx context.Context, accounts []syncer.Account) (*Report, error) {
	if len(accounts) == 0 {
		return nil, errs.ErrNoAccounts
	}

	runStart := o.now()
	report := &Report{RunID: o.newID()}
	log := o.logger.WithField("run_id", report.RunID)
	log.InfoWithFields("Run started", map[string]interface{}{"accounts": len(accounts)})

	for _, account := range accounts {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		start := o.now()
		stats, err := o.syncer.Sync(ctx, account)
		elapsed := o.now().Sub(start)

		ar := AccountReport{
			AccountID:       account.ID,
			Identity:        stats.Identity,
			Status:          StatusSuccess,
			ProcessedPosts:  stats.ProcessedPosts,
			DownloadedMedia: stats.DownloadedMedia,
			FailedMedia:     stats.FailedMedia,
			Halted:          stats.Halted,
			DurationSeconds: elapsed.Seconds(),
		}
		if stats.Identity != "" {
			ar.IdentitySource = stats.IdentitySource.String()
		}
		switch {
		case errors.Is(err, errs.ErrInterrupted):
			ar.Status = StatusInterrupted
			report.Interrupted = true
		case err != nil:
			ar.Status = StatusError
			ar.Error = err.Error()
			log.WithError(err).ErrorWithFields("Account sync failed", map[string]interface{}{
				"account_id": account.ID,
			})
		}

		report.Accounts = append(report.Accounts, ar)
		report.TotalProcessed += ar.ProcessedPosts
		report.TotalDownloaded += ar.DownloadedMedia
		report.TotalFailed += ar.FailedMedia

		if err := o.runLog.Append(RunRecord{
			RunID:           report.RunID,
			AccountID:       account.ID,
			Identity:        ar.Identity,
			Timestamp:       start.Format(time.RFC3339),
			DurationSeconds: ar.DurationSeconds,
			ProcessedPosts:  ar.ProcessedPosts,
			DownloadedMedia: ar.DownloadedMedia,
			FailedMedia:     ar.FailedMedia,
			Status:          ar.Status,
		}); err != nil {
			log.WithError(err).Warn("Failed to append run log")
		}

		if report.Interrupted {
			break
		}
	}

	report.GeneratedAt = o.now().UTC()
	if o.opts.WriteSummary {
		o.writeSummary(report, log)
	}

	logger.LogMetrics(log, "run", o.now().Sub(runStart), map[string]interface{}{
		"accounts":    len(report.Accounts),
		"downloaded":  report.TotalDownloaded,
		"failed":      report.TotalFailed,
		"interrupted": report.Interrupted,
	})
	return report, nil
}

func (o *Orchestrator) writeSummary(report *Report, log logger.Logger) {
	name := "summary_" + o.now().Format("200601021504") + ".json"
	p := path.Join(o.opts.SummaryDir, name)
	if err := o.archive.WriteJSON(p, report); err != nil {
		log.WithError(err).Warn("Failed to write run summary")
		return
	}
	report.SummaryPath = p
}
