package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "feedmirror/pkg/errors"
	"feedmirror/pkg/identity"
	"feedmirror/pkg/logger"
	"feedmirror/pkg/storage"
	"feedmirror/pkg/syncer"
)

type syncResult struct {
	stats syncer.Stats
	err   error
}

// MockSyncer returns scripted results per account id
type MockSyncer struct {
	results map[int64]syncResult
	calls   []int64
	// cancel, when set, is called after syncing the given account
	cancelAfter int64
	cancel      context.CancelFunc
}

func (m *MockSyncer) Sync(ctx context.Context, account syncer.Account) (syncer.Stats, error) {
	m.calls = append(m.calls, account.ID)
	if m.cancel != nil && account.ID == m.cancelAfter {
		m.cancel()
	}
	r := m.results[account.ID]
	return r.stats, r.err
}

func accounts(ids ...int64) []syncer.Account {
	out := make([]syncer.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, syncer.Account{ID: id, Locator: "feed"})
	}
	return out
}

func newTestOrchestrator(s Syncer, archive *storage.Archive) *Orchestrator {
	o := New(s, archive, Options{WriteSummary: true}, logger.NewNopLogger())
	clock := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	o.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	o.newID = func() string { return "run-1" }
	return o
}

func TestRunAggregatesAccounts(t *testing.T) {
	archive := storage.NewInMemory(time.UTC)
	ms := &MockSyncer{results: map[int64]syncResult{
		1: {stats: syncer.Stats{Identity: "alice", IdentitySource: identity.SourceFeed, ProcessedPosts: 2, DownloadedMedia: 5, FailedMedia: 1}},
		2: {err: errors.New("disk full")},
		3: {stats: syncer.Stats{Identity: "carol", IdentitySource: identity.SourceOverride, DownloadedMedia: 1, Halted: true}},
	}}

	report, err := newTestOrchestrator(ms, archive).Run(context.Background(), accounts(1, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, ms.calls)
	assert.False(t, report.Interrupted)
	assert.Equal(t, 2, report.TotalProcessed)
	assert.Equal(t, 6, report.TotalDownloaded)
	assert.Equal(t, 1, report.TotalFailed)
	require.Len(t, report.Accounts, 3)
	assert.Equal(t, StatusSuccess, report.Accounts[0].Status)
	assert.Equal(t, "feed", report.Accounts[0].IdentitySource)
	assert.Equal(t, StatusError, report.Accounts[1].Status)
	assert.Equal(t, "disk full", report.Accounts[1].Error)
	assert.Empty(t, report.Accounts[1].IdentitySource)
	assert.True(t, report.Accounts[2].Halted)
	assert.Equal(t, 1.0, report.Accounts[0].DurationSeconds)

	records, err := NewRunLog(archive).Records()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, "alice", records[0].Identity)
	assert.Equal(t, StatusError, records[1].Status)

	require.NotEmpty(t, report.SummaryPath)
	assert.Regexp(t, `^summaries/summary_20240305\d{4}\.json$`, report.SummaryPath)
	var written Report
	require.NoError(t, archive.ReadJSON(report.SummaryPath, &written))
	assert.Equal(t, 6, written.TotalDownloaded)
	assert.Len(t, written.Accounts, 3)
}

func TestRunStopsOnInterruption(t *testing.T) {
	archive := storage.NewInMemory(time.UTC)
	ms := &MockSyncer{results: map[int64]syncResult{
		1: {stats: syncer.Stats{Identity: "alice", DownloadedMedia: 2}},
		2: {stats: syncer.Stats{Identity: "bob", DownloadedMedia: 1}, err: errs.ErrInterrupted},
	}}

	report, err := newTestOrchestrator(ms, archive).Run(context.Background(), accounts(1, 2, 3))
	require.NoError(t, err)
	assert.True(t, report.Interrupted)
	assert.Equal(t, []int64{1, 2}, ms.calls)
	assert.Equal(t, 3, report.TotalDownloaded)
	assert.Equal(t, StatusInterrupted, report.Accounts[1].Status)

	records, err := NewRunLog(archive).Records()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRunChecksCancellationBetweenAccounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ms := &MockSyncer{results: map[int64]syncResult{}, cancelAfter: 1, cancel: cancel}

	report, err := newTestOrchestrator(ms, storage.NewInMemory(time.UTC)).Run(ctx, accounts(1, 2))
	require.NoError(t, err)
	assert.True(t, report.Interrupted)
	assert.Equal(t, []int64{1}, ms.calls)
	assert.Len(t, report.Accounts, 1)
}

func TestRunWithoutAccounts(t *testing.T) {
	_, err := newTestOrchestrator(&MockSyncer{}, storage.NewInMemory(time.UTC)).Run(context.Background(), nil)
	assert.ErrorIs(t, err, errs.ErrNoAccounts)
}

func TestRunLogAppendsAndRecoversFromCorruption(t *testing.T) {
	archive := storage.NewInMemory(time.UTC)
	log := NewRunLog(archive)

	require.NoError(t, log.Append(RunRecord{RunID: "a", AccountID: 1}))
	require.NoError(t, log.Append(RunRecord{RunID: "b", AccountID: 2}))
	records, err := log.Records()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	require.NoError(t, archive.WriteFile(storage.RunLogFile, []byte("{not json")))
	require.NoError(t, log.Append(RunRecord{RunID: "c", AccountID: 3}))

	records, err = log.Records()
	require.NoError(t, err)
	assert.Equal(t, []RunRecord{{RunID: "c", AccountID: 3}}, records)

	backup, err := archive.ReadFile(storage.RunLogFile + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))
}
