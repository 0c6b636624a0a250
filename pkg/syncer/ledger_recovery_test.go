package syncer

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedmirror/pkg/ledger"
	"feedmirror/pkg/storage"
)

// unreadableLedgerFS fails every open of a ledger file while broken is set
type unreadableLedgerFS struct {
	billy.Filesystem
	mu     sync.Mutex
	broken bool
}

func (f *unreadableLedgerFS) Open(name string) (billy.File, error) {
	f.mu.Lock()
	broken := f.broken
	f.mu.Unlock()
	if broken && path.Base(name) == storage.LedgerFile {
		return nil, errors.New("input/output error")
	}
	return f.Filesystem.Open(name)
}

func (f *unreadableLedgerFS) setBroken(broken bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken = broken
}

func newUnreadableLedgerEnv() (*testEnv, *unreadableLedgerFS) {
	fs := &unreadableLedgerFS{Filesystem: memfs.New()}
	env := newTestEnv()
	env.archive = storage.New(fs, time.UTC)
	env.ledgers = ledger.NewManager(env.archive, env.log)
	return env, fs
}

func pendingEntry(id string) ledger.Entry {
	return ledger.Entry{
		Locator:   "https://cdn.example.com/" + id + ".jpg",
		DestDir:   "alice",
		Timestamp: baseTS,
		ID:        id,
		Ordinal:   1,
		Identity:  "alice",
	}
}

func TestSyncKeepsUnreadableLedger(t *testing.T) {
	env, fs := newUnreadableLedgerEnv()
	env.addPosts(1, "p1")
	old := pendingEntry("old")
	require.NoError(t, env.ledgers.Save("alice", []ledger.Entry{old}))

	fs.setBroken(true)
	stats, err := env.synchronizer(true).Sync(context.Background(), account())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DownloadedMedia)
	assert.Zero(t, stats.FailedMedia)
	fs.setBroken(false)

	assert.True(t, env.exists(t, storage.LedgerPath("alice")), "pending entries survive an unreadable ledger")
	assert.False(t, env.exists(t, storage.LedgerStashPath("alice")))
	entries, err := env.ledgers.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, []ledger.Entry{old}, entries)
}

func TestSyncStashesFailuresWhileLedgerUnreadable(t *testing.T) {
	env, fs := newUnreadableLedgerEnv()
	env.addPosts(1, "p1")
	old := pendingEntry("old")
	require.NoError(t, env.ledgers.Save("alice", []ledger.Entry{old}))

	fs.setBroken(true)
	env.fetcher.SetFailing("https://cdn.example.com/p1/1.png")
	stats, err := env.synchronizer(true).Sync(context.Background(), account())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FailedMedia)

	fs.setBroken(false)
	fresh := ledger.Entry{
		Locator:   "https://cdn.example.com/p1/1.png",
		DestDir:   "alice",
		Timestamp: baseTS,
		ID:        "p1",
		Ordinal:   1,
		Identity:  "alice",
	}
	entries, err := env.ledgers.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, []ledger.Entry{old, fresh}, entries)

	// next run replays both and converges
	env.fetcher.SetFailing()
	stats, err = env.synchronizer(true).Sync(context.Background(), account())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DownloadedMedia)
	assert.Zero(t, stats.FailedMedia)
	assert.False(t, env.ledgers.Exists("alice"))
}

func TestSyncMovesCorruptLedgerAside(t *testing.T) {
	env := newTestEnv()
	env.addPosts(1, "p1")
	require.NoError(t, env.archive.WriteFile(storage.LedgerPath("alice"), []byte("{not json")))
	env.fetcher.SetFailing("https://cdn.example.com/p1/1.png")

	stats, err := env.synchronizer(true).Sync(context.Background(), account())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FailedMedia)

	backup, err := env.archive.ReadFile(storage.LedgerPath("alice") + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))

	entries, err := env.ledgers.Load("alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p1", entries[0].ID)
}
