package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"feedmirror/pkg/logger"
	"feedmirror/pkg/storage"
)

// Entry is a media item whose download exhausted its retry budget. It carries
// everything needed to retry it without revisiting the owning post.
type Entry struct {
	Locator   string `json:"locator"`
	DestDir   string `json:"destDir"`
	Timestamp int64  `json:"timestamp"`
	ID        string `json:"id"`
	Ordinal   int    `json:"ordinal"`
	Identity  string `json:"identity"`
}

type entryKey struct {
	locator string
	ordinal int
}

func (e Entry) key() entryKey {
	return entryKey{locator: e.Locator, ordinal: e.Ordinal}
}

// Merge returns the union of still-pending and newly failed entries,
// deduplicated by (locator, ordinal). The first occurrence wins.
func Merge(pending, fresh []Entry) []Entry {
	seen := make(map[entryKey]struct{}, len(pending)+len(fresh))
	out := make([]Entry, 0, len(pending)+len(fresh))
	for _, list := range [][]Entry{pending, fresh} {
		for _, e := range list {
			if _, dup := seen[e.key()]; dup {
				continue
			}
			seen[e.key()] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// ErrCorrupt marks a ledger file that exists but cannot be decoded
var ErrCorrupt = errors.New("ledger file is corrupt")

// Manager persists one ledger file per identity. Failures recorded while the
// ledger could not be read go to a stash file, which Load merges back and
// Save clears.
type Manager struct {
	archive *storage.Archive
	logger  logger.Logger
}

// NewManager creates a ledger manager over an archive
func NewManager(archive *storage.Archive, log logger.Logger) *Manager {
	return &Manager{archive: archive, logger: logger.OrDefault(log)}
}

// Load returns the pending entries for identity; a missing ledger yields nil.
// Any error means the pending set is unknown and the ledger must not be
// overwritten; ErrCorrupt can be cleared with Quarantine.
func (m *Manager) Load(identity string) ([]Entry, error) {
	entries, err := m.read(storage.LedgerPath(identity))
	if err != nil {
		return nil, err
	}
	stashed, err := m.read(storage.LedgerStashPath(identity))
	if err != nil {
		return nil, err
	}
	if len(stashed) > 0 {
		entries = Merge(entries, stashed)
	}

	m.logger.DebugWithFields("Ledger loaded", map[string]interface{}{
		"identity": identity,
		"pending":  len(entries),
		"stashed":  len(stashed),
	})
	return entries, nil
}

func (m *Manager) read(path string) ([]Entry, error) {
	exists, err := m.archive.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	if !exists {
		return nil, nil
	}

	data, err := m.archive.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return entries, nil
}

// Save replaces the ledger with entries, or deletes it when there are none.
// Entries must include everything Load returned that is still pending.
func (m *Manager) Save(identity string, entries []Entry) error {
	path := storage.LedgerPath(identity)
	entries = Merge(entries, nil)

	if len(entries) == 0 {
		if err := m.archive.Remove(path); err != nil {
			return fmt.Errorf("failed to delete empty ledger: %w", err)
		}
	} else if err := m.archive.WriteJSON(path, entries); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}

	if err := m.archive.Remove(storage.LedgerStashPath(identity)); err != nil {
		return fmt.Errorf("failed to clear ledger stash: %w", err)
	}

	m.logger.InfoWithFields("Ledger saved", map[string]interface{}{
		"identity": identity,
		"pending":  len(entries),
	})
	return nil
}

// Stash records entries without touching the ledger file, for runs where the
// ledger could not be loaded. The next successful Load returns them.
func (m *Manager) Stash(identity string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	path := storage.LedgerStashPath(identity)
	existing, err := m.read(path)
	if err != nil {
		return fmt.Errorf("failed to stash %d entries: %w", len(entries), err)
	}

	merged := Merge(existing, entries)
	if err := m.archive.WriteJSON(path, merged); err != nil {
		return fmt.Errorf("failed to stash %d entries: %w", len(entries), err)
	}
	m.logger.WarnWithFields("Ledger entries stashed", map[string]interface{}{
		"identity": identity,
		"stashed":  len(merged),
	})
	return nil
}

// Quarantine moves every undecodable ledger file of identity to a .bak copy so
// the next Load starts from what is still readable
func (m *Manager) Quarantine(identity string) error {
	for _, path := range []string{storage.LedgerPath(identity), storage.LedgerStashPath(identity)} {
		if _, err := m.read(path); !errors.Is(err, ErrCorrupt) {
			continue
		}
		data, err := m.archive.ReadFile(path)
		if err != nil {
			return err
		}
		if err := m.archive.WriteFile(path+".bak", data); err != nil {
			return fmt.Errorf("backing up corrupt ledger: %w", err)
		}
		if err := m.archive.Remove(path); err != nil {
			return err
		}
		m.logger.WarnWithFields("Corrupt ledger moved aside", map[string]interface{}{
			"identity": identity,
			"backup":   path + ".bak",
		})
	}
	return nil
}

// Exists reports whether identity has pending entries on disk
func (m *Manager) Exists(identity string) bool {
	for _, path := range []string{storage.LedgerPath(identity), storage.LedgerStashPath(identity)} {
		if exists, err := m.archive.Exists(path); err == nil && exists {
			return true
		}
	}
	return false
}
