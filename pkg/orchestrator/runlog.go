package orchestrator

import (
	"encoding/json"
	"fmt"

	"feedmirror/pkg/storage"
)

// RunRecord is one account's entry in the processing time log
type RunRecord struct {
	RunID           string  `json:"run_id"`
	AccountID       int64   `json:"account_id"`
	Identity        string  `json:"identity"`
	Timestamp       string  `json:"timestamp"`
	DurationSeconds float64 `json:"duration_seconds"`
	ProcessedPosts  int     `json:"processed_posts"`
	DownloadedMedia int     `json:"downloaded_media"`
	FailedMedia     int     `json:"failed_media"`
	Status          string  `json:"status"`
}

// RunLog is the append-only JSON array of RunRecords at the archive root
type RunLog struct {
	archive *storage.Archive
}

// NewRunLog opens the run log of archive
func NewRunLog(archive *storage.Archive) *RunLog {
	return &RunLog{archive: archive}
}

// Records returns every record in the log, oldest first
func (l *RunLog) Records() ([]RunRecord, error) {
	exists, err := l.archive.Exists(storage.RunLogFile)
	if err != nil || !exists {
		return nil, err
	}

	data, err := l.archive.ReadFile(storage.RunLogFile)
	if err != nil {
		return nil, err
	}
	var records []RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", storage.RunLogFile, err)
	}
	return records, nil
}

// Append adds rec to the log. An undecodable log is copied to a .bak file and
// replaced by a fresh one.
func (l *RunLog) Append(rec RunRecord) error {
	records, err := l.Records()
	if err != nil {
		data, readErr := l.archive.ReadFile(storage.RunLogFile)
		if readErr != nil {
			return err
		}
		if err := l.archive.WriteFile(storage.RunLogFile+".bak", data); err != nil {
			return fmt.Errorf("backing up run log: %w", err)
		}
		records = nil
	}

	records = append(records, rec)
	return l.archive.WriteJSON(storage.RunLogFile, records)
}
