package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	// UnknownDate replaces the date prefix when a timestamp cannot be represented
	UnknownDate = "unknown_date"

	// LedgerFile holds an identity's undownloaded media
	LedgerFile = "undownloaded.json"
	// LedgerStashFile holds failures recorded while the ledger itself was unreadable
	LedgerStashFile = "undownloaded.pending.json"
	// RunLogFile is the append-only per-account timing log at the archive root
	RunLogFile = "processing_time_log.json"

	metadataDir = "metadata"
	listingDir  = "step1"
	rawPostDir  = "step2"
)

var unsafeLocatorChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// DateString formats ts as YYYY-MM-DD in loc
func DateString(ts int64, loc *time.Location) string {
	if ts < 0 {
		return UnknownDate
	}
	t := time.Unix(ts, 0).In(loc)
	if t.Year() > 9999 {
		return UnknownDate
	}
	return t.Format("2006-01-02")
}

// SanitizeLocator turns a locator into a file name stem
func SanitizeLocator(locator string) string {
	s := strings.TrimPrefix(locator, "https://")
	s = strings.TrimPrefix(s, "http://")
	return unsafeLocatorChars.ReplaceAllString(s, "_")
}

// PostStem is the <date>_<id> prefix shared by every file derived from a post
func PostStem(date, postID string) string {
	return date + "_" + postID
}

// MediaName is the deterministic media file name for an attachment
func MediaName(date, postID string, ordinal int, ext string) string {
	return fmt.Sprintf("%s_%d%s", PostStem(date, postID), ordinal, ext)
}

// ListingPath is where an account's raw listing is stored
func ListingPath(identity, locator string) string {
	return path.Join(identity, metadataDir, listingDir, SanitizeLocator(locator)+".json")
}

// RawPostDir holds the raw per-post records of an identity
func RawPostDir(identity string) string {
	return path.Join(identity, metadataDir, rawPostDir)
}

// RawPostPath is where a post's raw record is stored
func RawPostPath(identity, date, postID string) string {
	return path.Join(RawPostDir(identity), PostStem(date, postID)+".json")
}

// CanonicalPath is the post's canonical record; its existence is the sync checkpoint
func CanonicalPath(identity, date, postID string) string {
	return path.Join(identity, PostStem(date, postID)+".json")
}

// MediaPath places a media file inside dir
func MediaPath(dir, date, postID string, ordinal int, ext string) string {
	return path.Join(dir, MediaName(date, postID, ordinal, ext))
}

// LedgerPath is the identity's retry ledger
func LedgerPath(identity string) string {
	return path.Join(identity, LedgerFile)
}

// LedgerStashPath is where failures wait while the ledger cannot be read
func LedgerStashPath(identity string) string {
	return path.Join(identity, LedgerStashFile)
}
