package syncer

import (
	"fmt"

	"feedmirror/pkg/feed"
	"feedmirror/pkg/storage"
)

// Record is the canonical content record of a post. Title and Body are null
// when the post has none that could be recovered.
type Record struct {
	Locator   string     `json:"locator"`
	ID        string     `json:"id"`
	Timestamp int64      `json:"timestamp"`
	Title     *string    `json:"title"`
	Body      *string    `json:"body"`
	Stats     feed.Stats `json:"stats"`
}

// DeriveRecord builds the canonical record from a stored raw post record
func DeriveRecord(raw []byte, locator string) (Record, error) {
	post, err := feed.ParsePost(raw)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Locator:   locator,
		ID:        post.ID,
		Timestamp: post.Timestamp,
		Stats:     post.Stats,
	}
	if post.Title != "" {
		title := post.Title
		rec.Title = &title
	}
	if post.Body.Present() {
		body := post.Body.Text
		rec.Body = &body
	}
	return rec, nil
}

// writeRecord derives the canonical record of a post from its raw record on
// disk and writes it unless it already exists.
func writeRecord(archive *storage.Archive, identity, date, postID, locator string) (bool, error) {
	canonical := storage.CanonicalPath(identity, date, postID)
	exists, err := archive.Exists(canonical)
	if err != nil || exists {
		return false, err
	}

	raw, err := archive.ReadFile(storage.RawPostPath(identity, date, postID))
	if err != nil {
		return false, fmt.Errorf("raw record unavailable: %w", err)
	}
	rec, err := DeriveRecord(raw, locator)
	if err != nil {
		return false, fmt.Errorf("deriving content record: %w", err)
	}
	return archive.WriteJSONIfAbsent(canonical, rec)
}
