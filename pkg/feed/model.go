package feed

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// Source lists an account's posts and fetches individual post records
type Source interface {
	ListPosts(ctx context.Context, locator string) (*Listing, error)
	GetPost(ctx context.Context, locator string) (*Post, error)
}

// Listing is the flat, newest-first list of post locators for an account
type Listing struct {
	Entries []ListingEntry
	// Raw is the payload exactly as the feed source produced it
	Raw json.RawMessage
}

// ListingEntry is one post in a listing
type ListingEntry struct {
	Locator     string
	DisplayName string
}

// Locators returns the post locators in listing order
func (l *Listing) Locators() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, e.Locator)
	}
	return out
}

// DisplayName returns the account name carried by the first entry, if any
func (l *Listing) DisplayName() string {
	if l == nil || len(l.Entries) == 0 {
		return ""
	}
	return l.Entries[0].DisplayName
}

// Empty reports whether the listing has no posts
func (l *Listing) Empty() bool {
	return l == nil || len(l.Entries) == 0
}

// Post is the detailed record for a single post
type Post struct {
	Locator    string
	ID         string
	Timestamp  int64
	AuthorName string
	AuthorID   int64
	Title      string
	Body       Body
	Stats      Stats
	Media      []MediaItem
	Raw        json.RawMessage
}

// Valid reports whether the post carries the id and timestamp every derived name depends on
func (p *Post) Valid() bool {
	return p != nil && p.ID != "" && p.Timestamp > 0
}

// MediaItem is one attachment of a post
type MediaItem struct {
	Locator string
	// Ordinal is 1-based and stable across runs
	Ordinal int
	Ext     string
}

// Stats are the engagement counters of a post
type Stats struct {
	Likes     int64 `json:"likes"`
	Comments  int64 `json:"comments"`
	Forwards  int64 `json:"forwards"`
	Favorites int64 `json:"favorites"`
}

// BodyKind identifies which payload shape a post body was recovered from
type BodyKind int

const (
	BodyUnrecognized BodyKind = iota
	BodyRichText
	BodyParagraphs
)

func (k BodyKind) String() string {
	switch k {
	case BodyRichText:
		return "rich_text"
	case BodyParagraphs:
		return "paragraphs"
	default:
		return "unrecognized"
	}
}

// Body is the text of a post. Text is empty when Kind is BodyUnrecognized.
type Body struct {
	Kind BodyKind
	Text string
}

// Present reports whether a body was recovered
func (b Body) Present() bool {
	return b.Kind != BodyUnrecognized && b.Text != ""
}

var extPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)`)

// ExtensionFor infers a media file extension from its locator, defaulting to .jpg
func ExtensionFor(locator string) string {
	if m := extPattern.FindString(locator); m != "" {
		return strings.ToLower(m)
	}
	return ".jpg"
}
