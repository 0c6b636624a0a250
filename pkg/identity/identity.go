// Package identity resolves the local folder name an account is mirrored into.
//
// Resolution tries, in order: a configured override, the display name carried
// by the account's listing, the author name of the first post, a scan of the
// archive for raw post records written under an earlier name, and finally the
// decimal account id. The archive scan is the only step that walks the disk
// and it runs at most once per Resolver.
package identity

import (
	"context"
	"strconv"
	"strings"

	"feedmirror/pkg/feed"
	"feedmirror/pkg/logger"
	"feedmirror/pkg/storage"
)

// Source records which step produced an identity
type Source int

const (
	SourceOverride Source = iota
	SourceFeed
	SourcePost
	SourceArchiveScan
	SourceAccountID
)

func (s Source) String() string {
	switch s {
	case SourceOverride:
		return "override"
	case SourceFeed:
		return "feed"
	case SourcePost:
		return "post"
	case SourceArchiveScan:
		return "archive_scan"
	default:
		return "account_id"
	}
}

// Identity is the resolved folder name of an account
type Identity struct {
	Name   string
	Source Source
}

var reservedChars = strings.NewReplacer(
	`\`, "", "/", "", "*", "", "?", "", ":", "", `"`, "", "<", "", ">", "", "|", "",
)

// Sanitize strips path delimiters and reserved file name characters. A result
// that is empty or names a relative directory is returned as "".
func Sanitize(name string) string {
	s := strings.TrimSpace(reservedChars.Replace(name))
	if s == "." || s == ".." {
		return ""
	}
	return s
}

// PostGetter fetches a single post record
type PostGetter interface {
	GetPost(ctx context.Context, locator string) (*feed.Post, error)
}

// Resolver resolves identities for a single run
type Resolver struct {
	overrides map[int64]string
	posts     PostGetter
	archive   *storage.Archive
	logger    logger.Logger

	scanned bool
	known   map[int64]string
}

// NewResolver creates a resolver. overrides and posts may be nil.
func NewResolver(overrides map[int64]string, posts PostGetter, archive *storage.Archive, log logger.Logger) *Resolver {
	return &Resolver{
		overrides: overrides,
		posts:     posts,
		archive:   archive,
		logger:    logger.OrDefault(log),
	}
}

// Resolve picks the folder name for accountID. listing may be nil.
func (r *Resolver) Resolve(ctx context.Context, accountID int64, listing *feed.Listing) Identity {
	id := r.resolve(ctx, accountID, listing)
	r.logger.InfoWithFields("Identity resolved", map[string]interface{}{
		"account_id": accountID,
		"identity":   id.Name,
		"source":     id.Source.String(),
	})
	return id
}

func (r *Resolver) resolve(ctx context.Context, accountID int64, listing *feed.Listing) Identity {
	if name := Sanitize(r.overrides[accountID]); name != "" {
		return Identity{Name: name, Source: SourceOverride}
	}

	if name := Sanitize(listing.DisplayName()); name != "" {
		return Identity{Name: name, Source: SourceFeed}
	}

	if name := r.fromFirstPost(ctx, listing); name != "" {
		return Identity{Name: name, Source: SourcePost}
	}

	if name := r.fromArchive(accountID); name != "" {
		return Identity{Name: name, Source: SourceArchiveScan}
	}

	return Identity{Name: strconv.FormatInt(accountID, 10), Source: SourceAccountID}
}

func (r *Resolver) fromFirstPost(ctx context.Context, listing *feed.Listing) string {
	locators := listing.Locators()
	if r.posts == nil || len(locators) == 0 {
		return ""
	}

	post, err := r.posts.GetPost(ctx, locators[0])
	if err != nil {
		r.logger.WithError(err).DebugWithFields("Could not fetch first post for identity", map[string]interface{}{
			"locator": locators[0],
		})
		return ""
	}
	return Sanitize(post.AuthorName)
}

// fromArchive looks up accountID in an index of existing identity folders
// keyed by the author id found in their raw post records.
func (r *Resolver) fromArchive(accountID int64) string {
	if r.archive == nil {
		return ""
	}
	if !r.scanned {
		r.known = r.scan()
		r.scanned = true
	}
	return r.known[accountID]
}

func (r *Resolver) scan() map[int64]string {
	known := make(map[int64]string)

	dirs, err := r.archive.ListDirs("")
	if err != nil {
		r.logger.WithError(err).Warn("Archive scan failed")
		return known
	}

	for _, dir := range dirs {
		files, err := r.archive.ListFiles(storage.RawPostDir(dir), ".json")
		if err != nil {
			continue
		}
		for _, name := range files {
			data, err := r.archive.ReadFile(storage.RawPostDir(dir) + "/" + name)
			if err != nil {
				continue
			}
			post, err := feed.ParsePost(data)
			if err != nil || post.AuthorID == 0 {
				continue
			}
			if _, taken := known[post.AuthorID]; !taken {
				known[post.AuthorID] = dir
			}
			break
		}
	}

	r.logger.DebugWithFields("Archive scanned for identities", map[string]interface{}{
		"folders":    len(dirs),
		"identities": len(known),
	})
	return known
}
