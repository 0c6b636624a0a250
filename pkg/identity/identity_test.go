package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedmirror/pkg/feed"
	"feedmirror/pkg/feed/feedtest"
	"feedmirror/pkg/logger"
	"feedmirror/pkg/storage"
)

func listing(t *testing.T, displayName string, locators ...string) *feed.Listing {
	t.Helper()
	l, err := feed.ParseListing(feedtest.ListingPayload(displayName, locators...))
	require.NoError(t, err)
	return l
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{`  a/b\c*d?e:f"g<h>i|j  `, "abcdefghij"},
		{"/:*", ""},
		{"..", ""},
		{" 中文 名 ", "中文 名"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), tt.in)
	}
}

func TestResolveOrder(t *testing.T) {
	ctx := context.Background()
	src := feedtest.NewSource()
	src.AddPost("p1", feedtest.PostSpec{ID: "1", Timestamp: 1700000000, AuthorID: 42, AuthorName: "Poster/Name"})

	t.Run("override wins", func(t *testing.T) {
		r := NewResolver(map[int64]string{42: "Chosen"}, src, nil, logger.NewNopLogger())
		assert.Equal(t, Identity{Name: "Chosen", Source: SourceOverride}, r.Resolve(ctx, 42, listing(t, "Feed", "p1")))
	})

	t.Run("override that sanitizes to nothing falls through", func(t *testing.T) {
		r := NewResolver(map[int64]string{42: "//"}, src, nil, logger.NewNopLogger())
		assert.Equal(t, Identity{Name: "Feed", Source: SourceFeed}, r.Resolve(ctx, 42, listing(t, "Feed", "p1")))
	})

	t.Run("first post when listing has no name", func(t *testing.T) {
		r := NewResolver(nil, src, nil, logger.NewNopLogger())
		assert.Equal(t, Identity{Name: "PosterName", Source: SourcePost}, r.Resolve(ctx, 42, listing(t, "", "p1")))
	})

	t.Run("account id last", func(t *testing.T) {
		r := NewResolver(nil, src, storage.NewInMemory(time.UTC), logger.NewNopLogger())
		assert.Equal(t, Identity{Name: "42", Source: SourceAccountID}, r.Resolve(ctx, 42, nil))
	})
}

func TestResolveFromArchiveScan(t *testing.T) {
	ctx := context.Background()
	archive := storage.NewInMemory(time.UTC)
	require.NoError(t, archive.WriteFile(
		storage.RawPostPath("OldName", "2023-11-14", "5"),
		feedtest.PostPayload(feedtest.PostSpec{ID: "5", Timestamp: 1700000000, AuthorID: 42}),
	))
	require.NoError(t, archive.WriteFile(
		storage.RawPostPath("Other", "2023-11-14", "6"),
		feedtest.PostPayload(feedtest.PostSpec{ID: "6", Timestamp: 1700000000, AuthorID: 7}),
	))

	src := feedtest.NewSource()
	src.Fail("gone", assert.AnError)

	r := NewResolver(nil, src, archive, logger.NewNopLogger())
	got := r.Resolve(ctx, 42, listing(t, "", "gone"))
	assert.Equal(t, Identity{Name: "OldName", Source: SourceArchiveScan}, got)

	// the index is built once; later folders are not seen by this resolver
	require.NoError(t, archive.WriteFile(
		storage.RawPostPath("Late", "2023-11-14", "9"),
		feedtest.PostPayload(feedtest.PostSpec{ID: "9", Timestamp: 1700000000, AuthorID: 99}),
	))
	assert.Equal(t, Identity{Name: "Other", Source: SourceArchiveScan}, r.Resolve(ctx, 7, nil))
	assert.Equal(t, SourceAccountID, r.Resolve(ctx, 99, nil).Source)
}

func TestResolveSkipsPostFetchWithoutLocators(t *testing.T) {
	src := feedtest.NewSource()
	r := NewResolver(nil, src, nil, logger.NewNopLogger())

	got := r.Resolve(context.Background(), 3, &feed.Listing{})
	assert.Equal(t, "3", got.Name)
	assert.Empty(t, src.PostCalls)
}
