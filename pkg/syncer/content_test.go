package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedmirror/pkg/feed/feedtest"
	"feedmirror/pkg/storage"
)

func TestDeriveRecordRichText(t *testing.T) {
	raw := feedtest.PostPayload(feedtest.PostSpec{
		ID: "11", Timestamp: 1700000000, Title: "Hello", RichText: []string{"a ", "b"}, Likes: 5,
	})

	rec, err := DeriveRecord(raw, "https://www.example.com/opus/11")
	require.NoError(t, err)
	assert.Equal(t, "11", rec.ID)
	assert.Equal(t, int64(1700000000), rec.Timestamp)
	require.NotNil(t, rec.Title)
	assert.Equal(t, "Hello", *rec.Title)
	require.NotNil(t, rec.Body)
	assert.Equal(t, "a b", *rec.Body)
	assert.Equal(t, int64(5), rec.Stats.Likes)
}

func TestDeriveRecordParagraphs(t *testing.T) {
	raw := feedtest.PostPayload(feedtest.PostSpec{ID: "12", Timestamp: 1700000000, Paragraphs: []string{"one", "two"}})

	rec, err := DeriveRecord(raw, "loc")
	require.NoError(t, err)
	require.NotNil(t, rec.Body)
	assert.Equal(t, "onetwo", *rec.Body)
	assert.Nil(t, rec.Title)
}

func TestCanonicalRecordLayout(t *testing.T) {
	archive := storage.NewInMemory(time.UTC)
	raw := feedtest.PostPayload(feedtest.PostSpec{ID: "13", Timestamp: 1700000000})
	require.NoError(t, archive.WriteFile(storage.RawPostPath("bob", "2023-11-14", "13"), raw))

	written, err := writeRecord(archive, "bob", "2023-11-14", "13", "loc")
	require.NoError(t, err)
	assert.True(t, written)

	data, err := archive.ReadFile("bob/2023-11-14_13.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"locator": "loc",
		"id": "13",
		"timestamp": 1700000000,
		"title": null,
		"body": null,
		"stats": {"likes": 0, "comments": 0, "forwards": 0, "favorites": 0}
	}`, string(data))

	written, err = writeRecord(archive, "bob", "2023-11-14", "13", "loc")
	require.NoError(t, err)
	assert.False(t, written)
}

func TestWriteRecordWithoutRawRecord(t *testing.T) {
	archive := storage.NewInMemory(time.UTC)

	_, err := writeRecord(archive, "bob", "2023-11-14", "14", "loc")
	assert.Error(t, err)

	exists, err := archive.Exists(storage.CanonicalPath("bob", "2023-11-14", "14"))
	require.NoError(t, err)
	assert.False(t, exists)
}
