package gallerydl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "feedmirror/pkg/errors"
	"feedmirror/pkg/feed/feedtest"
	"feedmirror/pkg/logger"
)

// writeStub installs a shell script standing in for gallery-dl. It appends its
// arguments to args.log and answers by the last argument.
func writeStub(t *testing.T) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	dir := t.TempDir()

	listing := feedtest.ListingPayload("alice", "https://www.example.com/opus/1")
	post := feedtest.PostPayload(feedtest.PostSpec{
		ID: "1", Timestamp: 1700000000, AuthorID: 42, MediaURLs: []string{"https://cdn.example.com/1.jpg"},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "listing.json"), listing, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "post.json"), post, 0644))

	script := fmt.Sprintf(`#!/bin/sh
DIR=%q
echo "$@" >> "$DIR/args.log"
if [ "$1" = "--version" ]; then echo "1.26.9"; exit 0; fi
for last; do :; done
case "$last" in
  *flaky*)
    if [ ! -f "$DIR/flaky.seen" ]; then touch "$DIR/flaky.seen"; echo "HttpError: 503" >&2; exit 4; fi
    cat "$DIR/post.json" ;;
  *private*) echo "AuthorizationError" >&2; exit 16 ;;
  *missing*) echo "NotFoundError" >&2; exit 8 ;;
  *slow*) exec sleep 5 ;;
  *opus*) cat "$DIR/post.json" ;;
  *) cat "$DIR/listing.json" ;;
esac
`, dir)
	path := filepath.Join(dir, "gallery-dl")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path, dir
}

func readArgs(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "args.log"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestListPostsAndGetPost(t *testing.T) {
	cmd, dir := writeStub(t)
	c := New(Options{Command: cmd, CookieFile: "/tmp/cookies.txt", Attempts: 1}, logger.NewNopLogger())

	listing, err := c.ListPosts(context.Background(), "https://space.example.com/42/article")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.example.com/opus/1"}, listing.Locators())
	assert.Equal(t, "alice", listing.DisplayName())

	post, err := c.GetPost(context.Background(), "https://www.example.com/opus/1")
	require.NoError(t, err)
	assert.Equal(t, "1", post.ID)
	assert.Equal(t, "https://www.example.com/opus/1", post.Locator)
	require.Len(t, post.Media, 1)

	assert.Equal(t, []string{
		"-j --cookies /tmp/cookies.txt https://space.example.com/42/article",
		"-j --cookies /tmp/cookies.txt https://www.example.com/opus/1",
	}, readArgs(t, dir))
}

func TestRetriesTransientExit(t *testing.T) {
	cmd, dir := writeStub(t)
	c := New(Options{Command: cmd, Attempts: 2, RetryDelay: time.Millisecond}, logger.NewNopLogger())

	post, err := c.GetPost(context.Background(), "https://www.example.com/flaky")
	require.NoError(t, err)
	assert.Equal(t, "1", post.ID)
	assert.Len(t, readArgs(t, dir), 2)
}

func TestPermanentExitIsTyped(t *testing.T) {
	cmd, dir := writeStub(t)
	c := New(Options{Command: cmd, Attempts: 3, RetryDelay: time.Millisecond}, logger.NewNopLogger())

	_, err := c.GetPost(context.Background(), "https://www.example.com/private")
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))
	assert.ErrorContains(t, err, "AuthorizationError")

	_, err = c.ListPosts(context.Background(), "https://www.example.com/missing")
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))

	assert.Len(t, readArgs(t, dir), 2)
}

func TestTimeout(t *testing.T) {
	cmd, _ := writeStub(t)
	c := New(Options{Command: cmd, Timeout: 50 * time.Millisecond, Attempts: 1}, logger.NewNopLogger())

	_, err := c.GetPost(context.Background(), "https://www.example.com/slow")
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestCheckAvailable(t *testing.T) {
	cmd, _ := writeStub(t)

	version, err := New(Options{Command: cmd}, logger.NewNopLogger()).CheckAvailable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.26.9", version)

	_, err = New(Options{Command: filepath.Join(t.TempDir(), "nope")}, logger.NewNopLogger()).CheckAvailable(context.Background())
	assert.ErrorIs(t, err, errs.ErrToolUnavailable)
}

func TestExitErrorMapping(t *testing.T) {
	tests := []struct {
		code int
		want errs.ErrorType
	}{
		{1, errs.ErrorTypeServerError},
		{4, errs.ErrorTypeNetwork},
		{8, errs.ErrorTypeNotFound},
		{16, errs.ErrorTypeAuth},
		{20, errs.ErrorTypeAuth},
		{64, errs.ErrorTypeParsing},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitError(tt.code, "x").Type, "code %d", tt.code)
	}
}
