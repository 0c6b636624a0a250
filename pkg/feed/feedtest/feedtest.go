// Package feedtest builds feed source payloads and an in-memory Source for tests.
package feedtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	errs "feedmirror/pkg/errors"
	"feedmirror/pkg/feed"
)

// PostSpec describes a post payload to generate
type PostSpec struct {
	ID         string
	Timestamp  int64
	AuthorID   int64
	AuthorName string
	// Username is the top-level name field some payloads carry
	Username string
	Title    string
	// RichText produces a module_dynamic body; Paragraphs a module_content body
	RichText   []string
	Paragraphs []string
	Likes      int64
	MediaURLs  []string
}

// PostPayload renders ps in the feed source's message-list shape
func PostPayload(ps PostSpec) []byte {
	modules := map[string]interface{}{
		"module_author": map[string]interface{}{
			"mid":    ps.AuthorID,
			"name":   ps.AuthorName,
			"pub_ts": ps.Timestamp,
		},
		"module_stat": map[string]interface{}{
			"like":     map[string]interface{}{"count": ps.Likes},
			"comment":  map[string]interface{}{"count": 0},
			"forward":  map[string]interface{}{"count": 0},
			"favorite": map[string]interface{}{"count": 0},
		},
	}
	if ps.Title != "" {
		modules["module_title"] = map[string]interface{}{"text": ps.Title}
	}
	if len(ps.RichText) > 0 {
		nodes := make([]map[string]interface{}, 0, len(ps.RichText))
		for _, text := range ps.RichText {
			nodes = append(nodes, map[string]interface{}{"type": "RICH_TEXT_NODE_TYPE_TEXT", "text": text})
		}
		modules["module_dynamic"] = map[string]interface{}{"desc": map[string]interface{}{"rich_text_nodes": nodes}}
	}
	if len(ps.Paragraphs) > 0 {
		paragraphs := make([]map[string]interface{}, 0, len(ps.Paragraphs))
		for _, words := range ps.Paragraphs {
			paragraphs = append(paragraphs, map[string]interface{}{
				"text": map[string]interface{}{"nodes": []map[string]interface{}{
					{"type": "TEXT_NODE_TYPE_WORD", "word": map[string]interface{}{"words": words}},
				}},
			})
		}
		modules["module_content"] = map[string]interface{}{"paragraphs": paragraphs}
	}

	detail := map[string]interface{}{
		"category": "bilibili",
		"detail":   map[string]interface{}{"id_str": ps.ID, "modules": modules},
	}
	if ps.Username != "" {
		detail["username"] = ps.Username
	}

	messages := []interface{}{[]interface{}{2, detail}}
	for i, url := range ps.MediaURLs {
		messages = append(messages, []interface{}{3, url, map[string]interface{}{"url": url, "num": i + 1}})
	}
	return mustMarshal(messages)
}

// ListingPayload renders a listing of post locators; displayName, if set, is
// attached to every entry the way the feed source does.
func ListingPayload(displayName string, locators ...string) []byte {
	messages := make([]interface{}, 0, len(locators))
	for _, loc := range locators {
		meta := map[string]interface{}{"category": "bilibili", "subcategory": "article"}
		if displayName != "" {
			meta["username"] = displayName
		}
		messages = append(messages, []interface{}{6, loc, meta})
	}
	return mustMarshal(messages)
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Source is an in-memory feed.Source that records every call
type Source struct {
	mu       sync.Mutex
	listings map[string][]byte
	posts    map[string][]byte
	failing  map[string]error

	ListCalls []string
	PostCalls []string
}

// NewSource creates an empty Source
func NewSource() *Source {
	return &Source{
		listings: map[string][]byte{},
		posts:    map[string][]byte{},
		failing:  map[string]error{},
	}
}

// AddListing registers a raw listing payload for an account locator
func (s *Source) AddListing(locator string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[locator] = payload
}

// AddPost registers a post payload under its locator
func (s *Source) AddPost(locator string, ps PostSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[locator] = PostPayload(ps)
}

// Fail makes every call for locator return err
func (s *Source) Fail(locator string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[locator] = err
}

func (s *Source) ListPosts(ctx context.Context, locator string) (*feed.Listing, error) {
	s.mu.Lock()
	s.ListCalls = append(s.ListCalls, locator)
	payload, ok := s.listings[locator]
	failure := s.failing[locator]
	s.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, 404, fmt.Sprintf("no listing for %s", locator))
	}
	return feed.ParseListing(payload)
}

func (s *Source) GetPost(ctx context.Context, locator string) (*feed.Post, error) {
	s.mu.Lock()
	s.PostCalls = append(s.PostCalls, locator)
	payload, ok := s.posts[locator]
	failure := s.failing[locator]
	s.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, 404, fmt.Sprintf("no post for %s", locator))
	}
	post, err := feed.ParsePost(payload)
	if err != nil {
		return nil, err
	}
	post.Locator = locator
	return post, nil
}

// PostCallCount returns how many times GetPost was called for locator
func (s *Source) PostCallCount(locator string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.PostCalls {
		if l == locator {
			n++
		}
	}
	return n
}
