package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	errs "feedmirror/pkg/errors"
)

const (
	richTextNodeText = "RICH_TEXT_NODE_TYPE_TEXT"
	textNodeWord     = "TEXT_NODE_TYPE_WORD"
)

// ParseListing decodes a listing message list. Every message with a locator in
// position 1 is a post; the first message's trailing object may carry the
// account's display name.
func ParseListing(raw []byte) (*Listing, error) {
	messages, err := splitMessages(raw)
	if err != nil {
		return nil, err
	}

	listing := &Listing{Raw: json.RawMessage(raw)}
	for _, msg := range messages {
		if len(msg) < 2 {
			continue
		}
		var locator string
		if err := json.Unmarshal(msg[1], &locator); err != nil || locator == "" {
			continue
		}

		entry := ListingEntry{Locator: locator}
		if len(msg) > 2 {
			var meta struct {
				Username string `json:"username"`
			}
			if json.Unmarshal(msg[len(msg)-1], &meta) == nil {
				entry.DisplayName = meta.Username
			}
		}
		listing.Entries = append(listing.Entries, entry)
	}

	return listing, nil
}

type authorModule struct {
	Name  string  `json:"name"`
	Mid   flexInt `json:"mid"`
	PubTS flexInt `json:"pub_ts"`
}

type postHead struct {
	Username string `json:"username"`
	Detail   struct {
		IDStr   string `json:"id_str"`
		Modules struct {
			Author authorModule `json:"module_author"`
		} `json:"modules"`
	} `json:"detail"`
}

type countField struct {
	Count flexInt `json:"count"`
}

type contentModules struct {
	Title struct {
		Text string `json:"text"`
	} `json:"module_title"`
	Dynamic struct {
		Desc struct {
			RichTextNodes []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"rich_text_nodes"`
		} `json:"desc"`
	} `json:"module_dynamic"`
	Content struct {
		Paragraphs []struct {
			Text struct {
				Nodes []struct {
					Type string `json:"type"`
					Word struct {
						Words string `json:"words"`
					} `json:"word"`
				} `json:"nodes"`
			} `json:"text"`
		} `json:"paragraphs"`
	} `json:"module_content"`
	Stat struct {
		Like     countField `json:"like"`
		Comment  countField `json:"comment"`
		Forward  countField `json:"forward"`
		Favorite countField `json:"favorite"`
	} `json:"module_stat"`
}

// ParsePost decodes a post record message list. The first message's trailing
// object holds the post detail; each following message whose trailing object
// has a url is a media item, numbered by position starting at 1.
//
// A record without id or timestamp is returned as-is; callers check Valid.
func ParsePost(raw []byte) (*Post, error) {
	messages, err := splitMessages(raw)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 || len(messages[0]) == 0 {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "post record has no detail message")
	}

	detail := messages[0][len(messages[0])-1]
	var head postHead
	if err := json.Unmarshal(detail, &head); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "decoding post detail", err)
	}

	author := head.Detail.Modules.Author
	post := &Post{
		ID:         head.Detail.IDStr,
		Timestamp:  int64(author.PubTS),
		AuthorName: head.Username,
		AuthorID:   int64(author.Mid),
		Raw:        json.RawMessage(raw),
	}
	if post.AuthorName == "" {
		post.AuthorName = author.Name
	}

	extractContent(detail, post)

	for i, msg := range messages[1:] {
		if len(msg) == 0 {
			continue
		}
		var meta struct {
			URL string `json:"url"`
		}
		if json.Unmarshal(msg[len(msg)-1], &meta) != nil || meta.URL == "" {
			continue
		}
		post.Media = append(post.Media, MediaItem{
			Locator: meta.URL,
			Ordinal: i + 1,
			Ext:     ExtensionFor(meta.URL),
		})
	}

	return post, nil
}

// extractContent fills title, body and stats. A detail whose content modules do
// not decode leaves them empty with an unrecognized body.
func extractContent(detail json.RawMessage, post *Post) {
	var wrapper struct {
		Detail struct {
			Modules contentModules `json:"modules"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(detail, &wrapper); err != nil {
		return
	}
	m := wrapper.Detail.Modules

	post.Title = m.Title.Text
	post.Stats = Stats{
		Likes:     int64(m.Stat.Like.Count),
		Comments:  int64(m.Stat.Comment.Count),
		Forwards:  int64(m.Stat.Forward.Count),
		Favorites: int64(m.Stat.Favorite.Count),
	}

	var buf bytes.Buffer
	for _, node := range m.Dynamic.Desc.RichTextNodes {
		if node.Type == richTextNodeText && node.Text != "" {
			buf.WriteString(node.Text)
		}
	}
	if buf.Len() > 0 {
		post.Body = Body{Kind: BodyRichText, Text: buf.String()}
		return
	}

	for _, p := range m.Content.Paragraphs {
		for _, node := range p.Text.Nodes {
			if node.Type == textNodeWord && node.Word.Words != "" {
				buf.WriteString(node.Word.Words)
			}
		}
	}
	if buf.Len() > 0 {
		post.Body = Body{Kind: BodyParagraphs, Text: buf.String()}
	}
}

func splitMessages(raw []byte) ([][]json.RawMessage, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "feed payload is not a message list", err)
	}

	messages := make([][]json.RawMessage, 0, len(top))
	for _, item := range top {
		var msg []json.RawMessage
		if err := json.Unmarshal(item, &msg); err != nil {
			// gallery-dl only ever emits arrays; anything else is noise
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// flexInt decodes integers that upstream sometimes encodes as floats or strings
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		data = []byte(s)
	}

	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	fl, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	*f = flexInt(int64(fl))
	return nil
}
