// Package content maps posts stored in the CMS into the minimal shapes the
// views consume, one page at a time.
package content

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSourceUnavailable means the backend call could not complete.
	ErrSourceUnavailable = errors.New("content source unavailable")
	// ErrMalformedResponse means the backend answered with a document that
	// lacks a required field.
	ErrMalformedResponse = errors.New("malformed content response")
	// ErrNotFound means no post has the requested identifier.
	ErrNotFound = errors.New("post not found")
	// ErrInvalidCursor means the cursor was not handed out by the source.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Cursor is an opaque pagination token handed out by a Source. As input the
// empty cursor asks for the first page; as Page.NextCursor it means there
// are no further pages.
type Cursor string

// PostSummary is the listing view of a post. PublishedAt is nil for drafts.
type PostSummary struct {
	ID          string     `json:"id"`
	PublishedAt *time.Time `json:"published_at"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	Author      string     `json:"author"`
}

// Page is one fetch result, most recent first.
type Page struct {
	Items      []PostSummary
	NextCursor Cursor
}

// HasMore reports whether another page can be requested.
func (p *Page) HasMore() bool {
	return p.NextCursor != ""
}

// Span marks up part of a Block's text.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"` // strong, em, hyperlink
	URL   string `json:"url,omitempty"`
}

// Block is one rich text element: paragraph, heading1..6, list-item,
// o-list-item or preformatted.
type Block struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Spans []Span `json:"spans,omitempty"`
}

// Section is a headed group of body blocks.
type Section struct {
	Heading string  `json:"heading"`
	Body    []Block `json:"body"`
}

// Post is a full post as shown on its own page.
type Post struct {
	PostSummary
	UpdatedAt *time.Time `json:"updated_at"`
	BannerURL string     `json:"banner_url"`
	Content   []Section  `json:"content"`
}

// BodyTexts returns the text of every body block, in order.
func (p *Post) BodyTexts() []string {
	var texts []string
	for _, s := range p.Content {
		for _, b := range s.Body {
			texts = append(texts, b.Text)
		}
	}
	return texts
}

// Source fetches pages of post summaries.
type Source interface {
	// FetchPage returns the page starting at cursor, or the first page for
	// the empty cursor. Errors match ErrSourceUnavailable,
	// ErrMalformedResponse or ErrInvalidCursor.
	FetchPage(ctx context.Context, cursor Cursor) (*Page, error)
}

// PostSource is a Source that can also load full posts.
type PostSource interface {
	Source
	// FetchPost returns the post with the given ID, or ErrNotFound.
	FetchPost(ctx context.Context, id string) (*Post, error)
}
