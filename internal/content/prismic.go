package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/renderinc/spacetraveling/internal/format"
	"github.com/renderinc/spacetraveling/internal/prismic"
)

// Prismic serves posts of one custom type from a Prismic repository. The
// cursors it returns are the API's next_page URLs.
type Prismic struct {
	client   *prismic.Client
	docType  string
	pageSize int
}

// NewPrismic creates a source over documents of docType.
func NewPrismic(client *prismic.Client, docType string, pageSize int) *Prismic {
	if docType == "" {
		docType = "posts"
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Prismic{client: client, docType: docType, pageSize: pageSize}
}

// FetchPage implements Source.
func (p *Prismic) FetchPage(ctx context.Context, cursor Cursor) (*Page, error) {
	const op = "content.Prismic.FetchPage"

	var (
		resp *prismic.SearchResponse
		err  error
	)
	if cursor == "" {
		resp, err = p.client.Query(ctx, prismic.QueryOptions{
			Predicates: []string{prismic.Type(p.docType)},
			PageSize:   p.pageSize,
			Orderings:  []string{"document.first_publication_date desc"},
			Fetch: []string{
				p.docType + ".title",
				p.docType + ".subtitle",
				p.docType + ".author",
			},
		})
	} else {
		resp, err = p.client.Next(ctx, string(cursor))
	}
	if errors.Is(err, prismic.ErrInvalidNextPage) {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidCursor, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrSourceUnavailable, err)
	}

	page := &Page{Items: make([]PostSummary, 0, len(resp.Results))}
	for _, doc := range resp.Results {
		summary, err := toSummary(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		page.Items = append(page.Items, summary)
	}
	if resp.NextPage != nil {
		page.NextCursor = Cursor(*resp.NextPage)
	}

	return page, nil
}

// FetchPost implements PostSource. id is a uid or, for documents without
// one, the document id.
func (p *Prismic) FetchPost(ctx context.Context, id string) (*Post, error) {
	const op = "content.Prismic.FetchPost"

	doc, err := p.client.GetByUID(ctx, p.docType, id)
	if err == nil && doc == nil {
		var resp *prismic.SearchResponse
		resp, err = p.client.Query(ctx, prismic.QueryOptions{
			Predicates: []string{prismic.Type(p.docType), prismic.At("document.id", id)},
			PageSize:   1,
		})
		if err == nil && len(resp.Results) > 0 {
			doc = &resp.Results[0]
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrSourceUnavailable, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%s: %q: %w", op, id, ErrNotFound)
	}

	post, err := toPost(*doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return post, nil
}

// textField accepts a plain string or a rich text array.
type textField string

func (f *textField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = textField(s)
		return nil
	}
	var blocks []rawBlock
	if err := json.Unmarshal(b, &blocks); err != nil {
		return err
	}
	parts := make([]string, 0, len(blocks))
	for _, bl := range blocks {
		parts = append(parts, bl.Text)
	}
	*f = textField(strings.Join(parts, " "))
	return nil
}

type rawSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"`
	Data  struct {
		URL string `json:"url"`
	} `json:"data"`
}

type rawBlock struct {
	Type  string    `json:"type"`
	Text  string    `json:"text"`
	Spans []rawSpan `json:"spans"`
}

type summaryData struct {
	Title    textField `json:"title"`
	Subtitle textField `json:"subtitle"`
	Author   textField `json:"author"`
}

type postData struct {
	summaryData
	Banner struct {
		URL string `json:"url"`
	} `json:"banner"`
	Content []struct {
		Heading textField  `json:"heading"`
		Body    []rawBlock `json:"body"`
	} `json:"content"`
}

// toSummary keeps only the PostSummary fields of doc.
func toSummary(doc prismic.Document) (PostSummary, error) {
	var data summaryData
	if len(doc.Data) > 0 {
		if err := json.Unmarshal(doc.Data, &data); err != nil {
			return PostSummary{}, fmt.Errorf("%w: document %s: decode data: %v", ErrMalformedResponse, doc.ID, err)
		}
	}
	return summaryFrom(doc, data)
}

func summaryFrom(doc prismic.Document, data summaryData) (PostSummary, error) {
	s := PostSummary{
		ID:       doc.UID,
		Title:    strings.TrimSpace(string(data.Title)),
		Subtitle: strings.TrimSpace(string(data.Subtitle)),
		Author:   strings.TrimSpace(string(data.Author)),
	}
	if s.ID == "" {
		s.ID = doc.ID
	}
	if s.ID == "" {
		return PostSummary{}, fmt.Errorf("%w: document without id", ErrMalformedResponse)
	}
	if s.Title == "" {
		return PostSummary{}, fmt.Errorf("%w: document %s: missing title", ErrMalformedResponse, s.ID)
	}
	if s.Author == "" {
		return PostSummary{}, fmt.Errorf("%w: document %s: missing author", ErrMalformedResponse, s.ID)
	}

	publishedAt, err := optionalTime(doc.FirstPublicationDate)
	if err != nil {
		return PostSummary{}, fmt.Errorf("%w: document %s: first_publication_date: %v", ErrMalformedResponse, s.ID, err)
	}
	s.PublishedAt = publishedAt

	return s, nil
}

func toPost(doc prismic.Document) (*Post, error) {
	var data postData
	if len(doc.Data) > 0 {
		if err := json.Unmarshal(doc.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: document %s: decode data: %v", ErrMalformedResponse, doc.ID, err)
		}
	}

	summary, err := summaryFrom(doc, data.summaryData)
	if err != nil {
		return nil, err
	}

	updatedAt, err := optionalTime(doc.LastPublicationDate)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s: last_publication_date: %v", ErrMalformedResponse, summary.ID, err)
	}

	post := &Post{
		PostSummary: summary,
		UpdatedAt:   updatedAt,
		BannerURL:   data.Banner.URL,
		Content:     make([]Section, 0, len(data.Content)),
	}
	for _, c := range data.Content {
		section := Section{
			Heading: strings.TrimSpace(string(c.Heading)),
			Body:    make([]Block, 0, len(c.Body)),
		}
		for _, rb := range c.Body {
			block := Block{Type: rb.Type, Text: rb.Text}
			for _, sp := range rb.Spans {
				block.Spans = append(block.Spans, Span{
					Start: sp.Start,
					End:   sp.End,
					Type:  sp.Type,
					URL:   sp.Data.URL,
				})
			}
			section.Body = append(section.Body, block)
		}
		post.Content = append(post.Content, section)
	}

	return post, nil
}

func optionalTime(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := format.ParseTimestamp(*raw)
	if err != nil {
		return nil, err
	}
	utc := t.UTC()
	return &utc, nil
}
