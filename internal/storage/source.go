package storage

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/renderinc/spacetraveling/internal/content"
)

// Source serves the mirror through the content.PostSource contract, so
// views can run without reaching the CMS.
type Source struct {
	db       *DB
	pageSize int
}

// NewSource pages the mirror pageSize posts at a time.
func NewSource(db *DB, pageSize int) *Source {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Source{db: db, pageSize: pageSize}
}

// FetchPage implements content.Source with keyset pagination on
// (published_at, id), newest first. Drafts sort last.
func (s *Source) FetchPage(ctx context.Context, cursor content.Cursor) (*content.Page, error) {
	const op = "storage.Source.FetchPage"

	query := selectColumns
	args := []any{}
	if cursor != "" {
		published, id, err := decodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		query += " WHERE (COALESCE(published_at, 0), id) < (?, ?)"
		args = append(args, published, id)
	}
	query += " ORDER BY COALESCE(published_at, 0) DESC, id DESC LIMIT ?"
	args = append(args, s.pageSize+1)

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, content.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, content.ErrMalformedResponse, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, content.ErrSourceUnavailable, err)
	}

	page := &content.Page{Items: make([]content.PostSummary, 0, min(len(docs), s.pageSize))}
	if len(docs) > s.pageSize {
		docs = docs[:s.pageSize]
		last := docs[len(docs)-1]
		page.NextCursor = encodeCursor(last)
	}
	for _, doc := range docs {
		page.Items = append(page.Items, doc.Summary())
	}
	return page, nil
}

// FetchPost implements content.PostSource.
func (s *Source) FetchPost(ctx context.Context, id string) (*content.Post, error) {
	const op = "storage.Source.FetchPost"

	doc, err := scanDocument(s.db.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %s: %w", op, id, content.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, content.ErrSourceUnavailable, err)
	}

	post, err := doc.Post()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, content.ErrMalformedResponse, err)
	}
	return post, nil
}

func encodeCursor(doc *Document) content.Cursor {
	var published int64
	if doc.PublishedAt != nil {
		published = doc.PublishedAt.Unix()
	}
	raw := fmt.Sprintf("%d|%s", published, doc.ID)
	return content.Cursor(base64.RawURLEncoding.EncodeToString([]byte(raw)))
}

func decodeCursor(cursor content.Cursor) (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(cursor))
	if err != nil {
		return 0, "", content.ErrInvalidCursor
	}
	unix, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return 0, "", content.ErrInvalidCursor
	}
	published, err := strconv.ParseInt(unix, 10, 64)
	if err != nil {
		return 0, "", content.ErrInvalidCursor
	}
	return published, id, nil
}
