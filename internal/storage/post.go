package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/renderinc/spacetraveling/internal/content"
)

// Document is a mirrored post row
type Document struct {
	ID             string
	Title          string
	Subtitle       string
	Author         string
	PublishedAt    *time.Time // nil for drafts
	UpdatedAt      *time.Time
	BannerURL      string
	Content        string // JSON of []content.Section
	ContentHash    string
	ReadingMinutes int
	SyncedAt       time.Time
}

// NewDocument converts a post into a row. ContentHash and SyncedAt are left
// for the caller.
func NewDocument(post *content.Post, readingMinutes int) (*Document, error) {
	body, err := json.Marshal(post.Content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	return &Document{
		ID:             post.ID,
		Title:          post.Title,
		Subtitle:       post.Subtitle,
		Author:         post.Author,
		PublishedAt:    post.PublishedAt,
		UpdatedAt:      post.UpdatedAt,
		BannerURL:      post.BannerURL,
		Content:        string(body),
		ReadingMinutes: readingMinutes,
	}, nil
}

// Summary returns the listing view of the row
func (d *Document) Summary() content.PostSummary {
	return content.PostSummary{
		ID:          d.ID,
		PublishedAt: d.PublishedAt,
		Title:       d.Title,
		Subtitle:    d.Subtitle,
		Author:      d.Author,
	}
}

// Post decodes the row back into a full post
func (d *Document) Post() (*content.Post, error) {
	post := &content.Post{
		PostSummary: d.Summary(),
		UpdatedAt:   d.UpdatedAt,
		BannerURL:   d.BannerURL,
	}
	if d.Content != "" {
		if err := json.Unmarshal([]byte(d.Content), &post.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
	}
	return post, nil
}
