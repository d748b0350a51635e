package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/pt"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/renderinc/spacetraveling/internal/storage"
)

// Index wraps a Bleve search index
type Index struct {
	index bleve.Index
}

// IndexedPost represents a post in the search index
type IndexedPost struct {
	ID       string
	Title    string
	Subtitle string
	Content  string
	Author   string
}

// SearchResult represents a search result
type SearchResult struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Subtitle  string              `json:"subtitle"`
	Author    string              `json:"author"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"` // Highlighted snippets
}

// NewIndexedPost flattens a post for indexing
func NewIndexedPost(post *content.Post) *IndexedPost {
	var body []string
	for _, s := range post.Content {
		if s.Heading != "" {
			body = append(body, s.Heading)
		}
		for _, b := range s.Body {
			body = append(body, b.Text)
		}
	}
	return &IndexedPost{
		ID:       post.ID,
		Title:    post.Title,
		Subtitle: post.Subtitle,
		Content:  strings.Join(body, "\n"),
		Author:   post.Author,
	}
}

// Open opens or creates a Bleve index
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// OpenMemory creates an in-memory index. Nothing is written to disk.
func OpenMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx}, nil
}

// buildIndexMapping analyzes text as Portuguese; the author is matched as a
// whole name.
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "pt"

	storedOnly := bleve.NewTextFieldMapping()
	storedOnly.Index = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("ID", storedOnly)
	docMapping.AddFieldMappingsAt("Title", textFieldMapping)
	docMapping.AddFieldMappingsAt("Subtitle", textFieldMapping)
	docMapping.AddFieldMappingsAt("Content", textFieldMapping)
	docMapping.AddFieldMappingsAt("Author", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "pt"
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

// IndexPost adds or updates a post in the index
func (i *Index) IndexPost(doc *IndexedPost) error {
	return i.index.Index(doc.ID, doc)
}

// Delete removes a post from the index
func (i *Index) Delete(id string) error {
	return i.index.Delete(id)
}

// Search performs a query string search (quotes, +/-, fuzzy ~) with
// highlighted fragments.
func (i *Index) Search(queryStr string, limit int) ([]*SearchResult, error) {
	if strings.TrimSpace(queryStr) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query := bleve.NewQueryStringQuery(queryStr)

	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Fields = []string{"Title", "Subtitle", "Author"}

	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	searchResults := make([]*SearchResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		result := &SearchResult{
			ID:        hit.ID,
			Score:     hit.Score,
			Fragments: hit.Fragments,
		}
		if title, ok := hit.Fields["Title"].(string); ok {
			result.Title = title
		}
		if subtitle, ok := hit.Fields["Subtitle"].(string); ok {
			result.Subtitle = subtitle
		}
		if author, ok := hit.Fields["Author"].(string); ok {
			result.Author = author
		}
		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// Rebuild indexes every post in storage in one batch. progress, when set,
// is called after each post is added to the batch.
func (i *Index) Rebuild(db *storage.DB, progress func(done, total int)) error {
	docs, err := db.List()
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}

	batch := i.index.NewBatch()
	for n, doc := range docs {
		post, err := doc.Post()
		if err != nil {
			return fmt.Errorf("decode %s: %w", doc.ID, err)
		}
		indexed := NewIndexedPost(post)
		if err := batch.Index(indexed.ID, indexed); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
		if progress != nil {
			progress(n+1, len(docs))
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	return nil
}

// Count returns the number of posts in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
