package prismic

import "encoding/json"

// Ref is a content release pointer returned by the API root
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

// apiRoot is the subset of the API root document we need
type apiRoot struct {
	Refs []Ref `json:"refs"`
}

// SearchResponse is one page of a documents/search query
type SearchResponse struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         *string    `json:"next_page"` // nil on the last page
	PrevPage         *string    `json:"prev_page"`
	Results          []Document `json:"results"`
}

// Document is a raw repository document. Data is left undecoded because
// its shape depends on the custom type.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	Href                 string          `json:"href"`
	Tags                 []string        `json:"tags"`
	Lang                 string          `json:"lang"`
	FirstPublicationDate *string         `json:"first_publication_date"`
	LastPublicationDate  *string         `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// QueryOptions configures a documents/search request
type QueryOptions struct {
	Predicates []string // e.g. Type("posts")
	PageSize   int
	Page       int
	Orderings  []string // e.g. "document.first_publication_date desc"
	Fetch      []string // e.g. "posts.title"
}
