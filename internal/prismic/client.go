package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a Prismic REST API v2 client
type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates a new Prismic client. endpoint is the repository API
// root, e.g. https://my-repo.cdn.prismic.io/api/v2. A nil httpClient gets a
// 30 second timeout.
func NewClient(endpoint, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	return &Client{
		endpoint:    strings.TrimRight(endpoint, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

// ErrInvalidNextPage is returned by Next for URLs that are not absolute
// URLs on the repository host.
var ErrInvalidNextPage = errors.New("invalid next page url")

// APIError is a non-200 answer from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("prismic: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("prismic: unexpected status %d: %s", e.StatusCode, e.Message)
}

// At builds an "at" predicate
func At(path, value string) string {
	return fmt.Sprintf("[at(%s, %q)]", path, value)
}

// Type builds the document.type predicate
func Type(docType string) string {
	return At("document.type", docType)
}

// getJSON performs a GET request and decodes the JSON body into result
func (c *Client) getJSON(ctx context.Context, rawURL string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// errorMessage pulls a message out of an API error body, if any
func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// withToken adds the access token to a query string when one is configured
func (c *Client) withToken(q url.Values) url.Values {
	if c.accessToken != "" && q.Get("access_token") == "" {
		q.Set("access_token", c.accessToken)
	}
	return q
}

// MasterRef fetches the ref of the currently published content
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	u := c.endpoint
	if q := c.withToken(url.Values{}); len(q) > 0 {
		u += "?" + q.Encode()
	}

	var root apiRoot
	if err := c.getJSON(ctx, u, &root); err != nil {
		return "", fmt.Errorf("get api root: %w", err)
	}

	for _, r := range root.Refs {
		if r.IsMasterRef {
			return r.Ref, nil
		}
	}

	return "", fmt.Errorf("get api root: no master ref")
}

// Query runs a documents/search request against the master ref
func (c *Client) Query(ctx context.Context, opts QueryOptions) (*SearchResponse, error) {
	ref, err := c.MasterRef(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	q := url.Values{}
	q.Set("ref", ref)
	if len(opts.Predicates) > 0 {
		q.Set("q", "["+strings.Join(opts.Predicates, "")+"]")
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if len(opts.Orderings) > 0 {
		q.Set("orderings", "["+strings.Join(opts.Orderings, ",")+"]")
	}
	if len(opts.Fetch) > 0 {
		q.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	c.withToken(q)

	var result SearchResponse
	if err := c.getJSON(ctx, c.endpoint+"/documents/search?"+q.Encode(), &result); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return &result, nil
}

// Next follows a next_page URL from a previous SearchResponse
func (c *Client) Next(ctx context.Context, nextPage string) (*SearchResponse, error) {
	u, err := url.Parse(nextPage)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("next page: %q: %w", nextPage, ErrInvalidNextPage)
	}
	if base, err := url.Parse(c.endpoint); err != nil || base.Scheme != u.Scheme || base.Host != u.Host {
		return nil, fmt.Errorf("next page: %q is not on %s: %w", nextPage, c.endpoint, ErrInvalidNextPage)
	}
	u.RawQuery = c.withToken(u.Query()).Encode()

	var result SearchResponse
	if err := c.getJSON(ctx, u.String(), &result); err != nil {
		return nil, fmt.Errorf("next page: %w", err)
	}

	return &result, nil
}

// GetByUID fetches a single document by its uid. It returns nil, nil when
// no document matches.
func (c *Client) GetByUID(ctx context.Context, docType, uid string) (*Document, error) {
	resp, err := c.Query(ctx, QueryOptions{
		Predicates: []string{At("my."+docType+".uid", uid)},
		PageSize:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("get by uid: %w", err)
	}

	if len(resp.Results) == 0 {
		return nil, nil
	}

	return &resp.Results[0], nil
}
