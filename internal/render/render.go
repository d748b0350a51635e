// Package render turns posts into the HTML pages and JSON fragments shared by
// the static build and the live server.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"time"

	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/renderinc/spacetraveling/internal/format"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Static returns the embedded assets, rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// SiteInfo describes the site as a whole.
type SiteInfo struct {
	Name        string
	URL         string
	Description string
	Language    string
}

// Comments holds the utterances widget attributes. An empty Repo renders
// no widget.
type Comments struct {
	Repo      string
	IssueTerm string
	Theme     string
}

// Summary is a post as listed on the home page.
type Summary struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
	Date     string `json:"date"` // empty for drafts
}

// PageJSON is the payload behind "Carregar mais posts".
type PageJSON struct {
	Items []Summary `json:"items"`
	Next  *string   `json:"next"`
}

// HomePage is the data of home.html.
type HomePage struct {
	Site    SiteInfo
	Posts   []Summary
	NextURL string // empty hides the load more button
}

// RenderedSection is a post section with its body as HTML.
type RenderedSection struct {
	Heading string
	Anchor  string
	HTML    template.HTML
}

// PostPage is the data of post.html.
type PostPage struct {
	Site           SiteInfo
	ID             string
	Title          string
	Subtitle       string
	BannerURL      string
	Author         string
	Date           string
	Updated        string
	ReadingMinutes int
	Sections       []RenderedSection
	Comments       Comments
}

// Options configures a Renderer.
type Options struct {
	Location       *time.Location
	Comments       Comments
	WordsPerMinute int
}

// Renderer executes the embedded templates.
type Renderer struct {
	site      SiteInfo
	opts      Options
	templates *template.Template
}

// New parses the templates.
func New(site SiteInfo, opts Options) (*Renderer, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.WordsPerMinute <= 0 {
		opts.WordsPerMinute = format.DefaultWordsPerMinute
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"year": func() int { return time.Now().Year() },
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Renderer{site: site, opts: opts, templates: tmpl}, nil
}

// Site returns the site description the renderer was built with.
func (r *Renderer) Site() SiteInfo {
	return r.site
}

// PostURL is the site-relative path of a post page.
func PostURL(id string) string {
	return "/post/" + url.PathEscape(id)
}

// Summary builds the listing view of a post. Drafts get no date.
func (r *Renderer) Summary(p content.PostSummary) Summary {
	s := Summary{
		ID:       p.ID,
		URL:      PostURL(p.ID),
		Title:    p.Title,
		Subtitle: p.Subtitle,
		Author:   p.Author,
	}
	if p.PublishedAt != nil {
		local := p.PublishedAt.In(r.opts.Location)
		s.Date, _ = format.FormatDate(&local)
	}
	return s
}

// Summaries maps Summary over posts.
func (r *Renderer) Summaries(posts []content.PostSummary) []Summary {
	out := make([]Summary, 0, len(posts))
	for _, p := range posts {
		out = append(out, r.Summary(p))
	}
	return out
}

// PageJSON builds the load more payload. An empty next becomes null.
func (r *Renderer) PageJSON(posts []content.PostSummary, next string) PageJSON {
	page := PageJSON{Items: r.Summaries(posts)}
	if next != "" {
		page.Next = &next
	}
	return page
}

// HomePage builds the home page data.
func (r *Renderer) HomePage(posts []content.PostSummary, nextURL string) HomePage {
	return HomePage{Site: r.site, Posts: r.Summaries(posts), NextURL: nextURL}
}

// PostPage builds the post page data.
func (r *Renderer) PostPage(post *content.Post) PostPage {
	page := PostPage{
		Site:           r.site,
		ID:             post.ID,
		Title:          post.Title,
		Subtitle:       post.Subtitle,
		BannerURL:      post.BannerURL,
		Author:         post.Author,
		ReadingMinutes: format.EstimateReadingMinutes(post.Title, post.BodyTexts(), r.opts.WordsPerMinute),
		Comments:       r.opts.Comments,
	}
	if post.PublishedAt != nil {
		local := post.PublishedAt.In(r.opts.Location)
		page.Date, _ = format.FormatDate(&local)
	}
	if post.UpdatedAt != nil && (post.PublishedAt == nil || post.UpdatedAt.After(*post.PublishedAt)) {
		local := post.UpdatedAt.In(r.opts.Location)
		page.Updated, _ = format.FormatLongDate(&local)
	}

	ids := anchors{}
	for _, s := range post.Content {
		section := RenderedSection{Heading: s.Heading}
		if s.Heading != "" {
			section.Anchor = ids.next(s.Heading)
		}
		section.HTML = richText(s.Body, ids)
		page.Sections = append(page.Sections, section)
	}
	return page
}

// Home writes the home page.
func (r *Renderer) Home(w io.Writer, page HomePage) error {
	return r.templates.ExecuteTemplate(w, "home.html", page)
}

// Post writes a post page.
func (r *Renderer) Post(w io.Writer, page PostPage) error {
	return r.templates.ExecuteTemplate(w, "post.html", page)
}

// NotFound writes the 404 page.
func (r *Renderer) NotFound(w io.Writer) error {
	return r.templates.ExecuteTemplate(w, "notfound.html", struct{ Site SiteInfo }{r.site})
}
