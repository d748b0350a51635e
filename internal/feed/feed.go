// Package feed builds the RSS 2.0 feed of the blog.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/renderinc/spacetraveling/internal/render"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

// Build renders posts as RSS 2.0. Drafts are listed without a pubDate.
// lastBuildDate is the newest publication date, so identical input gives
// identical output.
func Build(site render.SiteInfo, posts []content.PostSummary) ([]byte, error) {
	base := strings.TrimRight(site.URL, "/")

	var newest time.Time
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		link := base + render.PostURL(p.ID)
		item := rssItem{
			Title:       p.Title,
			Link:        link,
			Description: p.Subtitle,
			GUID:        link,
		}
		if p.PublishedAt != nil {
			item.PubDate = p.PublishedAt.UTC().Format(time.RFC1123Z)
			if p.PublishedAt.After(newest) {
				newest = *p.PublishedAt
			}
		}
		items = append(items, item)
	}

	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       site.Name,
			Link:        base + "/",
			Description: site.Description,
			Language:    site.Language,
			Items:       items,
		},
	}
	if !newest.IsZero() {
		feed.Channel.LastBuildDate = newest.UTC().Format(time.RFC1123Z)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(feed); err != nil {
		return nil, fmt.Errorf("encode rss: %w", err)
	}
	return buf.Bytes(), nil
}
