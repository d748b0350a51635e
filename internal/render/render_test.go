package render

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T, comments Comments) *Renderer {
	t.Helper()
	r, err := New(SiteInfo{Name: "spacetraveling", URL: "https://blog.test", Language: "pt-BR"}, Options{
		Location: time.UTC,
		Comments: comments,
	})
	require.NoError(t, err)
	return r
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestRichTextHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		blocks []content.Block
		want   string
	}{
		{
			name:   "paragraph is escaped",
			blocks: []content.Block{{Type: "paragraph", Text: "a < b & c"}},
			want:   "<p>a &lt; b &amp; c</p>",
		},
		{
			name: "strong and link spans",
			blocks: []content.Block{{Type: "paragraph", Text: "Lorem ipsum dolor", Spans: []content.Span{
				{Start: 0, End: 5, Type: "strong"},
				{Start: 6, End: 11, Type: "hyperlink", URL: "https://example.test"},
			}}},
			want: `<p><strong>Lorem</strong> <a href="https://example.test" target="_blank" rel="noopener noreferrer">ipsum</a> dolor</p>`,
		},
		{
			name: "overlapping spans split",
			blocks: []content.Block{{Type: "paragraph", Text: "abcd", Spans: []content.Span{
				{Start: 0, End: 3, Type: "strong"},
				{Start: 2, End: 4, Type: "em"},
			}}},
			want: "<p><strong>ab</strong><strong><em>c</em></strong><em>d</em></p>",
		},
		{
			name: "offsets count utf16 units",
			blocks: []content.Block{{Type: "paragraph", Text: "🚀 Marte", Spans: []content.Span{
				{Start: 3, End: 8, Type: "em"},
			}}},
			want: "<p>🚀 <em>Marte</em></p>",
		},
		{
			name: "bad spans are ignored",
			blocks: []content.Block{{Type: "paragraph", Text: "abc", Spans: []content.Span{
				{Start: 2, End: 1, Type: "strong"},
				{Start: 0, End: 99, Type: "strong"},
				{Start: 0, End: 1, Type: "label"},
				{Start: 0, End: 3, Type: "hyperlink", URL: "javascript:alert(1)"},
			}}},
			want: "<p>abc</p>",
		},
		{
			name: "list items grouped",
			blocks: []content.Block{
				{Type: "list-item", Text: "um"},
				{Type: "list-item", Text: "dois"},
				{Type: "o-list-item", Text: "primeiro"},
				{Type: "paragraph", Text: "fim"},
			},
			want: "<ul><li>um</li><li>dois</li></ul><ol><li>primeiro</li></ol><p>fim</p>",
		},
		{
			name: "headings get anchors",
			blocks: []content.Block{
				{Type: "heading3", Text: "Introdução"},
				{Type: "heading3", Text: "Introdução"},
			},
			want: `<h3 id="introducao">Introdução</h3><h3 id="introducao-2">Introdução</h3>`,
		},
		{
			name:   "preformatted",
			blocks: []content.Block{{Type: "preformatted", Text: "<div>\n  x\n</div>"}},
			want:   "<pre>&lt;div&gt;\n  x\n&lt;/div&gt;</pre>",
		},
		{
			name:   "empty",
			blocks: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(RichTextHTML(tt.blocks)))
		})
	}
}

func TestSummary_DraftHasNoDate(t *testing.T) {
	t.Parallel()

	r := newRenderer(t, Comments{})
	got := r.Summaries([]content.PostSummary{
		{ID: "como-utilizar-hooks", Title: "Como utilizar Hooks", Author: "Joseph", PublishedAt: ts("2021-03-15T19:25:28Z")},
		{ID: "rascunho", Title: "Rascunho", Author: "Ana"},
	})

	require.Len(t, got, 2)
	require.Equal(t, "15 mar 2021", got[0].Date)
	require.Equal(t, "/post/como-utilizar-hooks", got[0].URL)
	require.Equal(t, "", got[1].Date)
}

func TestSummary_UsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("BRT", -3*60*60)
	r, err := New(SiteInfo{Name: "x"}, Options{Location: loc})
	require.NoError(t, err)

	// 01:00 UTC on the 16th is still the 15th in BRT.
	got := r.Summary(content.PostSummary{ID: "a", PublishedAt: ts("2021-03-16T01:00:00Z")})
	require.Equal(t, "15 mar 2021", got.Date)
}

func TestPageJSON(t *testing.T) {
	t.Parallel()

	r := newRenderer(t, Comments{})
	posts := []content.PostSummary{{ID: "a", Title: "A", Author: "Ana"}}

	b, err := json.Marshal(r.PageJSON(posts, ""))
	require.NoError(t, err)
	require.JSONEq(t, `{"items":[{"id":"a","url":"/post/a","title":"A","subtitle":"","author":"Ana","date":""}],"next":null}`, string(b))

	b, err = json.Marshal(r.PageJSON(nil, "/posts/3.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"items":[],"next":"/posts/3.json"}`, string(b))
}

func TestHome(t *testing.T) {
	t.Parallel()

	r := newRenderer(t, Comments{})
	posts := []content.PostSummary{
		{ID: "a", Title: "<Marte>", Subtitle: "Viagem", Author: "Ana", PublishedAt: ts("2021-04-01T00:00:00Z")},
	}

	var buf bytes.Buffer
	require.NoError(t, r.Home(&buf, r.HomePage(posts, "/posts/2.json")))
	html := buf.String()
	require.Contains(t, html, "<title>Home | spacetraveling</title>")
	require.Contains(t, html, "&lt;Marte&gt;")
	require.Contains(t, html, "01 abr 2021")
	require.Contains(t, html, `data-next="/posts/2.json"`)
	require.Contains(t, html, "Carregar mais posts")
	require.Contains(t, html, `<p class="load-error" id="load-error" role="alert" hidden></p>`)

	buf.Reset()
	require.NoError(t, r.Home(&buf, r.HomePage(posts, "")))
	require.NotContains(t, buf.String(), "Carregar mais posts")
	require.NotContains(t, buf.String(), "load-error")
}

func TestPost(t *testing.T) {
	t.Parallel()

	post := &content.Post{
		PostSummary: content.PostSummary{
			ID: "hooks", Title: "Como utilizar Hooks", Author: "Joseph Oliveira",
			PublishedAt: ts("2021-03-15T19:25:28Z"),
		},
		UpdatedAt: ts("2021-03-25T19:27:35Z"),
		BannerURL: "https://images.test/banner.png",
		Content: []content.Section{
			{Heading: "Proin et varius", Body: []content.Block{{Type: "paragraph", Text: strings.Repeat("palavra ", 400)}}},
			{Heading: "Proin et varius", Body: []content.Block{{Type: "paragraph", Text: "fim"}}},
		},
	}

	t.Run("with comments", func(t *testing.T) {
		t.Parallel()

		r := newRenderer(t, Comments{Repo: "bessache/utterancesblogrepo", IssueTerm: "url", Theme: "github-dark-orange"})
		page := r.PostPage(post)
		require.Equal(t, "15 mar 2021", page.Date)
		require.Equal(t, "25 de março de 2021", page.Updated)
		require.Equal(t, 3, page.ReadingMinutes, "404 words at 200 wpm")
		require.Equal(t, "proin-et-varius", page.Sections[0].Anchor)
		require.Equal(t, "proin-et-varius-2", page.Sections[1].Anchor)

		var buf bytes.Buffer
		require.NoError(t, r.Post(&buf, page))
		html := buf.String()
		require.Contains(t, html, "<h1>Como utilizar Hooks</h1>")
		require.Contains(t, html, `src="https://images.test/banner.png"`)
		require.Contains(t, html, "3 min")
		require.Contains(t, html, "https://utteranc.es/client.js")
		require.Contains(t, html, `repo="bessache/utterancesblogrepo"`)
		require.Contains(t, html, `theme="github-dark-orange"`)
	})

	t.Run("without comments", func(t *testing.T) {
		t.Parallel()

		r := newRenderer(t, Comments{})
		var buf bytes.Buffer
		require.NoError(t, r.Post(&buf, r.PostPage(post)))
		require.NotContains(t, buf.String(), "utteranc.es")
	})
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, newRenderer(t, Comments{}).NotFound(&buf))
	require.Contains(t, buf.String(), "Post não encontrado")
}

func TestStatic(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"app.js", "style.css"} {
		b, err := fs.ReadFile(Static(), name)
		require.NoError(t, err)
		require.NotEmpty(t, b)
	}
}

func TestStatic_LoadMoreShowsFailures(t *testing.T) {
	t.Parallel()

	b, err := fs.ReadFile(Static(), "app.js")
	require.NoError(t, err)
	js := string(b)

	catchAt := strings.Index(js, ".catch(")
	require.Positive(t, catchAt)
	require.Contains(t, js[catchAt:], "showError('Não foi possível carregar mais posts")
	require.Contains(t, js, "getElementById('load-error')")
	require.Contains(t, js, "showError('');")
}
