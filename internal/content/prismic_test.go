package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/renderinc/spacetraveling/internal/prismic"
	"github.com/stretchr/testify/require"
)

// fakeRepo is a minimal Prismic repository with paged search results.
type fakeRepo struct {
	t      *testing.T
	srv    *httptest.Server
	pages  map[string]string // page number -> results JSON array
	byUID  map[string]string // uid -> document JSON
	byID   map[string]string // id -> document JSON
	status int
}

func newFakeRepo(t *testing.T) *fakeRepo {
	t.Helper()
	f := &fakeRepo{t: t, pages: map[string]string{}, byUID: map[string]string{}, byID: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"refs":[{"id":"master","ref":"m1","isMasterRef":true}]}`)
	})
	mux.HandleFunc("/api/v2/documents/search", f.search)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRepo) search(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	q := r.URL.Query().Get("q")
	switch {
	case strings.Contains(q, "my.posts.uid"):
		f.single(w, f.byUID, q)
		return
	case strings.Contains(q, "document.id"):
		f.single(w, f.byID, q)
		return
	}

	page := r.URL.Query().Get("page")
	if page == "" {
		page = "1"
	}
	next := "null"
	if _, ok := f.pages[nextPage(page)]; ok {
		next = fmt.Sprintf("%q", f.srv.URL+"/api/v2/documents/search?ref=m1&page="+nextPage(page))
	}
	fmt.Fprintf(w, `{"page":%s,"next_page":%s,"results":%s}`, page, next, f.pages[page])
}

func (f *fakeRepo) single(w http.ResponseWriter, docs map[string]string, q string) {
	for key, doc := range docs {
		if strings.Contains(q, fmt.Sprintf("%q", key)) {
			fmt.Fprintf(w, `{"results":[%s]}`, doc)
			return
		}
	}
	fmt.Fprint(w, `{"results":[]}`)
}

func nextPage(page string) string {
	var n int
	fmt.Sscanf(page, "%d", &n)
	return fmt.Sprint(n + 1)
}

func (f *fakeRepo) source() *Prismic {
	return NewPrismic(prismic.NewClient(f.srv.URL+"/api/v2", "", nil), "posts", 2)
}

func doc(uid, title, author, published string) string {
	return fmt.Sprintf(`{"id":"ID-%s","uid":%q,"type":"posts","first_publication_date":%s,
		"data":{"title":%q,"subtitle":"sub %s","author":%q,"banner":{"url":"https://img.test/x.png"},"secret":"internal"}}`,
		uid, uid, published, title, uid, author)
}

func TestPrismic_FetchPage_WalksAllPages(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(t)
	repo.pages["1"] = "[" + doc("c", "Post C", "Ana", `"2021-03-15T19:25:28+0000"`) + "," +
		doc("b", "Post B", "Bia", `"2021-03-10T10:00:00+0000"`) + "]"
	repo.pages["2"] = "[" + doc("a", "Post A", "Caio", "null") + "]"

	src := repo.source()

	first, err := src.FetchPage(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.True(t, first.HasMore())
	require.Equal(t, "c", first.Items[0].ID)
	require.Equal(t, "Post C", first.Items[0].Title)
	require.Equal(t, "sub c", first.Items[0].Subtitle)
	require.Equal(t, "Ana", first.Items[0].Author)
	require.NotNil(t, first.Items[0].PublishedAt)
	require.True(t, first.Items[0].PublishedAt.Equal(time.Date(2021, 3, 15, 19, 25, 28, 0, time.UTC)))

	second, err := src.FetchPage(context.Background(), first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Equal(t, "a", second.Items[0].ID)
	require.Nil(t, second.Items[0].PublishedAt, "draft keeps a nil timestamp")
	require.False(t, second.HasMore())
	require.Equal(t, Cursor(""), second.NextCursor)
}

func TestPrismic_FetchPage_RichTextTitleAndMissingUID(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(t)
	repo.pages["1"] = `[{"id":"XYZ","uid":null,"first_publication_date":null,
		"data":{"title":[{"type":"heading1","text":"Rich","spans":[]},{"type":"heading1","text":"Title","spans":[]}],"author":"Ana"}}]`

	page, err := repo.source().FetchPage(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "XYZ", page.Items[0].ID)
	require.Equal(t, "Rich Title", page.Items[0].Title)
	require.Equal(t, "", page.Items[0].Subtitle)
}

func TestPrismic_FetchPage_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		results string
	}{
		{"missing title", "[" + doc("x", "", "Ana", "null") + "]"},
		{"blank author", "[" + doc("x", "Title", "   ", "null") + "]"},
		{"bad timestamp", "[" + doc("x", "Title", "Ana", `"last tuesday"`) + "]"},
		{"data is not an object", `[{"id":"x","uid":"x","data":[1,2]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(t)
			repo.pages["1"] = tt.results

			_, err := repo.source().FetchPage(context.Background(), "")
			require.ErrorIs(t, err, ErrMalformedResponse)
			require.False(t, errors.Is(err, ErrSourceUnavailable))
		})
	}
}

func TestPrismic_FetchPage_Unavailable(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(t)
	repo.status = http.StatusServiceUnavailable

	_, err := repo.source().FetchPage(context.Background(), "")
	require.ErrorIs(t, err, ErrSourceUnavailable)

	var apiErr *prismic.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestPrismic_FetchPage_ServerGone(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(t)
	src := repo.source()
	repo.srv.Close()

	_, err := src.FetchPage(context.Background(), "")
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestPrismic_FetchPage_ForeignCursor(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(t)
	for _, c := range []Cursor{"https://evil.test/api/v2/documents/search?page=2", "not a url", "/relative?page=2"} {
		_, err := repo.source().FetchPage(context.Background(), c)
		require.ErrorIs(t, err, ErrInvalidCursor)
		require.False(t, errors.Is(err, ErrSourceUnavailable))
	}
}

func TestPrismic_FetchPost(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(t)
	repo.byUID["como-utilizar-hooks"] = `{"id":"P1","uid":"como-utilizar-hooks","type":"posts",
		"first_publication_date":"2021-03-15T19:25:28+0000","last_publication_date":"2021-03-25T19:27:35+0000",
		"data":{"title":"Como utilizar Hooks","subtitle":"Pensando em sincronização","author":"Joseph Oliveira",
		"banner":{"url":"https://images.prismic.io/banner.png"},
		"content":[{"heading":"Proin et varius","body":[
			{"type":"paragraph","text":"Lorem ipsum dolor","spans":[{"start":0,"end":5,"type":"strong"},{"start":6,"end":11,"type":"hyperlink","data":{"link_type":"Web","url":"https://example.test"}}]},
			{"type":"list-item","text":"um item","spans":[]}]}]}}`
	repo.byID["P2"] = `{"id":"P2","uid":null,"type":"posts","data":{"title":"Sem uid","author":"Ana","content":[]}}`

	src := repo.source()

	post, err := src.FetchPost(context.Background(), "como-utilizar-hooks")
	require.NoError(t, err)
	require.Equal(t, "como-utilizar-hooks", post.ID)
	require.Equal(t, "https://images.prismic.io/banner.png", post.BannerURL)
	require.NotNil(t, post.UpdatedAt)
	require.Len(t, post.Content, 1)
	require.Equal(t, "Proin et varius", post.Content[0].Heading)
	require.Len(t, post.Content[0].Body, 2)
	require.Equal(t, []Span{
		{Start: 0, End: 5, Type: "strong"},
		{Start: 6, End: 11, Type: "hyperlink", URL: "https://example.test"},
	}, post.Content[0].Body[0].Spans)
	require.Equal(t, []string{"Lorem ipsum dolor", "um item"}, post.BodyTexts())

	post, err = src.FetchPost(context.Background(), "P2")
	require.NoError(t, err)
	require.Equal(t, "P2", post.ID)

	_, err = src.FetchPost(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}
