package storage

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"

	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func at(day int) *time.Time {
	t := time.Date(2021, 3, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func testPost(id string, published *time.Time) *content.Post {
	return &content.Post{
		PostSummary: content.PostSummary{
			ID:          id,
			PublishedAt: published,
			Title:       "Post " + id,
			Subtitle:    "Sub " + id,
			Author:      "Ana",
		},
		BannerURL: "https://img.test/" + id + ".png",
		Content: []content.Section{{
			Heading: "Intro",
			Body: []content.Block{{
				Type:  "paragraph",
				Text:  "Lorem ipsum",
				Spans: []content.Span{{Start: 0, End: 5, Type: "strong"}},
			}},
		}},
	}
}

func upsert(t *testing.T, db *DB, post *content.Post) {
	t.Helper()
	doc, err := NewDocument(post, 3)
	require.NoError(t, err)
	doc.ContentHash = "hash-" + post.ID
	doc.SyncedAt = time.Now()
	require.NoError(t, db.Upsert(doc))
}

func TestDB_UpsertGet(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	upsert(t, db, testPost("hooks", at(15)))

	doc, err := db.Get("hooks")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "Post hooks", doc.Title)
	require.Equal(t, 3, doc.ReadingMinutes)
	require.True(t, doc.PublishedAt.Equal(*at(15)))
	require.Nil(t, doc.UpdatedAt)

	post, err := doc.Post()
	require.NoError(t, err)
	require.Equal(t, testPost("hooks", at(15)).Content, post.Content)

	hash, err := db.GetContentHash("hooks")
	require.NoError(t, err)
	require.Equal(t, "hash-hooks", hash)

	// Second upsert replaces the row.
	changed := testPost("hooks", at(15))
	changed.Title = "Novo título"
	upsert(t, db, changed)

	doc, err = db.Get("hooks")
	require.NoError(t, err)
	require.Equal(t, "Novo título", doc.Title)

	n, err := db.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	last, err := db.LastSynced()
	require.NoError(t, err)
	require.NotNil(t, last)
	require.WithinDuration(t, time.Now(), *last, time.Minute)
}

func TestDB_GetMissing(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	doc, err := db.Get("nope")
	require.NoError(t, err)
	require.Nil(t, doc)

	hash, err := db.GetContentHash("nope")
	require.NoError(t, err)
	require.Equal(t, "", hash)

	last, err := db.LastSynced()
	require.NoError(t, err)
	require.Nil(t, last)
}

func TestDB_ListNewestFirst(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	upsert(t, db, testPost("old", at(1)))
	upsert(t, db, testPost("draft", nil))
	upsert(t, db, testPost("new", at(20)))

	docs, err := db.List()
	require.NoError(t, err)

	var got []string
	for _, d := range docs {
		got = append(got, d.ID)
	}
	require.Equal(t, []string{"new", "old", "draft"}, got)
}

func TestDB_IDsAndDelete(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	upsert(t, db, testPost("b", at(2)))
	upsert(t, db, testPost("a", at(1)))

	ids, err := db.IDs()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, db.Delete("a"))
	require.NoError(t, db.Delete("missing"))

	doc, err := db.Get("a")
	require.NoError(t, err)
	require.Nil(t, doc)

	ids, err = db.IDs()
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, ids)
}

func TestSource_FetchPage_Keyset(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	// Two posts share a timestamp to exercise the id tie-break.
	upsert(t, db, testPost("a", at(10)))
	upsert(t, db, testPost("b", at(10)))
	upsert(t, db, testPost("c", at(12)))
	upsert(t, db, testPost("d", at(1)))
	upsert(t, db, testPost("e", nil))

	src := NewSource(db, 2)
	ctx := context.Background()

	var got []string
	cursor := content.Cursor("")
	pages := 0
	for {
		page, err := src.FetchPage(ctx, cursor)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Items), 2)
		for _, it := range page.Items {
			got = append(got, it.ID)
		}
		pages++
		if !page.HasMore() {
			break
		}
		cursor = page.NextCursor
	}

	require.Equal(t, []string{"c", "b", "a", "d", "e"}, got)
	require.Equal(t, 3, pages)
}

func TestSource_FetchPage_ExactMultipleHasNoTrailingCursor(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	upsert(t, db, testPost("a", at(1)))
	upsert(t, db, testPost("b", at(2)))

	page, err := NewSource(db, 2).FetchPage(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.False(t, page.HasMore())
}

func TestSource_FetchPage_Empty(t *testing.T) {
	t.Parallel()

	page, err := NewSource(openTestDB(t), 5).FetchPage(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.False(t, page.HasMore())
}

func TestSource_FetchPage_InvalidCursor(t *testing.T) {
	t.Parallel()

	src := NewSource(openTestDB(t), 5)
	for _, c := range []content.Cursor{"***", "bm9waXBl", content.Cursor(encodeRaw("x|id")), content.Cursor(encodeRaw("1|"))} {
		t.Run(string(c), func(t *testing.T) {
			_, err := src.FetchPage(context.Background(), c)
			require.ErrorIs(t, err, content.ErrInvalidCursor)
		})
	}
}

func TestSource_FetchPost(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	upsert(t, db, testPost("hooks", at(15)))
	src := NewSource(db, 5)

	post, err := src.FetchPost(context.Background(), "hooks")
	require.NoError(t, err)
	require.Equal(t, "Post hooks", post.Title)
	require.Equal(t, []string{"Lorem ipsum"}, post.BodyTexts())

	_, err = src.FetchPost(context.Background(), "nope")
	require.ErrorIs(t, err, content.ErrNotFound)
}

func TestSource_ClosedDBIsUnavailable(t *testing.T) {
	t.Parallel()

	db, err := Open(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewSource(db, 5).FetchPage(context.Background(), "")
	require.ErrorIs(t, err, content.ErrSourceUnavailable)
}

func TestCursor_RoundTrip(t *testing.T) {
	t.Parallel()

	doc := &Document{ID: "post|with|pipes", PublishedAt: at(3)}
	published, id, err := decodeCursor(encodeCursor(doc))
	require.NoError(t, err)
	require.Equal(t, at(3).Unix(), published)
	require.Equal(t, "post|with|pipes", id)

	published, id, err = decodeCursor(encodeCursor(&Document{ID: "draft"}))
	require.NoError(t, err)
	require.Equal(t, int64(0), published)
	require.Equal(t, "draft", id)
}

func encodeRaw(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
