// Package site generates the blog as static files.
package site

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/renderinc/spacetraveling/internal/feed"
	"github.com/renderinc/spacetraveling/internal/listing"
	"github.com/renderinc/spacetraveling/internal/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Builder writes the site into OutDir.
type Builder struct {
	Source      content.PostSource
	Renderer    *render.Renderer
	OutDir      string
	Concurrency int // post pages rendered in parallel (default 4)
	Log         logrus.FieldLogger
}

// Result summarizes a build.
type Result struct {
	Posts    int
	Pages    int // home page plus JSON pages
	Skipped  int // posts whose id is not a safe path segment
	Duration time.Duration
}

// pageURL is the static "load more" page n, n >= 2.
func pageURL(n int) string {
	return fmt.Sprintf("/posts/%d.json", n)
}

// Build fetches every post and writes index.html, the load more pages
// posts/<n>.json, one post/<id>/index.html per post, feed.xml, 404.html and
// the static assets.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	const op = "site.Builder.Build"

	start := time.Now()
	log := b.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	res := &Result{}

	first, err := b.Source.FetchPage(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%s: first page: %w", op, err)
	}

	next := ""
	if first.HasMore() {
		next = pageURL(2)
	}
	var home bytes.Buffer
	if err := b.Renderer.Home(&home, b.Renderer.HomePage(first.Items, next)); err != nil {
		return nil, fmt.Errorf("%s: render home: %w", op, err)
	}
	if err := b.write("index.html", home.Bytes()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res.Pages++

	// The same controller the browser drives, replayed at build time: each
	// delta becomes the JSON page the button fetches.
	list := listing.New(b.Source, first)
	for n := 2; list.HasMore(); n++ {
		before := list.Len()
		if _, err := list.LoadMore(ctx); err != nil {
			return nil, fmt.Errorf("%s: page %d: %w", op, n, err)
		}

		next := ""
		if list.HasMore() {
			next = pageURL(n + 1)
		}
		raw, err := json.Marshal(b.Renderer.PageJSON(list.Since(before), next))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := b.write(strings.TrimPrefix(pageURL(n), "/"), raw); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res.Pages++
	}

	posts := list.Items()
	if err := b.writePosts(ctx, posts, res, log); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rss, err := feed.Build(b.Renderer.Site(), posts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := b.write("feed.xml", rss); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var notFound bytes.Buffer
	if err := b.Renderer.NotFound(&notFound); err != nil {
		return nil, fmt.Errorf("%s: render 404: %w", op, err)
	}
	if err := b.write("404.html", notFound.Bytes()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := b.copyStatic(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"posts":    res.Posts,
		"pages":    res.Pages,
		"skipped":  res.Skipped,
		"duration": res.Duration,
	}).Info("site built")
	return res, nil
}

// writePosts renders one page per distinct post id.
func (b *Builder) writePosts(ctx context.Context, posts []content.PostSummary, res *Result, log logrus.FieldLogger) error {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range posts {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if !safeSegment(p.ID) {
			log.WithField("id", p.ID).Warn("skipping post with unsafe id")
			res.Skipped++
			continue
		}
		ids = append(ids, p.ID)
	}

	limit := b.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, id := range ids {
		g.Go(func() error {
			post, err := b.Source.FetchPost(ctx, id)
			if err != nil {
				return fmt.Errorf("post %s: %w", id, err)
			}
			var buf bytes.Buffer
			if err := b.Renderer.Post(&buf, b.Renderer.PostPage(post)); err != nil {
				return fmt.Errorf("render post %s: %w", id, err)
			}
			return b.write(path.Join("post", id, "index.html"), buf.Bytes())
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	res.Posts = len(ids)
	return nil
}

func (b *Builder) copyStatic() error {
	static := render.Static()
	return fs.WalkDir(static, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(static, name)
		if err != nil {
			return err
		}
		return b.write(path.Join("static", name), data)
	})
}

// write stores data at the slash-separated name under OutDir.
func (b *Builder) write(name string, data []byte) error {
	dst := filepath.Join(b.OutDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func safeSegment(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
