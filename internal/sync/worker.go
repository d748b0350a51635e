package sync

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/renderinc/spacetraveling/internal/format"
	"github.com/renderinc/spacetraveling/internal/listing"
	"github.com/renderinc/spacetraveling/internal/search"
	"github.com/renderinc/spacetraveling/internal/storage"
	"github.com/sirupsen/logrus"
)

// Options tunes a Worker.
type Options struct {
	Concurrency    int // posts fetched in parallel (default 5)
	MaxPosts       int // limit for testing (0 = unlimited)
	WordsPerMinute int
}

// Worker mirrors posts from a content source into storage and the index
type Worker struct {
	src   content.PostSource
	db    *storage.DB
	index *search.Index
	log   logrus.FieldLogger
	opts  Options
}

// NewWorker creates a new sync worker. index may be nil to skip indexing.
func NewWorker(src content.PostSource, db *storage.DB, index *search.Index, log logrus.FieldLogger, opts Options) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.WordsPerMinute <= 0 {
		opts.WordsPerMinute = format.DefaultWordsPerMinute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Worker{src: src, db: db, index: index, log: log, opts: opts}
}

// Stats holds sync statistics
type Stats struct {
	TotalPosts   int
	NewPosts     int
	UpdatedPosts int
	SkippedPosts int
	DeletedPosts int // mirrored posts no longer listed by the source
	Errors       int
	Duration     time.Duration
}

// Sync performs a full sync of posts
func (w *Worker) Sync(ctx context.Context) (*Stats, error) {
	const op = "sync.Worker.Sync"

	startTime := time.Now()
	stats := &Stats{}

	w.log.Info("starting sync")

	posts, complete, err := w.collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stats.TotalPosts = len(posts)
	w.log.WithField("posts", stats.TotalPosts).Info("collected posts")

	postChan := make(chan content.PostSummary, len(posts))
	for _, p := range posts {
		postChan <- p
	}
	close(postChan)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for range w.opts.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for summary := range postChan {
				if ctx.Err() != nil {
					return
				}
				if err := w.syncPost(ctx, summary, stats, &mu); err != nil {
					w.log.WithError(err).WithFields(logrus.Fields{
						"id":    summary.ID,
						"title": summary.Title,
					}).Warn("sync post failed")
					mu.Lock()
					stats.Errors++
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("%s: %w", op, err)
	}

	// A truncated listing says nothing about the posts it did not reach.
	if complete {
		if err := w.prune(posts, stats); err != nil {
			w.log.WithError(err).Warn("prune failed")
			stats.Errors++
		}
	}

	stats.Duration = time.Since(startTime)
	w.log.WithFields(logrus.Fields{
		"new":      stats.NewPosts,
		"updated":  stats.UpdatedPosts,
		"skipped":  stats.SkippedPosts,
		"deleted":  stats.DeletedPosts,
		"errors":   stats.Errors,
		"duration": stats.Duration,
	}).Info("sync complete")

	return stats, nil
}

// collect walks every page with a listing.List, deduplicating by ID.
// complete is false when MaxPosts cut the listing short.
func (w *Worker) collect(ctx context.Context) (posts []content.PostSummary, complete bool, err error) {
	first, err := w.src.FetchPage(ctx, "")
	if err != nil {
		return nil, false, fmt.Errorf("first page: %w", err)
	}

	list := listing.New(w.src, first)
	for list.HasMore() && (w.opts.MaxPosts == 0 || list.Len() < w.opts.MaxPosts) {
		if _, err := list.LoadMore(ctx); err != nil {
			return nil, false, fmt.Errorf("page after %d posts: %w", list.Len(), err)
		}
		w.log.WithField("posts", list.Len()).Debug("loaded page")
	}

	complete = !list.HasMore()
	seen := make(map[string]bool)
	for _, p := range list.Items() {
		if seen[p.ID] {
			continue
		}
		if w.opts.MaxPosts > 0 && len(posts) >= w.opts.MaxPosts {
			w.log.WithField("max_posts", w.opts.MaxPosts).Info("reached max posts")
			complete = false
			break
		}
		seen[p.ID] = true
		posts = append(posts, p)
	}
	return posts, complete, nil
}

// prune deletes mirrored posts missing from listed, from storage and the
// index.
func (w *Worker) prune(listed []content.PostSummary, stats *Stats) error {
	keep := make(map[string]bool, len(listed))
	for _, p := range listed {
		keep[p.ID] = true
	}

	ids, err := w.db.IDs()
	if err != nil {
		return fmt.Errorf("list mirrored ids: %w", err)
	}
	for _, id := range ids {
		if keep[id] {
			continue
		}
		if err := w.db.Delete(id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		if w.index != nil {
			if err := w.index.Delete(id); err != nil {
				return fmt.Errorf("unindex %s: %w", id, err)
			}
		}
		stats.DeletedPosts++
		w.log.WithField("id", id).Info("removed post no longer in source")
	}
	return nil
}

// syncPost syncs a single post
func (w *Worker) syncPost(ctx context.Context, summary content.PostSummary, stats *Stats, mu *sync.Mutex) error {
	post, err := w.src.FetchPost(ctx, summary.ID)
	if err != nil {
		return fmt.Errorf("fetch post: %w", err)
	}

	raw, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}
	contentHash := fmt.Sprintf("%x", md5.Sum(raw))

	existingHash, err := w.db.GetContentHash(post.ID)
	if err != nil {
		return fmt.Errorf("get content hash: %w", err)
	}

	if existingHash == contentHash {
		mu.Lock()
		stats.SkippedPosts++
		mu.Unlock()
		return nil
	}

	minutes := format.EstimateReadingMinutes(post.Title, post.BodyTexts(), w.opts.WordsPerMinute)
	doc, err := storage.NewDocument(post, minutes)
	if err != nil {
		return err
	}
	doc.ContentHash = contentHash
	doc.SyncedAt = time.Now()

	if err := w.db.Upsert(doc); err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}

	if w.index != nil {
		if err := w.index.IndexPost(search.NewIndexedPost(post)); err != nil {
			return fmt.Errorf("index post: %w", err)
		}
	}

	mu.Lock()
	if existingHash == "" {
		stats.NewPosts++
	} else {
		stats.UpdatedPosts++
	}
	mu.Unlock()

	w.log.WithField("id", post.ID).Debugf("synced: %s", post.Title)
	return nil
}
