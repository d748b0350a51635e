package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/renderinc/spacetraveling/internal/feed"
	"github.com/renderinc/spacetraveling/internal/logger"
	"github.com/renderinc/spacetraveling/internal/render"
	"github.com/renderinc/spacetraveling/internal/search"
	"github.com/renderinc/spacetraveling/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Options configures a Server.
type Options struct {
	HomeTTL time.Duration
	PostTTL time.Duration

	// FillTimeout bounds a cache fill, which outlives the request that
	// started it (default 30s).
	FillTimeout time.Duration

	// WebhookSecret enables POST /api/revalidate for CMS publish webhooks
	// carrying this secret. Empty leaves the route off.
	WebhookSecret string

	// RateLimit caps /api requests per second; zero disables it.
	RateLimit float64
	Burst     int

	Log logrus.FieldLogger
}

// Server serves the blog pages and the JSON API from a content source.
type Server struct {
	src      content.PostSource
	db       *storage.DB   // optional, for health counts
	idx      *search.Index // optional, enables /api/search
	renderer *render.Renderer
	log      logrus.FieldLogger
	opts     Options

	pages *ttlCache // home and feed
	posts *ttlCache
}

// SearchResponse is the body of /api/search.
type SearchResponse struct {
	Results []*search.SearchResult `json:"results"`
	Query   string                 `json:"query"`
	Count   int                    `json:"count"`
}

// webhookPayload is the part of a Prismic webhook body we read.
type webhookPayload struct {
	Type   string `json:"type"`
	Secret string `json:"secret"`
}

type errorBody struct {
	Error string `json:"error"`
}

// NewServer creates a server over src. db and idx may be nil; without idx
// /api/search answers 503.
func NewServer(src content.PostSource, renderer *render.Renderer, db *storage.DB, idx *search.Index, opts Options) *Server {
	if opts.HomeTTL <= 0 {
		opts.HomeTTL = 5 * time.Second
	}
	if opts.PostTTL <= 0 {
		opts.PostTTL = time.Hour
	}
	if opts.FillTimeout <= 0 {
		opts.FillTimeout = 30 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Server{
		src:      src,
		db:       db,
		idx:      idx,
		renderer: renderer,
		log:      opts.Log,
		opts:     opts,
		pages:    newTTLCache(opts.HomeTTL),
		posts:    newTTLCache(opts.PostTTL),
	}
}

// Handler returns the router with every route and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Compress(5))

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(render.Static()))))

	r.Get("/", s.handleIndex)
	r.Get("/post/{id}", s.handlePost)
	r.Get("/feed.xml", s.handleFeed)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			burst := s.opts.Burst
			if burst <= 0 {
				burst = int(s.opts.RateLimit) + 1
			}
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(s.opts.RateLimit), burst)))
		}
		r.Get("/posts", s.handlePosts)
		r.Get("/search", s.handleSearch)
		if s.opts.WebhookSecret != "" {
			r.Post("/revalidate", s.handleRevalidate)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.notFound(w, r)
	})

	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.janitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) janitor(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.pages.purge()
			s.posts.purge()
		}
	}
}

// Invalidate forgets every cached page.
func (s *Server) Invalidate() {
	s.pages.invalidate()
	s.posts.invalidate()
}

// fillContext detaches a cache fill from r: other requests may be waiting
// on the same fill, so r going away must not cancel it.
func (s *Server) fillContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.FillTimeout)
}

func apiPostsURL(cursor content.Cursor) string {
	return "/api/posts?cursor=" + url.QueryEscape(string(cursor))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	body, err := s.pages.get("home", func() ([]byte, error) {
		ctx, cancel := s.fillContext(r)
		defer cancel()
		first, err := s.src.FetchPage(ctx, "")
		if err != nil {
			return nil, err
		}
		next := ""
		if first.HasMore() {
			next = apiPostsURL(first.NextCursor)
		}
		var buf bytes.Buffer
		if err := s.renderer.Home(&buf, s.renderer.HomePage(first.Items, next)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheControl(s.opts.HomeTTL))
	w.Write(body)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := s.posts.get(id, func() ([]byte, error) {
		ctx, cancel := s.fillContext(r)
		defer cancel()
		post, err := s.src.FetchPost(ctx, id)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := s.renderer.Post(&buf, s.renderer.PostPage(post)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheControl(s.opts.PostTTL))
	w.Write(body)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	cursor := content.Cursor(r.URL.Query().Get("cursor"))

	page, err := s.src.FetchPage(r.Context(), cursor)
	if err != nil {
		status := statusFor(err)
		logger.From(r.Context()).WithError(err).Warn("fetch page failed")
		writeJSON(w, status, errorBody{Error: http.StatusText(status)})
		return
	}

	next := ""
	if page.HasMore() {
		next = apiPostsURL(page.NextCursor)
	}
	writeJSON(w, http.StatusOK, s.renderer.PageJSON(page.Items, next))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.idx == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "search index not available"})
		return
	}

	query := r.URL.Query().Get("q")
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	results, err := s.idx.Search(query, limit)
	if err != nil {
		logger.From(r.Context()).WithError(err).Warn("search failed")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if results == nil {
		results = []*search.SearchResult{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Results: results, Query: query, Count: len(results)})
}

// handleRevalidate drops the page caches when the CMS reports a publish.
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payload"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(payload.Secret), []byte(s.opts.WebhookSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: http.StatusText(http.StatusUnauthorized)})
		return
	}

	s.Invalidate()
	logger.From(r.Context()).WithField("type", payload.Type).Info("caches invalidated")
	writeJSON(w, http.StatusOK, map[string]bool{"revalidated": true})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	body, err := s.pages.get("feed", func() ([]byte, error) {
		ctx, cancel := s.fillContext(r)
		defer cancel()
		first, err := s.src.FetchPage(ctx, "")
		if err != nil {
			return nil, err
		}
		return feed.Build(s.renderer.Site(), first.Items)
	})
	if err != nil {
		status := statusFor(err)
		logger.From(r.Context()).WithError(err).Warn("feed failed")
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}

	if s.db != nil {
		if n, err := s.db.Count(); err == nil {
			health["posts"] = n
		}
	}
	if s.idx != nil {
		if n, err := s.idx.Count(); err == nil {
			health["indexed"] = n
		}
	}
	if b, ok := s.src.(interface{ State() string }); ok {
		health["breaker"] = b.State()
	}

	writeJSON(w, http.StatusOK, health)
}

func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusNotFound {
		s.notFound(w, r)
		return
	}
	logger.From(r.Context()).WithError(err).Error("render page failed")
	http.Error(w, fmt.Sprintf("%d %s", status, http.StatusText(status)), status)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := s.renderer.NotFound(w); err != nil {
		logger.From(r.Context()).WithError(err).Error("render 404 failed")
	}
}

// statusFor maps source errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrInvalidCursor):
		return http.StatusBadRequest
	case errors.Is(err, content.ErrSourceUnavailable), errors.Is(err, content.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func cacheControl(ttl time.Duration) string {
	return fmt.Sprintf("public, max-age=%d", int(ttl.Seconds()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
