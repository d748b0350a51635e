package commands

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/renderinc/spacetraveling/internal/config"
	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/renderinc/spacetraveling/internal/logger"
	"github.com/renderinc/spacetraveling/internal/prismic"
	"github.com/renderinc/spacetraveling/internal/render"
	"github.com/renderinc/spacetraveling/internal/search"
	"github.com/renderinc/spacetraveling/internal/storage"
	"github.com/sirupsen/logrus"
)

// errLocked is returned when another process holds the mirror lock.
var errLocked = errors.New("another sync or reindex is running on this data directory")

// app carries what every command shares: flags, config and logger.
type app struct {
	configPath string
	dataDir    string

	cfg *config.Config
	log *logrus.Logger
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.Data.Dir = a.dataDir
	}
	a.cfg = cfg

	// stdout belongs to command output
	a.log = logger.New(logger.Options{
		Env:    cfg.Env,
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	return nil
}

// remoteSource is the Prismic repository behind a circuit breaker.
func (a *app) remoteSource() *content.Breaker {
	client := prismic.NewClient(
		a.cfg.Prismic.Endpoint,
		a.cfg.Prismic.AccessToken,
		&http.Client{Timeout: a.cfg.Prismic.Timeout},
	)
	src := content.NewPrismic(client, a.cfg.Prismic.DocumentType, a.cfg.Prismic.PageSize)
	return content.NewBreaker(src, content.BreakerSettings{Name: "prismic"})
}

// source picks the mirror when offline, Prismic otherwise.
func (a *app) source(offline bool, db *storage.DB) content.PostSource {
	if offline {
		return storage.NewSource(db, a.cfg.Prismic.PageSize)
	}
	return a.remoteSource()
}

func (a *app) renderer() (*render.Renderer, error) {
	site := a.cfg.Site
	return render.New(
		render.SiteInfo{
			Name:        site.Name,
			URL:         site.URL,
			Description: site.Description,
			Language:    site.Language,
		},
		render.Options{
			Location: site.Location(),
			Comments: render.Comments{
				Repo:      a.cfg.Comments.Repo,
				IssueTerm: a.cfg.Comments.IssueTerm,
				Theme:     a.cfg.Comments.Theme,
			},
			WordsPerMinute: a.cfg.Reading.WordsPerMinute,
		},
	)
}

func (a *app) openDB() (*storage.DB, error) {
	if err := os.MkdirAll(a.cfg.Data.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := storage.Open(a.cfg.Data.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (a *app) openIndex() (*search.Index, error) {
	if err := os.MkdirAll(a.cfg.Data.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	idx, err := search.Open(a.cfg.Data.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return idx, nil
}

// lockMirror takes the writer lock of the data directory without waiting.
func (a *app) lockMirror() (*flock.Flock, error) {
	if err := os.MkdirAll(a.cfg.Data.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	lock := flock.New(filepath.Join(a.cfg.Data.Dir, "sync.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data directory: %w", err)
	}
	if !ok {
		return nil, errLocked
	}
	return lock, nil
}
