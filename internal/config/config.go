// Package config loads the blog configuration from YAML and environment
// variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

var validate = validator.New()

// Config is the root configuration. Sources, highest priority first:
//  1. the path given to Load;
//  2. the CONFIG_PATH environment variable;
//  3. ./local.yaml in the working directory;
//  4. environment variables only.
//
// Environment variables always override values read from a file.
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	Log      LogConfig      `yaml:"log"`
	Prismic  PrismicConfig  `yaml:"prismic"`
	Site     SiteConfig     `yaml:"site"`
	HTTP     HTTPConfig     `yaml:"http"`
	Data     DataConfig     `yaml:"data"`
	Build    BuildConfig    `yaml:"build"`
	Cache    CacheConfig    `yaml:"cache"`
	Comments CommentsConfig `yaml:"comments"`
	Reading  ReadingConfig  `yaml:"reading"`
	Sync     SyncConfig     `yaml:"sync"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// PrismicConfig points at the content repository.
type PrismicConfig struct {
	Endpoint     string        `yaml:"endpoint" env:"PRISMIC_ENDPOINT" validate:"required,url"`
	AccessToken  string        `yaml:"access_token" env:"PRISMIC_ACCESS_TOKEN"`
	TokenFile    string        `yaml:"token_file" env:"PRISMIC_TOKEN_FILE" env-default:"token"`
	DocumentType string        `yaml:"document_type" env:"PRISMIC_DOCUMENT_TYPE" env-default:"posts"`
	PageSize     int           `yaml:"page_size" env:"PRISMIC_PAGE_SIZE" env-default:"2" validate:"min=1,max=100"`
	Timeout      time.Duration `yaml:"timeout" env:"PRISMIC_TIMEOUT" env-default:"30s" validate:"gt=0"`
	// WebhookSecret must match the secret of the repository's publish
	// webhook pointed at /api/revalidate. Empty disables the endpoint.
	WebhookSecret string `yaml:"webhook_secret" env:"PRISMIC_WEBHOOK_SECRET"`
}

// SiteConfig describes the published site.
type SiteConfig struct {
	Name        string `yaml:"name" env:"SITE_NAME" env-default:"spacetraveling"`
	URL         string `yaml:"url" env:"SITE_URL" env-default:"http://localhost:6893"`
	Description string `yaml:"description" env:"SITE_DESCRIPTION" env-default:"Um blog sobre tecnologia e programação"`
	Language    string `yaml:"language" env:"SITE_LANGUAGE" env-default:"pt-BR"`
	Timezone    string `yaml:"timezone" env:"SITE_TIMEZONE" env-default:"America/Sao_Paulo"`
}

// Location returns the display time zone, or UTC when it cannot be loaded.
func (s SiteConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HTTPConfig is the listen address of serve.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"6893"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return h.Host + ":" + h.Port
}

// DataConfig locates the local mirror.
type DataConfig struct {
	Dir string `yaml:"dir" env:"DATA_DIR" env-default:"./data"`
}

// DBPath is the SQLite file of the mirror.
func (d DataConfig) DBPath() string {
	return filepath.Join(d.Dir, "blog.db")
}

// IndexPath is the bleve index directory of the mirror.
func (d DataConfig) IndexPath() string {
	return filepath.Join(d.Dir, "bleve")
}

// BuildConfig configures static generation.
type BuildConfig struct {
	OutDir string `yaml:"out_dir" env:"BUILD_OUT_DIR" env-default:"./public"`
}

// CacheConfig holds the revalidation windows of serve.
type CacheConfig struct {
	HomeTTL time.Duration `yaml:"home_ttl" env:"CACHE_HOME_TTL" env-default:"5s" validate:"gt=0"`
	PostTTL time.Duration `yaml:"post_ttl" env:"CACHE_POST_TTL" env-default:"1h" validate:"gt=0"`
}

// CommentsConfig configures the utterances widget. An empty Repo disables it.
type CommentsConfig struct {
	Repo      string `yaml:"repo" env:"COMMENTS_REPO"`
	IssueTerm string `yaml:"issue_term" env:"COMMENTS_ISSUE_TERM" env-default:"url"`
	Theme     string `yaml:"theme" env:"COMMENTS_THEME" env-default:"github-dark-orange"`
}

// Enabled reports whether the widget should be rendered.
func (c CommentsConfig) Enabled() bool {
	return c.Repo != ""
}

// ReadingConfig tunes the reading time estimate.
type ReadingConfig struct {
	WordsPerMinute int `yaml:"words_per_minute" env:"READING_WORDS_PER_MINUTE" env-default:"200" validate:"gt=0"`
}

// SyncConfig tunes the mirror worker.
type SyncConfig struct {
	Concurrency int `yaml:"concurrency" env:"SYNC_CONCURRENCY" env-default:"5" validate:"gt=0"`
	MaxPosts    int `yaml:"max_posts" env:"SYNC_MAX_POSTS" validate:"gte=0"`
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration; see Config for the source priority.
func Load(path string) (*Config, error) {
	var cfg Config

	switch {
	case path != "":
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := readFile(os.Getenv("CONFIG_PATH"), &cfg); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat("local.yaml"); err == nil {
			if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
				return nil, fmt.Errorf("failed to read local.yaml: %w", err)
			}
		} else if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env: %w", err)
		}
	}

	if err := cfg.loadTokenFile(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file does not exist: %s", path)
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// loadTokenFile fills the access token from TokenFile when neither the file
// nor the environment set one. A missing token file is not an error: public
// repositories need no token.
func (c *Config) loadTokenFile() error {
	if c.Prismic.AccessToken != "" || c.Prismic.TokenFile == "" {
		return nil
	}
	b, err := os.ReadFile(c.Prismic.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read token file: %w", err)
	}
	c.Prismic.AccessToken = strings.TrimSpace(string(b))
	return nil
}

// validate checks the struct tags, then what tags cannot express.
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("config: %s failed on %q", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	u, err := url.Parse(c.Prismic.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("prismic.endpoint must be an absolute http(s) URL")
	}
	if c.Comments.Enabled() {
		owner, name, ok := strings.Cut(c.Comments.Repo, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("comments.repo must look like owner/name")
		}
	}
	return nil
}
