// Package logger builds the process logger and carries request-scoped
// entries through contexts.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Environments that pick a default format.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Options configures New.
type Options struct {
	Env    string
	Level  string // logrus level name; empty means debug outside prod
	Format string // "text" or "json"; empty picks by Env
	Output io.Writer
}

// New builds a logger: text for local, JSON for dev and prod.
func New(opts Options) *logrus.Logger {
	l := logrus.New()

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	format := strings.ToLower(opts.Format)
	if format == "" {
		if opts.Env == EnvDev || opts.Env == EnvProd {
			format = "json"
		} else {
			format = "text"
		}
	}
	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level := logrus.DebugLevel
	if opts.Env == EnvProd {
		level = logrus.InfoLevel
	}
	if opts.Level != "" {
		if parsed, err := logrus.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}
	l.SetLevel(level)

	return l
}

type ctxKey struct{}

// Into stores a logger entry in the context.
func Into(ctx context.Context, e *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, e)
}

// From returns the entry stored in ctx, or one on the standard logger.
func From(ctx context.Context) *logrus.Entry {
	if v := ctx.Value(ctxKey{}); v != nil {
		if e, ok := v.(*logrus.Entry); ok && e != nil {
			return e
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
