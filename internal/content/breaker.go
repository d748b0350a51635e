package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings tunes a Breaker.
type BreakerSettings struct {
	Name     string
	Interval time.Duration // window over which failures are counted
	Timeout  time.Duration // how long the breaker stays open
}

// Breaker guards a PostSource with a circuit breaker. Only
// ErrSourceUnavailable counts as a failure; not found and malformed
// answers prove the backend is up, and cancelled calls are not counted
// against it. While open, calls fail fast with
// ErrSourceUnavailable.
type Breaker struct {
	src PostSource
	cb  *gobreaker.CircuitBreaker
}

// NewBreaker wraps src.
func NewBreaker(src PostSource, s BreakerSettings) *Breaker {
	if s.Name == "" {
		s.Name = "content"
	}
	if s.Interval <= 0 {
		s.Interval = 10 * time.Second
	}
	if s.Timeout <= 0 {
		s.Timeout = 5 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up says nothing about the backend
			if errors.Is(err, context.Canceled) {
				return true
			}
			return err == nil || !errors.Is(err, ErrSourceUnavailable)
		},
	})
	return &Breaker{src: src, cb: cb}
}

// State reports the breaker state: "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// FetchPage implements Source.
func (b *Breaker) FetchPage(ctx context.Context, cursor Cursor) (*Page, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.src.FetchPage(ctx, cursor)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return res.(*Page), nil
}

// FetchPost implements PostSource.
func (b *Breaker) FetchPost(ctx context.Context, id string) (*Post, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.src.FetchPost(ctx, id)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return res.(*Post), nil
}

func (b *Breaker) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("content.Breaker: %w: %w", ErrSourceUnavailable, err)
	}
	return err
}
