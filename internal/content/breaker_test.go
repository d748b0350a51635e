package content

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	err   error
	calls int
}

func (s *stubSource) FetchPage(ctx context.Context, _ Cursor) (*Page, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("stub: %w: %w", ErrSourceUnavailable, err)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &Page{Items: []PostSummary{{ID: "a", Title: "A", Author: "Ana"}}}, nil
}

func (s *stubSource) FetchPost(_ context.Context, id string) (*Post, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Post{PostSummary: PostSummary{ID: id}}, nil
}

func TestBreaker_OpensOnUnavailable(t *testing.T) {
	t.Parallel()

	src := &stubSource{err: fmt.Errorf("x: %w", ErrSourceUnavailable)}
	b := NewBreaker(src, BreakerSettings{Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := b.FetchPage(context.Background(), "")
		require.ErrorIs(t, err, ErrSourceUnavailable)
	}
	require.Equal(t, "open", b.State())

	_, err := b.FetchPost(context.Background(), "a")
	require.ErrorIs(t, err, ErrSourceUnavailable)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, 3, src.calls, "open breaker fails fast")
}

func TestBreaker_NotFoundDoesNotTrip(t *testing.T) {
	t.Parallel()

	src := &stubSource{err: fmt.Errorf("x: %w", ErrNotFound)}
	b := NewBreaker(src, BreakerSettings{})

	for i := 0; i < 5; i++ {
		_, err := b.FetchPost(context.Background(), "nope")
		require.ErrorIs(t, err, ErrNotFound)
	}
	require.Equal(t, "closed", b.State())
	require.Equal(t, 5, src.calls)
}

func TestBreaker_PassesResults(t *testing.T) {
	t.Parallel()

	b := NewBreaker(&stubSource{}, BreakerSettings{})

	page, err := b.FetchPage(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	post, err := b.FetchPost(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, "x", post.ID)
}

func TestBreaker_CancelledCallsDoNotTrip(t *testing.T) {
	t.Parallel()

	src := &stubSource{}
	b := NewBreaker(src, BreakerSettings{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := b.FetchPage(ctx, "")
		require.ErrorIs(t, err, context.Canceled)
	}
	require.Equal(t, "closed", b.State())

	page, err := b.FetchPage(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, 4, src.calls)
}

func TestBreaker_DeadlinesStillTrip(t *testing.T) {
	t.Parallel()

	src := &stubSource{}
	b := NewBreaker(src, BreakerSettings{Timeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		_, err := b.FetchPage(ctx, "")
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	require.Equal(t, "open", b.State())
}
