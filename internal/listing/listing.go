// Package listing holds the accumulated post list of one view and grows it
// one page at a time.
package listing

import (
	"context"
	"sync"

	"github.com/renderinc/spacetraveling/internal/content"
)

// Outcome tells what a LoadMore call did.
type Outcome int

const (
	// Loaded means a page was fetched and appended.
	Loaded Outcome = iota
	// Exhausted means there was no cursor left; nothing happened.
	Exhausted
	// Busy means another LoadMore was in flight; the call was ignored.
	Busy
	// Failed means the fetch failed and the state is unchanged.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Loaded:
		return "loaded"
	case Exhausted:
		return "exhausted"
	case Busy:
		return "busy"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// List is the post list of one view. Items only ever grow, in the order
// the source returned them; duplicates are kept. At most one fetch runs at
// a time.
type List struct {
	src content.Source

	mu      sync.Mutex
	items   []content.PostSummary
	cursor  content.Cursor
	loading bool
}

// New seeds a List with a page fetched out of band, usually at render time.
// A nil first page starts an empty, exhausted list.
func New(src content.Source, first *content.Page) *List {
	l := &List{src: src}
	if first != nil {
		l.items = append([]content.PostSummary(nil), first.Items...)
		l.cursor = first.NextCursor
	}
	return l
}

// LoadMore fetches the page after the current cursor and appends it. It is
// a no-op when the list is exhausted and is ignored while another call is
// in flight. On failure the error from the source is returned unchanged and
// the list is left as it was, so calling again retries the same cursor.
func (l *List) LoadMore(ctx context.Context) (Outcome, error) {
	l.mu.Lock()
	if l.cursor == "" {
		l.mu.Unlock()
		return Exhausted, nil
	}
	if l.loading {
		l.mu.Unlock()
		return Busy, nil
	}
	l.loading = true
	cursor := l.cursor
	l.mu.Unlock()

	page, err := l.src.FetchPage(ctx, cursor)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if err != nil {
		return Failed, err
	}
	l.items = append(l.items, page.Items...)
	l.cursor = page.NextCursor
	return Loaded, nil
}

// Items returns a copy of the loaded posts.
func (l *List) Items() []content.PostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]content.PostSummary(nil), l.items...)
}

// Since returns a copy of the posts loaded after the first n.
func (l *List) Since(n int) []content.PostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n >= len(l.items) {
		return nil
	}
	return append([]content.PostSummary(nil), l.items[n:]...)
}

// Len returns the number of loaded posts.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Cursor returns the cursor the next LoadMore will use.
func (l *List) Cursor() content.Cursor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// HasMore reports whether LoadMore can fetch anything. Views hide their
// "load more" affordance when it is false.
func (l *List) HasMore() bool {
	return l.Cursor() != ""
}

// Loading reports whether a LoadMore call is in flight.
func (l *List) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}
