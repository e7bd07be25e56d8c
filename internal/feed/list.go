package feed

import (
	"context"
	"sync"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/social"
)

// Fetcher loads one feed page.
type Fetcher interface {
	FetchFeed(ctx context.Context, cursor docstore.Cursor, pageSize int, kind social.FeedKind) social.FeedPage
}

// List accumulates feed pages for infinite scrolling.
type List struct {
	fetcher  Fetcher
	kind     social.FeedKind
	pageSize int

	mu         sync.Mutex
	items      []social.Ticket
	cursor     docstore.Cursor
	exhausted  bool
	diagnostic string
}

func NewList(fetcher Fetcher, kind social.FeedKind, pageSize int) *List {
	return &List{fetcher: fetcher, kind: kind, pageSize: pageSize}
}

// LoadMore fetches the next page and returns how many new tickets it added.
// It does nothing once the feed is exhausted. A failed fetch leaves the
// cursor where it was.
func (l *List) LoadMore(ctx context.Context) int {
	l.mu.Lock()
	if l.exhausted {
		l.mu.Unlock()
		return 0
	}
	cursor := l.cursor
	l.mu.Unlock()

	page := l.fetcher.FetchFeed(ctx, cursor, l.pageSize, l.kind)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor != cursor {
		// a concurrent load or refresh already moved past this page
		return 0
	}
	l.diagnostic = page.Diagnostic
	if page.Failed {
		// keep the position so the next call retries the same page
		return 0
	}
	before := len(l.items)
	l.items = MergePage(l.items, page.Items)
	l.cursor = page.NextCursor
	l.exhausted = page.NextCursor == ""
	return len(l.items) - before
}

// Refresh drops everything loaded so far and fetches the first page again.
func (l *List) Refresh(ctx context.Context) int {
	l.mu.Lock()
	l.items = nil
	l.cursor = ""
	l.exhausted = false
	l.diagnostic = ""
	l.mu.Unlock()
	return l.LoadMore(ctx)
}

func (l *List) Items() []social.Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]social.Ticket(nil), l.items...)
}

// Exhausted reports whether the last fetch returned no further cursor.
func (l *List) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exhausted
}

// Diagnostic is the developer-facing note from the last fetch, if any.
func (l *List) Diagnostic() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.diagnostic
}
