package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/metrics"
	"backend-cityfix/internal/shared/geo"
)

const (
	diagnosticSample = 20
	nearbySample     = 200
)

// FetchFeed returns one page of the feed, newest first. Failures never
// escape: they come back as an empty page whose Diagnostic starts with
// "Error: ".
func (s *Service) FetchFeed(ctx context.Context, cursor docstore.Cursor, pageSize int, kind FeedKind) FeedPage {
	pageSize = s.clampPageSize(pageSize)
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: ticketsCollection,
		Filters:    kind.filters(),
		OrderBy:    "createdAt",
		Direction:  docstore.Desc,
		Limit:      pageSize,
		StartAfter: cursor,
	})
	if err != nil {
		return s.feedError(kind, err)
	}

	items := make([]Ticket, 0, len(page.Docs))
	for _, doc := range page.Docs {
		t, err := ticketFromDoc(doc)
		if err != nil {
			return s.feedError(kind, err)
		}
		items = append(items, t)
	}

	out := FeedPage{Items: items}
	if len(items) == pageSize {
		out.NextCursor = page.Next
	}
	if len(items) == 0 && cursor == "" {
		out.Diagnostic = s.diagnose(ctx, kind)
		metrics.FeedFetches.WithLabelValues(kind.String(), "empty").Inc()
		return out
	}
	metrics.FeedFetches.WithLabelValues(kind.String(), "ok").Inc()
	return out
}

func (s *Service) GetVerifiedFeed(ctx context.Context, cursor docstore.Cursor, pageSize int) FeedPage {
	return s.FetchFeed(ctx, cursor, pageSize, LiveFeed)
}

func (s *Service) GetNeighborhoodFeed(ctx context.Context, cursor docstore.Cursor, pageSize int) FeedPage {
	return s.FetchFeed(ctx, cursor, pageSize, NeighborhoodFeed)
}

func (s *Service) clampPageSize(n int) int {
	switch {
	case n <= 0:
		return s.pageSize
	case n > maxPageSize:
		return maxPageSize
	}
	return n
}

func (s *Service) feedError(kind FeedKind, err error) FeedPage {
	s.log.Error("feed fetch failed", "feed", kind.String(), "error", err)
	metrics.FeedFetches.WithLabelValues(kind.String(), "error").Inc()
	return FeedPage{Items: []Ticket{}, Diagnostic: "Error: " + err.Error(), Failed: true}
}

// diagnose explains an empty first page by sampling the newest tickets
// without the feed filter.
func (s *Service) diagnose(ctx context.Context, kind FeedKind) string {
	msg := kind.emptyMessage()
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: ticketsCollection,
		OrderBy:    "createdAt",
		Direction:  docstore.Desc,
		Limit:      diagnosticSample,
	})
	if err != nil {
		s.log.Warn("feed diagnostic query failed", "feed", kind.String(), "error", err)
		return msg
	}
	if len(page.Docs) == 0 {
		return msg + "; the tickets collection is empty"
	}

	counts := map[string]int{}
	for _, doc := range page.Docs {
		status, ok := doc.Data["status"].(string)
		if !ok {
			status = "<none>"
		}
		counts[status]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}

	return fmt.Sprintf("%s; status of latest %d tickets: %s", msg, len(page.Docs), strings.Join(parts, ", "))
}

func (s *Service) GetTicket(ctx context.Context, ticketID string) (Ticket, error) {
	if ticketID == "" {
		return Ticket{}, fmt.Errorf("%w: ticket id required", ErrInvalidInput)
	}
	doc, err := s.store.Get(ctx, ticketPath(ticketID))
	if errors.Is(err, docstore.ErrNotFound) {
		return Ticket{}, ErrTicketNotFound
	}
	if err != nil {
		return Ticket{}, err
	}
	return ticketFromDoc(doc)
}

// NearbyTickets returns located tickets within radiusKm of center, nearest
// first, drawn from the most recent tickets.
func (s *Service) NearbyTickets(ctx context.Context, center geo.Point, radiusKm float64) ([]Ticket, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrInvalidInput)
	}
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: ticketsCollection,
		OrderBy:    "createdAt",
		Direction:  docstore.Desc,
		Limit:      nearbySample,
	})
	if err != nil {
		return nil, err
	}

	type hit struct {
		ticket Ticket
		dist   float64
	}
	hits := []hit{}
	for _, doc := range page.Docs {
		t, err := ticketFromDoc(doc)
		if err != nil {
			return nil, err
		}
		if t.Location == nil {
			continue
		}
		if d := center.DistanceKm(*t.Location); d <= radiusKm {
			hits = append(hits, hit{ticket: t, dist: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]Ticket, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ticket)
	}
	return out, nil
}
