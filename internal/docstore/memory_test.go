package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type status string

func seedTickets(t *testing.T, m *Memory) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		id        string
		createdAt int64
		status    string
	}{
		{"a", 1, "verified"},
		{"b", 2, "live"},
		{"c", 3, "resolved"},
		{"d", 4, "in_progress"},
		{"e", 5, "verified"},
	}
	for _, r := range rows {
		require.NoError(t, m.Set(ctx, Join("tickets", r.id), Fields{"createdAt": r.createdAt, "status": r.status}))
	}
}

func ids(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	require.NoError(t, m.Set(ctx, "tickets/t1", Fields{"title": "Pothole", "voteCount": 0}))
	doc, err := m.Get(ctx, "tickets/t1")
	require.NoError(t, err)
	require.Equal(t, "t1", doc.ID)
	require.Equal(t, "Pothole", doc.Data["title"])
	require.Equal(t, float64(0), doc.Data["voteCount"])

	var out struct {
		Title     string `json:"title"`
		VoteCount int    `json:"voteCount"`
	}
	require.NoError(t, doc.DataTo(&out))
	require.Equal(t, "Pothole", out.Title)

	_, err = m.Get(ctx, "tickets/missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDataToIgnoresPayloadID(t *testing.T) {
	doc := Document{ID: "t1", Data: Fields{"id": float64(42), "title": "Pothole"}}

	var out struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, doc.DataTo(&out))
	require.Empty(t, out.ID)
	require.Equal(t, "Pothole", out.Title)
	require.Equal(t, float64(42), doc.Data["id"], "source data must not be modified")
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	require.NoError(t, m.Set(ctx, "tickets/t1", Fields{"title": "a"}))

	doc, err := m.Get(ctx, "tickets/t1")
	require.NoError(t, err)
	doc.Data["title"] = "mutated"

	doc, err = m.Get(ctx, "tickets/t1")
	require.NoError(t, err)
	require.Equal(t, "a", doc.Data["title"])
}

func TestMemoryInvalidPaths(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	require.ErrorIs(t, m.Set(ctx, "tickets", Fields{}), ErrInvalidPath)
	require.ErrorIs(t, m.Set(ctx, "tickets//x", Fields{}), ErrInvalidPath)
	_, err := m.Add(ctx, "tickets/t1", Fields{})
	require.ErrorIs(t, err, ErrInvalidPath)
	require.ErrorIs(t, m.Set(ctx, "tickets/t1", Fields{"bad-name": 1}), ErrInvalidField)
}

func TestMemoryUpdateIncrement(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	require.NoError(t, m.Set(ctx, "tickets/t1", Fields{"title": "x"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, m.Update(ctx, "tickets/t1", Fields{"voteCount": Increment(1)}))
		}()
	}
	wg.Wait()

	require.NoError(t, m.Update(ctx, "tickets/t1", Fields{"voteCount": Increment(-3), "title": "y"}))
	doc, err := m.Get(ctx, "tickets/t1")
	require.NoError(t, err)
	require.Equal(t, float64(47), doc.Data["voteCount"])
	require.Equal(t, "y", doc.Data["title"])
}

func TestMemoryIncrementFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	require.NoError(t, m.Set(ctx, "tickets/t1", Fields{"voteCount": 1}))

	require.NoError(t, m.Update(ctx, "tickets/t1", Fields{"voteCount": Increment(-1)}))
	require.NoError(t, m.Update(ctx, "tickets/t1", Fields{"voteCount": Increment(-1), "likeCount": Increment(-2)}))
	doc, err := m.Get(ctx, "tickets/t1")
	require.NoError(t, err)
	require.Equal(t, float64(0), doc.Data["voteCount"])
	require.Equal(t, float64(0), doc.Data["likeCount"])

	require.NoError(t, m.Set(ctx, "tickets/t2", Fields{"commentCount": Increment(-1)}))
	doc, err = m.Get(ctx, "tickets/t2")
	require.NoError(t, err)
	require.Equal(t, float64(0), doc.Data["commentCount"])
}

func TestMemoryUpdateMissing(t *testing.T) {
	m := NewMemory(nil)
	err := m.Update(context.Background(), "tickets/none", Fields{"isFlagged": true})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySetResolvesIncrement(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	require.NoError(t, m.Set(ctx, "tickets/t1", Fields{"commentCount": Increment(2)}))
	doc, err := m.Get(ctx, "tickets/t1")
	require.NoError(t, err)
	require.Equal(t, float64(2), doc.Data["commentCount"])
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	require.NoError(t, m.Set(ctx, "tickets/t1/likes/u1", Fields{"createdAt": 1}))
	require.NoError(t, m.Delete(ctx, "tickets/t1/likes/u1"))
	_, err := m.Get(ctx, "tickets/t1/likes/u1")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, m.Delete(ctx, "tickets/t1/likes/u1"))
}

func TestMemoryQueryFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	seedTickets(t, m)

	page, err := m.Query(ctx, Query{
		Collection: "tickets",
		Filters:    []Filter{In("status", "in_progress", "verified", "resolved")},
		OrderBy:    "createdAt",
		Direction:  Desc,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"e", "d", "c", "a"}, ids(page.Docs))

	page, err = m.Query(ctx, Query{Collection: "tickets", Filters: []Filter{Eq("status", status("verified"))}, OrderBy: "createdAt"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "e"}, ids(page.Docs))

	page, err = m.Query(ctx, Query{Collection: "tickets", Filters: []Filter{Eq("createdAt", 3)}})
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, ids(page.Docs))
}

func TestMemoryQueryCursorPagination(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	seedTickets(t, m)

	q := Query{Collection: "tickets", OrderBy: "createdAt", Direction: Desc, Limit: 2}
	var seen []string
	for i := 0; i < 4; i++ {
		page, err := m.Query(ctx, q)
		require.NoError(t, err)
		seen = append(seen, ids(page.Docs)...)
		if len(page.Docs) == 0 {
			require.Empty(t, page.Next)
			break
		}
		q.StartAfter = page.Next
	}
	require.Equal(t, []string{"e", "d", "c", "b", "a"}, seen)
}

func TestMemoryQueryTiesBrokenByID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	for _, id := range []string{"x", "z", "y"} {
		require.NoError(t, m.Set(ctx, Join("tickets", id), Fields{"createdAt": 7}))
	}

	q := Query{Collection: "tickets", OrderBy: "createdAt", Direction: Desc, Limit: 2}
	page, err := m.Query(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"z", "y"}, ids(page.Docs))

	q.StartAfter = page.Next
	page, err = m.Query(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, ids(page.Docs))
}

func TestMemoryQueryInvalid(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	_, err := m.Query(ctx, Query{Collection: "tickets", StartAfter: "!!not-a-cursor"})
	require.ErrorIs(t, err, ErrInvalidCursor)

	_, err = m.Query(ctx, Query{Collection: "tickets", OrderBy: "created at"})
	require.ErrorIs(t, err, ErrInvalidField)

	_, err = m.Query(ctx, Query{Collection: "tickets", Limit: -1})
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = m.Query(ctx, Query{Collection: "tickets", Filters: []Filter{{Field: "status", Op: OpIn, Value: "x"}}})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestMemorySubscribe(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	snapshots := make(chan []Document, 8)
	stop, err := m.Subscribe(ctx, Query{Collection: "users/u1/savedLocations", OrderBy: "createdAt"}, func(docs []Document) {
		snapshots <- docs
	})
	require.NoError(t, err)
	defer stop()

	first := <-snapshots
	require.Empty(t, first)

	_, err = m.Add(ctx, "users/u1/savedLocations", Fields{"name": "Home", "createdAt": 1})
	require.NoError(t, err)

	select {
	case docs := <-snapshots:
		require.Len(t, docs, 1)
		require.Equal(t, "Home", docs[0].Data["name"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for snapshot")
	}

	// writes to other collections do not wake the subscriber
	require.NoError(t, m.Set(ctx, "users/u2/savedLocations/x", Fields{"name": "Other"}))
	select {
	case <-snapshots:
		t.Fatal("unexpected snapshot for unrelated collection")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemorySubscribeStop(t *testing.T) {
	ctx := context.Background()
	changes := NewChanges(nil, nil)
	m := NewMemory(changes)

	stop, err := m.Subscribe(ctx, Query{Collection: "tickets"}, func([]Document) {})
	require.NoError(t, err)
	stop()

	require.Eventually(t, func() bool {
		changes.mu.RLock()
		defer changes.mu.RUnlock()
		return len(changes.listeners) == 0
	}, time.Second, 5*time.Millisecond)
}
