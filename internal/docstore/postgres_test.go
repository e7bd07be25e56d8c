package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresGet(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("tickets", "ticket1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"other","title":"Fixed Pothole"}`)))

	store := NewPostgres(mock, nil)
	doc, err := store.Get(context.Background(), "tickets/ticket1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != "ticket1" || doc.Data["title"] != "Fixed Pothole" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT data FROM documents`).
		WithArgs("tickets/t1/likes", "u1").
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgres(mock, nil)
	_, err := store.Get(context.Background(), "tickets/t1/likes/u1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresSet(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("tickets/t1/likes", "u1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPostgres(mock, nil)
	if err := store.Set(context.Background(), "tickets/t1/likes/u1", Fields{"createdAt": 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresAdd(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("tickets", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPostgres(mock, nil)
	id, err := store.Add(context.Background(), "tickets", Fields{"title": "x"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}
}

func TestPostgresUpdateIncrement(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE documents SET data = jsonb_set\(data, '\{voteCount\}', to_jsonb\(GREATEST\(COALESCE\(\(data->>'voteCount'\)::numeric, 0\) \+ \$3, 0\)\)\) WHERE collection = \$1 AND id = \$2`).
		WithArgs("tickets", "t1", int64(-1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewPostgres(mock, nil)
	if err := store.Update(context.Background(), "tickets/t1", Fields{"voteCount": Increment(-1)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresUpdateMergeAndIncrement(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE documents SET data = jsonb_set\(\(data \|\| \$3::jsonb\), '\{commentCount\}'`).
		WithArgs("tickets", "t1", pgxmock.AnyArg(), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewPostgres(mock, nil)
	err := store.Update(context.Background(), "tickets/t1", Fields{"updatedAt": 5, "commentCount": Increment(1)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestPostgresUpdateMissing(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE documents`).
		WithArgs("tickets/t1/comments", "c1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPostgres(mock, nil)
	err := store.Update(context.Background(), "tickets/t1/comments/c1", Fields{"isFlagged": true})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresDelete(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("tickets", "t1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	store := NewPostgres(mock, nil)
	if err := store.Delete(context.Background(), "tickets/t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestPostgresQuery(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, data FROM documents WHERE collection = \$1 AND data->>'status' = ANY\(\$2\) ORDER BY data->'createdAt' DESC NULLS LAST, id DESC LIMIT \$3`).
		WithArgs("tickets", []string{"in_progress", "verified", "resolved"}, 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).
			AddRow("ticket1", []byte(`{"title":"Fixed Pothole","status":"verified","createdAt":2}`)).
			AddRow("ticket2", []byte(`{"title":"New Light","status":"verified","createdAt":1}`)))

	store := NewPostgres(mock, nil)
	page, err := store.Query(context.Background(), Query{
		Collection: "tickets",
		Filters:    []Filter{In("status", "in_progress", "verified", "resolved")},
		OrderBy:    "createdAt",
		Direction:  Desc,
		Limit:      2,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Docs) != 2 || page.Docs[0].ID != "ticket1" {
		t.Fatalf("unexpected page: %+v", page.Docs)
	}
	if page.Next == "" {
		t.Fatalf("expected cursor")
	}
}

func TestPostgresQueryScanError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, data FROM documents`).
		WithArgs("tickets").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("t1"))

	store := NewPostgres(mock, nil)
	if _, err := store.Query(context.Background(), Query{Collection: "tickets"}); err == nil {
		t.Fatalf("expected scan error")
	}
}

func TestPostgresQueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, data FROM documents`).
		WithArgs("tickets").
		WillReturnError(errors.New("connection refused"))

	store := NewPostgres(mock, nil)
	if _, err := store.Query(context.Background(), Query{Collection: "tickets"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBuildSelectWithCursor(t *testing.T) {
	cursor, err := newCursor(Query{OrderBy: "createdAt"}, Document{ID: "t9", Data: Fields{"createdAt": float64(1700000000000)}})
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}

	sql, args, err := buildSelect(Query{
		Collection: "tickets",
		Filters:    []Filter{Eq("type", "social"), Eq("userId", "u1")},
		OrderBy:    "createdAt",
		Direction:  Desc,
		Limit:      10,
		StartAfter: cursor,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := "SELECT id, data FROM documents WHERE collection = $1 AND data->>'type' = $2 AND data->>'userId' = $3" +
		" AND (data->'createdAt', id) < ($4::jsonb, $5) ORDER BY data->'createdAt' DESC NULLS LAST, id DESC LIMIT $6"
	if sql != want {
		t.Fatalf("unexpected sql:\n%s\nwant:\n%s", sql, want)
	}
	if len(args) != 6 || args[3] != "1700000000000" || args[4] != "t9" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuildSelectRejectsBadField(t *testing.T) {
	_, _, err := buildSelect(Query{Collection: "tickets", Filters: []Filter{Eq("x'; DROP TABLE documents; --", 1)}})
	if !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected invalid field, got %v", err)
	}
}

func TestTextValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"verified", "verified"},
		{status("live"), "live"},
		{true, "true"},
		{42, "42"},
		{int64(7), "7"},
		{1.5, "1.5"},
	}
	for _, c := range cases {
		if got := textValue(c.in); got != c.want {
			t.Fatalf("textValue(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
