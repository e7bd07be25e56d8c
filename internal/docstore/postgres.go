package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"backend-cityfix/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Postgres stores documents as JSONB rows of the documents table created by
// db.EnsureSchema. Field names are validated before they reach SQL.
type Postgres struct {
	db      db.Querier
	changes *Changes
}

func NewPostgres(q db.Querier, changes *Changes) *Postgres {
	if changes == nil {
		changes = NewChanges(nil, nil)
	}
	return &Postgres{db: q, changes: changes}
}

func (p *Postgres) Get(ctx context.Context, path string) (Document, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return Document{}, err
	}
	var raw []byte
	err = p.db.QueryRow(ctx, `
		SELECT data FROM documents WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Document{}, err
	}
	return decodeDocument(id, raw)
}

func (p *Postgres) Set(ctx context.Context, path string, fields Fields) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	plain, err := resolveIncrements(fields)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1,$2,$3)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data
	`, collection, id, raw)
	if err != nil {
		return err
	}
	p.changes.Publish(ctx, collection)
	return nil
}

func (p *Postgres) Update(ctx context.Context, path string, fields Fields) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	plain, incs, err := splitFields(fields)
	if err != nil {
		return err
	}

	args := []any{collection, id}
	expr := "data"
	if len(plain) > 0 {
		raw, err := json.Marshal(plain)
		if err != nil {
			return err
		}
		args = append(args, raw)
		expr = fmt.Sprintf("(%s || $%d::jsonb)", expr, len(args))
	}

	names := make([]string, 0, len(incs))
	for k := range incs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		args = append(args, incs[k])
		expr = fmt.Sprintf("jsonb_set(%s, '{%s}', to_jsonb(GREATEST(COALESCE((data->>'%s')::numeric, 0) + $%d, 0)))", expr, k, k, len(args))
	}

	tag, err := p.db.Exec(ctx, "UPDATE documents SET data = "+expr+" WHERE collection = $1 AND id = $2", args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	p.changes.Publish(ctx, collection)
	return nil
}

func (p *Postgres) Delete(ctx context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	tag, err := p.db.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		p.changes.Publish(ctx, collection)
	}
	return nil
}

func (p *Postgres) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := p.Set(ctx, Join(collection, id), fields); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Query(ctx context.Context, q Query) (Page, error) {
	sql, args, err := buildSelect(q)
	if err != nil {
		return Page{}, err
	}
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return Page{}, err
		}
		doc, err := decodeDocument(id, raw)
		if err != nil {
			return Page{}, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	return pageOf(q, docs)
}

func (p *Postgres) Subscribe(ctx context.Context, q Query, onChange func([]Document)) (func(), error) {
	return subscribe(ctx, p, p.changes, q, onChange)
}

// Close releases the change feed subscription.
func (p *Postgres) Close() error {
	return p.changes.Close()
}

func buildSelect(q Query) (string, []any, error) {
	if err := q.validate(); err != nil {
		return "", nil, err
	}

	args := []any{q.Collection}
	where := []string{"collection = $1"}
	for _, f := range q.Filters {
		switch f.Op {
		case OpEqual:
			args = append(args, textValue(f.Value))
			where = append(where, fmt.Sprintf("data->>'%s' = $%d", f.Field, len(args)))
		case OpIn:
			values := f.Value.([]any)
			texts := make([]string, 0, len(values))
			for _, v := range values {
				texts = append(texts, textValue(v))
			}
			args = append(args, texts)
			where = append(where, fmt.Sprintf("data->>'%s' = ANY($%d)", f.Field, len(args)))
		}
	}

	dir, cmp := "ASC", ">"
	if q.descending() {
		dir, cmp = "DESC", "<"
	}

	if q.StartAfter != "" {
		cur, err := q.StartAfter.decode()
		if err != nil {
			return "", nil, err
		}
		if q.OrderBy != "" {
			raw := string(cur.Value)
			if raw == "" {
				raw = "null"
			}
			args = append(args, raw, cur.ID)
			where = append(where, fmt.Sprintf("(data->'%s', id) %s ($%d::jsonb, $%d)", q.OrderBy, cmp, len(args)-1, len(args)))
		} else {
			args = append(args, cur.ID)
			where = append(where, fmt.Sprintf("id %s $%d", cmp, len(args)))
		}
	}

	order := fmt.Sprintf("id %s", dir)
	if q.OrderBy != "" {
		order = fmt.Sprintf("data->'%s' %s NULLS LAST, id %s", q.OrderBy, dir, dir)
	}

	sql := "SELECT id, data FROM documents WHERE " + strings.Join(where, " AND ") + " ORDER BY " + order
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return sql, args, nil
}

// textValue renders v the way Postgres' ->> operator prints a JSON scalar.
func textValue(v any) string {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeDocument(id string, raw []byte) (Document, error) {
	data := Fields{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return Document{}, fmt.Errorf("decode %s: %w", id, err)
		}
	}
	return Document{ID: id, Data: data}, nil
}
