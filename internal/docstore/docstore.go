// Package docstore is a small document database contract: collections of
// JSON documents addressed by slash-separated paths, with equality and
// in-set filters, single-key ordering, cursor pagination, atomic numeric
// increments and change subscriptions.
//
// Paths alternate collection and document ids: "tickets/t1" is a document,
// "tickets/t1/comments" a subcollection of it.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrInvalidPath   = errors.New("invalid document path")
	ErrInvalidField  = errors.New("invalid field name")
	ErrInvalidCursor = errors.New("invalid cursor")
	ErrInvalidQuery  = errors.New("invalid query")
)

// Store is implemented by Memory and Postgres.
type Store interface {
	Query(ctx context.Context, q Query) (Page, error)
	Get(ctx context.Context, path string) (Document, error)
	// Set creates or replaces the document at path.
	Set(ctx context.Context, path string, fields Fields) error
	// Update merges fields into an existing document. Values built with
	// Increment are applied atomically by the backend. Returns ErrNotFound
	// when the document does not exist.
	Update(ctx context.Context, path string, fields Fields) error
	// Delete removes the document at path. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	// Add creates a document with a store-generated id in collection.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// Subscribe delivers the full result set of q immediately and again after
	// every write to q.Collection, until the returned func is called or ctx ends.
	Subscribe(ctx context.Context, q Query, onChange func([]Document)) (func(), error)
}

type Fields map[string]any

type Document struct {
	ID   string
	Data Fields
}

// DataTo decodes the document data into v through its JSON form. A stored
// "id" field is skipped: the document key is the only id.
func (d Document) DataTo(v any) error {
	data := d.Data
	if _, ok := data["id"]; ok {
		data = make(Fields, len(d.Data))
		for k, val := range d.Data {
			if k != "id" {
				data[k] = val
			}
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

type Op string

const (
	OpEqual Op = "=="
	OpIn    Op = "in"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func In(field string, values ...any) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Query struct {
	Collection string
	Filters    []Filter
	// OrderBy names the sort field; ties and an empty OrderBy fall back to document id.
	OrderBy    string
	Direction  Direction
	Limit      int
	StartAfter Cursor
}

type Page struct {
	Docs []Document
	// Next points at the last document of Docs; empty when Docs is empty.
	Next Cursor
}

type increment struct {
	n int64
}

// Increment is a field value for Update that adds n to the stored number
// (missing fields count as zero). Counters never drop below zero.
func Increment(n int64) any {
	return increment{n: n}
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validField(name string) error {
	if !fieldPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

// splitPath returns the collection and id of a document path.
func splitPath(path string) (string, string, error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1], nil
}

func validCollection(collection string) error {
	segments := strings.Split(collection, "/")
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q", ErrInvalidPath, collection)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, collection)
		}
	}
	return nil
}

func (q Query) validate() error {
	if err := validCollection(q.Collection); err != nil {
		return err
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	if q.OrderBy != "" {
		if err := validField(q.OrderBy); err != nil {
			return err
		}
	}
	switch q.Direction {
	case "", Asc, Desc:
	default:
		return fmt.Errorf("%w: direction %q", ErrInvalidQuery, q.Direction)
	}
	for _, f := range q.Filters {
		if err := validField(f.Field); err != nil {
			return err
		}
		switch f.Op {
		case OpEqual:
		case OpIn:
			if _, ok := f.Value.([]any); !ok {
				return fmt.Errorf("%w: %q needs a value list", ErrInvalidQuery, f.Field)
			}
		default:
			return fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
		}
	}
	return nil
}

func (q Query) descending() bool {
	return q.Direction == Desc
}

// splitFields separates plain values from increments and rejects bad names.
func splitFields(fields Fields) (Fields, map[string]int64, error) {
	plain := Fields{}
	incs := map[string]int64{}
	for k, v := range fields {
		if err := validField(k); err != nil {
			return nil, nil, err
		}
		if inc, ok := v.(increment); ok {
			incs[k] = inc.n
			continue
		}
		plain[k] = v
	}
	return plain, incs, nil
}

// resolveIncrements turns increments into plain numbers, for create-style writes.
func resolveIncrements(fields Fields) (Fields, error) {
	plain, incs, err := splitFields(fields)
	if err != nil {
		return nil, err
	}
	for k, n := range incs {
		plain[k] = max(n, 0)
	}
	return plain, nil
}
