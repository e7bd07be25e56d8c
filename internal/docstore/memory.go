package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Values are normalised through JSON on
// write so reads look the same as from Postgres (numbers become float64).
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Fields
	changes     *Changes
}

func NewMemory(changes *Changes) *Memory {
	if changes == nil {
		changes = NewChanges(nil, nil)
	}
	return &Memory{
		collections: map[string]map[string]Fields{},
		changes:     changes,
	}
}

func (m *Memory) Get(_ context.Context, path string) (Document, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.collections[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return Document{ID: id, Data: copyFields(data)}, nil
}

func (m *Memory) Set(ctx context.Context, path string, fields Fields) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	plain, err := resolveIncrements(fields)
	if err != nil {
		return err
	}
	data, err := normalize(plain)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.collections[collection] == nil {
		m.collections[collection] = map[string]Fields{}
	}
	m.collections[collection][id] = data
	m.mu.Unlock()

	m.changes.Publish(ctx, collection)
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, fields Fields) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	plain, incs, err := splitFields(fields)
	if err != nil {
		return err
	}
	data, err := normalize(plain)
	if err != nil {
		return err
	}

	m.mu.Lock()
	current, ok := m.collections[collection][id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	for k, v := range data {
		current[k] = v
	}
	for k, n := range incs {
		base, _ := toFloat(current[k])
		current[k] = max(base+float64(n), 0)
	}
	m.mu.Unlock()

	m.changes.Publish(ctx, collection)
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	_, existed := m.collections[collection][id]
	delete(m.collections[collection], id)
	m.mu.Unlock()

	if existed {
		m.changes.Publish(ctx, collection)
	}
	return nil
}

func (m *Memory) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := m.Set(ctx, Join(collection, id), fields); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Query(_ context.Context, q Query) (Page, error) {
	if err := q.validate(); err != nil {
		return Page{}, err
	}
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return Page{}, err
	}

	m.mu.RLock()
	var docs []Document
	for id, data := range m.collections[q.Collection] {
		if matches(data, filters) {
			docs = append(docs, Document{ID: id, Data: copyFields(data)})
		}
	}
	m.mu.RUnlock()

	less := func(a, b Document) bool {
		c := 0
		if q.OrderBy != "" {
			c = compareValues(a.Data[q.OrderBy], b.Data[q.OrderBy])
		}
		if c == 0 {
			c = compareStrings(a.ID, b.ID)
		}
		if q.descending() {
			return c > 0
		}
		return c < 0
	}
	sort.Slice(docs, func(i, j int) bool { return less(docs[i], docs[j]) })

	if q.StartAfter != "" {
		p, err := q.StartAfter.decode()
		if err != nil {
			return Page{}, err
		}
		v, err := p.value()
		if err != nil {
			return Page{}, err
		}
		anchor := Document{ID: p.ID, Data: Fields{}}
		if q.OrderBy != "" {
			anchor.Data[q.OrderBy] = v
		}
		start := sort.Search(len(docs), func(i int) bool { return less(anchor, docs[i]) })
		docs = docs[start:]
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return pageOf(q, docs)
}

func (m *Memory) Subscribe(ctx context.Context, q Query, onChange func([]Document)) (func(), error) {
	return subscribe(ctx, m, m.changes, q, onChange)
}

func normalize(fields Fields) (Fields, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	out := Fields{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeFilters(filters []Filter) ([]Filter, error) {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, Filter{Field: f.Field, Op: f.Op, Value: v})
	}
	return out, nil
}

func matches(data Fields, filters []Filter) bool {
	for _, f := range filters {
		got, ok := data[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !equalValues(got, f.Value) {
				return false
			}
		case OpIn:
			found := false
			for _, want := range f.Value.([]any) {
				if equalValues(got, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func copyFields(src Fields) Fields {
	b, _ := json.Marshal(src)
	out := Fields{}
	_ = json.Unmarshal(b, &out)
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// typeRank follows jsonb ordering: null < string < number < boolean < others.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 1
	case float64, int, int64:
		return 2
	case bool:
		return 3
	default:
		return 4
	}
}

func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case string:
		return compareStrings(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case nil:
		return 0
	}
	if fa, ok := toFloat(a); ok {
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return compareStrings(string(ja), string(jb))
}

func equalValues(a, b any) bool {
	return typeRank(a) == typeRank(b) && compareValues(a, b) == 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
