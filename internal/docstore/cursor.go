package docstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is an opaque pagination token naming the last document of a page.
// The zero value starts from the beginning.
type Cursor string

type cursorPayload struct {
	Value json.RawMessage `json:"v,omitempty"`
	ID    string          `json:"id"`
}

func newCursor(q Query, doc Document) (Cursor, error) {
	p := cursorPayload{ID: doc.ID}
	if q.OrderBy != "" {
		raw, err := json.Marshal(doc.Data[q.OrderBy])
		if err != nil {
			return "", err
		}
		p.Value = raw
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return Cursor(base64.RawURLEncoding.EncodeToString(b)), nil
}

func (c Cursor) decode() (cursorPayload, error) {
	var p cursorPayload
	b, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if p.ID == "" {
		return p, fmt.Errorf("%w: missing id", ErrInvalidCursor)
	}
	return p, nil
}

// value returns the decoded sort value carried by the cursor.
func (p cursorPayload) value() (any, error) {
	if len(p.Value) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(p.Value, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return v, nil
}

func pageOf(q Query, docs []Document) (Page, error) {
	page := Page{Docs: docs}
	if len(docs) == 0 {
		return page, nil
	}
	next, err := newCursor(q, docs[len(docs)-1])
	if err != nil {
		return Page{}, err
	}
	page.Next = next
	return page, nil
}
