package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/stream"
)

var ErrEmptyRecipient = errors.New("notification recipient required")

const defaultListLimit = 50

// Service stores notifications in the recipient's inbox and pushes them to
// the recipient's realtime channel.
type Service struct {
	store docstore.Store
	hub   *stream.Hub
	now   func() time.Time
}

func NewService(store docstore.Store, hub *stream.Hub) *Service {
	return &Service{store: store, hub: hub, now: time.Now}
}

func inbox(userID string) string {
	return docstore.Join("users", userID, "notifications")
}

func (s *Service) NotifyUser(ctx context.Context, userID, title, body string) error {
	if userID == "" {
		return ErrEmptyRecipient
	}
	n := Notification{Title: title, Body: body, CreatedAt: s.now().UnixMilli()}
	id, err := s.store.Add(ctx, inbox(userID), docstore.Fields{
		"title":     n.Title,
		"body":      n.Body,
		"read":      false,
		"createdAt": n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	n.ID = id

	if s.hub != nil {
		payload, err := json.Marshal(n)
		if err != nil {
			return err
		}
		s.hub.Broadcast(stream.UserChannel(userID), payload)
	}
	return nil
}

// List returns the newest notifications of userID.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: inbox(userID),
		OrderBy:    "createdAt",
		Direction:  docstore.Desc,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(page.Docs))
	for _, doc := range page.Docs {
		var n Notification
		if err := doc.DataTo(&n); err != nil {
			return nil, err
		}
		n.ID = doc.ID
		out = append(out, n)
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.store.Update(ctx, docstore.Join(inbox(userID), id), docstore.Fields{"read": true})
}
