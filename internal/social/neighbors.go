package social

import (
	"context"
	"fmt"

	"backend-cityfix/internal/docstore"
)

func neighborsCollection(userID string) string {
	return docstore.Join("users", userID, "neighbors")
}

// AddNeighbor records that userID follows neighborID's area activity. The
// relation is one-way and keyed by neighborID, so adding twice is a no-op.
func (s *Service) AddNeighbor(ctx context.Context, userID, neighborID string) error {
	if userID == "" || neighborID == "" || userID == neighborID {
		return fmt.Errorf("%w: two distinct user ids required", ErrInvalidInput)
	}
	return s.store.Set(ctx, docstore.Join(neighborsCollection(userID), neighborID), docstore.Fields{
		"createdAt": s.now().UnixMilli(),
	})
}

func (s *Service) RemoveNeighbor(ctx context.Context, userID, neighborID string) error {
	if userID == "" || neighborID == "" {
		return fmt.Errorf("%w: user ids required", ErrInvalidInput)
	}
	return s.store.Delete(ctx, docstore.Join(neighborsCollection(userID), neighborID))
}

// Neighbors returns the ids in userID's neighbor list.
func (s *Service) Neighbors(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	page, err := s.store.Query(ctx, docstore.Query{Collection: neighborsCollection(userID)})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(page.Docs))
	for _, doc := range page.Docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}
