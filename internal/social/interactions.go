package social

import (
	"context"
	"errors"
	"fmt"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/metrics"
)

func relationPath(ticketID string, kind Relation, userID string) string {
	return docstore.Join(ticketsCollection, ticketID, kind.collection(), userID)
}

// CheckRelation reports whether userID currently holds kind on ticketID.
func (s *Service) CheckRelation(ctx context.Context, ticketID, userID string, kind Relation) (bool, error) {
	if ticketID == "" || userID == "" {
		return false, fmt.Errorf("%w: ticket and user ids required", ErrInvalidInput)
	}
	_, err := s.store.Get(ctx, relationPath(ticketID, kind, userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ToggleRelation flips kind for userID on ticketID and returns the new state.
// The relation document and the ticket counter are separate writes; the
// counter moves by exactly one in the matching direction.
func (s *Service) ToggleRelation(ctx context.Context, ticketID, userID string, kind Relation) (bool, error) {
	active, err := s.CheckRelation(ctx, ticketID, userID, kind)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", kind, err)
	}
	path := relationPath(ticketID, kind, userID)

	if active {
		if err := s.store.Delete(ctx, path); err != nil {
			return false, fmt.Errorf("remove %s: %w", kind, err)
		}
		if err := s.adjustCounter(ctx, ticketID, kind.counter(), -1); err != nil {
			return false, err
		}
		metrics.Toggles.WithLabelValues(kind.String(), "off").Inc()
		return false, nil
	}

	if err := s.store.Set(ctx, path, docstore.Fields{
		"userId":    userID,
		"createdAt": s.now().UnixMilli(),
	}); err != nil {
		return false, fmt.Errorf("add %s: %w", kind, err)
	}
	if err := s.adjustCounter(ctx, ticketID, kind.counter(), 1); err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			// no ticket to count against; drop the orphaned relation
			_ = s.store.Delete(ctx, path)
		}
		return false, err
	}
	metrics.Toggles.WithLabelValues(kind.String(), "on").Inc()
	return true, nil
}

func (s *Service) adjustCounter(ctx context.Context, ticketID, field string, delta int64) error {
	err := s.store.Update(ctx, ticketPath(ticketID), docstore.Fields{field: docstore.Increment(delta)})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrTicketNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}
	return nil
}
