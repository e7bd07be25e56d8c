package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/metrics"
)

func commentsCollection(ticketID string) string {
	return docstore.Join(ticketsCollection, ticketID, "comments")
}

// AddComment stores a comment under the ticket and bumps its commentCount.
func (s *Service) AddComment(ctx context.Context, in NewComment) (Comment, error) {
	text := strings.TrimSpace(in.Text)
	if in.TicketID == "" || in.UserID == "" || text == "" {
		return Comment{}, fmt.Errorf("%w: ticket, user and text required", ErrInvalidInput)
	}
	c := Comment{
		UserID:     in.UserID,
		UserName:   in.UserName,
		UserAvatar: in.Avatar,
		Text:       text,
		CreatedAt:  s.now().UnixMilli(),
	}
	id, err := s.store.Add(ctx, commentsCollection(in.TicketID), docstore.Fields{
		"userId":     c.UserID,
		"userName":   c.UserName,
		"userAvatar": c.UserAvatar,
		"text":       c.Text,
		"createdAt":  c.CreatedAt,
		"isFlagged":  false,
	})
	if err != nil {
		return Comment{}, fmt.Errorf("add comment: %w", err)
	}
	c.ID = id

	if err := s.adjustCounter(ctx, in.TicketID, "commentCount", 1); err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			_ = s.store.Delete(ctx, docstore.Join(commentsCollection(in.TicketID), id))
		}
		return Comment{}, err
	}
	metrics.Comments.WithLabelValues("add").Inc()
	return c, nil
}

// GetComments returns the newest comments of a ticket first.
func (s *Service) GetComments(ctx context.Context, ticketID string) ([]Comment, error) {
	if ticketID == "" {
		return nil, fmt.Errorf("%w: ticket id required", ErrInvalidInput)
	}
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: commentsCollection(ticketID),
		OrderBy:    "createdAt",
		Direction:  docstore.Desc,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Comment, 0, len(page.Docs))
	for _, doc := range page.Docs {
		var c Comment
		if err := doc.DataTo(&c); err != nil {
			return nil, fmt.Errorf("malformed comment %s: %w", doc.ID, err)
		}
		c.ID = doc.ID
		out = append(out, c)
	}
	return out, nil
}

// FlagComment marks a comment for moderation. Flagging twice is harmless.
func (s *Service) FlagComment(ctx context.Context, ticketID, commentID string) error {
	if ticketID == "" || commentID == "" {
		return fmt.Errorf("%w: ticket and comment ids required", ErrInvalidInput)
	}
	err := s.store.Update(ctx, docstore.Join(commentsCollection(ticketID), commentID), docstore.Fields{"isFlagged": true})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrCommentNotFound
	}
	if err != nil {
		return err
	}
	metrics.Comments.WithLabelValues("flag").Inc()
	return nil
}
