package feed

import (
	"context"
	"sync"
	"time"

	"backend-cityfix/internal/shared/optimistic"
	"backend-cityfix/internal/social"

	"github.com/google/uuid"
)

const tempPrefix = "temp-"

// Interactions are the remote operations a card drives.
type Interactions interface {
	ToggleRelation(ctx context.Context, ticketID, userID string, kind social.Relation) (bool, error)
	AddComment(ctx context.Context, in social.NewComment) (social.Comment, error)
	GetComments(ctx context.Context, ticketID string) ([]social.Comment, error)
}

// Viewer is the signed-in user looking at a card.
type Viewer struct {
	ID     string
	Name   string
	Avatar string
}

// CardState is a snapshot of what a card shows.
type CardState struct {
	Ticket   social.Ticket
	Liked    bool
	Upvoted  bool
	Comments []social.Comment
}

// Card holds the local view of one ticket. Interactions update it before the
// remote call and roll back if the call fails.
type Card struct {
	remote   Interactions
	viewer   Viewer
	ticketID string
	now      func() time.Time

	mu    sync.Mutex
	state CardState
}

func NewCard(remote Interactions, viewer Viewer, ticket social.Ticket, liked, upvoted bool) *Card {
	return &Card{
		remote:   remote,
		viewer:   viewer,
		ticketID: ticket.ID,
		now:      time.Now,
		state:    CardState{Ticket: ticket, Liked: liked, Upvoted: upvoted},
	}
}

func (c *Card) State() CardState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Comments = append([]social.Comment(nil), c.state.Comments...)
	return s
}

func (c *Card) ToggleLike(ctx context.Context) error {
	return c.toggle(ctx, social.Like)
}

func (c *Card) ToggleUpvote(ctx context.Context) error {
	return c.toggle(ctx, social.Upvote)
}

// flag returns the membership flag and the counter that kind drives.
func (s *CardState) flag(kind social.Relation) (*bool, *int64) {
	if kind == social.Upvote {
		return &s.Upvoted, &s.Ticket.UpvoteCount
	}
	return &s.Liked, &s.Ticket.VoteCount
}

func (c *Card) toggle(ctx context.Context, kind social.Relation) error {
	apply := func() func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		on, count := c.state.flag(kind)
		prevOn, prevCount := *on, *count
		*on = !prevOn
		if *on {
			*count++
		} else if *count > 0 {
			*count--
		}
		return func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			on, count := c.state.flag(kind)
			*on, *count = prevOn, prevCount
		}
	}
	call := func(ctx context.Context) (bool, error) {
		return c.remote.ToggleRelation(ctx, c.ticketID, c.viewer.ID, kind)
	}
	// The server inverts its own stored state, which may differ from ours
	// after a concurrent toggle; its answer wins.
	commit := func(active bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		on, count := c.state.flag(kind)
		if *on == active {
			return
		}
		*on = active
		if active {
			*count++
		} else if *count > 0 {
			*count--
		}
	}
	return optimistic.Value(ctx, apply, call, commit)
}

// LoadComments replaces the local comments with the stored ones.
func (c *Card) LoadComments(ctx context.Context) error {
	comments, err := c.remote.GetComments(ctx, c.ticketID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state.Comments = comments
	c.mu.Unlock()
	return nil
}

// PostComment shows the comment at once under a temporary id, then swaps
// in the stored list. On failure the temporary comment is removed.
func (c *Card) PostComment(ctx context.Context, text string) error {
	tempID := tempPrefix + uuid.NewString()
	apply := func() func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		tmp := social.Comment{
			ID:         tempID,
			UserID:     c.viewer.ID,
			UserName:   c.viewer.Name,
			UserAvatar: c.viewer.Avatar,
			Text:       text,
			CreatedAt:  c.now().UnixMilli(),
		}
		c.state.Comments = append([]social.Comment{tmp}, c.state.Comments...)
		c.state.Ticket.CommentCount++
		return func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.state.Comments = removeComment(c.state.Comments, tempID)
			c.state.Ticket.CommentCount--
		}
	}
	call := func(ctx context.Context) (social.Comment, error) {
		return c.remote.AddComment(ctx, social.NewComment{
			TicketID: c.ticketID,
			UserID:   c.viewer.ID,
			UserName: c.viewer.Name,
			Text:     text,
			Avatar:   c.viewer.Avatar,
		})
	}
	commit := func(saved social.Comment) {
		comments, err := c.remote.GetComments(ctx, c.ticketID)
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			// keep the write visible under its real id until the next reload
			for i := range c.state.Comments {
				if c.state.Comments[i].ID == tempID {
					c.state.Comments[i] = saved
				}
			}
			return
		}
		c.state.Comments = comments
		c.state.Ticket.CommentCount = int64(len(comments))
	}
	return optimistic.Value(ctx, apply, call, commit)
}

func removeComment(comments []social.Comment, id string) []social.Comment {
	out := comments[:0:0]
	for _, cm := range comments {
		if cm.ID != id {
			out = append(out, cm)
		}
	}
	return out
}
