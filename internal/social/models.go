package social

import (
	"context"
	"fmt"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/shared/geo"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusVerified   Status = "verified"
	StatusResolved   Status = "resolved"
	StatusLive       Status = "live"
)

// rank orders the issue lifecycle; -1 for statuses outside it.
func (s Status) rank() int {
	switch s {
	case StatusInProgress:
		return 0
	case StatusVerified:
		return 1
	case StatusResolved:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether an issue may move from s to next.
func (s Status) CanAdvanceTo(next Status) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to > from
}

type TicketType string

const (
	TypeIssue  TicketType = "issue"
	TypeSocial TicketType = "social"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type Ticket struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	Type         TicketType `json:"type"`
	CreatedAt    int64      `json:"createdAt"`
	UpdatedAt    int64      `json:"updatedAt"`
	Photos       []string   `json:"photos"`
	AfterPhoto   string     `json:"afterPhoto,omitempty"`
	MediaType    MediaType  `json:"mediaType"`
	VoteCount    int64      `json:"voteCount"`
	UpvoteCount  int64      `json:"upvoteCount"`
	CommentCount int64      `json:"commentCount"`
	UserID       string     `json:"userId"`
	UserName     string     `json:"userName"`
	UserAvatar   string     `json:"userAvatar"`
	UserEmail    string     `json:"userEmail"`
	Location     *geo.Point `json:"location,omitempty"`
	LocationName string     `json:"locationName"`
}

// GetID lets feed lists de-duplicate tickets.
func (t Ticket) GetID() string { return t.ID }

// ticketFromDoc takes the id from the document key, never from the payload.
func ticketFromDoc(doc docstore.Document) (Ticket, error) {
	var t Ticket
	if err := doc.DataTo(&t); err != nil {
		return Ticket{}, fmt.Errorf("malformed ticket %s: %w", doc.ID, err)
	}
	t.ID = doc.ID
	if t.Photos == nil {
		t.Photos = []string{}
	}
	return t, nil
}

func (t Ticket) fields() docstore.Fields {
	f := docstore.Fields{
		"title":        t.Title,
		"description":  t.Description,
		"status":       t.Status,
		"type":         t.Type,
		"createdAt":    t.CreatedAt,
		"updatedAt":    t.UpdatedAt,
		"photos":       t.Photos,
		"mediaType":    t.MediaType,
		"voteCount":    t.VoteCount,
		"upvoteCount":  t.UpvoteCount,
		"commentCount": t.CommentCount,
		"userId":       t.UserID,
		"userName":     t.UserName,
		"userAvatar":   t.UserAvatar,
		"userEmail":    t.UserEmail,
		"locationName": t.LocationName,
	}
	if t.AfterPhoto != "" {
		f["afterPhoto"] = t.AfterPhoto
	}
	if t.Location != nil {
		f["location"] = map[string]float64{"lat": t.Location.Lat, "lng": t.Location.Lng}
	}
	return f
}

type Comment struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
	Text       string `json:"text"`
	CreatedAt  int64  `json:"createdAt"`
	IsFlagged  bool   `json:"isFlagged"`
}

func (c Comment) GetID() string { return c.ID }

type NewComment struct {
	TicketID string
	UserID   string
	UserName string
	Text     string
	Avatar   string
}

// Author is the profile stamped on a user's posts and comments.
type Author struct {
	Name   string
	Avatar string
	Email  string
}

// AuthorLookup loads the stored profile of userID. A missing profile should
// surface as docstore.ErrNotFound.
type AuthorLookup func(ctx context.Context, userID string) (Author, error)

type NewPost struct {
	UserID        string
	UserAvatar    string
	UserName      string
	UserEmail     string
	Text          string
	PhotoURL      string
	Coords        *geo.Point
	MediaType     MediaType
	ManualAddress string
}

type NewIssue struct {
	UserID        string
	UserAvatar    string
	UserName      string
	UserEmail     string
	Title         string
	Description   string
	Photos        []string
	Coords        *geo.Point
	MediaType     MediaType
	ManualAddress string
}

// Relation is a per-user boolean fact about a ticket, stored as the presence
// of a child document.
type Relation int

const (
	Like Relation = iota
	Upvote
)

func (r Relation) String() string {
	if r == Upvote {
		return "upvote"
	}
	return "like"
}

func (r Relation) collection() string {
	if r == Upvote {
		return "upvotes"
	}
	return "likes"
}

// counter is the denormalized count on the ticket kept in step with the relation.
func (r Relation) counter() string {
	if r == Upvote {
		return "upvoteCount"
	}
	return "voteCount"
}

func ParseRelation(s string) (Relation, error) {
	switch s {
	case "like":
		return Like, nil
	case "upvote":
		return Upvote, nil
	}
	return 0, fmt.Errorf("%w: unknown relation %q", ErrInvalidInput, s)
}

type FeedKind int

const (
	LiveFeed FeedKind = iota
	NeighborhoodFeed
)

func (k FeedKind) String() string {
	if k == NeighborhoodFeed {
		return "neighborhood"
	}
	return "live"
}

func (k FeedKind) filters() []docstore.Filter {
	if k == NeighborhoodFeed {
		return []docstore.Filter{docstore.Eq("type", TypeSocial)}
	}
	return []docstore.Filter{docstore.In("status", StatusInProgress, StatusVerified, StatusResolved)}
}

func (k FeedKind) emptyMessage() string {
	if k == NeighborhoodFeed {
		return "No neighborhood posts found"
	}
	return "No active/completed tickets found"
}

type FeedPage struct {
	Items      []Ticket        `json:"data"`
	NextCursor docstore.Cursor `json:"nextCursor,omitempty"`
	Diagnostic string          `json:"debugInfo,omitempty"`
	// Failed marks a page that could not be read; the feed itself may
	// still have more items.
	Failed bool `json:"-"`
}
