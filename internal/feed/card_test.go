package feed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/social"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRemote fails every write and records the card state seen mid-call.
type flakyRemote struct {
	card   *Card
	during CardState
}

func (f *flakyRemote) ToggleRelation(context.Context, string, string, social.Relation) (bool, error) {
	f.during = f.card.State()
	return false, errors.New("network down")
}

func (f *flakyRemote) AddComment(context.Context, social.NewComment) (social.Comment, error) {
	f.during = f.card.State()
	return social.Comment{}, errors.New("network down")
}

func (f *flakyRemote) GetComments(context.Context, string) ([]social.Comment, error) {
	return nil, errors.New("network down")
}

func newStoredCard(t *testing.T) (*Card, *social.Service, docstore.Store) {
	t.Helper()
	store := docstore.NewMemory(nil)
	require.NoError(t, store.Set(context.Background(), "tickets/t1", docstore.Fields{
		"status": "verified", "voteCount": 3, "upvoteCount": 1, "commentCount": 0,
	}))
	svc := social.NewService(store)
	ticket, err := svc.GetTicket(context.Background(), "t1")
	require.NoError(t, err)
	return NewCard(svc, Viewer{ID: "u1", Name: "Ana"}, ticket, false, false), svc, store
}

func TestCardToggleLikeRoundTrip(t *testing.T) {
	card, svc, _ := newStoredCard(t)
	ctx := context.Background()

	require.NoError(t, card.ToggleLike(ctx))
	st := card.State()
	assert.True(t, st.Liked)
	assert.EqualValues(t, 4, st.Ticket.VoteCount)

	stored, err := svc.GetTicket(ctx, "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, stored.VoteCount)

	require.NoError(t, card.ToggleLike(ctx))
	st = card.State()
	assert.False(t, st.Liked)
	assert.EqualValues(t, 3, st.Ticket.VoteCount)
}

func TestCardTakesServerStateWhenOutOfSync(t *testing.T) {
	card, svc, _ := newStoredCard(t)
	ctx := context.Background()

	// another device already upvoted
	_, err := svc.ToggleRelation(ctx, "t1", "u1", social.Upvote)
	require.NoError(t, err)

	require.NoError(t, card.ToggleUpvote(ctx))
	st := card.State()
	assert.False(t, st.Upvoted)
	assert.EqualValues(t, 1, st.Ticket.UpvoteCount)
}

func TestCardToggleRollsBackOnFailure(t *testing.T) {
	remote := &flakyRemote{}
	card := NewCard(remote, Viewer{ID: "u1"}, social.Ticket{ID: "t1", UpvoteCount: 7}, false, true)
	remote.card = card

	err := card.ToggleUpvote(context.Background())
	require.Error(t, err)

	assert.False(t, remote.during.Upvoted, "flip applied before the call")
	assert.EqualValues(t, 6, remote.during.Ticket.UpvoteCount)

	st := card.State()
	assert.True(t, st.Upvoted)
	assert.EqualValues(t, 7, st.Ticket.UpvoteCount)
}

func TestCardPostCommentReconciles(t *testing.T) {
	card, _, _ := newStoredCard(t)
	ctx := context.Background()

	require.NoError(t, card.PostComment(ctx, "Thanks for fixing this"))
	st := card.State()
	require.Len(t, st.Comments, 1)
	assert.False(t, strings.HasPrefix(st.Comments[0].ID, tempPrefix))
	assert.Equal(t, "Thanks for fixing this", st.Comments[0].Text)
	assert.EqualValues(t, 1, st.Ticket.CommentCount)
}

func TestCardPostCommentRollsBack(t *testing.T) {
	remote := &flakyRemote{}
	card := NewCard(remote, Viewer{ID: "u1", Name: "Ana"}, social.Ticket{ID: "t1", CommentCount: 2}, false, false)
	remote.card = card

	require.Error(t, card.PostComment(context.Background(), "hello"))

	require.Len(t, remote.during.Comments, 1)
	assert.True(t, strings.HasPrefix(remote.during.Comments[0].ID, tempPrefix))
	assert.EqualValues(t, 3, remote.during.Ticket.CommentCount)

	st := card.State()
	assert.Empty(t, st.Comments)
	assert.EqualValues(t, 2, st.Ticket.CommentCount)
}

func TestCardLoadComments(t *testing.T) {
	card, svc, _ := newStoredCard(t)
	ctx := context.Background()
	_, err := svc.AddComment(ctx, social.NewComment{TicketID: "t1", UserID: "u2", Text: "seen it too"})
	require.NoError(t, err)

	require.NoError(t, card.LoadComments(ctx))
	assert.Len(t, card.State().Comments, 1)
}
