package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/geocode"
	"backend-cityfix/internal/metrics"
	"backend-cityfix/internal/shared/geo"
	"backend-cityfix/internal/shared/goroutine"

	"golang.org/x/sync/errgroup"
)

const (
	unknownLocation = "Unknown Location selected"
	maxTitleRunes   = 80
)

// CreatePost publishes a social post and returns its id. The author's
// confirmation and the neighbor fan-out run detached; their failures are
// logged and never reach the caller.
func (s *Service) CreatePost(ctx context.Context, p NewPost) (string, error) {
	text := strings.TrimSpace(p.Text)
	if p.UserID == "" {
		return "", fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if text == "" && p.PhotoURL == "" {
		return "", fmt.Errorf("%w: post needs text or a photo", ErrInvalidInput)
	}

	now := s.now().UnixMilli()
	t := Ticket{
		Title:        summarize(text),
		Description:  text,
		Status:       StatusLive,
		Type:         TypeSocial,
		CreatedAt:    now,
		UpdatedAt:    now,
		Photos:       []string{},
		MediaType:    mediaOrDefault(p.MediaType),
		UserID:       p.UserID,
		UserName:     p.UserName,
		UserAvatar:   p.UserAvatar,
		UserEmail:    p.UserEmail,
		Location:     p.Coords,
		LocationName: s.resolveLocationName(ctx, p.Coords, p.ManualAddress),
	}
	if p.PhotoURL != "" {
		t.Photos = []string{p.PhotoURL}
	}

	id, err := s.store.Add(ctx, ticketsCollection, t.fields())
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	metrics.Posts.WithLabelValues("create").Inc()
	s.log.Info("post created", "ticket_id", id, "user_id", p.UserID)

	name := p.UserName
	if name == "" {
		name = "A neighbor"
	}
	s.notifyDetached(p.UserID,
		notice{title: "Post published", body: fmt.Sprintf("Your post at %s is now live.", t.LocationName)},
		&notice{title: "New post nearby", body: fmt.Sprintf("%s posted near %s.", name, t.LocationName)},
	)
	return id, nil
}

// ReportIssue files a civic issue; it enters the lifecycle at in_progress.
func (s *Service) ReportIssue(ctx context.Context, in NewIssue) (string, error) {
	title := strings.TrimSpace(in.Title)
	if in.UserID == "" || title == "" {
		return "", fmt.Errorf("%w: user id and title required", ErrInvalidInput)
	}
	photos := in.Photos
	if photos == nil {
		photos = []string{}
	}

	now := s.now().UnixMilli()
	t := Ticket{
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Status:       StatusInProgress,
		Type:         TypeIssue,
		CreatedAt:    now,
		UpdatedAt:    now,
		Photos:       photos,
		MediaType:    mediaOrDefault(in.MediaType),
		UserID:       in.UserID,
		UserName:     in.UserName,
		UserAvatar:   in.UserAvatar,
		UserEmail:    in.UserEmail,
		Location:     in.Coords,
		LocationName: s.resolveLocationName(ctx, in.Coords, in.ManualAddress),
	}
	id, err := s.store.Add(ctx, ticketsCollection, t.fields())
	if err != nil {
		return "", fmt.Errorf("report issue: %w", err)
	}
	metrics.Posts.WithLabelValues("report").Inc()

	s.notifyDetached(in.UserID, notice{
		title: "Report received",
		body:  fmt.Sprintf("We logged %q at %s.", title, t.LocationName),
	}, nil)
	return id, nil
}

// UpdateStatus moves an issue forward through in_progress, verified and
// resolved. afterPhoto, when set, records the fix.
func (s *Service) UpdateStatus(ctx context.Context, ticketID string, status Status, afterPhoto string) error {
	t, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if t.Type != TypeIssue || !t.Status.CanAdvanceTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}

	fields := docstore.Fields{"status": status, "updatedAt": s.now().UnixMilli()}
	if afterPhoto != "" {
		fields["afterPhoto"] = afterPhoto
	}
	if err := s.store.Update(ctx, ticketPath(ticketID), fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrTicketNotFound
		}
		return err
	}
	metrics.Posts.WithLabelValues("status").Inc()

	s.notifyDetached(t.UserID, notice{
		title: "Report updated",
		body:  fmt.Sprintf("%q is now %s.", t.Title, strings.ReplaceAll(string(status), "_", " ")),
	}, nil)
	return nil
}

// DeletePost hard-deletes a ticket. Callers enforce ownership.
func (s *Service) DeletePost(ctx context.Context, postID string) error {
	if postID == "" {
		return fmt.Errorf("%w: post id required", ErrInvalidInput)
	}
	if err := s.store.Delete(ctx, ticketPath(postID)); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	metrics.Posts.WithLabelValues("delete").Inc()
	s.log.Info("post deleted", "ticket_id", postID)
	return nil
}

// GetUserSocialPosts lists every social post of userID, newest first.
func (s *Service) GetUserSocialPosts(ctx context.Context, userID string) ([]Ticket, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: ticketsCollection,
		Filters:    []docstore.Filter{docstore.Eq("userId", userID), docstore.Eq("type", TypeSocial)},
		OrderBy:    "createdAt",
		Direction:  docstore.Desc,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Ticket, 0, len(page.Docs))
	for _, doc := range page.Docs {
		t, err := ticketFromDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// resolveLocationName picks the display name of a post location: the manual
// address verbatim, then the reverse-geocoded street address, then the raw
// coordinates, then a placeholder.
func (s *Service) resolveLocationName(ctx context.Context, coords *geo.Point, manual string) string {
	if strings.TrimSpace(manual) != "" {
		return manual
	}
	if coords == nil {
		return unknownLocation
	}
	if s.geocoder == nil {
		return coords.Near()
	}
	res, err := s.geocoder.ReverseGeocode(ctx, coords.Lat, coords.Lng)
	if err != nil {
		s.log.Warn("reverse geocode failed", "lat", coords.Lat, "lng", coords.Lng, "error", err)
		metrics.GeocodeFallbacks.Inc()
		return coords.Near()
	}
	if name := addressName(res); name != "" {
		return name
	}
	return coords.Near()
}

func addressName(res geocode.Result) string {
	number := res.Component("street_number")
	street := res.Component("route")
	if number == "" && street == "" {
		if res.Name != "" {
			return res.Name
		}
		if place := res.Component("point_of_interest", "establishment", "premise", "neighborhood", "sublocality"); place != "" {
			return place
		}
		return res.FormattedAddress
	}
	city := res.Component("locality", "postal_town")
	parts := make([]string, 0, 3)
	for _, p := range []string{number, street, city} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func summarize(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if utf8.RuneCountInString(text) <= maxTitleRunes {
		return text
	}
	r := []rune(text)
	return string(r[:maxTitleRunes-1]) + "…"
}

func mediaOrDefault(m MediaType) MediaType {
	if m == MediaVideo {
		return MediaVideo
	}
	return MediaImage
}

type notice struct {
	title string
	body  string
}

// notifyDetached tells the author and, when neighbors is set, every
// neighbor of the author. It runs on a fresh context because the request
// context is recycled once the handler returns.
func (s *Service) notifyDetached(authorID string, author notice, neighbors *notice) {
	if s.notifier == nil {
		return
	}
	goroutine.SafeGo(s.log, &s.tasks, "post-notifications", func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyUser(ctx, authorID, author.title, author.body); err != nil {
			s.notifyFailed(authorID, err)
		}
		if neighbors == nil {
			return
		}

		ids, err := s.Neighbors(ctx, authorID)
		if err != nil {
			s.log.Warn("list neighbors failed", "user_id", authorID, "error", err)
			return
		}
		var g errgroup.Group
		g.SetLimit(s.fanout)
		for _, id := range ids {
			g.Go(func() error {
				if err := s.notifier.NotifyUser(ctx, id, neighbors.title, neighbors.body); err != nil {
					s.notifyFailed(id, err)
				}
				return nil
			})
		}
		_ = g.Wait()
	})
}

func (s *Service) notifyFailed(userID string, err error) {
	metrics.NotificationFailures.Inc()
	s.log.Warn("notification failed", "user_id", userID, "error", err)
}
