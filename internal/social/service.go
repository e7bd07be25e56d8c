package social

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/geocode"
	"backend-cityfix/internal/logger"
)

const (
	ticketsCollection = "tickets"

	defaultPageSize = 10
	maxPageSize     = 100
	defaultFanout   = 8
	notifyTimeout   = 30 * time.Second
)

// Geocoder resolves coordinates into an address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (geocode.Result, error)
}

// Notifier delivers a user notification.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, title, body string) error
}

type Service struct {
	store    docstore.Store
	geocoder Geocoder
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
	pageSize int
	fanout   int

	// tasks tracks detached notification work.
	tasks sync.WaitGroup
}

type Option func(*Service)

func WithGeocoder(g Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.log = logger.WithComponent(l, "social")
	}
}

// WithPageSize sets the feed page size used when a caller passes none.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 && n <= maxPageSize {
			s.pageSize = n
		}
	}
}

// WithFanout bounds concurrent neighbor notifications per post.
func WithFanout(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fanout = n
		}
	}
}

func NewService(store docstore.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		log:      logger.WithComponent(slog.Default(), "social"),
		now:      time.Now,
		pageSize: defaultPageSize,
		fanout:   defaultFanout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until detached notification work has finished.
func (s *Service) Wait() {
	s.tasks.Wait()
}

func ticketPath(ticketID string) string {
	return docstore.Join(ticketsCollection, ticketID)
}
