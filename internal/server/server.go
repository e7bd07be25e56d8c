package server

import (
	"context"
	"errors"
	"log/slog"

	"backend-cityfix/internal/auth"
	"backend-cityfix/internal/config"
	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/geocode"
	"backend-cityfix/internal/location"
	applog "backend-cityfix/internal/logger"
	"backend-cityfix/internal/metrics"
	"backend-cityfix/internal/notify"
	"backend-cityfix/internal/social"
	"backend-cityfix/internal/storage"
	"backend-cityfix/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	Store  docstore.Store
	Redis  *redis.Client
	Stream *stream.Hub
	Social *social.Service

	changes *docstore.Changes
	log     *slog.Logger
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	log := applog.WithComponent(nil, "server")
	changes := docstore.NewChanges(redisClient, applog.WithComponent(nil, "docstore"))
	hub := stream.NewHub(redisClient)

	s := &Server{
		App:     app,
		Cfg:     cfg,
		Store:   newStore(cfg, db, changes, log),
		Redis:   redisClient,
		Stream:  hub,
		changes: changes,
		log:     log,
	}

	registerRoutes(s)
	return s
}

// newStore picks the document store backend. Postgres is used whenever a
// pool is available and the memory driver was not asked for explicitly.
func newStore(cfg config.Config, db *pgxpool.Pool, changes *docstore.Changes, log *slog.Logger) docstore.Store {
	if db != nil && cfg.StoreDriver != config.StoreDriverMemory {
		log.Info("document store ready", "driver", config.StoreDriverPostgres)
		return docstore.NewPostgres(db, changes)
	}
	if cfg.StoreDriver == config.StoreDriverPostgres {
		log.Warn("postgres unavailable, falling back to in-memory document store")
	}
	log.Info("document store ready", "driver", config.StoreDriverMemory)
	return docstore.NewMemory(changes)
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", metrics.Handler())

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	geocoder := geocode.NewClient(s.Cfg.GeocoderURL, s.Cfg.GeocoderAPIKey, s.Cfg.GeocoderRPS)
	notifications := notify.NewService(s.Store, s.Stream)

	opts := []social.Option{
		social.WithNotifier(notifications),
		social.WithLogger(applog.WithComponent(nil, "social")),
		social.WithPageSize(s.Cfg.FeedPageSize),
	}
	if s.Cfg.GeocoderAPIKey != "" {
		opts = append(opts, social.WithGeocoder(geocoder))
	} else {
		s.log.Warn("geocoder api key not set, post locations fall back to coordinates")
	}
	s.Social = social.NewService(s.Store, opts...)

	authSvc := auth.NewService(s.Cfg.JWTSecret, s.Store)
	auth.RegisterRoutes(s.App.Group("/auth"), authSvc)
	social.RegisterRoutes(s.App.Group("/social"), s.Social, jwtMiddleware, profileAuthors(authSvc))
	geocode.RegisterRoutes(s.App.Group("/places", jwtMiddleware), geocoder)
	notify.RegisterRoutes(s.App.Group("/notifications"), notifications, jwtMiddleware)
	location.RegisterRoutes(s.App.Group("/locations"), location.NewService(s.Store), jwtMiddleware)
	storage.RegisterRoutes(s.App.Group("/storage"), storage.NewService(s.Store, s.Cfg.MediaBaseURL), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwtMiddleware)
}

// profileAuthors stamps posts and comments with the stored users/{uid}
// profile.
func profileAuthors(svc *auth.Service) social.AuthorLookup {
	return func(ctx context.Context, userID string) (social.Author, error) {
		user, err := svc.GetUser(ctx, userID)
		if err != nil {
			return social.Author{}, err
		}
		name := user.FullName
		if name == "" {
			name = user.Username
		}
		return social.Author{Name: name, Avatar: user.AvatarURL, Email: user.Email}, nil
	}
}

// Close waits for detached notification work and releases the realtime
// subscriptions. The HTTP app must already be shut down.
func (s *Server) Close() error {
	if s.Social != nil {
		s.Social.Wait()
	}
	return errors.Join(s.Stream.Close(), s.changes.Close())
}
