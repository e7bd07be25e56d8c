package location

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var validate = validator.New()

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if currentUser(c) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "user required")
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(string)
		streamSnapshots(c, svc, userID)
	}))

	r.Post("/", func(c *fiber.Ctx) error {
		var req SavedLocation
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		loc, err := svc.Save(c.Context(), currentUser(c), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(loc)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		locs, err := svc.List(c.Context(), currentUser(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(locs)
	})

	r.Get("/search", func(c *fiber.Ctx) error {
		radius := c.QueryFloat("radius_km")
		if radius == 0 {
			radius = 5
		}
		results, err := svc.Search(c.Context(), currentUser(c), c.QueryFloat("lat"), c.QueryFloat("lng"), radius)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(results)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		loc, err := svc.Get(c.Context(), currentUser(c), c.Params("id"))
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(loc)
	})

	r.Put("/:id", func(c *fiber.Ctx) error {
		var req SavedLocation
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.StructExcept(req, "Name"); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		loc, err := svc.Update(c.Context(), currentUser(c), c.Params("id"), req)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(loc)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), currentUser(c), c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func currentUser(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

func lookupError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "saved location not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

// streamSnapshots writes the full saved-location list as JSON on connect and
// after every change until the client goes away. Only the latest pending
// snapshot is kept.
func streamSnapshots(c *websocket.Conn, svc *Service, userID string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan []SavedLocation, 1)
	stop, err := svc.Watch(ctx, userID, func(locs []SavedLocation) {
		select {
		case <-updates:
		default:
		}
		updates <- locs
	})
	if err != nil {
		_ = c.WriteJSON(fiber.Map{"error": err.Error()})
		return
	}
	defer stop()

	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case locs := <-updates:
			if err := c.WriteJSON(locs); err != nil {
				return
			}
		}
	}
}
