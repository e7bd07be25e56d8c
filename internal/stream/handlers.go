package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes exposes the caller's own notification channel. authMiddleware
// must set the user_id local before the upgrade.
func RegisterRoutes(r fiber.Router, hub *Hub, authMiddleware fiber.Handler) {
	r.Get("/ws", authMiddleware, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "user required")
		}
		c.Locals("channel", UserChannel(userID))
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		channel, _ := c.Locals("channel").(string)
		Pump(c, hub.Register(channel), hub)
	}))
}

// Pump writes client messages to the connection until either side closes.
func Pump(c *websocket.Conn, client *Client, hub *Hub) {
	defer hub.Unregister(client)

	done := make(chan struct{})
	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		close(done)
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	hub.Unregister(client)
	<-done
}
