package stream

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func fakeAuth(c *fiber.Ctx) error {
	if user := c.Query("user"); user != "" {
		c.Locals("user_id", user)
	}
	return c.Next()
}

func startApp(t *testing.T, hub *Hub) string {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub, fakeAuth)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

func waitForClients(t *testing.T, hub *Hub, channel string, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.Count(channel) != n {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %d clients on %s", n, channel)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil), fakeAuth)

	req := httptest.NewRequest(http.MethodGet, "/stream/ws?user=u1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426 for non-websocket request, got %d", resp.StatusCode)
	}
}

func TestStreamHandlersRequireUser(t *testing.T) {
	addr := startApp(t, NewHub(nil))
	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream/ws", nil)
	if err == nil {
		t.Fatalf("expected dial to fail without user")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestStreamHandlersWebsocketBroadcast(t *testing.T) {
	hub := NewHub(nil)
	addr := startApp(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream/ws?user=u1", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, UserChannel("u1"), 1)

	hub.Broadcast(UserChannel("u1"), []byte("hello"))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(msg) != "hello" {
		t.Fatalf("unexpected message")
	}

	conn.Close()
	waitForClients(t, hub, UserChannel("u1"), 0)
}

func TestStreamHandlersWebsocketCloseMessage(t *testing.T) {
	hub := NewHub(nil)
	addr := startApp(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream/ws?user=u3", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	waitForClients(t, hub, UserChannel("u3"), 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	waitForClients(t, hub, UserChannel("u3"), 0)
	hub.Broadcast(UserChannel("u3"), []byte("ping"))
}
