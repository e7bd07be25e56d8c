package stream

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hub delivers payloads to websocket clients grouped by channel. With redis
// configured every broadcast goes through pub/sub so clients connected to
// other API instances receive it too.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	log     *slog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Channel string
	Send    chan []byte
}

// UserChannel names the per-user channel notifications are pushed to.
func UserChannel(userID string) string {
	return "user." + userID
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		log:     slog.Default().With("component", "stream"),
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pubsub := redisClient.PSubscribe(context.Background(), redisPattern)
		if _, err := pubsub.Receive(ctx); err != nil {
			h.log.Warn("redis subscribe failed, hub runs locally", "error", err)
			_ = pubsub.Close()
		} else {
			h.redis = redisClient
			h.pubsub = pubsub
			go h.forwardRedis(pubsub.Channel())
		}
	}
	return h
}

func (h *Hub) Register(channel string) *Client {
	client := &Client{
		Channel: channel,
		Send:    make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[channel] == nil {
		h.clients[channel] = map[*Client]struct{}{}
	}
	h.clients[channel][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if channelClients, ok := h.clients[client.Channel]; ok {
		if _, registered := channelClients[client]; !registered {
			return
		}
		delete(channelClients, client)
		if len(channelClients) == 0 {
			delete(h.clients, client.Channel)
		}
		close(client.Send)
	}
}

// Count returns the number of local clients on channel.
func (h *Hub) Count(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[channel])
}

func (h *Hub) Broadcast(channel string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(channel), payload).Err()
		if err == nil {
			return
		}
		h.log.Warn("redis publish failed, delivering locally", "channel", channel, "error", err)
	}
	h.deliver(channel, payload)
}

// deliver drops the payload for clients whose buffer is full.
func (h *Hub) deliver(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[channel] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) forwardRedis(ch <-chan *redis.Message) {
	for msg := range ch {
		channel := channelFromRedis(msg.Channel)
		if channel == "" {
			continue
		}
		h.deliver(channel, []byte(msg.Payload))
	}
}

func (h *Hub) Close() error {
	if h.pubsub != nil {
		return h.pubsub.Close()
	}
	return nil
}

const (
	redisPrefix  = "cityfix:"
	redisSuffix  = ":broadcast"
	redisPattern = redisPrefix + "*" + redisSuffix
)

func redisChannel(channel string) string {
	return redisPrefix + channel + redisSuffix
}

func channelFromRedis(ch string) string {
	// cityfix:{channel}:broadcast
	if len(ch) <= len(redisPrefix)+len(redisSuffix) ||
		!strings.HasPrefix(ch, redisPrefix) || !strings.HasSuffix(ch, redisSuffix) {
		return ""
	}
	return ch[len(redisPrefix) : len(ch)-len(redisSuffix)]
}
