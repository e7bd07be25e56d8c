package docstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const changesChannel = "docstore:changes"

// Changes fans "collection written" events out to subscribers. With a redis
// client the events travel through pub/sub so every API instance sees writes
// made by the others; without one they stay in process.
type Changes struct {
	redis *redis.Client
	log   *slog.Logger

	mu        sync.RWMutex
	listeners map[string]map[*listener]struct{}

	startOnce sync.Once
	pubsub    *redis.PubSub
	startErr  error
}

type listener struct {
	collection string
	notify     chan struct{}
}

func NewChanges(redisClient *redis.Client, log *slog.Logger) *Changes {
	if log == nil {
		log = slog.Default()
	}
	return &Changes{
		redis:     redisClient,
		log:       log,
		listeners: map[string]map[*listener]struct{}{},
	}
}

// Publish announces a write to collection.
func (c *Changes) Publish(ctx context.Context, collection string) {
	if c.redis != nil {
		err := c.redis.Publish(ctx, changesChannel, collection).Err()
		if err == nil {
			return
		}
		c.log.Warn("redis publish failed, delivering locally", "collection", collection, "error", err)
	}
	c.dispatch(collection)
}

func (c *Changes) listen(ctx context.Context, collection string) (*listener, error) {
	if c.redis != nil {
		c.startOnce.Do(func() { c.startErr = c.startRedis(ctx) })
		if c.startErr != nil {
			return nil, c.startErr
		}
	}

	l := &listener{collection: collection, notify: make(chan struct{}, 1)}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listeners[collection] == nil {
		c.listeners[collection] = map[*listener]struct{}{}
	}
	c.listeners[collection][l] = struct{}{}
	return l, nil
}

func (c *Changes) remove(l *listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.listeners[l.collection]; ok {
		delete(set, l)
		if len(set) == 0 {
			delete(c.listeners, l.collection)
		}
	}
}

// dispatch wakes every listener of collection. Pending wake-ups coalesce.
func (c *Changes) dispatch(collection string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for l := range c.listeners[collection] {
		select {
		case l.notify <- struct{}{}:
		default:
		}
	}
}

func (c *Changes) startRedis(ctx context.Context) error {
	pubsub := c.redis.Subscribe(context.WithoutCancel(ctx), changesChannel)
	// Wait for the subscription so publishes made right after listen are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	c.pubsub = pubsub
	ch := pubsub.Channel()
	go func() {
		for msg := range ch {
			c.dispatch(msg.Payload)
		}
	}()
	return nil
}

// Close stops the redis subscription, if any.
func (c *Changes) Close() error {
	if c.pubsub != nil {
		return c.pubsub.Close()
	}
	return nil
}

// subscribe implements Store.Subscribe on top of a store's Query.
func subscribe(ctx context.Context, s Store, changes *Changes, q Query, onChange func([]Document)) (func(), error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	l, err := changes.listen(ctx, q.Collection)
	if err != nil {
		return nil, err
	}

	page, err := s.Query(ctx, q)
	if err != nil {
		changes.remove(l)
		return nil, err
	}
	onChange(page.Docs)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer changes.remove(l)
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.notify:
				page, err := s.Query(ctx, q)
				if err != nil {
					if ctx.Err() == nil {
						changes.log.Warn("subscription query failed", "collection", q.Collection, "error", err)
					}
					continue
				}
				onChange(page.Docs)
			}
		}
	}()
	return cancel, nil
}
