// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cityfix_feed_fetches_total",
		Help: "Feed page fetches by feed kind and outcome.",
	}, []string{"feed", "outcome"})

	Toggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cityfix_relation_toggles_total",
		Help: "Like/upvote toggles by kind and resulting state.",
	}, []string{"kind", "state"})

	Comments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cityfix_comment_writes_total",
		Help: "Comment writes by operation.",
	}, []string{"op"})

	Posts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cityfix_post_writes_total",
		Help: "Ticket lifecycle writes by operation.",
	}, []string{"op"})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cityfix_notification_failures_total",
		Help: "Best-effort notifications that failed to send.",
	})

	GeocodeFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cityfix_geocode_fallbacks_total",
		Help: "Reverse geocode failures that fell back to coordinates.",
	})
)

// Handler serves the default prometheus registry.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
