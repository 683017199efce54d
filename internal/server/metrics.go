package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are registered on a per-server registry so several servers can
// coexist in one process (tests).
type metrics struct {
	registry *prometheus.Registry

	messages        prometheus.Gauge
	subscribers     prometheus.Gauge
	broadcasts      *prometheus.CounterVec
	droppedSubs     prometheus.Counter
	posts           *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &metrics{
		registry: reg,
		messages: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "danmaku",
			Name:      "messages",
			Help:      "Live messages held in memory.",
		}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "danmaku",
			Name:      "subscribers",
			Help:      "Connected event stream subscribers.",
		}),
		broadcasts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "danmaku",
			Name:      "broadcasts_total",
			Help:      "Frames broadcast, by event name.",
		}, []string{"event"}),
		droppedSubs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "danmaku",
			Name:      "dropped_subscribers_total",
			Help:      "Subscribers dropped because their queue was full.",
		}),
		posts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "danmaku",
			Name:      "posts_total",
			Help:      "POST /messages requests, by outcome.",
		}, []string{"outcome"}),
		persistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "danmaku",
			Name:      "persist_failures_total",
			Help:      "Store writes that failed, by operation.",
		}, []string{"op"}),
	}
}
