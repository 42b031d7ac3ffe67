package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "tinyurl"

var (
	assignAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "assign_attempts_total",
		Help:      "Insert attempts made while assigning short codes.",
	})
	assignCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "assign_collisions_total",
		Help:      "Generated codes rejected by the store's unique constraint.",
	})
	assignOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "assign_results_total",
		Help:      "Assign calls by outcome.",
	}, []string{"result"})

	clickEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "click_events_total",
		Help:      "Click events by recorder outcome (recorded, failed, dropped).",
	}, []string{"result"})
	clickQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "click_queue_depth",
		Help:      "Click events waiting for a recorder worker.",
	})

	statsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "stats_query_duration_seconds",
		Help:      "Latency of per-window click count queries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"window"})
)
