// Package metrics exposes Prometheus collectors for the order pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pizzaparty"

// Collector owns a private registry so several instances can coexist in tests.
type Collector struct {
	registry     *prometheus.Registry
	updates      *prometheus.CounterVec
	participants prometheus.Gauge
	pies         prometheus.Gauge
	uncovered    prometheus.Gauge
	planDuration prometheus.Histogram
	planCache    *prometheus.CounterVec
	dropped      prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		updates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "updates_total",
			Help:      "topping updates applied, by kind",
		}, []string{"kind"}),
		participants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "participants",
			Help:      "participants currently registered",
		}),
		pies: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "pies",
			Help:      "whole pies in the latest plan",
		}),
		uncovered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "uncovered_slices",
			Help:      "slices left over after both packing passes in the latest plan",
		}),
		planDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "duration_seconds",
			Help:      "time spent allocating and rendering a plan",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		planCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "cache_requests_total",
			Help:      "plan cache lookups, by result",
		}, []string{"result"}),
		dropped: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "undecodable_entries",
			Help:      "stored entries whose topping key could not be decoded",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// UpdateApplied counts one applied update of the given kind ("set", "add", "remove").
func (c *Collector) UpdateApplied(kind string) {
	c.updates.WithLabelValues(kind).Inc()
}

// Participants records the number of registered participants.
func (c *Collector) Participants(n int) {
	c.participants.Set(float64(n))
}

// Undecodable records how many stored entries failed to decode.
func (c *Collector) Undecodable(n int) {
	c.dropped.Set(float64(n))
}

// PlanComputed records the shape and cost of a freshly computed plan.
func (c *Collector) PlanComputed(pies, uncovered int, elapsed time.Duration) {
	c.pies.Set(float64(pies))
	c.uncovered.Set(float64(uncovered))
	c.planDuration.Observe(elapsed.Seconds())
}

// PlanCache counts a plan cache lookup.
func (c *Collector) PlanCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.planCache.WithLabelValues(result).Inc()
}
