// Package prom adapts the replacement engine's hit/miss/ghost-hit/evict
// events onto Prometheus: per-queue occupancy gauges alongside simple
// event counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ondisk/pagecache"
)

// Adapter implements pagecache.Metrics and exports Prometheus
// counters/gauges. Safe for concurrent use; all Prometheus metric types
// are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	ghostHit prometheus.Counter
	evicts   prometheus.Counter
	a1inSize prometheus.Gauge
	amSize   prometheus.Gauge
	a1outLen prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Resident page hits (A1in or Am)",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cold misses admitted into A1in",
			ConstLabels: constLabels,
		}),
		ghostHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "ghost_hits_total",
			Help:        "Re-references of a page still recorded in A1out",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evictions_total",
			Help:        "Resident pages evicted from A1in or Am",
			ConstLabels: constLabels,
		}),
		a1inSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "a1in_size",
			Help:        "Current A1in (admission queue) occupancy",
			ConstLabels: constLabels,
		}),
		amSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "am_size",
			Help:        "Current Am (frequency queue) occupancy",
			ConstLabels: constLabels,
		}),
		a1outLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "a1out_len",
			Help:        "Current A1out (ghost queue) length",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.ghostHit, a.evicts, a.a1inSize, a.amSize, a.a1outLen)
	return a
}

// Hit increments the resident-hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the cold-miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// GhostHit increments the ghost-hit counter.
func (a *Adapter) GhostHit() { a.ghostHit.Inc() }

// Evict increments the eviction counter.
func (a *Adapter) Evict() { a.evicts.Inc() }

// QueueSizes updates the per-queue occupancy gauges.
func (a *Adapter) QueueSizes(a1in, am, a1out int) {
	a.a1inSize.Set(float64(a1in))
	a.amSize.Set(float64(am))
	a.a1outLen.Set(float64(a1out))
}

// Compile-time check: ensure Adapter implements pagecache.Metrics.
var _ pagecache.Metrics = (*Adapter)(nil)
