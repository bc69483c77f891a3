// Package prom exports cache.Metrics as Prometheus collectors.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/tier"
)

// Adapter implements cache.Metrics and exports Prometheus counters, gauges
// and a load latency histogram, labelled by tier.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	evicts      *prometheus.CounterVec
	sizeEnt     *prometheus.GaugeVec
	sizeCost    *prometheus.GaugeVec
	loads       *prometheus.HistogramVec
	codecErrors *prometheus.CounterVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, labels)
	}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, []string{"tier"})
	}

	a := &Adapter{
		hits:     counter("hits_total", "Cache hits by tier", "tier"),
		misses:   counter("misses_total", "Cache misses by tier", "tier"),
		evicts:   counter("evictions_total", "Cache evictions by tier and reason", "tier", "reason"),
		sizeEnt:  gauge("size_entries", "Number of resident entries"),
		sizeCost: gauge("size_cost_bytes", "Total recorded cost of resident entries"),
		loads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "load_duration_seconds",
			Help:        "Source load latency by outcome",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"outcome"}),
		codecErrors: counter("codec_errors_total", "Codec failures by operation", "op"),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeCost, a.loads, a.codecErrors)
	return a
}

// Hit increments the hit counter of tier k.
func (a *Adapter) Hit(k tier.Kind) { a.hits.WithLabelValues(k.String()).Inc() }

// Miss increments the miss counter of tier k.
func (a *Adapter) Miss(k tier.Kind) { a.misses.WithLabelValues(k.String()).Inc() }

// Evict increments the eviction counter with tier and reason labels.
func (a *Adapter) Evict(k tier.Kind, r tier.EvictReason) {
	a.evicts.WithLabelValues(k.String(), r.String()).Inc()
}

// Size updates gauges for the number of entries and total cost of tier k.
func (a *Adapter) Size(k tier.Kind, entries int, cost int64) {
	a.sizeEnt.WithLabelValues(k.String()).Set(float64(entries))
	a.sizeCost.WithLabelValues(k.String()).Set(float64(cost))
}

// ObserveLoad records one source load.
func (a *Adapter) ObserveLoad(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	a.loads.WithLabelValues(outcome).Observe(d.Seconds())
}

// CodecError counts an encode or decode failure.
func (a *Adapter) CodecError(op string) { a.codecErrors.WithLabelValues(op).Inc() }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
