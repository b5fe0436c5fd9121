package dataapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "banking_datagen_"

type Metrics struct {
	requests         *prometheus.CounterVec
	recordsGenerated *prometheus.CounterVec
	generateDuration prometheus.Histogram
	cacheHits        prometheus.Counter
}

// NewMetrics registers the data API collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "generate_requests_total",
				Help: "Number of /generate_data requests by outcome",
			},
			[]string{"outcome"},
		),
		recordsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "records_generated_total",
				Help: "Number of synthetic records generated per table",
			},
			[]string{"table"},
		),
		generateDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricsPrefix + "generate_duration_seconds",
				Help:    "Time spent generating one dataset",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		cacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: metricsPrefix + "generate_cache_hits_total",
				Help: "Number of seeded requests served from the dataset cache",
			},
		),
	}
}

func (m *Metrics) RecordRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordGenerated(customers, accounts, transactions, loans int, duration time.Duration) {
	if m == nil {
		return
	}
	m.recordsGenerated.WithLabelValues("customers").Add(float64(customers))
	m.recordsGenerated.WithLabelValues("accounts").Add(float64(accounts))
	m.recordsGenerated.WithLabelValues("transactions").Add(float64(transactions))
	m.recordsGenerated.WithLabelValues("loans").Add(float64(loans))
	m.generateDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}
