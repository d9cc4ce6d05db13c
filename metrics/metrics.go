// Package metrics holds the Prometheus collectors of the ETL. Every run owns
// its registry, which can be scraped over HTTP or pushed to a Pushgateway
// once the run is over.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "pmc_etl"

// Fetch statuses.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// Parse outcomes.
const (
	OutcomeParsed    = "parsed"
	OutcomeAbsent    = "absent"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
	OutcomeEmpty     = "empty"
)

type Metrics struct {
	reg *prometheus.Registry

	recordsIngested  *prometheus.CounterVec
	recordsParsed    *prometheus.CounterVec
	schemaViolations *prometheus.CounterVec
	sourceFailovers  prometheus.Counter
	fetchDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		recordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "The total number of files fetched, by source and status.",
		}, []string{"source", "status"}),
		recordsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "The total number of payloads parsed, by outcome.",
		}, []string{"outcome"}),
		schemaViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_violations_total",
			Help:      "The total number of schema violations found in parsed records.",
		}, []string{"field"}),
		sourceFailovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failovers_total",
			Help:      "The total number of switches from S3 to FTP.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching a single file.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
	m.reg.MustRegister(
		m.recordsIngested,
		m.recordsParsed,
		m.schemaViolations,
		m.sourceFailovers,
		m.fetchDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// The methods below accept a nil receiver so that components can be used
// without metrics.

func (m *Metrics) Fetched(source, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.recordsIngested.WithLabelValues(source, status).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) Parsed(outcome string) {
	if m == nil {
		return
	}
	m.recordsParsed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Violation(field string) {
	if m == nil {
		return
	}
	m.schemaViolations.WithLabelValues(field).Inc()
}

func (m *Metrics) Failover() {
	if m == nil {
		return
	}
	m.sourceFailovers.Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Push sends the current state of the registry to a Pushgateway.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if job == "" {
		job = "pmc_etl"
	}
	err := push.New(gatewayURL, job).Gatherer(m.reg).PushContext(ctx)
	return errors.Wrap(err, "pushing metrics")
}
