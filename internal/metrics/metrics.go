package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	syncTotal     *prometheus.CounterVec
	syncDur       *prometheus.HistogramVec
	lastSuccessTS prometheus.Gauge
	eventsStored  prometheus.Gauge
	fetchTotal    *prometheus.CounterVec
	cacheHits     prometheus.Counter
	rowsSkipped   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}

	m.syncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "events",
		Name:      "sync_total",
		Help:      "Synchronization runs by trigger and result",
	}, []string{"trigger", "result"})
	m.syncDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "events",
		Name:      "sync_duration_seconds",
		Help:      "Time spent in a synchronization run",
		Buckets:   prometheus.DefBuckets,
	}, []string{"trigger"})
	m.lastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "events",
		Name:      "last_sync_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful synchronization",
	})
	m.eventsStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "events",
		Name:      "stored",
		Help:      "Number of records in the local collection",
	})
	m.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "events",
		Name:      "sheets_fetch_total",
		Help:      "Spreadsheet fetches by result (ok, empty, error)",
	}, []string{"result"})
	m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "events",
		Name:      "sheets_cache_hits_total",
		Help:      "Importer loads served from cache",
	})
	m.rowsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "events",
		Name:      "sheets_rows_skipped_total",
		Help:      "Spreadsheet rows dropped while parsing",
	})

	m.reg.MustRegister(
		m.syncTotal, m.syncDur, m.lastSuccessTS, m.eventsStored,
		m.fetchTotal, m.cacheHits, m.rowsSkipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSync(trigger, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.syncTotal.WithLabelValues(trigger, result).Inc()
	m.syncDur.WithLabelValues(trigger).Observe(d.Seconds())
	if result == "ok" {
		m.lastSuccessTS.Set(float64(time.Now().Unix()))
	}
}

func (m *Metrics) SetStored(n int) {
	if m == nil {
		return
	}
	m.eventsStored.Set(float64(n))
}

func (m *Metrics) Fetch(result string) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) RowSkipped() {
	if m == nil {
		return
	}
	m.rowsSkipped.Inc()
}
