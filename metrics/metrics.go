// Package metrics exposes TDB's engine and server counters as Prometheus
// collectors. Grounded on the retrieval pack's churn telemetry module
// (internal/ratelimiter/telemetry/churn/prom_counters.go): global counters
// and gauges registered once, with a standalone /metrics HTTP endpoint
// started only when configured. Unlike that module's package-level state,
// every recording method here is also nil-receiver safe (Serve is not), so a
// disabled Metrics (a nil
// *Metrics, the zero value a caller gets by not opting in) costs nothing on
// the request path instead of checking an Enabled() flag everywhere.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terrabasedb/tdb/internal/coarsetime"
)

// Metrics holds TDB's Prometheus collectors against a private registry, so
// more than one instance can coexist (e.g. across tests) without colliding
// on the default global registry.
type Metrics struct {
	registry *prometheus.Registry

	ops          *prometheus.CounterVec
	hits         prometheus.Counter
	misses       prometheus.Counter
	unknown      prometheus.Counter
	actionErrors prometheus.Counter
	connActive   prometheus.Gauge
	connTotal    prometheus.Counter
	snapshotOK   prometheus.Counter
	snapshotFail prometheus.Counter
	lastOpUnix   prometheus.Gauge
}

// New builds and registers a fresh set of collectors.
func New() *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tdb_actions_total",
			Help: "Total dispatched actions, by verb.",
		}, []string{"verb"}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tdb_get_hits_total",
			Help: "Total GET/MGET field lookups that found a value.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tdb_get_misses_total",
			Help: "Total GET/MGET field lookups that found nothing.",
		}),
		unknown: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tdb_unknown_action_total",
			Help: "Total requests naming a verb outside the dispatch table.",
		}),
		actionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tdb_action_errors_total",
			Help: "Total requests rejected for bad arity or an invalid key.",
		}),
		connActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tdb_connections_active",
			Help: "Currently open client connections.",
		}),
		connTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tdb_connections_total",
			Help: "Total accepted client connections.",
		}),
		snapshotOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tdb_snapshot_success_total",
			Help: "Total successful snapshot writes.",
		}),
		snapshotFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tdb_snapshot_failure_total",
			Help: "Total failed snapshot writes.",
		}),
		lastOpUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tdb_last_op_unix_seconds",
			Help: "Unix timestamp of the most recently dispatched action.",
		}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m.ops, m.hits, m.misses, m.unknown, m.actionErrors,
		m.connActive, m.connTotal, m.snapshotOK, m.snapshotFail, m.lastOpUnix,
	)
	m.registry = reg
	return m
}

// IncOp records one dispatched action for verb and stamps the last-activity
// gauge using coarsetime, since this runs on every request.
func (m *Metrics) IncOp(verb string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(verb).Inc()
	m.lastOpUnix.Set(float64(coarsetime.Now().Unix()))
}

func (m *Metrics) IncHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) IncMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) IncUnknownAction() {
	if m != nil {
		m.unknown.Inc()
	}
}

func (m *Metrics) IncActionError() {
	if m != nil {
		m.actionErrors.Inc()
	}
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.connActive.Inc()
		m.connTotal.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.connActive.Dec()
	}
}

// SnapshotResult records the outcome of a snapshot attempt. The server
// reports its final shutdown snapshot here; persist.Scheduler's periodic
// attempts are not reported.
func (m *Metrics) SnapshotResult(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.snapshotFail.Inc()
	} else {
		m.snapshotOK.Inc()
	}
}

// Serve exposes this Metrics instance's registry on /metrics at addr,
// blocking until the HTTP server stops.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}
