// Package metrics exposes Prometheus counters for stock movements and the
// storage accrual job.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warehouse"

// Recorder holds the application counters. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	receivedRows   *prometheus.CounterVec
	shippedItems   *prometheus.CounterVec
	restoredItems  prometheus.Counter
	deletedItems   *prometheus.CounterVec
	catalogLookups *prometheus.CounterVec
	accrualRuns    *prometheus.CounterVec
}

// New registers the counters on a private registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		receivedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_rows_total",
			Help:      "Stock rows created by receipts.",
		}, []string{"partition"}),
		shippedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipped_items_total",
			Help:      "Stock rows moved to the archive by shipments.",
		}, []string{"partition"}),
		restoredItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restored_items_total",
			Help:      "Archived rows returned to stock.",
		}),
		deletedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deleted_items_total",
			Help:      "Rows permanently deleted, by table.",
		}, []string{"table"}),
		catalogLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_lookups_total",
			Help:      "Catalog snapshot attempts, by result.",
		}, []string{"result"}),
		accrualRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accrual_runs_total",
			Help:      "Storage accrual job runs, by outcome.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(
		r.receivedRows,
		r.shippedItems,
		r.restoredItems,
		r.deletedItems,
		r.catalogLookups,
		r.accrualRuns,
		collectors.NewGoCollector(),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) RowsReceived(partition string, n int) {
	if r == nil {
		return
	}
	r.receivedRows.WithLabelValues(partition).Add(float64(n))
}

func (r *Recorder) ItemsShipped(partition string, n int) {
	if r == nil {
		return
	}
	r.shippedItems.WithLabelValues(partition).Add(float64(n))
}

func (r *Recorder) ItemsRestored(n int) {
	if r == nil {
		return
	}
	r.restoredItems.Add(float64(n))
}

func (r *Recorder) ItemsDeleted(table string, n int) {
	if r == nil {
		return
	}
	r.deletedItems.WithLabelValues(table).Add(float64(n))
}

func (r *Recorder) CatalogLookup(online bool) {
	if r == nil {
		return
	}
	result := "online"
	if !online {
		result = "offline"
	}
	r.catalogLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) AccrualRun(outcome string) {
	if r == nil {
		return
	}
	r.accrualRuns.WithLabelValues(outcome).Inc()
}
