package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCreated     prometheus.Counter
	OrdersRejected    *prometheus.CounterVec // by reason
	StockAdjustments  prometheus.Counter
	StatusUpdates     prometheus.Counter
	ReplenishApplied  prometheus.Counter
	ReplenishSkipped  *prometheus.CounterVec // by reason
	ReplenishFailures prometheus.Counter
	POCompleted       prometheus.Counter
	POCreated         prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_orders_created_total"})
	ordersRejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "inventory_orders_rejected_total"}, []string{"reason"})
	adjustments := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_stock_adjustments_total"})
	statusUpdates := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_status_updates_total"})
	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_replenish_applied_total"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "inventory_replenish_skipped_total"}, []string{"reason"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_replenish_failures_total"})
	poCompleted := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_purchase_orders_completed_total"})
	poCreated := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_purchase_orders_created_total"})

	r.MustRegister(ordersCreated, ordersRejected, adjustments, statusUpdates, applied, skipped, failures, poCompleted, poCreated)
	return &Registry{
		reg:               r,
		OrdersCreated:     ordersCreated,
		OrdersRejected:    ordersRejected,
		StockAdjustments:  adjustments,
		StatusUpdates:     statusUpdates,
		ReplenishApplied:  applied,
		ReplenishSkipped:  skipped,
		ReplenishFailures: failures,
		POCompleted:       poCompleted,
		POCreated:         poCreated,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
