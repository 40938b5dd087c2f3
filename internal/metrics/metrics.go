package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	TelegramIncomingUpdates *prometheus.CounterVec
	TelegramOutgoing        *prometheus.CounterVec
	MidtransRequests        *prometheus.CounterVec
	MidtransLatency         *prometheus.HistogramVec
	PaymentNotifications    *prometheus.CounterVec
	OrdersFinalized         *prometheus.CounterVec
	DashboardBroadcasts     *prometheus.CounterVec
	Errors                  *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			TelegramIncomingUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_incoming_updates_total",
				Help:      "Total incoming Telegram updates processed.",
			}, []string{"type"}),
			TelegramOutgoing: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_outgoing_total",
				Help:      "Total outgoing Telegram API calls by method.",
			}, []string{"method"}),
			MidtransRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "midtrans_requests_total",
				Help:      "Total Midtrans API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			MidtransLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "midtrans_request_duration_seconds",
				Help:      "Latency distribution for Midtrans API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			PaymentNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_notifications_total",
				Help:      "Total payment webhook notifications by outcome.",
			}, []string{"outcome"}),
			OrdersFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_finalized_total",
				Help:      "Total checkout finalize attempts by outcome.",
			}, []string{"outcome"}),
			DashboardBroadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dashboard_broadcasts_total",
				Help:      "Total dashboard events broadcast by action.",
			}, []string{"action"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.TelegramIncomingUpdates,
			metricsInstance.TelegramOutgoing,
			metricsInstance.MidtransRequests,
			metricsInstance.MidtransLatency,
			metricsInstance.PaymentNotifications,
			metricsInstance.OrdersFinalized,
			metricsInstance.DashboardBroadcasts,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
