package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	Sends           *prometheus.CounterVec
	Gifts           *prometheus.CounterVec
	MailboxTakes    *prometheus.CounterVec
	PushRequests    *prometheus.CounterVec
	PushLatency     *prometheus.HistogramVec
	PaymentRequests *prometheus.CounterVec
	PaymentLatency  *prometheus.HistogramVec
	WebhookEvents   *prometheus.CounterVec
	Errors          *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sends_total",
				Help:      "Total item send attempts by outcome.",
			}, []string{"outcome"}),
			Gifts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gifts_total",
				Help:      "Total coin gift attempts by outcome.",
			}, []string{"outcome"}),
			MailboxTakes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mailbox_takes_total",
				Help:      "Total mailbox reads by result (delivered or empty).",
			}, []string{"result"}),
			PushRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_requests_total",
				Help:      "Total push provider requests by status.",
			}, []string{"status"}),
			PushLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "push_request_duration_seconds",
				Help:      "Latency distribution for push provider requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
			PaymentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_requests_total",
				Help:      "Total payment provider API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			PaymentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "payment_request_duration_seconds",
				Help:      "Latency distribution for payment provider requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Total payment webhook events by result.",
			}, []string{"result"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.Sends,
			metricsInstance.Gifts,
			metricsInstance.MailboxTakes,
			metricsInstance.PushRequests,
			metricsInstance.PushLatency,
			metricsInstance.PaymentRequests,
			metricsInstance.PaymentLatency,
			metricsInstance.WebhookEvents,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
