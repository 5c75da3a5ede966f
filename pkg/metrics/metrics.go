package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service metrics on a private registry.
type Collector struct {
	registry       *prometheus.Registry
	webhooks       *prometheus.CounterVec
	actions        *prometheus.CounterVec
	casesCreated   *prometheus.CounterVec
	casesCompleted prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		webhooks: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by outcome",
		}, []string{"outcome"}),
		actions: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "order_actions_total",
			Help: "Executed order actions by resolved action",
		}, []string{"action"}),
		casesCreated: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "cases_created_total",
			Help: "Cases created at order placement by initial status",
		}, []string{"status"}),
		casesCompleted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "cases_completed_total",
			Help: "Cases settled by an applied verdict",
		}),
	}
}

// RecordWebhook counts one webhook delivery outcome.
func (c *Collector) RecordWebhook(outcome string) {
	c.webhooks.WithLabelValues(outcome).Inc()
}

// RecordAction counts one executed order action.
func (c *Collector) RecordAction(action string, completed bool) {
	if action == "" {
		action = "none"
	}
	c.actions.WithLabelValues(action).Inc()
	if completed {
		c.casesCompleted.Inc()
	}
}

// RecordCaseCreated counts one case created at placement.
func (c *Collector) RecordCaseCreated(status string) {
	c.casesCreated.WithLabelValues(status).Inc()
}

// Handler exposes the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
