// Package metrics expõe contadores Prometheus do core de integração. Todos
// os métodos aceitam receptor nil, então os serviços funcionam sem métricas.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evomanager"

type Collector struct {
	registry *prometheus.Registry

	gatewayDuration   *prometheus.HistogramVec
	activationsTotal  *prometheus.CounterVec
	compensations     *prometheus.CounterVec
	statusCorrections *prometheus.CounterVec
	webhookEvents     *prometheus.CounterVec
	webhookQueueSize  prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		gatewayDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duração das chamadas ao backend Evolution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "outcome"}),

		activationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Ativações de integração por tipo e resultado",
		}, []string{"type", "outcome"}),

		compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Ações compensatórias executadas após falha parcial",
		}, []string{"action", "outcome"}),

		statusCorrections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_corrections_total",
			Help:      "Estados 'connecting' promovidos a 'connected' pela política de correção",
		}, []string{"policy"}),

		webhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Eventos recebidos do Evolution por tipo e resultado",
		}, []string{"type", "outcome"}),

		webhookQueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "webhook_queue_size",
			Help:      "Eventos aguardando processamento",
		}),
	}
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) ObserveGateway(op, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.gatewayDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

func (c *Collector) Activation(integrationType, outcome string) {
	if c == nil {
		return
	}
	c.activationsTotal.WithLabelValues(integrationType, outcome).Inc()
}

func (c *Collector) Compensation(action, outcome string) {
	if c == nil {
		return
	}
	c.compensations.WithLabelValues(action, outcome).Inc()
}

func (c *Collector) StatusCorrection(policy string) {
	if c == nil {
		return
	}
	c.statusCorrections.WithLabelValues(policy).Inc()
}

func (c *Collector) WebhookEvent(eventType, outcome string) {
	if c == nil {
		return
	}
	c.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (c *Collector) SetWebhookQueueSize(n int64) {
	if c == nil {
		return
	}
	c.webhookQueueSize.Set(float64(n))
}
