package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's collectors. A nil *Registry is valid and
// records nothing.
type Registry struct {
	gatherer prometheus.Gatherer

	OrdersCreated      prometheus.Counter
	StatusTransitions  *prometheus.CounterVec
	PaymentIntents     *prometheus.CounterVec
	PaymentsReconciled *prometheus.CounterVec
	WebhookEvents      *prometheus.CounterVec
	RealtimeClients    prometheus.Gauge
	RealtimeDropped    prometheus.Counter
	HTTPDuration       *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegisterer(reg, reg)
}

func NewWithRegisterer(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		gatherer: gatherer,
		OrdersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "autoshop_orders_created_total",
			Help: "Orders created.",
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoshop_order_status_transitions_total",
			Help: "Order work status changes.",
		}, []string{"from", "to"}),
		PaymentIntents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoshop_payment_intents_total",
			Help: "Payment intents created, by gateway.",
		}, []string{"gateway"}),
		PaymentsReconciled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoshop_payments_reconciled_total",
			Help: "Payments moved to completed, by path.",
		}, []string{"source"}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoshop_webhook_events_total",
			Help: "Processor webhook deliveries, by event type and outcome.",
		}, []string{"type", "outcome"}),
		RealtimeClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "autoshop_realtime_clients",
			Help: "Connected websocket clients.",
		}),
		RealtimeDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "autoshop_realtime_dropped_clients_total",
			Help: "Websocket clients disconnected for falling behind.",
		}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoshop_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (r *Registry) OrderCreated() {
	if r == nil {
		return
	}
	r.OrdersCreated.Inc()
}

func (r *Registry) StatusChanged(from, to string) {
	if r == nil {
		return
	}
	r.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (r *Registry) IntentCreated(gateway string) {
	if r == nil {
		return
	}
	r.PaymentIntents.WithLabelValues(gateway).Inc()
}

func (r *Registry) PaymentReconciled(source string) {
	if r == nil {
		return
	}
	r.PaymentsReconciled.WithLabelValues(source).Inc()
}

func (r *Registry) Webhook(eventType, outcome string) {
	if r == nil {
		return
	}
	r.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (r *Registry) ClientConnected() {
	if r == nil {
		return
	}
	r.RealtimeClients.Inc()
}

func (r *Registry) ClientDisconnected(dropped bool) {
	if r == nil {
		return
	}
	r.RealtimeClients.Dec()
	if dropped {
		r.RealtimeDropped.Inc()
	}
}

// Middleware records request latency by matched route.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.HTTPDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil || r.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
