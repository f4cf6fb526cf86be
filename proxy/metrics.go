package proxy

import (
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/promptgate/pkg/gateway"
)

// metrics is registered on a per-proxy registry so several proxies (tests)
// can live in one process.
type metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	chatStreamsTotal    *prometheus.CounterVec
	chatEventsTotal     *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "promptgate",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "promptgate",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP handlers in seconds, excluding streamed bodies",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method", "status"},
		),
		chatStreamsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "promptgate",
				Subsystem: "chat",
				Name:      "streams_total",
				Help:      "Chat streams by outcome",
			},
			[]string{"outcome"},
		),
		chatEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "promptgate",
				Subsystem: "chat",
				Name:      "events_total",
				Help:      "SSE events delivered to chat clients",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.chatStreamsTotal,
		m.chatEventsTotal,
	)
	return m
}

// middleware instruments requests. The route pattern is used as the path
// label to keep cardinality bounded. Label values are retained by the
// collectors, so anything backed by the request buffer is copied.
func (m *metrics) middleware(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := strconv.Itoa(statusOf(c, err))
	path := c.Route().Path
	method := utils.CopyString(c.Method())

	m.httpRequestsTotal.WithLabelValues(path, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(path, method, status).Observe(time.Since(start).Seconds())
	return err
}

func (m *metrics) handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *metrics) observeEvent(ev gateway.Event) {
	m.chatEventsTotal.WithLabelValues(ev.Kind()).Inc()
}

func (m *metrics) observeStream(s gateway.Summary) {
	m.chatStreamsTotal.WithLabelValues(outcome(s)).Inc()
}

func outcome(s gateway.Summary) string {
	if s.State == gateway.StateDone && s.Truncated {
		return "truncated"
	}
	return s.State.String()
}
