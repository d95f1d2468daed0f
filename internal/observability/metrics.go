package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API, sweeps and workers.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	lettersComposedTotal   *prometheus.CounterVec
	draftingDuration       *prometheus.HistogramVec
	followUpTransitions    *prometheus.CounterVec
	automationEntriesTotal *prometheus.CounterVec
	sweepsTotal            *prometheus.CounterVec
	sweepDuration          *prometheus.HistogramVec
	riskSignalsTotal       *prometheus.CounterVec
	workerInflight         *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dispute_autopilot",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dispute_autopilot",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		lettersComposedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dispute_autopilot",
				Name:      "letters_composed_total",
				Help:      "Total number of dispute letters composed by kind and result.",
			},
			[]string{"kind", "result"},
		),
		draftingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dispute_autopilot",
				Name:      "drafting_duration_seconds",
				Help:      "Drafting service call duration in seconds grouped by provider.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"provider"},
		),
		followUpTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dispute_autopilot",
				Name:      "followup_transitions_total",
				Help:      "Total number of follow-up status transitions by channel and target status.",
			},
			[]string{"channel", "status"},
		),
		automationEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dispute_autopilot",
				Name:      "automation_log_entries_total",
				Help:      "Total number of automation log entries written by action.",
			},
			[]string{"action"},
		),
		sweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dispute_autopilot",
				Name:      "sweeps_total",
				Help:      "Total number of sweeps by kind and result.",
			},
			[]string{"sweep", "result"},
		),
		sweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dispute_autopilot",
				Name:      "sweep_duration_seconds",
				Help:      "Sweep duration in seconds grouped by kind.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"sweep"},
		),
		riskSignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dispute_autopilot",
				Name:      "risk_signals_total",
				Help:      "Total number of risk signals raised by trigger.",
			},
			[]string{"trigger"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "dispute_autopilot",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight worker operations grouped by queue.",
			},
			[]string{"queue"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.lettersComposedTotal,
		m.draftingDuration,
		m.followUpTransitions,
		m.automationEntriesTotal,
		m.sweepsTotal,
		m.sweepDuration,
		m.riskSignalsTotal,
		m.workerInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

// IncLetterComposed counts a composition attempt. kind is "initial" or "escalation".
func (m *Metrics) IncLetterComposed(kind string, result string) {
	if m == nil {
		return
	}
	m.lettersComposedTotal.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

func (m *Metrics) ObserveDraftingDuration(provider string, duration time.Duration) {
	if m == nil {
		return
	}
	m.draftingDuration.WithLabelValues(normalizeLabel(provider)).Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncFollowUpTransition(channel string, status string) {
	if m == nil {
		return
	}
	m.followUpTransitions.WithLabelValues(normalizeLabel(channel), normalizeLabel(status)).Inc()
}

func (m *Metrics) IncAutomationEntry(action string) {
	if m == nil {
		return
	}
	m.automationEntriesTotal.WithLabelValues(normalizeLabel(action)).Inc()
}

// ObserveSweep records one sweep run. result is "completed", "paused" or "skipped".
func (m *Metrics) ObserveSweep(sweep string, result string, duration time.Duration) {
	if m == nil {
		return
	}
	sweepLabel := normalizeLabel(sweep)
	m.sweepsTotal.WithLabelValues(sweepLabel, normalizeLabel(result)).Inc()
	m.sweepDuration.WithLabelValues(sweepLabel).Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncRiskSignal(trigger string) {
	if m == nil {
		return
	}
	m.riskSignalsTotal.WithLabelValues(normalizeLabel(trigger)).Inc()
}

func (m *Metrics) IncWorkerInFlight(queue string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(queue)).Inc()
}

func (m *Metrics) DecWorkerInFlight(queue string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(queue)).Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func nonNegativeSeconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return d.Seconds()
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
