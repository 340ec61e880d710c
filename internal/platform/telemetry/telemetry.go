// Package telemetry exposes Prometheus metrics for the HTTP server and the
// document store. Each Provider owns its registry so tests and multiple
// servers in one process never collide.
package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medvault"

// Config holds the telemetry settings.
type Config struct {
	ServiceName    string
	Environment    string
	MetricsEnabled *bool // nil = use default (true)
	// RuntimeMetrics adds the Go runtime and process collectors.
	RuntimeMetrics bool
}

func (c *Config) metricsOn() bool {
	if c.MetricsEnabled == nil {
		return true
	}
	return *c.MetricsEnabled
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "medvault"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// BoolPtr is a helper to create a *bool for Config fields.
func BoolPtr(b bool) *bool {
	return &b
}

// Provider records metrics into a private registry.
type Provider struct {
	cfg      Config
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	activeRequests prometheus.Gauge
	storeDuration  *prometheus.HistogramVec
	corruptReads   *prometheus.CounterVec
}

func NewProvider(cfg Config) *Provider {
	cfg.applyDefaults()
	constLabels := prometheus.Labels{"service": cfg.ServiceName, "env": cfg.Environment}

	p := &Provider{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "route"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "http_active_requests",
			Help:        "Number of HTTP requests in flight",
			ConstLabels: constLabels,
		}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "store_operation_duration_seconds",
			Help:        "Duration of document store operations in seconds",
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			ConstLabels: constLabels,
		}, []string{"op", "collection", "result"}),
		corruptReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "store_corrupt_reads_total",
			Help:        "Stored collections that failed to decode and were replaced by the default",
			ConstLabels: constLabels,
		}, []string{"collection"}),
	}

	p.registry.MustRegister(p.httpRequests, p.httpDuration, p.activeRequests, p.storeDuration, p.corruptReads)
	if cfg.RuntimeMetrics {
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return p
}

// Registry returns the registry metrics are recorded into.
func (p *Provider) Registry() *prometheus.Registry { return p.registry }

// ObserveOperation records the duration of one store operation.
func (p *Provider) ObserveOperation(op, collection string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.storeDuration.WithLabelValues(op, collection, result).Observe(d.Seconds())
}

// ObserveCorruptRead counts a collection that could not be decoded.
func (p *Provider) ObserveCorruptRead(collection string) {
	p.corruptReads.WithLabelValues(collection).Inc()
}

// MetricsMiddleware records request counts and durations by route pattern.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.metricsOn() {
				return next(c)
			}

			p.activeRequests.Inc()
			defer p.activeRequests.Dec()

			start := time.Now()
			req := c.Request()

			err := next(c)

			// Use route pattern, not actual path.
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}

			p.httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(statusOf(c, err))).Inc()
			p.httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// statusOf returns the status the response will carry once err has been
// handled by echo's error handler.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// PrometheusHandler serves the registry in the Prometheus text format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		Registry: p.registry,
	}))
}
