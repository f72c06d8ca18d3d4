// Package metrics counts served exchanges and can expose them for
// Prometheus scraping.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
	"github.com/DimaGolomozy/rawhttp/internal/transport"
)

// Collector records exchanges into its own registry.
type Collector struct {
	reg      *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// New returns a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		reg: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rawhttp",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Requests answered, by method and status code.",
		}, []string{"method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rawhttp",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Time from accepting a connection to finishing its response.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"method"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rawhttp",
			Subsystem: "server",
			Name:      "failures_total",
			Help:      "Exchanges that failed, by error category.",
		}, []string{"code"}),
	}
}

// Observe implements transport.Observer.
func (c *Collector) Observe(ex transport.Exchange) {
	method := "-"
	if ex.Request != nil {
		method = ex.Request.Method
	}

	if ex.Status != 0 {
		c.requests.WithLabelValues(method, strconv.Itoa(ex.Status)).Inc()
	}
	c.duration.WithLabelValues(method).Observe(ex.Duration.Seconds())
	if ex.Err != nil {
		c.failures.WithLabelValues(errcode.CodeOf(ex.Err).String()).Inc()
	}
}

// Handler serves the collected metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// Expose serves Handler on addr at /metrics until the returned stop
// function is called.
func (c *Collector) Expose(addr string, log zerolog.Logger) (net.Addr, func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errcode.New(errcode.IOException, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return ln.Addr(), srv.Shutdown, nil
}
