package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slok/sbxhub/internal/metrics"
	"github.com/slok/sbxhub/internal/model"
)

const namespace = "sbxhub"

// RecorderConfig is the configuration for the Prometheus recorder.
type RecorderConfig struct {
	// Registry is where the metrics are registered, a new one is created when missing.
	Registry *prometheus.Registry
	// Buckets are the operation duration histogram buckets.
	Buckets []float64
}

func (c *RecorderConfig) defaults() error {
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
	if len(c.Buckets) == 0 {
		c.Buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}
	return nil
}

// Recorder is the Prometheus implementation of metrics.Recorder.
type Recorder struct {
	registry          *prometheus.Registry
	operationDuration *prometheus.HistogramVec
	sandboxes         *prometheus.GaugeVec
}

var _ metrics.Recorder = &Recorder{}

// NewRecorder creates and registers the lifecycle metrics.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Recorder{
		registry: cfg.Registry,
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "operation_duration_seconds",
				Help:      "Duration of the sandbox lifecycle operations",
				Buckets:   cfg.Buckets,
			},
			[]string{"backend", "operation", "outcome"},
		),
		sandboxes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sandboxes",
				Help:      "Number of known sandboxes by backend and status",
			},
			[]string{"backend", "status"},
		),
	}

	for _, c := range []prometheus.Collector{r.operationDuration, r.sandboxes} {
		if err := cfg.Registry.Register(c); err != nil {
			return nil, fmt.Errorf("could not register metric: %w", err)
		}
	}

	return r, nil
}

// ObserveOperation implements metrics.Recorder.
func (r *Recorder) ObserveOperation(_ context.Context, backend model.Backend, op string, outcome string, duration time.Duration) {
	r.operationDuration.WithLabelValues(string(backend), op, outcome).Observe(duration.Seconds())
}

// SetSandboxCount implements metrics.Recorder.
func (r *Recorder) SetSandboxCount(_ context.Context, backend model.Backend, status model.SandboxStatus, n int) {
	r.sandboxes.WithLabelValues(string(backend), string(status)).Set(float64(n))
}

// Handler returns the HTTP handler that serves the registered metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
