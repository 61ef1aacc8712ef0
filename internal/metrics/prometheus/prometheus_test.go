package prometheus_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/sbxhub/internal/metrics"
	"github.com/slok/sbxhub/internal/metrics/prometheus"
	"github.com/slok/sbxhub/internal/model"
)

func TestRecorder(t *testing.T) {
	tests := map[string]struct {
		record     func(r metrics.Recorder)
		expMetrics []string
	}{
		"Observing operations should be exposed as histograms": {
			record: func(r metrics.Recorder) {
				r.ObserveOperation(context.Background(), model.BackendLocal, "create", metrics.OutcomeSuccess, 30*time.Millisecond)
				r.ObserveOperation(context.Background(), model.BackendLocal, "create", metrics.OutcomeSuccess, 3*time.Second)
				r.ObserveOperation(context.Background(), model.BackendDocker, "terminate", string(model.OutcomeStateUnknown), time.Second)
			},
			expMetrics: []string{
				`sbxhub_lifecycle_operation_duration_seconds_count{backend="local",operation="create",outcome="success"} 2`,
				`sbxhub_lifecycle_operation_duration_seconds_bucket{backend="local",operation="create",outcome="success",le="0.05"} 1`,
				`sbxhub_lifecycle_operation_duration_seconds_count{backend="docker",operation="terminate",outcome="state-unknown"} 1`,
			},
		},

		"Setting sandbox counts should be exposed as gauges": {
			record: func(r metrics.Recorder) {
				r.SetSandboxCount(context.Background(), model.BackendDocker, model.SandboxStatusRunning, 3)
				r.SetSandboxCount(context.Background(), model.BackendDocker, model.SandboxStatusRunning, 5)
				r.SetSandboxCount(context.Background(), model.BackendProcess, model.SandboxStatusFailed, 1)
			},
			expMetrics: []string{
				`sbxhub_sandboxes{backend="docker",status="running"} 5`,
				`sbxhub_sandboxes{backend="process",status="failed"} 1`,
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			rec, err := prometheus.NewRecorder(prometheus.RecorderConfig{})
			require.NoError(t, err)

			test.record(rec)

			w := httptest.NewRecorder()
			rec.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
			body, err := io.ReadAll(w.Result().Body)
			require.NoError(t, err)

			for _, exp := range test.expMetrics {
				assert.Contains(t, string(body), exp)
			}
		})
	}
}
