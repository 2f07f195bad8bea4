package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestOTelMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewOTelMetricsWithMeter(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordAuthOperation("login", "success")
	m.RecordAuthOperation("login", "invalid_credentials")
	m.RecordStoreError("session", "register")
	m.RecordSessionSweep(4, nil)
	m.RecordHTTPRequest(context.Background(), "POST", "/graphql", 200, 15*time.Millisecond)

	data := collect(t, reader)

	ops, ok := data["auth.operations"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, ops.DataPoints, 2)

	swept, ok := data["auth.sessions.swept"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, swept.DataPoints, 1)
	assert.Equal(t, int64(4), swept.DataPoints[0].Value)

	_, ok = data["http.server.duration"].(metricdata.Histogram[float64])
	assert.True(t, ok)
}

type countingRecorder struct {
	auth, store, sweeps int
}

func (c *countingRecorder) RecordAuthOperation(string, string) { c.auth++ }
func (c *countingRecorder) RecordStoreError(string, string) { c.store++ }
func (c *countingRecorder) RecordSessionSweep(int, error) { c.sweeps++ }

func TestRecorders_FanOut(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	rs := Recorders{a, b}

	rs.RecordAuthOperation("login", "success")
	rs.RecordStoreError("blacklist", "check")
	rs.RecordSessionSweep(1, errors.New("x"))

	for _, c := range []*countingRecorder{a, b} {
		assert.Equal(t, 1, c.auth)
		assert.Equal(t, 1, c.store)
		assert.Equal(t, 1, c.sweeps)
	}
}
