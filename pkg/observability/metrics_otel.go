package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the auth counters as OpenTelemetry instruments
type OTelMetrics struct {
	authOperations    metric.Int64Counter
	storeErrors       metric.Int64Counter
	sessionsSwept     metric.Int64Counter
	httpRequestLength metric.Float64Histogram
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter("github.com/udea/innosistemas"))
}

// NewOTelMetricsWithMeter creates the instruments on meter
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.authOperations, err = meter.Int64Counter(
		"auth.operations",
		metric.WithDescription("Authentication operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.operations counter: %w", err)
	}

	m.storeErrors, err = meter.Int64Counter(
		"auth.store.errors",
		metric.WithDescription("Failed calls to the session and revocation stores"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.store.errors counter: %w", err)
	}

	m.sessionsSwept, err = meter.Int64Counter(
		"auth.sessions.swept",
		metric.WithDescription("Expired sessions removed by the sweeper"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.sessions.swept counter: %w", err)
	}

	m.httpRequestLength, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.server.duration histogram: %w", err)
	}

	return m, nil
}

// RecordAuthOperation counts one auth outcome
func (m *OTelMetrics) RecordAuthOperation(operation, result string) {
	m.authOperations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}

// RecordStoreError counts a failed store call
func (m *OTelMetrics) RecordStoreError(store, operation string) {
	m.storeErrors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("operation", operation),
	))
}

// RecordSessionSweep counts swept sessions
func (m *OTelMetrics) RecordSessionSweep(removed int, err error) {
	m.sessionsSwept.Add(context.Background(), int64(removed), metric.WithAttributes(
		attribute.Bool("error", err != nil),
	))
}

// RecordHTTPRequest records the duration of one request
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	m.httpRequestLength.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	))
}

// Recorder is implemented by both metric backends
type Recorder interface {
	RecordAuthOperation(operation, result string)
	RecordStoreError(store, operation string)
	RecordSessionSweep(removed int, err error)
}

// Recorders fans every call out to each backend
type Recorders []Recorder

// RecordAuthOperation implements auth.OutcomeRecorder
func (rs Recorders) RecordAuthOperation(operation, result string) {
	for _, r := range rs {
		r.RecordAuthOperation(operation, result)
	}
}

// RecordStoreError implements the blacklist and session error recorders
func (rs Recorders) RecordStoreError(store, operation string) {
	for _, r := range rs {
		r.RecordStoreError(store, operation)
	}
}

// RecordSessionSweep implements session.SweepRecorder
func (rs Recorders) RecordSessionSweep(removed int, err error) {
	for _, r := range rs {
		r.RecordSessionSweep(removed, err)
	}
}
