// Package observability wires logging, metrics, tracing and health probes.
//
// Logging uses logrus. NewLogger builds the process logger and FromContext
// returns a request-scoped one carrying request_id, user and, when a span is
// recording, trace_id and span_id.
//
// Metrics registers the Prometheus collectors (innosistemas_*). It satisfies
// the recorder interfaces of the auth service, the revocation store, the
// session registry and the sweeper, so one value is passed to all of them.
// When OpenTelemetry is enabled the same calls are mirrored into OTLP
// instruments through Recorders.
//
// HealthChecker backs /healthz and /readyz. The database is required for
// readiness; Redis only degrades it.
//
// ShutdownManager runs registered cleanup steps in reverse order when the
// process stops.
package observability
