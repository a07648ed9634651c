// Package tracing provides OpenTelemetry tracing integration.
//
// It exposes a single process-wide tracer named "crawlctl" through
// GetTracer. The package does not install a tracer provider or exporter,
// and does not instrument HTTP or database calls on its own; spans are
// recorded only where callers start them, and are exported only if the
// process configures a global provider elsewhere.
//
// Example usage:
//
//	import "crawlctl/internal/observability/tracing"
//
//	func processRequest(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "process-request")
//	    defer span.End()
//	    // ... process request ...
//	}
package tracing
