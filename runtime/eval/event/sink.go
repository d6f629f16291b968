package event

import "context"

// Sink delivers evaluation events to an auxiliary consumer over a transport
// (Redis stream, analytics pipeline, message bus). The orchestrator sends
// every public event to each configured sink in stream order, best effort:
// sink errors are logged and never interrupt the run.
//
// Implementations must be safe for sequential reuse across runs; Send is
// never called concurrently for a single run.
type Sink interface {
	// Send publishes one event. The implementation marshals the event into
	// its wire format and handles delivery semantics.
	Send(ctx context.Context, runID string, e Event) error

	// Close releases resources owned by the sink. Idempotent.
	Close(ctx context.Context) error
}
