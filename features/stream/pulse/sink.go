// Package pulse exposes an event.Sink implementation that publishes
// evaluation events to goa.design/pulse streams. Services build a Redis
// client, pass it to the Pulse client, and hand the resulting sink to the
// orchestrator; consumers subscribe to "eval/run/<runId>".
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crucible-ai/crucible/features/stream/pulse/clients/pulse"
	"github.com/crucible-ai/crucible/runtime/eval/event"
)

type (
	// Options configures the Pulse sink.
	Options struct {
		// Client is the Pulse client used to publish events. Required.
		Client pulse.Client
		// StreamID derives the target Pulse stream from a run id. Defaults to
		// "eval/run/<runId>".
		StreamID func(runID string) (string, error)
	}

	// Sink publishes evaluation events into Pulse streams. Safe for
	// concurrent Send calls.
	Sink struct {
		client   pulse.Client
		streamID func(runID string) (string, error)
	}

	// envelope wraps evaluation events for transmission over Pulse streams.
	envelope struct {
		// Type identifies the event kind (e.g. "target_result").
		Type string `json:"type"`
		// RunID links the event to its run.
		RunID string `json:"run_id"`
		// Timestamp records when the event was published (UTC).
		Timestamp time.Time `json:"timestamp"`
		// Payload is the JSON-encoded event.
		Payload json.RawMessage `json:"payload"`
	}
)

// NewSink constructs a Pulse-backed event sink.
func NewSink(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	streamID := opts.StreamID
	if streamID == nil {
		streamID = defaultStreamID
	}
	return &Sink{client: opts.Client, streamID: streamID}, nil
}

// Send publishes the event to the run's Pulse stream.
func (s *Sink) Send(ctx context.Context, runID string, e event.Event) error {
	name, err := s.streamID(runID)
	if err != nil {
		return err
	}
	handle, err := s.client.Stream(name)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	env := envelope{
		Type:      string(e.Type()),
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if _, err := handle.Add(ctx, env.Type, raw); err != nil {
		return err
	}
	return nil
}

// Close releases resources owned by the sink.
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func defaultStreamID(runID string) (string, error) {
	if runID == "" {
		return "", errors.New("run id is required")
	}
	return fmt.Sprintf("eval/run/%s", runID), nil
}
