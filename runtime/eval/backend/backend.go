// Package backend defines the component-execution contract the orchestrator
// consumes. The remote backend actually runs prompts, agents, HTTP calls and
// evaluators; the orchestrator only submits execute-component requests and
// observes the resulting event stream.
package backend

import (
	"context"

	"github.com/crucible-ai/crucible/runtime/eval/workflow"
)

// EventStateChange is the only backend event type the orchestrator acts on.
const EventStateChange = "component_state_change"

// Status enumerates backend component execution states.
type Status string

const (
	// StatusRunning is a non-terminal heartbeat; ignored by the mapper.
	StatusRunning Status = "running"
	// StatusSuccess means the component produced outputs.
	StatusSuccess Status = "success"
	// StatusError means the component failed.
	StatusError Status = "error"
)

// ExecuteRequest submits one node of a workflow for execution. Inputs carry
// the resolved input values keyed by input identifier.
type ExecuteRequest struct {
	TraceID  string             `json:"trace_id"`
	Workflow *workflow.Workflow `json:"workflow"`
	NodeID   string             `json:"node_id"`
	Inputs   map[string]any     `json:"inputs,omitempty"`
}

// Timestamps carries backend-side execution timestamps in epoch
// milliseconds.
type Timestamps struct {
	StartedAt  *int64 `json:"started_at,omitempty"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
}

// ExecutionState is the state snapshot attached to a component event.
type ExecutionState struct {
	Status  Status         `json:"status"`
	Outputs map[string]any `json:"outputs,omitempty"`
	Cost    *float64       `json:"cost,omitempty"`

	Timestamps *Timestamps `json:"timestamps,omitempty"`
	TraceID    string      `json:"trace_id,omitempty"`

	// Error is the execution-level failure message. For evaluators it wins
	// over any payload-level error carried in Outputs.
	Error *string `json:"error,omitempty"`
}

// Payload is the body of a backend event.
type Payload struct {
	ComponentID    string          `json:"component_id"`
	ExecutionState *ExecutionState `json:"execution_state,omitempty"`
}

// Event is one entry of the backend's streaming response.
type Event struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Client is the consumer-side contract of the remote execution backend.
type Client interface {
	// ExecuteComponent submits one node execution and returns a stream of
	// events the backend closes when it terminates. The backend must honor
	// cancellation by consulting aborted between emissions; it may abort
	// mid-stream. aborted is never nil.
	ExecuteComponent(ctx context.Context, req *ExecuteRequest, aborted func() bool) (<-chan *Event, error)
}
