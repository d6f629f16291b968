// Package event defines the public evaluation event stream: the ordered
// sequence of variants the orchestrator emits while driving a run. Events are
// immutable after construction and safe to send concurrently through a Sink.
//
// The sequence contract: exactly one ExecutionStarted opens the stream, and
// exactly one of Done or Stopped closes it. Within a cell, CellStarted
// precedes all results attributed to that cell and the cell's Progress event
// follows its final sub-event. Across cells, events interleave in arrival
// order.
package event

// Type enumerates event payload flavors.
type Type string

const (
	// TypeExecutionStarted opens the stream; always first.
	TypeExecutionStarted Type = "execution_started"
	// TypeCellStarted marks the beginning of one (row, target) cell.
	TypeCellStarted Type = "cell_started"
	// TypeTargetResult carries a target's output or failure.
	TypeTargetResult Type = "target_result"
	// TypeEvaluatorResult carries one evaluator verdict.
	TypeEvaluatorResult Type = "evaluator_result"
	// TypeProgress reports finished cell counts; one per finished cell.
	TypeProgress Type = "progress"
	// TypeError reports a cell-level failure that is not a target or
	// evaluator result.
	TypeError Type = "error"
	// TypeStopped terminates an aborted run; never followed by Done.
	TypeStopped Type = "stopped"
	// TypeDone terminates a run that ran to completion.
	TypeDone Type = "done"
)

// Event is the interface all evaluation events implement. Consumers use type
// switches to access variant-specific fields:
//
//	switch e := evt.(type) {
//	case *event.TargetResult:
//	    use(e.Output)
//	case *event.Done:
//	    use(e.Summary)
//	}
type Event interface {
	// Type returns the event type constant.
	Type() Type
}

// ExecutionStarted is emitted exactly once, first, when a run begins.
type ExecutionStarted struct {
	// RunID identifies the run: caller-supplied or a generated three-word
	// slug.
	RunID string `json:"runId"`
	// Total is the number of cells generated for the run's scope.
	Total int `json:"total"`
}

// CellStarted is emitted when a cell begins executing, before any result
// attributed to it.
type CellStarted struct {
	RowIndex int    `json:"rowIndex"`
	TargetID string `json:"targetId"`
}

// TargetResult carries the outcome of one target execution.
type TargetResult struct {
	RowIndex int    `json:"rowIndex"`
	TargetID string `json:"targetId"`
	// Output is the extracted target output. Nil means the target produced
	// none; falsy values such as false are valid outputs and are preserved.
	Output any `json:"output,omitempty"`
	// Cost is the backend-reported execution cost, when available.
	Cost *Cost `json:"cost,omitempty"`
	// DurationMS is backend wall time (finished_at - started_at) in
	// milliseconds, when both timestamps are present.
	DurationMS *int64 `json:"duration,omitempty"`
	// TraceID threads the target span and any subsequent evaluator spans of
	// the same cell.
	TraceID string `json:"traceId,omitempty"`
	// Error is the backend failure message, when the target failed.
	Error string `json:"error,omitempty"`
}

// EvaluatorResult carries one evaluator verdict for a cell.
type EvaluatorResult struct {
	RowIndex    int    `json:"rowIndex"`
	TargetID    string `json:"targetId"`
	EvaluatorID string `json:"evaluatorId"`
	Result      Result `json:"result"`
}

// Progress reports how many cells have finished. Completed counts cells, not
// sub-events, and includes failed cells; it reaches Total exactly when every
// non-aborted cell has finished.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Error reports a cell-level failure. RowIndex and TargetID are set when the
// failure is attributable to a cell.
type Error struct {
	Message     string `json:"message"`
	RowIndex    *int   `json:"rowIndex,omitempty"`
	TargetID    string `json:"targetId,omitempty"`
	EvaluatorID string `json:"evaluatorId,omitempty"`
}

// StopReason explains why a run stopped early.
type StopReason string

const (
	// StopUser means an abort was requested through the coordinator.
	StopUser StopReason = "user"
	// StopError means the orchestrator stopped on an internal failure.
	StopError StopReason = "error"
)

// Stopped terminates an aborted run.
type Stopped struct {
	Reason StopReason `json:"reason"`
}

// Done terminates a run that ran to completion, with or without per-cell
// failures.
type Done struct {
	Summary Summary `json:"summary"`
}

// Summary aggregates the outcome of a completed run.
type Summary struct {
	RunID          string `json:"runId"`
	TotalCells     int    `json:"totalCells"`
	CompletedCells int    `json:"completedCells"`
	FailedCells    int    `json:"failedCells"`
	// DurationMS is wall time from ExecutionStarted to Done in milliseconds.
	DurationMS int64 `json:"duration"`
	// StartedAt and FinishedAt are Unix epoch milliseconds.
	StartedAt  int64 `json:"startedAt"`
	FinishedAt int64 `json:"finishedAt"`
}

// Cost is a monetary amount attributed to an execution.
type Cost struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// Type implements Event.
func (ExecutionStarted) Type() Type { return TypeExecutionStarted }

// Type implements Event.
func (CellStarted) Type() Type { return TypeCellStarted }

// Type implements Event.
func (TargetResult) Type() Type { return TypeTargetResult }

// Type implements Event.
func (EvaluatorResult) Type() Type { return TypeEvaluatorResult }

// Type implements Event.
func (Progress) Type() Type { return TypeProgress }

// Type implements Event.
func (Error) Type() Type { return TypeError }

// Type implements Event.
func (Stopped) Type() Type { return TypeStopped }

// Type implements Event.
func (Done) Type() Type { return TypeDone }
