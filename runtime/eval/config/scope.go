// Package config holds the evaluation data model: execution scopes, target
// and evaluator configurations, input mappings, dataset schemas, and the
// loaded reference records (prompts, agents, evaluators) that callers resolve
// before handing a request to the orchestrator.
//
// The types here are plain data. Cells are generated from them at
// orchestration start and never mutated afterwards.
package config

// ScopeType discriminates the execution scope union.
type ScopeType string

const (
	// ScopeFull runs every dataset row against every configured target.
	ScopeFull ScopeType = "full"
	// ScopeRows runs the given rows against every configured target.
	ScopeRows ScopeType = "rows"
	// ScopeTarget runs every dataset row against a single target.
	ScopeTarget ScopeType = "target"
	// ScopeCell runs a single (row, target) cell.
	ScopeCell ScopeType = "cell"
	// ScopeEvaluator reruns a single evaluator for one cell, optionally
	// reusing a previously computed target output and trace.
	ScopeEvaluator ScopeType = "evaluator"
)

// Scope selects the subset of cells a run executes. Only the fields relevant
// to the given Type are consulted.
type Scope struct {
	Type ScopeType `json:"type"`

	// RowIndices selects dataset rows for ScopeRows. Indices outside the
	// dataset bounds are ignored; caller order is preserved.
	RowIndices []int `json:"rowIndices,omitempty"`

	// RowIndex selects the dataset row for ScopeCell and ScopeEvaluator.
	RowIndex int `json:"rowIndex,omitempty"`

	// TargetID selects the target for ScopeTarget, ScopeCell and
	// ScopeEvaluator.
	TargetID string `json:"targetId,omitempty"`

	// EvaluatorID selects the evaluator for ScopeEvaluator.
	EvaluatorID string `json:"evaluatorId,omitempty"`

	// TargetOutput, when non-nil on ScopeEvaluator, is the previously
	// computed target output; the target is not re-executed.
	TargetOutput any `json:"targetOutput,omitempty"`

	// TraceID, when set on ScopeEvaluator, is reused so the evaluator span
	// appends to the existing trace.
	TraceID string `json:"traceId,omitempty"`
}
