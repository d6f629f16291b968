// Package runstore defines the run-document repository: the durable,
// incrementally upserted record of one evaluation run. Implementations must
// preserve idempotent merge semantics so re-drives of a partially written run
// are safe: dataset entries merge by (index, target_id), evaluations by
// (index, evaluator, target_id), with retry on write conflicts.
package runstore

import "context"

// Key identifies one run document.
type Key struct {
	ProjectID    string `json:"project_id"`
	ExperimentID string `json:"experiment_id,omitempty"`
	RunID        string `json:"run_id"`
}

// TargetMetadata describes one configured target of a run: the resolved
// display name and, for prompt targets, the model.
type TargetMetadata struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model,omitempty"`
}

// DatasetEntry is the persisted record of one target execution. Predicted is
// present whenever the target produced any output, including falsy values.
type DatasetEntry struct {
	Index    int            `json:"index"`
	TargetID string         `json:"target_id"`
	Entry    map[string]any `json:"entry"`
	// Predicted wraps the target output as {"output": value}. Nil means the
	// target produced no output (or failed before producing one).
	Predicted map[string]any `json:"predicted,omitempty"`
	Cost      *float64       `json:"cost,omitempty"`
	Duration  *int64         `json:"duration,omitempty"`
	Error     *string        `json:"error,omitempty"`
	TraceID   *string        `json:"trace_id,omitempty"`
}

// Evaluation is the persisted record of one evaluator verdict.
type Evaluation struct {
	Evaluator string   `json:"evaluator"`
	Name      string   `json:"name,omitempty"`
	TargetID  string   `json:"target_id"`
	Index     int      `json:"index"`
	Status    string   `json:"status"`
	Score     *float64 `json:"score,omitempty"`
	Label     *string  `json:"label,omitempty"`
	Passed    *bool    `json:"passed,omitempty"`
	Details   *string  `json:"details,omitempty"`
	Cost      *float64 `json:"cost,omitempty"`
}

// Progress is a coalesced progress update carried with a batch.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Batch groups pending writes flushed together.
type Batch struct {
	Dataset     []DatasetEntry `json:"dataset,omitempty"`
	Evaluations []Evaluation   `json:"evaluations,omitempty"`
	Progress    *Progress      `json:"progress,omitempty"`
}

// Empty reports whether the batch carries nothing to write.
func (b *Batch) Empty() bool {
	return b == nil || (len(b.Dataset) == 0 && len(b.Evaluations) == 0 && b.Progress == nil)
}

// Size is the number of pending merge items in the batch.
func (b *Batch) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Dataset) + len(b.Evaluations)
}

// Completion carries the terminal timestamp of a run: FinishedAt for runs
// that ran to completion, StoppedAt for aborted runs. Epoch milliseconds.
type Completion struct {
	FinishedAt *int64 `json:"finished_at,omitempty"`
	StoppedAt  *int64 `json:"stopped_at,omitempty"`
}

// Document is the durable run record.
type Document struct {
	Key

	Targets     []TargetMetadata `json:"targets,omitempty"`
	Dataset     []DatasetEntry   `json:"dataset,omitempty"`
	Evaluations []Evaluation     `json:"evaluations,omitempty"`

	Progress int `json:"progress"`
	Total    int `json:"total"`

	// CreatedAt is epoch milliseconds.
	CreatedAt  int64  `json:"created_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
	StoppedAt  *int64 `json:"stopped_at,omitempty"`
}

// Page is one page of an experiment run listing.
type Page struct {
	Runs []*Document `json:"runs"`
	// NextCursor resumes the listing; empty when exhausted.
	NextCursor string `json:"next_cursor,omitempty"`
}

// Store persists run documents. Upserts are idempotent per key; concurrent
// writers for the same key are tolerated.
type Store interface {
	// Create registers the run document, a no-op when it already exists.
	Create(ctx context.Context, doc *Document) error

	// UpsertResults merges a batch into the run document.
	UpsertResults(ctx context.Context, key Key, batch *Batch) error

	// MarkComplete records the terminal timestamp.
	MarkComplete(ctx context.Context, key Key, completion Completion) error

	// GetByRunID returns the run document, or nil when absent.
	GetByRunID(ctx context.Context, projectID, runID string) (*Document, error)

	// ListByExperiment pages through an experiment's runs ordered by run id.
	ListByExperiment(ctx context.Context, projectID, experimentID, cursor string, limit int) (Page, error)
}
