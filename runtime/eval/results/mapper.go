package results

import (
	"github.com/crucible-ai/crucible/runtime/eval/backend"
	"github.com/crucible-ai/crucible/runtime/eval/event"
	"github.com/crucible-ai/crucible/runtime/eval/workflow"
)

// Mapper translates backend component events into public evaluation events
// for one run. It routes on component id: target node ids map to target
// results, composite "{targetId}.{evaluatorId}" ids map to evaluator results,
// and the entry node is ignored.
type Mapper struct {
	targets map[string]struct{}
	strip   map[string]struct{}
}

// NewMapper builds a mapper routing the given target node ids, stripping
// scores for the evaluator ids in strip. strip may be nil.
func NewMapper(targetNodeIDs []string, strip map[string]struct{}) *Mapper {
	targets := make(map[string]struct{}, len(targetNodeIDs))
	for _, id := range targetNodeIDs {
		targets[id] = struct{}{}
	}
	if strip == nil {
		strip = map[string]struct{}{}
	}
	return &Mapper{targets: targets, strip: strip}
}

// Map translates one backend event for the given row. Returns nil for events
// that produce no public output: non-state-change events, entry node events,
// and non-terminal statuses.
func (m *Mapper) Map(rowIndex int, ev *backend.Event) event.Event {
	if ev == nil || ev.Type != backend.EventStateChange {
		return nil
	}
	componentID := ev.Payload.ComponentID
	state := ev.Payload.ExecutionState
	if componentID == workflow.EntryNodeID || state == nil {
		return nil
	}
	if state.Status != backend.StatusSuccess && state.Status != backend.StatusError {
		return nil
	}

	if _, isTarget := m.targets[componentID]; isTarget {
		return m.targetResult(rowIndex, componentID, state)
	}
	id := ParseNodeID(componentID)
	if id.EvaluatorID == "" {
		// Unknown dotless component; not ours.
		return nil
	}
	return m.evaluatorResult(rowIndex, id, state)
}

func (m *Mapper) targetResult(rowIndex int, targetID string, state *backend.ExecutionState) event.Event {
	res := &event.TargetResult{
		RowIndex: rowIndex,
		TargetID: targetID,
		TraceID:  state.TraceID,
	}
	if state.Status == backend.StatusError {
		if state.Error != nil {
			res.Error = *state.Error
		} else {
			res.Error = "execution failed"
		}
	} else {
		res.Output = ExtractTargetOutput(state.Outputs)
	}
	if state.Cost != nil {
		res.Cost = &event.Cost{Currency: "USD", Amount: *state.Cost}
	}
	res.DurationMS = duration(state.Timestamps)
	return res
}

func (m *Mapper) evaluatorResult(rowIndex int, id NodeID, state *backend.ExecutionState) event.Event {
	res := &event.EvaluatorResult{
		RowIndex:    rowIndex,
		TargetID:    id.TargetID,
		EvaluatorID: id.EvaluatorID,
		Result:      m.normalize(id.EvaluatorID, state),
	}
	return res
}

// normalize derives the verdict from the two error sources and the weak-typed
// payload. Execution-level errors win over payload-level ones.
func (m *Mapper) normalize(evaluatorID string, state *backend.ExecutionState) event.Result {
	if state.Status == backend.StatusError || state.Error != nil {
		details := "execution failed"
		if state.Error != nil {
			details = *state.Error
		}
		return event.ErrorResult("EvaluatorError", details)
	}

	outputs := state.Outputs
	if status, _ := outputs["status"].(string); status == "error" {
		details, _ := outputs["details"].(string)
		errorType, _ := outputs["error_type"].(string)
		if errorType == "" {
			errorType = "EvaluatorError"
		}
		res := event.ErrorResult(errorType, details)
		res.Traceback = traceback(outputs["traceback"])
		return res
	} else if status == "skipped" {
		res := event.Result{Status: event.StatusSkipped}
		if details, ok := outputs["details"].(string); ok {
			res.Details = &details
		}
		return res
	}

	res := event.Result{Status: event.StatusProcessed}
	res.Score = CoerceScore(outputs["score"])
	res.Passed = CoercePassed(outputs["passed"])
	if label, ok := outputs["label"].(string); ok {
		res.Label = &label
	}
	if details, ok := outputs["details"].(string); ok {
		res.Details = &details
	}
	if state.Cost != nil {
		res.Cost = &event.Cost{Currency: "USD", Amount: *state.Cost}
	}
	if _, stripped := m.strip[evaluatorID]; stripped {
		res.Score = nil
	}
	return res
}

func duration(ts *backend.Timestamps) *int64 {
	if ts == nil || ts.StartedAt == nil || ts.FinishedAt == nil {
		return nil
	}
	d := *ts.FinishedAt - *ts.StartedAt
	return &d
}

// traceback coerces the payload traceback into strings; anything malformed
// collapses to an empty slice.
func traceback(v any) []string {
	frames, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
