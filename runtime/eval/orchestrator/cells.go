package orchestrator

import (
	"fmt"

	"github.com/crucible-ai/crucible/runtime/eval/config"
)

// generateCells enumerates the cells for the request's scope. Empty rows are
// skipped for every scope including ScopeCell; ScopeEvaluator bypasses the
// check because it reruns an evaluator against a provided output.
func generateCells(req *Request) ([]*config.Cell, error) {
	switch req.Scope.Type {
	case config.ScopeEvaluator:
		return evaluatorScopeCells(req)

	case config.ScopeCell:
		target, ok := targetByID(req, req.Scope.TargetID)
		if !ok {
			return nil, fmt.Errorf("unknown target %q", req.Scope.TargetID)
		}
		if !rowInRange(req, req.Scope.RowIndex) || config.EmptyRow(req.Dataset.Rows[req.Scope.RowIndex]) {
			return nil, nil
		}
		return []*config.Cell{newCell(req, req.Scope.RowIndex, target)}, nil

	case config.ScopeTarget:
		target, ok := targetByID(req, req.Scope.TargetID)
		if !ok {
			return nil, fmt.Errorf("unknown target %q", req.Scope.TargetID)
		}
		var cells []*config.Cell
		for i, row := range req.Dataset.Rows {
			if config.EmptyRow(row) {
				continue
			}
			cells = append(cells, newCell(req, i, target))
		}
		return cells, nil

	case config.ScopeRows:
		var cells []*config.Cell
		for _, i := range req.Scope.RowIndices {
			if !rowInRange(req, i) || config.EmptyRow(req.Dataset.Rows[i]) {
				continue
			}
			for t := range req.Targets {
				cells = append(cells, newCell(req, i, req.Targets[t]))
			}
		}
		return cells, nil

	case config.ScopeFull, "":
		var cells []*config.Cell
		for i, row := range req.Dataset.Rows {
			if config.EmptyRow(row) {
				continue
			}
			for t := range req.Targets {
				cells = append(cells, newCell(req, i, req.Targets[t]))
			}
		}
		return cells, nil

	default:
		return nil, fmt.Errorf("unknown scope type %q", req.Scope.Type)
	}
}

func evaluatorScopeCells(req *Request) ([]*config.Cell, error) {
	target, ok := targetByID(req, req.Scope.TargetID)
	if !ok {
		return nil, fmt.Errorf("unknown target %q", req.Scope.TargetID)
	}
	evaluator, ok := evaluatorByID(req, req.Scope.EvaluatorID)
	if !ok {
		return nil, fmt.Errorf("unknown evaluator %q", req.Scope.EvaluatorID)
	}
	if !rowInRange(req, req.Scope.RowIndex) {
		return nil, fmt.Errorf("row index %d out of range", req.Scope.RowIndex)
	}
	cell := newCell(req, req.Scope.RowIndex, target)
	cell.Evaluators = []config.EvaluatorConfig{evaluator}
	cell.SkipTarget = req.Scope.TargetOutput != nil
	cell.PrecomputedOutput = req.Scope.TargetOutput
	cell.TraceID = req.Scope.TraceID
	return []*config.Cell{cell}, nil
}

// newCell pairs one row with one target. The cell carries the evaluators that
// declare mappings for this target in this dataset, in caller order, and a
// copy of the row augmented with the synthetic dataset id field.
func newCell(req *Request, rowIndex int, target config.TargetConfig) *config.Cell {
	row := req.Dataset.Rows[rowIndex]
	entry := make(config.Row, len(row)+1)
	for k, v := range row {
		entry[k] = v
	}
	entry[config.DatasetIDField] = req.Dataset.ID

	var evaluators []config.EvaluatorConfig
	for i := range req.Evaluators {
		if req.Evaluators[i].MappingsFor(req.Dataset.ID, target.ID) != nil {
			evaluators = append(evaluators, req.Evaluators[i])
		}
	}

	return &config.Cell{
		RowIndex:   rowIndex,
		Target:     target,
		Evaluators: evaluators,
		DatasetID:  req.Dataset.ID,
		Columns:    req.Dataset.Columns,
		Entry:      entry,
	}
}

func targetByID(req *Request, id string) (config.TargetConfig, bool) {
	for _, t := range req.Targets {
		if t.ID == id {
			return t, true
		}
	}
	return config.TargetConfig{}, false
}

func evaluatorByID(req *Request, id string) (config.EvaluatorConfig, bool) {
	for _, e := range req.Evaluators {
		if e.ID == id {
			return e, true
		}
	}
	return config.EvaluatorConfig{}, false
}

func rowInRange(req *Request, i int) bool {
	return i >= 0 && i < len(req.Dataset.Rows)
}
