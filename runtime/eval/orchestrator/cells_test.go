package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crucible-ai/crucible/runtime/eval/config"
)

func gridRequest() *Request {
	return &Request{
		ProjectID: "p-1",
		Targets: []config.TargetConfig{
			{ID: "t-1", Type: config.TargetPrompt, LocalPrompt: &config.LocalPromptConfig{}},
			{ID: "t-2", Type: config.TargetPrompt, LocalPrompt: &config.LocalPromptConfig{}},
		},
		Evaluators: []config.EvaluatorConfig{
			{
				ID: "acc",
				Mappings: config.EvaluatorMappings{
					"ds-1": {
						"t-1": {"expected": {Type: config.MappingSource, Source: config.SourceDataset, SourceField: "answer"}},
					},
				},
			},
			{
				ID: "tone",
				Mappings: config.EvaluatorMappings{
					"ds-1": {
						"t-1": {"actual": {Type: config.MappingSource, Source: config.SourceTarget, SourceID: "t-1", SourceField: "output"}},
						"t-2": {"actual": {Type: config.MappingSource, Source: config.SourceTarget, SourceID: "t-2", SourceField: "output"}},
					},
				},
			},
		},
		Dataset: config.Dataset{
			ID: "ds-1",
			Columns: []config.Column{
				{ID: "c1", Name: "question", Type: "str"},
				{ID: "c2", Name: "answer", Type: "str"},
			},
			Rows: []config.Row{
				{"id": "r0", "question": "what is 2+2?", "answer": "4"},
				{"id": "r1", "question": "", "answer": ""}, // empty
				{"id": "r2", "question": "capital of France?", "answer": "Paris"},
			},
		},
	}
}

func TestGenerateCellsFullGrid(t *testing.T) {
	req := gridRequest()
	cells, err := generateCells(req)
	require.NoError(t, err)
	// Two non-empty rows times two targets, row-outer target-inner.
	require.Len(t, cells, 4)
	require.Equal(t, 0, cells[0].RowIndex)
	require.Equal(t, "t-1", cells[0].Target.ID)
	require.Equal(t, 0, cells[1].RowIndex)
	require.Equal(t, "t-2", cells[1].Target.ID)
	require.Equal(t, 2, cells[2].RowIndex)
	require.Equal(t, "t-1", cells[2].Target.ID)
	require.Equal(t, 2, cells[3].RowIndex)
	require.Equal(t, "t-2", cells[3].Target.ID)
}

func TestGenerateCellsAttachesDeclaredEvaluators(t *testing.T) {
	req := gridRequest()
	cells, err := generateCells(req)
	require.NoError(t, err)

	// t-1 cells carry both evaluators in caller order; t-2 only tone.
	ids := func(c *config.Cell) []string {
		out := make([]string, 0, len(c.Evaluators))
		for _, ev := range c.Evaluators {
			out = append(out, ev.ID)
		}
		return out
	}
	require.Equal(t, []string{"acc", "tone"}, ids(cells[0]))
	require.Equal(t, []string{"tone"}, ids(cells[1]))
}

func TestGenerateCellsEntryCarriesDatasetID(t *testing.T) {
	req := gridRequest()
	cells, err := generateCells(req)
	require.NoError(t, err)

	require.Equal(t, "ds-1", cells[0].Entry[config.DatasetIDField])
	// The original row is untouched.
	_, tainted := req.Dataset.Rows[0][config.DatasetIDField]
	require.False(t, tainted)
}

func TestGenerateCellsRowsScope(t *testing.T) {
	req := gridRequest()
	req.Scope = config.Scope{Type: config.ScopeRows, RowIndices: []int{2, 0, 10, -1, 1}}
	cells, err := generateCells(req)
	require.NoError(t, err)

	// Out-of-range and empty rows are skipped; caller order is preserved.
	require.Len(t, cells, 4)
	require.Equal(t, 2, cells[0].RowIndex)
	require.Equal(t, 2, cells[1].RowIndex)
	require.Equal(t, 0, cells[2].RowIndex)
	require.Equal(t, 0, cells[3].RowIndex)
}

func TestGenerateCellsTargetScope(t *testing.T) {
	req := gridRequest()
	req.Scope = config.Scope{Type: config.ScopeTarget, TargetID: "t-2"}
	cells, err := generateCells(req)
	require.NoError(t, err)

	require.Len(t, cells, 2)
	for _, c := range cells {
		require.Equal(t, "t-2", c.Target.ID)
	}
}

func TestGenerateCellsTargetScopeUnknownTarget(t *testing.T) {
	req := gridRequest()
	req.Scope = config.Scope{Type: config.ScopeTarget, TargetID: "nope"}
	_, err := generateCells(req)
	require.Error(t, err)
}

func TestGenerateCellsCellScope(t *testing.T) {
	req := gridRequest()
	req.Scope = config.Scope{Type: config.ScopeCell, TargetID: "t-1", RowIndex: 2}
	cells, err := generateCells(req)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, 2, cells[0].RowIndex)
	require.Equal(t, "t-1", cells[0].Target.ID)
}

func TestGenerateCellsCellScopeEmptyRowYieldsNothing(t *testing.T) {
	req := gridRequest()
	req.Scope = config.Scope{Type: config.ScopeCell, TargetID: "t-1", RowIndex: 1}
	cells, err := generateCells(req)
	require.NoError(t, err)
	require.Empty(t, cells)

	req.Scope.RowIndex = 99
	cells, err = generateCells(req)
	require.NoError(t, err)
	require.Empty(t, cells)
}

func TestGenerateCellsEvaluatorScope(t *testing.T) {
	req := gridRequest()
	req.Scope = config.Scope{
		Type:         config.ScopeEvaluator,
		TargetID:     "t-1",
		EvaluatorID:  "acc",
		RowIndex:     1, // empty row is fine for reruns
		TargetOutput: map[string]any{"output": "4"},
		TraceID:      "trace-7",
	}
	cells, err := generateCells(req)
	require.NoError(t, err)
	require.Len(t, cells, 1)

	cell := cells[0]
	require.True(t, cell.SkipTarget)
	require.Equal(t, map[string]any{"output": "4"}, cell.PrecomputedOutput)
	require.Equal(t, "trace-7", cell.TraceID)
	require.Len(t, cell.Evaluators, 1)
	require.Equal(t, "acc", cell.Evaluators[0].ID)
}

func TestGenerateCellsEvaluatorScopeWithoutOutputRunsTarget(t *testing.T) {
	req := gridRequest()
	req.Scope = config.Scope{
		Type:        config.ScopeEvaluator,
		TargetID:    "t-1",
		EvaluatorID: "acc",
		RowIndex:    0,
	}
	cells, err := generateCells(req)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.False(t, cells[0].SkipTarget)
}

func TestGenerateCellsEvaluatorScopeErrors(t *testing.T) {
	req := gridRequest()
	req.Scope = config.Scope{Type: config.ScopeEvaluator, TargetID: "nope", EvaluatorID: "acc"}
	_, err := generateCells(req)
	require.Error(t, err)

	req.Scope = config.Scope{Type: config.ScopeEvaluator, TargetID: "t-1", EvaluatorID: "nope"}
	_, err = generateCells(req)
	require.Error(t, err)

	req.Scope = config.Scope{Type: config.ScopeEvaluator, TargetID: "t-1", EvaluatorID: "acc", RowIndex: 99}
	_, err = generateCells(req)
	require.Error(t, err)
}

func TestGenerateCellsUnknownScope(t *testing.T) {
	req := gridRequest()
	req.Scope = config.Scope{Type: "bogus"}
	_, err := generateCells(req)
	require.Error(t, err)
}

func TestWrapPrecomputedOutput(t *testing.T) {
	cell := &config.Cell{
		Target:            config.TargetConfig{Outputs: []config.Field{{Identifier: "answer"}}},
		PrecomputedOutput: "4",
	}
	require.Equal(t, map[string]any{"answer": "4"}, wrapPrecomputedOutput(cell))

	cell.PrecomputedOutput = map[string]any{"answer": "4", "confidence": 0.9}
	require.Equal(t, map[string]any{"answer": "4", "confidence": 0.9}, wrapPrecomputedOutput(cell))

	cell.Target.Outputs = nil
	cell.PrecomputedOutput = false
	require.Equal(t, map[string]any{"output": false}, wrapPrecomputedOutput(cell))
}
