package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crucible-ai/crucible/runtime/eval/config"
)

func TestTargetMetadata(t *testing.T) {
	req := gridRequest()
	req.Targets[0].LocalPrompt.LLM.Model = "gpt-4o"
	req.Targets[1] = config.TargetConfig{
		ID:       "t-2",
		Type:     config.TargetPrompt,
		PromptID: "p-1",
	}
	req.References = &config.References{Prompts: map[string]config.VersionedPrompt{
		"p-1": {ID: "p-1", Name: "Summarizer v3", Model: "claude-sonnet-4-5"},
	}}

	meta := targetMetadata(req)
	require.Len(t, meta, 2)

	require.Equal(t, "t-1", meta[0].ID)
	require.Equal(t, "t-1", meta[0].Name) // no record, falls back to id
	require.Equal(t, "gpt-4o", meta[0].Model)

	require.Equal(t, "t-2", meta[1].ID)
	require.Equal(t, "Summarizer v3", meta[1].Name)
	require.Equal(t, "claude-sonnet-4-5", meta[1].Model)
}

func TestTargetMetadataAgentAndEvaluator(t *testing.T) {
	req := gridRequest()
	req.Targets = []config.TargetConfig{
		{ID: "t-a", Type: config.TargetAgent, DBAgentID: "a-1"},
		{ID: "t-e", Type: config.TargetEvaluator, TargetEvaluatorID: "db-ev"},
	}
	req.References = &config.References{
		Agents:     map[string]config.Agent{"a-1": {ID: "a-1", Name: "Support Bot"}},
		Evaluators: map[string]config.Evaluator{"db-ev": {ID: "db-ev", Name: "Toxicity"}},
	}

	meta := targetMetadata(req)
	require.Equal(t, "Support Bot", meta[0].Name)
	require.Empty(t, meta[0].Model)
	require.Equal(t, "Toxicity", meta[1].Name)
}

func TestEvaluatorNames(t *testing.T) {
	req := gridRequest()
	req.Evaluators[0].DBEvaluatorID = "db-acc"
	req.References = &config.References{Evaluators: map[string]config.Evaluator{
		"db-acc": {ID: "db-acc", Name: "Answer Accuracy"},
	}}

	names := evaluatorNames(req)
	require.Equal(t, "Answer Accuracy", names["acc"])
	require.Equal(t, "tone", names["tone"])
}

func TestTargetInputs(t *testing.T) {
	req := gridRequest()
	req.Targets[0].Mappings = config.TargetMappings{
		"ds-1": {
			"question": {Type: config.MappingSource, Source: config.SourceDataset, SourceField: "question"},
			"style":    {Type: config.MappingValue, Value: "terse"},
		},
	}
	cells, err := generateCells(req)
	require.NoError(t, err)

	inputs := targetInputs(cells[0])
	require.Equal(t, "what is 2+2?", inputs["question"])
	require.Equal(t, "terse", inputs["style"])
}

func TestEvaluatorInputs(t *testing.T) {
	req := gridRequest()
	req.Evaluators[0].Mappings["ds-1"]["t-1"]["actual"] = config.Mapping{
		Type: config.MappingSource, Source: config.SourceTarget, SourceID: "t-1", SourceField: "output",
	}
	req.Evaluators[0].Mappings["ds-1"]["t-1"]["mode"] = config.Mapping{
		Type: config.MappingValue, Value: "strict",
	}
	cells, err := generateCells(req)
	require.NoError(t, err)
	cell := cells[0]

	inputs := evaluatorInputs(cell, &cell.Evaluators[0], map[string]any{"output": false})
	require.Equal(t, "4", inputs["expected"])
	require.Equal(t, false, inputs["actual"]) // falsy target outputs flow through
	require.Equal(t, "strict", inputs["mode"])

	// Target-sourced inputs referencing a different target resolve to nothing.
	cell.Evaluators[0].Mappings["ds-1"]["t-1"]["other"] = config.Mapping{
		Type: config.MappingSource, Source: config.SourceTarget, SourceID: "t-9", SourceField: "output",
	}
	inputs = evaluatorInputs(cell, &cell.Evaluators[0], map[string]any{"output": "x"})
	_, present := inputs["other"]
	require.False(t, present)
}
