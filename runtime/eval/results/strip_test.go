package results

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crucible-ai/crucible/runtime/eval/config"
)

func TestStripSet(t *testing.T) {
	refs := &config.References{Evaluators: map[string]config.Evaluator{
		"db-guard":  {ID: "db-guard", Type: "toxicity", Guardrail: true},
		"db-plain":  {ID: "db-plain", Type: "llm_judge"},
		"db-binary": {ID: "db-binary", Type: "exact_match"},
		"db-custom": {ID: "db-custom", Type: "custom/exact_match", Guardrail: true},
	}}
	evaluators := []config.EvaluatorConfig{
		{ID: "guard", DBEvaluatorID: "db-guard"},
		{ID: "plain", DBEvaluatorID: "db-plain"},
		{ID: "binary", DBEvaluatorID: "db-binary"},
		{ID: "custom", DBEvaluatorID: "db-custom"},
		{ID: "bare-binary", EvaluatorType: "llm_answer_match"},
		{ID: "bare-plain", EvaluatorType: "llm_judge"},
	}

	strip := StripSet(evaluators, refs)

	require.Contains(t, strip, "guard")
	require.Contains(t, strip, "binary")
	require.Contains(t, strip, "bare-binary")
	require.NotContains(t, strip, "plain")
	require.NotContains(t, strip, "bare-plain")
	// Custom types are exempt even when flagged as guardrails.
	require.NotContains(t, strip, "custom")
}

func TestStripSetNilRefs(t *testing.T) {
	evaluators := []config.EvaluatorConfig{
		{ID: "binary", EvaluatorType: "exact_match"},
		{ID: "plain", EvaluatorType: "llm_judge"},
	}
	strip := StripSet(evaluators, nil)
	require.Contains(t, strip, "binary")
	require.NotContains(t, strip, "plain")
}

func TestStripSetLoadedTypeOverridesConfig(t *testing.T) {
	refs := &config.References{Evaluators: map[string]config.Evaluator{
		"db-1": {ID: "db-1", Type: "exact_match"},
	}}
	evaluators := []config.EvaluatorConfig{
		{ID: "ev", EvaluatorType: "llm_judge", DBEvaluatorID: "db-1"},
	}
	strip := StripSet(evaluators, refs)
	require.Contains(t, strip, "ev")
}
