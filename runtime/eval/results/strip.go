package results

import (
	"strings"

	"github.com/crucible-ai/crucible/runtime/eval/config"
)

// customTypePrefix marks caller-defined evaluator types; those are never
// score-stripped.
const customTypePrefix = "custom/"

// binaryTypes lists evaluator types whose output is intrinsically binary
// regardless of the guardrail flag.
var binaryTypes = map[string]struct{}{
	"exact_match":      {},
	"llm_answer_match": {},
}

// StripSet computes, once at run start, the set of evaluator ids whose
// emitted score must be omitted: evaluators whose loaded record is flagged as
// a guardrail, and evaluators of an intrinsically binary type. Stripping
// applies only to processed results.
func StripSet(evaluators []config.EvaluatorConfig, refs *config.References) map[string]struct{} {
	strip := make(map[string]struct{})
	for i := range evaluators {
		ev := &evaluators[i]
		evalType := ev.EvaluatorType
		guardrail := false
		if refs != nil {
			if rec, ok := refs.Evaluator(ev.DBEvaluatorID); ok {
				if rec.Type != "" {
					evalType = rec.Type
				}
				guardrail = rec.Guardrail
			}
		}
		if strings.HasPrefix(evalType, customTypePrefix) {
			continue
		}
		if _, binary := binaryTypes[evalType]; binary || guardrail {
			strip[ev.ID] = struct{}{}
		}
	}
	return strip
}
