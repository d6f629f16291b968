package orchestrator

import (
	"github.com/crucible-ai/crucible/runtime/eval/config"
	"github.com/crucible-ai/crucible/runtime/eval/runstore"
)

// targetMetadata builds one record per configured target, resolving display
// names from the loaded prompts, agents and evaluators and falling back to
// the target id. The model is resolved from the inline prompt's LLM config,
// else from the loaded prompt.
func targetMetadata(req *Request) []runstore.TargetMetadata {
	refs := req.References
	if refs == nil {
		refs = &config.References{}
	}
	meta := make([]runstore.TargetMetadata, 0, len(req.Targets))
	for i := range req.Targets {
		t := &req.Targets[i]
		m := runstore.TargetMetadata{ID: t.ID, Name: t.ID}
		switch t.Type {
		case config.TargetPrompt:
			if t.LocalPrompt != nil {
				m.Model = t.LocalPrompt.LLM.Model
			}
			if prompt, ok := refs.Prompt(t.PromptID); ok {
				if prompt.Name != "" {
					m.Name = prompt.Name
				}
				if m.Model == "" {
					m.Model = prompt.Model
				}
			}
		case config.TargetAgent:
			if agent, ok := refs.Agent(t.DBAgentID); ok && agent.Name != "" {
				m.Name = agent.Name
			}
		case config.TargetEvaluator:
			if rec, ok := refs.Evaluator(t.TargetEvaluatorID); ok && rec.Name != "" {
				m.Name = rec.Name
			}
		}
		meta = append(meta, m)
	}
	return meta
}

// evaluatorNames maps evaluator config ids to display names for persisted
// evaluations, falling back to the config id.
func evaluatorNames(req *Request) map[string]string {
	names := make(map[string]string, len(req.Evaluators))
	for i := range req.Evaluators {
		ev := &req.Evaluators[i]
		names[ev.ID] = ev.ID
		if req.References != nil {
			if rec, ok := req.References.Evaluator(ev.DBEvaluatorID); ok && rec.Name != "" {
				names[ev.ID] = rec.Name
			}
		}
	}
	return names
}
