package orchestrator

import "github.com/crucible-ai/crucible/runtime/eval/config"

// targetInputs resolves the target's input values from its mappings on the
// cell's dataset: literals from value mappings, dataset columns by name from
// source mappings. Edge-supplied inputs with no mapping stay absent.
func targetInputs(cell *config.Cell) map[string]any {
	mappings := cell.Target.Mappings[cell.DatasetID]
	inputs := make(map[string]any, len(mappings))
	for field, m := range mappings {
		switch m.Type {
		case config.MappingValue:
			inputs[field] = m.Value
		case config.MappingSource:
			if m.Source == config.SourceDataset {
				inputs[field] = cell.EntryValue(m.SourceField)
			}
		}
	}
	return inputs
}

// evaluatorInputs resolves one evaluator's input values: dataset-sourced
// inputs read the entry by column name, target-sourced inputs read the target
// output by field name, value mappings supply the literal.
func evaluatorInputs(cell *config.Cell, ev *config.EvaluatorConfig, targetOutput map[string]any) map[string]any {
	mappings := ev.MappingsFor(cell.DatasetID, cell.Target.ID)
	inputs := make(map[string]any, len(mappings))
	for field, m := range mappings {
		switch m.Type {
		case config.MappingValue:
			inputs[field] = m.Value
		case config.MappingSource:
			switch {
			case m.Source == config.SourceDataset:
				inputs[field] = cell.EntryValue(m.SourceField)
			case m.Source == config.SourceTarget && m.SourceID == cell.Target.ID:
				inputs[field] = targetOutput[m.SourceField]
			}
		}
	}
	return inputs
}

// wrapPrecomputedOutput normalizes a caller-supplied target output into map
// form: objects pass through, scalars are wrapped under the target's first
// output identifier, falling back to "output".
func wrapPrecomputedOutput(cell *config.Cell) map[string]any {
	if m, ok := cell.PrecomputedOutput.(map[string]any); ok {
		return m
	}
	field := "output"
	if len(cell.Target.Outputs) > 0 {
		field = cell.Target.Outputs[0].Identifier
	}
	return map[string]any{field: cell.PrecomputedOutput}
}
