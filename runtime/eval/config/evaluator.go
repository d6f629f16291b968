package config

// EvaluatorConfig describes one downstream judge attached to a run. Settings
// are never taken from the caller's configuration; they are fetched from the
// loaded Evaluator record keyed by DBEvaluatorID.
type EvaluatorConfig struct {
	ID            string            `json:"id"`
	EvaluatorType string            `json:"evaluatorType"`
	DBEvaluatorID string            `json:"dbEvaluatorId,omitempty"`
	Inputs        []Field           `json:"inputs,omitempty"`
	Mappings      EvaluatorMappings `json:"mappings,omitempty"`
}

// MappingsFor returns the input mappings this evaluator declares for the
// given dataset and target, or nil when the evaluator does not apply.
func (e *EvaluatorConfig) MappingsFor(datasetID, targetID string) map[string]Mapping {
	byTarget, ok := e.Mappings[datasetID]
	if !ok {
		return nil
	}
	return byTarget[targetID]
}
