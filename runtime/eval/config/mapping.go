package config

// MappingType discriminates how an input field is populated.
type MappingType string

const (
	// MappingSource populates an input from a dataset column or an upstream
	// target output.
	MappingSource MappingType = "source"
	// MappingValue populates an input with a literal value.
	MappingValue MappingType = "value"
)

// MappingOrigin names where a source mapping reads from.
type MappingOrigin string

const (
	// SourceDataset reads a dataset column. SourceField names the column by
	// name; the API layer normalizes column ids to names before the request
	// reaches the orchestrator.
	SourceDataset MappingOrigin = "dataset"
	// SourceTarget reads a field of an upstream target's output. SourceID
	// identifies the target.
	SourceTarget MappingOrigin = "target"
)

// Mapping is a rule that populates one input field of a target or evaluator.
type Mapping struct {
	Type MappingType `json:"type"`

	// Source and SourceID/SourceField apply when Type is MappingSource.
	Source      MappingOrigin `json:"source,omitempty"`
	SourceID    string        `json:"sourceId,omitempty"`
	SourceField string        `json:"sourceField,omitempty"`

	// Value applies when Type is MappingValue.
	Value any `json:"value,omitempty"`
}

// TargetMappings maps dataset id to input field to mapping for one target.
type TargetMappings map[string]map[string]Mapping

// EvaluatorMappings maps dataset id to target id to input field to mapping
// for one evaluator.
type EvaluatorMappings map[string]map[string]map[string]Mapping
