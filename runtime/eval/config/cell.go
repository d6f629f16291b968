package config

// Cell is one unit of execution: a dataset row paired with a target, plus the
// evaluators that judge that target's output. Cells are generated once at
// orchestration start and are immutable afterwards.
type Cell struct {
	RowIndex int
	Target   TargetConfig

	// Evaluators are the judges attached to this cell, in caller order.
	Evaluators []EvaluatorConfig

	// DatasetID identifies the dataset the entry came from.
	DatasetID string
	// Columns is the dataset column schema, used to resolve column names to
	// column ids when wiring edges.
	Columns []Column
	// Entry is the dataset row for this cell, augmented with the synthetic
	// DatasetIDField.
	Entry Row

	// SkipTarget indicates the target must not be executed; a precomputed
	// output stands in for it (evaluator rerun scope).
	SkipTarget bool
	// PrecomputedOutput is the caller-supplied target output for evaluator
	// reruns. Nil means none.
	PrecomputedOutput any
	// TraceID, when set, is reused so new spans append to an existing trace.
	TraceID string
}

// ColumnID resolves a column name to its id using the cell's schema. Falls
// back to the name itself when the schema does not know the column.
func (c *Cell) ColumnID(name string) string {
	for _, col := range c.Columns {
		if col.Name == name {
			return col.ID
		}
	}
	return name
}

// EntryValue reads the cell's dataset entry by column name, falling back to
// the column id.
func (c *Cell) EntryValue(name string) any {
	if v, ok := c.Entry[name]; ok {
		return v
	}
	return c.Entry[c.ColumnID(name)]
}
