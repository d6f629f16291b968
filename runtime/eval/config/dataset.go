package config

import "strings"

// DatasetIDField is the synthetic row field carrying the dataset id on a
// cell's entry.
const DatasetIDField = "_datasetId"

// Column describes one dataset column. Mappings reference columns by Name;
// workflow edges reference them by ID.
type Column struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Row is one dataset row keyed by column name (or column id for rows the API
// layer did not normalize).
type Row map[string]any

// Dataset is the tabular input of a run.
type Dataset struct {
	ID      string   `json:"id"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ColumnByName returns the column with the given name.
func (d *Dataset) ColumnByName(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// EmptyRow reports whether every non-structural field of the row is nil, an
// empty string or whitespace only. Structural fields are the row id and
// synthetic underscore-prefixed fields. Empty rows are skipped during cell
// generation and never produce events.
func EmptyRow(row Row) bool {
	for k, v := range row {
		if k == "id" || strings.HasPrefix(k, "_") {
			continue
		}
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(val) == "" {
				continue
			}
			return false
		default:
			return false
		}
	}
	return true
}
