// Package workflow synthesizes the executable graph the backend runs for one
// cell: an entry node mirroring the dataset schema, one target node, and one
// evaluator node per attached evaluator, wired together by typed edges.
package workflow

import "github.com/crucible-ai/crucible/runtime/eval/config"

// NodeType enumerates the node kinds the execution backend understands.
type NodeType string

const (
	// NodeEntry feeds dataset values into the graph.
	NodeEntry NodeType = "entry"
	// NodeSignature executes an LLM signature (prompt).
	NodeSignature NodeType = "signature"
	// NodeHTTP calls a remote HTTP endpoint.
	NodeHTTP NodeType = "http"
	// NodeCode executes a code snippet or nested workflow.
	NodeCode NodeType = "code"
	// NodeEvaluator executes an evaluator and yields a verdict.
	NodeEvaluator NodeType = "evaluator"
)

// EntryNodeID is the fixed id of the entry node.
const EntryNodeID = "entry"

// Field is a typed node input or output. Value is populated for entry
// outputs (from the dataset row) and for inputs bound by literal value
// mappings; it stays nil when an edge supplies the value at execution time.
type Field struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type"`
	Value      any    `json:"value"`
}

// InlineDataset embeds the cell's single dataset row in the entry node so the
// backend can execute the graph without a dataset lookup.
type InlineDataset struct {
	ID      string          `json:"id"`
	Columns []config.Column `json:"columns"`
	Rows    []config.Row    `json:"rows"`
}

// Node is one executable vertex of the graph.
type Node struct {
	// ID is the raw target id for target nodes and
	// "{targetId}.{evaluatorId}" for evaluator nodes. Evaluator-as-target
	// nodes are the one exception: they are evaluator nodes with a dotless
	// id.
	ID         string         `json:"id"`
	Type       NodeType       `json:"type"`
	Inputs     []Field        `json:"inputs,omitempty"`
	Outputs    []Field        `json:"outputs,omitempty"`
	Parameters []config.Param `json:"parameters,omitempty"`

	// Evaluator is the evaluator path ("evaluators/{id}" or a bare
	// evaluator type) for evaluator nodes.
	Evaluator string `json:"evaluator,omitempty"`

	// Dataset is set on the entry node only.
	Dataset *InlineDataset `json:"dataset,omitempty"`
}

// Edge wires one node output to one node input.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// Workflow is the executable graph submitted to the backend.
type Workflow struct {
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// Node returns the node with the given id.
func (w *Workflow) Node(id string) (*Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// Input returns the node input with the given identifier.
func (n *Node) Input(identifier string) (*Field, bool) {
	for i := range n.Inputs {
		if n.Inputs[i].Identifier == identifier {
			return &n.Inputs[i], true
		}
	}
	return nil, false
}
