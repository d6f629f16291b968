package results

import "strings"

// NodeID is a parsed workflow node identifier. EvaluatorID is empty for
// target nodes.
type NodeID struct {
	TargetID    string
	EvaluatorID string
}

// ParseNodeID splits a composite node id on the first dot: everything before
// it is the target id, everything after it the evaluator id. Dotless ids are
// plain target ids.
func ParseNodeID(id string) NodeID {
	target, evaluator, found := strings.Cut(id, ".")
	if !found {
		return NodeID{TargetID: id}
	}
	return NodeID{TargetID: target, EvaluatorID: evaluator}
}
