// Package results translates the backend's loosely-typed streaming events
// into the orchestrator's public event variants. CoerceScore and CoercePassed
// are the only sanctioned entry points for weak-typed evaluator payloads;
// both are pure and total.
package results

import (
	"encoding/json"
	"strconv"
	"strings"
)

// CoerceScore normalizes an evaluator score. Native numbers pass through;
// strings are trimmed and parsed as floats; empty, non-numeric and all other
// types yield nil.
func CoerceScore(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case float32:
		f := float64(val)
		return &f
	case int:
		f := float64(val)
		return &f
	case int32:
		f := float64(val)
		return &f
	case int64:
		f := float64(val)
		return &f
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// CoercePassed normalizes an evaluator pass flag. Native booleans pass
// through; strings equal to "true" or "false" after trimming, case
// insensitive, map to the booleans; everything else yields nil.
func CoercePassed(v any) *bool {
	switch val := v.(type) {
	case bool:
		return &val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true":
			t := true
			return &t
		case "false":
			f := false
			return &f
		}
		return nil
	default:
		return nil
	}
}

// verdictKeys are the evaluator-shape output keys. An outputs map carrying
// any of them is treated as a verdict (evaluator-as-target).
var verdictKeys = []string{"passed", "score", "label", "details"}

// ExtractTargetOutput derives the public target output from the backend's
// outputs map:
//
//  1. Evaluator-shape outputs (any of passed/score/label/details present)
//     are trimmed to just those keys.
//  2. A single "output" key is unwrapped to its value.
//  3. Anything else is returned verbatim, preserving structured outputs.
//
// A nil map yields nil.
func ExtractTargetOutput(outputs map[string]any) any {
	if outputs == nil {
		return nil
	}
	trimmed := map[string]any{}
	for _, k := range verdictKeys {
		if v, ok := outputs[k]; ok {
			trimmed[k] = v
		}
	}
	if len(trimmed) > 0 {
		return trimmed
	}
	if len(outputs) == 1 {
		if v, ok := outputs["output"]; ok {
			return v
		}
	}
	return outputs
}
