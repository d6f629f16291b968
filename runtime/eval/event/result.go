package event

// ResultStatus enumerates evaluator verdict outcomes.
type ResultStatus string

const (
	// StatusProcessed means the evaluator produced a verdict.
	StatusProcessed ResultStatus = "processed"
	// StatusError means the evaluator failed to produce a verdict.
	StatusError ResultStatus = "error"
	// StatusSkipped means the evaluator declined to judge the input.
	StatusSkipped ResultStatus = "skipped"
)

// Result is a normalized evaluator verdict. For StatusProcessed the optional
// verdict fields apply; for StatusError the error fields apply.
type Result struct {
	Status ResultStatus `json:"status"`

	// Score is the numeric verdict. Omitted for evaluators in the run's
	// strip set (guardrails and intrinsically binary evaluator types).
	Score *float64 `json:"score,omitempty"`
	// Passed is the boolean verdict, when the evaluator produced one.
	Passed *bool `json:"passed,omitempty"`
	// Label is the categorical verdict, when the evaluator produced one.
	Label *string `json:"label,omitempty"`
	// Details is the evaluator's free-form explanation.
	Details *string `json:"details,omitempty"`
	// Cost is the evaluator's execution cost, when reported.
	Cost *Cost `json:"cost,omitempty"`

	// ErrorType classifies the failure for StatusError results.
	ErrorType string `json:"error_type,omitempty"`
	// Traceback carries backend stack frames for StatusError results. May
	// be empty but is never nil on errors.
	Traceback []string `json:"traceback,omitempty"`
}

// ErrorResult builds a StatusError result with the given classification and
// details.
func ErrorResult(errorType, details string) Result {
	return Result{
		Status:    StatusError,
		ErrorType: errorType,
		Details:   &details,
		Traceback: []string{},
	}
}
