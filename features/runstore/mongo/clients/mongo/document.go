package mongo

import "github.com/crucible-ai/crucible/runtime/eval/runstore"

// runDocument is the persisted shape of one run. Timestamps are epoch
// milliseconds.
type runDocument struct {
	ProjectID    string `bson:"project_id"`
	ExperimentID string `bson:"experiment_id,omitempty"`
	RunID        string `bson:"run_id"`

	Targets     []targetMetadataDocument `bson:"targets,omitempty"`
	Dataset     []datasetEntryDocument   `bson:"dataset,omitempty"`
	Evaluations []evaluationDocument     `bson:"evaluations,omitempty"`

	Progress int `bson:"progress"`
	Total    int `bson:"total"`

	CreatedAt  int64  `bson:"created_at"`
	FinishedAt *int64 `bson:"finished_at,omitempty"`
	StoppedAt  *int64 `bson:"stopped_at,omitempty"`
}

type targetMetadataDocument struct {
	ID    string `bson:"id"`
	Name  string `bson:"name"`
	Model string `bson:"model,omitempty"`
}

type datasetEntryDocument struct {
	Index    int            `bson:"index"`
	TargetID string         `bson:"target_id"`
	Entry    map[string]any `bson:"entry"`
	// Predicted stays a document so falsy outputs survive round trips.
	Predicted map[string]any `bson:"predicted,omitempty"`
	Cost      *float64       `bson:"cost,omitempty"`
	Duration  *int64         `bson:"duration,omitempty"`
	Error     *string        `bson:"error,omitempty"`
	TraceID   *string        `bson:"trace_id,omitempty"`
}

type evaluationDocument struct {
	Evaluator string   `bson:"evaluator"`
	Name      string   `bson:"name,omitempty"`
	TargetID  string   `bson:"target_id"`
	Index     int      `bson:"index"`
	Status    string   `bson:"status"`
	Score     *float64 `bson:"score,omitempty"`
	Label     *string  `bson:"label,omitempty"`
	Passed    *bool    `bson:"passed,omitempty"`
	Details   *string  `bson:"details,omitempty"`
	Cost      *float64 `bson:"cost,omitempty"`
}

func toRunDocument(doc *runstore.Document) runDocument {
	out := runDocument{
		ProjectID:    doc.ProjectID,
		ExperimentID: doc.ExperimentID,
		RunID:        doc.RunID,
		Progress:     doc.Progress,
		Total:        doc.Total,
		CreatedAt:    doc.CreatedAt,
		FinishedAt:   doc.FinishedAt,
		StoppedAt:    doc.StoppedAt,
	}
	for _, t := range doc.Targets {
		out.Targets = append(out.Targets, targetMetadataDocument(t))
	}
	for _, e := range doc.Dataset {
		out.Dataset = append(out.Dataset, toDatasetEntryDocument(e))
	}
	for _, e := range doc.Evaluations {
		out.Evaluations = append(out.Evaluations, toEvaluationDocument(e))
	}
	return out
}

func fromRunDocument(doc *runDocument) *runstore.Document {
	out := &runstore.Document{
		Key: runstore.Key{
			ProjectID:    doc.ProjectID,
			ExperimentID: doc.ExperimentID,
			RunID:        doc.RunID,
		},
		Progress:   doc.Progress,
		Total:      doc.Total,
		CreatedAt:  doc.CreatedAt,
		FinishedAt: doc.FinishedAt,
		StoppedAt:  doc.StoppedAt,
	}
	for _, t := range doc.Targets {
		out.Targets = append(out.Targets, runstore.TargetMetadata(t))
	}
	for _, e := range doc.Dataset {
		out.Dataset = append(out.Dataset, fromDatasetEntryDocument(e))
	}
	for _, e := range doc.Evaluations {
		out.Evaluations = append(out.Evaluations, runstore.Evaluation(e))
	}
	return out
}

func toDatasetEntryDocument(e runstore.DatasetEntry) datasetEntryDocument {
	return datasetEntryDocument(e)
}

func fromDatasetEntryDocument(e datasetEntryDocument) runstore.DatasetEntry {
	return runstore.DatasetEntry(e)
}

func toEvaluationDocument(e runstore.Evaluation) evaluationDocument {
	return evaluationDocument(e)
}
