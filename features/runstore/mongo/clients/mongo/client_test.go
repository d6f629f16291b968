package mongo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/crucible-ai/crucible/runtime/eval/runstore"
)

// fakeCollection interprets the narrow update/query subset the client issues
// against an in-memory document map.
type fakeCollection struct {
	mu           sync.Mutex
	docs         map[string]*runDocument
	indexCreated int
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: make(map[string]*runDocument)}
}

func docKey(projectID, runID string) string {
	return projectID + "/" + runID
}

func (f *fakeCollection) lookup(filter bson.M) (*runDocument, bool) {
	key := docKey(filter["project_id"].(string), filter["run_id"].(string))
	doc, ok := f.docs[key]
	return doc, ok
}

func (f *fakeCollection) UpdateOne(ctx context.Context, filterAny any, updateAny any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	filter := filterAny.(bson.M)
	update := updateAny.(bson.M)
	doc, exists := f.lookup(filter)

	upsert := false
	for _, l := range opts {
		o := &options.UpdateOneOptions{}
		for _, fn := range l.List() {
			if err := fn(o); err != nil {
				return nil, err
			}
		}
		if o.Upsert != nil && *o.Upsert {
			upsert = true
		}
	}

	if setOnInsert, ok := update["$setOnInsert"]; ok {
		if exists {
			return &mongodriver.UpdateResult{MatchedCount: 1}, nil
		}
		if !upsert {
			return &mongodriver.UpdateResult{}, nil
		}
		inserted := setOnInsert.(runDocument)
		f.docs[docKey(inserted.ProjectID, inserted.RunID)] = &inserted
		return &mongodriver.UpdateResult{UpsertedCount: 1}, nil
	}

	if !exists || !f.matchesArrayFilter(doc, filter) {
		return &mongodriver.UpdateResult{}, nil
	}

	if set, ok := update["$set"].(bson.M); ok {
		f.applySet(doc, filter, set)
	}
	if push, ok := update["$push"].(bson.M); ok {
		if entry, ok := push["dataset"].(datasetEntryDocument); ok {
			doc.Dataset = append(doc.Dataset, entry)
		}
		if eval, ok := push["evaluations"].(evaluationDocument); ok {
			doc.Evaluations = append(doc.Evaluations, eval)
		}
	}
	return &mongodriver.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

// matchesArrayFilter evaluates the $elemMatch / $not-$elemMatch conditions on
// the dataset and evaluations arrays.
func (f *fakeCollection) matchesArrayFilter(doc *runDocument, filter bson.M) bool {
	if cond, ok := filter["dataset"].(bson.M); ok {
		if elem, ok := cond["$elemMatch"].(bson.M); ok {
			return datasetIndex(doc, elem) >= 0
		}
		if not, ok := cond["$not"].(bson.M); ok {
			return datasetIndex(doc, not["$elemMatch"].(bson.M)) < 0
		}
	}
	if cond, ok := filter["evaluations"].(bson.M); ok {
		if elem, ok := cond["$elemMatch"].(bson.M); ok {
			return evaluationIndex(doc, elem) >= 0
		}
		if not, ok := cond["$not"].(bson.M); ok {
			return evaluationIndex(doc, not["$elemMatch"].(bson.M)) < 0
		}
	}
	return true
}

func (f *fakeCollection) applySet(doc *runDocument, filter bson.M, set bson.M) {
	for key, value := range set {
		switch key {
		case "dataset.$":
			cond := filter["dataset"].(bson.M)["$elemMatch"].(bson.M)
			if i := datasetIndex(doc, cond); i >= 0 {
				doc.Dataset[i] = value.(datasetEntryDocument)
			}
		case "evaluations.$":
			cond := filter["evaluations"].(bson.M)["$elemMatch"].(bson.M)
			if i := evaluationIndex(doc, cond); i >= 0 {
				doc.Evaluations[i] = value.(evaluationDocument)
			}
		case "progress":
			doc.Progress = value.(int)
		case "total":
			doc.Total = value.(int)
		case "finished_at":
			v := value.(int64)
			doc.FinishedAt = &v
		case "stopped_at":
			v := value.(int64)
			doc.StoppedAt = &v
		}
	}
}

func datasetIndex(doc *runDocument, elem bson.M) int {
	for i, e := range doc.Dataset {
		if e.Index == elem["index"].(int) && e.TargetID == elem["target_id"].(string) {
			return i
		}
	}
	return -1
}

func evaluationIndex(doc *runDocument, elem bson.M) int {
	for i, e := range doc.Evaluations {
		if e.Index == elem["index"].(int) && e.Evaluator == elem["evaluator"].(string) && e.TargetID == elem["target_id"].(string) {
			return i
		}
	}
	return -1
}

func (f *fakeCollection) FindOne(ctx context.Context, filterAny any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.lookup(filterAny.(bson.M))
	if !ok {
		return fakeSingleResult{err: mongodriver.ErrNoDocuments}
	}
	copied := *doc
	return fakeSingleResult{doc: &copied}
}

func (f *fakeCollection) Find(ctx context.Context, filterAny any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	filter := filterAny.(bson.M)
	projectID := filter["project_id"].(string)
	experimentID := filter["experiment_id"].(string)
	after := ""
	if cond, ok := filter["run_id"].(bson.M); ok {
		after = cond["$gt"].(string)
	}

	limit := 0
	for _, l := range opts {
		o := &options.FindOptions{}
		for _, fn := range l.List() {
			if err := fn(o); err != nil {
				return nil, err
			}
		}
		if o.Limit != nil {
			limit = int(*o.Limit)
		}
	}

	var matched []runDocument
	for _, doc := range f.docs {
		if doc.ProjectID != projectID || doc.ExperimentID != experimentID {
			continue
		}
		if after != "" && doc.RunID <= after {
			continue
		}
		matched = append(matched, *doc)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RunID < matched[j].RunID })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return &fakeCursor{docs: matched}, nil
}

func (f *fakeCollection) Indexes() indexView {
	return fakeIndexView{coll: f}
}

type fakeIndexView struct {
	coll *fakeCollection
}

func (v fakeIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	v.coll.mu.Lock()
	defer v.coll.mu.Unlock()
	v.coll.indexCreated++
	return "", nil
}

type fakeSingleResult struct {
	doc *runDocument
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	*val.(*runDocument) = *r.doc
	return nil
}

type fakeCursor struct {
	docs []runDocument
	pos  int
}

func (c *fakeCursor) Next(ctx context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	*val.(*runDocument) = c.docs[c.pos-1]
	return nil
}

func (c *fakeCursor) Err() error                    { return nil }
func (c *fakeCursor) Close(ctx context.Context) error { return nil }

func mustNewTestClient(t *testing.T) (*client, *fakeCollection) {
	t.Helper()
	fc := newFakeCollection()
	c, err := newClientWithCollection(nil, fc, time.Second)
	require.NoError(t, err)
	return c, fc
}

func testKey() runstore.Key {
	return runstore.Key{ProjectID: "p-1", ExperimentID: "e-1", RunID: "brave-blue-otter"}
}

func TestEnsureIndexes(t *testing.T) {
	fc := newFakeCollection()
	require.NoError(t, ensureIndexes(context.Background(), fc))
	require.Equal(t, 2, fc.indexCreated)
}

func TestCreateIsIdempotent(t *testing.T) {
	c, fc := mustNewTestClient(t)
	ctx := context.Background()

	doc := &runstore.Document{Key: testKey(), Total: 4, CreatedAt: 1000}
	require.NoError(t, c.Create(ctx, doc))
	require.Len(t, fc.docs, 1)

	// A second create leaves the original untouched.
	doc2 := &runstore.Document{Key: testKey(), Total: 99, CreatedAt: 2000}
	require.NoError(t, c.Create(ctx, doc2))
	require.Len(t, fc.docs, 1)
	stored := fc.docs[docKey("p-1", "brave-blue-otter")]
	require.Equal(t, 4, stored.Total)
}

func TestCreateValidates(t *testing.T) {
	c, _ := mustNewTestClient(t)
	require.Error(t, c.Create(context.Background(), nil))
	require.Error(t, c.Create(context.Background(), &runstore.Document{}))
}

func TestUpsertResultsMergesByKey(t *testing.T) {
	c, _ := mustNewTestClient(t)
	ctx := context.Background()
	key := testKey()
	require.NoError(t, c.Create(ctx, &runstore.Document{Key: key, Total: 2}))

	out := map[string]any{"output": "first"}
	require.NoError(t, c.UpsertResults(ctx, key, &runstore.Batch{
		Dataset: []runstore.DatasetEntry{
			{Index: 0, TargetID: "t-1", Predicted: out},
		},
		Evaluations: []runstore.Evaluation{
			{Index: 0, Evaluator: "acc", TargetID: "t-1", Status: "processed"},
		},
		Progress: &runstore.Progress{Completed: 1, Total: 2},
	}))

	// Re-upserting the same merge keys replaces rather than duplicates.
	out2 := map[string]any{"output": "second"}
	require.NoError(t, c.UpsertResults(ctx, key, &runstore.Batch{
		Dataset: []runstore.DatasetEntry{
			{Index: 0, TargetID: "t-1", Predicted: out2},
			{Index: 1, TargetID: "t-1", Predicted: out},
		},
		Evaluations: []runstore.Evaluation{
			{Index: 0, Evaluator: "acc", TargetID: "t-1", Status: "error"},
			{Index: 0, Evaluator: "tone", TargetID: "t-1", Status: "processed"},
		},
		Progress: &runstore.Progress{Completed: 2, Total: 2},
	}))

	got, err := c.GetByRunID(ctx, "p-1", key.RunID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Dataset, 2)
	require.Equal(t, out2, got.Dataset[0].Predicted)
	require.Len(t, got.Evaluations, 2)
	require.Equal(t, "error", got.Evaluations[0].Status)
	require.Equal(t, 2, got.Progress)
}

func TestUpsertResultsEmptyBatchIsNoop(t *testing.T) {
	c, fc := mustNewTestClient(t)
	require.NoError(t, c.UpsertResults(context.Background(), testKey(), &runstore.Batch{}))
	require.Empty(t, fc.docs)
}

func TestMarkComplete(t *testing.T) {
	c, _ := mustNewTestClient(t)
	ctx := context.Background()
	key := testKey()
	require.NoError(t, c.Create(ctx, &runstore.Document{Key: key}))

	finished := time.Now().UnixMilli()
	require.NoError(t, c.MarkComplete(ctx, key, runstore.Completion{FinishedAt: &finished}))

	got, err := c.GetByRunID(ctx, "p-1", key.RunID)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	require.Equal(t, finished, *got.FinishedAt)
	require.Nil(t, got.StoppedAt)
}

func TestGetByRunIDMissingReturnsNil(t *testing.T) {
	c, _ := mustNewTestClient(t)
	got, err := c.GetByRunID(context.Background(), "p-1", "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestListByExperimentPaginates(t *testing.T) {
	c, _ := mustNewTestClient(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := runstore.Key{ProjectID: "p-1", ExperimentID: "e-1", RunID: fmt.Sprintf("run-%d", i)}
		require.NoError(t, c.Create(ctx, &runstore.Document{Key: key}))
	}
	// A run from another experiment never shows up.
	require.NoError(t, c.Create(ctx, &runstore.Document{
		Key: runstore.Key{ProjectID: "p-1", ExperimentID: "e-2", RunID: "other"},
	}))

	page, err := c.ListByExperiment(ctx, "p-1", "e-1", "", 2)
	require.NoError(t, err)
	require.Len(t, page.Runs, 2)
	require.Equal(t, "run-0", page.Runs[0].RunID)
	require.Equal(t, "run-1", page.NextCursor)

	page, err = c.ListByExperiment(ctx, "p-1", "e-1", page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Runs, 2)
	require.Equal(t, "run-2", page.Runs[0].RunID)

	page, err = c.ListByExperiment(ctx, "p-1", "e-1", page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Runs, 1)
	require.Empty(t, page.NextCursor)
}

func TestListByExperimentValidates(t *testing.T) {
	c, _ := mustNewTestClient(t)
	_, err := c.ListByExperiment(context.Background(), "", "e-1", "", 10)
	require.Error(t, err)
	_, err = c.ListByExperiment(context.Background(), "p-1", "", "", 10)
	require.Error(t, err)
}
