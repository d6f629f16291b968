// Package mongo implements the low-level MongoDB client used by the run
// store. Run documents merge incrementally: dataset entries by
// (index, target_id), evaluations by (index, evaluator, target_id), so
// re-driving a partially written run never duplicates records.
package mongo

//go:generate cmg gen .

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"github.com/crucible-ai/crucible/runtime/eval/runstore"
)

const (
	defaultCollection = "evaluation_runs"
	defaultTimeout    = 5 * time.Second
	clientName        = "runstore-mongo"

	// mergeAttempts bounds retries of the update-then-push merge when a
	// concurrent writer races the push.
	mergeAttempts = 3
)

// Client exposes Mongo-backed operations for run documents.
type Client interface {
	health.Pinger

	Create(ctx context.Context, doc *runstore.Document) error
	UpsertResults(ctx context.Context, key runstore.Key, batch *runstore.Batch) error
	MarkComplete(ctx context.Context, key runstore.Key, completion runstore.Completion) error
	GetByRunID(ctx context.Context, projectID, runID string) (*runstore.Document, error)
	ListByExperiment(ctx context.Context, projectID, experimentID, cursor string, limit int) (runstore.Page, error)
}

// Options configures the Mongo client implementation.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo   *mongodriver.Client
	coll    collection
	timeout time.Duration
}

// New returns a Client backed by the provided MongoDB client.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(collName)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	wrapper := mongoCollection{coll: mcoll}
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newClientWithCollection(opts.Client, wrapper, timeout)
}

func (c *client) Name() string {
	return clientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

// Create registers the run document; a document that already exists is left
// untouched.
func (c *client) Create(ctx context.Context, doc *runstore.Document) error {
	if doc == nil {
		return errors.New("document is required")
	}
	if doc.ProjectID == "" || doc.RunID == "" {
		return errors.New("project id and run id are required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	update := bson.M{
		"$setOnInsert": toRunDocument(doc),
	}
	_, err := c.coll.UpdateOne(ctx, keyFilter(doc.Key), update, options.UpdateOne().SetUpsert(true))
	return err
}

// UpsertResults merges the batch into the run document. Each item first
// attempts an in-place update of its merge key; items with no existing match
// are pushed. The whole merge retries on races with concurrent writers.
func (c *client) UpsertResults(ctx context.Context, key runstore.Key, batch *runstore.Batch) error {
	if batch.Empty() {
		return nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	for _, entry := range batch.Dataset {
		if err := c.mergeDatasetEntry(ctx, key, entry); err != nil {
			return err
		}
	}
	for _, eval := range batch.Evaluations {
		if err := c.mergeEvaluation(ctx, key, eval); err != nil {
			return err
		}
	}
	if batch.Progress != nil {
		update := bson.M{"$set": bson.M{
			"progress": batch.Progress.Completed,
			"total":    batch.Progress.Total,
		}}
		if _, err := c.coll.UpdateOne(ctx, keyFilter(key), update); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
	}
	return nil
}

func (c *client) mergeDatasetEntry(ctx context.Context, key runstore.Key, entry runstore.DatasetEntry) error {
	doc := toDatasetEntryDocument(entry)
	matchFilter := keyFilter(key)
	matchFilter["dataset"] = bson.M{"$elemMatch": bson.M{
		"index":     entry.Index,
		"target_id": entry.TargetID,
	}}
	pushFilter := keyFilter(key)
	pushFilter["dataset"] = bson.M{"$not": bson.M{"$elemMatch": bson.M{
		"index":     entry.Index,
		"target_id": entry.TargetID,
	}}}

	var lastErr error
	for attempt := 0; attempt < mergeAttempts; attempt++ {
		res, err := c.coll.UpdateOne(ctx, matchFilter, bson.M{"$set": bson.M{"dataset.$": doc}})
		if err != nil {
			lastErr = err
			continue
		}
		if res.MatchedCount > 0 {
			return nil
		}
		res, err = c.coll.UpdateOne(ctx, pushFilter, bson.M{"$push": bson.M{"dataset": doc}})
		if err != nil {
			lastErr = err
			continue
		}
		if res.MatchedCount > 0 {
			return nil
		}
		// Neither filter matched: a concurrent writer pushed the same merge
		// key between our two updates. Retry the in-place path.
		lastErr = errors.New("dataset entry merge raced")
	}
	return fmt.Errorf("merge dataset entry (%d,%s): %w", entry.Index, entry.TargetID, lastErr)
}

func (c *client) mergeEvaluation(ctx context.Context, key runstore.Key, eval runstore.Evaluation) error {
	doc := toEvaluationDocument(eval)
	elem := bson.M{
		"index":     eval.Index,
		"evaluator": eval.Evaluator,
		"target_id": eval.TargetID,
	}
	matchFilter := keyFilter(key)
	matchFilter["evaluations"] = bson.M{"$elemMatch": elem}
	pushFilter := keyFilter(key)
	pushFilter["evaluations"] = bson.M{"$not": bson.M{"$elemMatch": elem}}

	var lastErr error
	for attempt := 0; attempt < mergeAttempts; attempt++ {
		res, err := c.coll.UpdateOne(ctx, matchFilter, bson.M{"$set": bson.M{"evaluations.$": doc}})
		if err != nil {
			lastErr = err
			continue
		}
		if res.MatchedCount > 0 {
			return nil
		}
		res, err = c.coll.UpdateOne(ctx, pushFilter, bson.M{"$push": bson.M{"evaluations": doc}})
		if err != nil {
			lastErr = err
			continue
		}
		if res.MatchedCount > 0 {
			return nil
		}
		lastErr = errors.New("evaluation merge raced")
	}
	return fmt.Errorf("merge evaluation (%d,%s,%s): %w", eval.Index, eval.Evaluator, eval.TargetID, lastErr)
}

// MarkComplete records the terminal timestamp on the run document.
func (c *client) MarkComplete(ctx context.Context, key runstore.Key, completion runstore.Completion) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	set := bson.M{}
	if completion.FinishedAt != nil {
		set["finished_at"] = *completion.FinishedAt
	}
	if completion.StoppedAt != nil {
		set["stopped_at"] = *completion.StoppedAt
	}
	if len(set) == 0 {
		return nil
	}
	_, err := c.coll.UpdateOne(ctx, keyFilter(key), bson.M{"$set": set})
	return err
}

// GetByRunID returns the run document, or nil when absent.
func (c *client) GetByRunID(ctx context.Context, projectID, runID string) (*runstore.Document, error) {
	if projectID == "" || runID == "" {
		return nil, errors.New("project id and run id are required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"project_id": projectID, "run_id": runID}
	var doc runDocument
	if err := c.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return fromRunDocument(&doc), nil
}

// ListByExperiment pages through an experiment's runs ordered by run id. The
// cursor is the last run id of the previous page; an empty cursor starts from
// the beginning.
func (c *client) ListByExperiment(ctx context.Context, projectID, experimentID, cursor string, limit int) (runstore.Page, error) {
	if projectID == "" || experimentID == "" {
		return runstore.Page{}, errors.New("project id and experiment id are required")
	}
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"project_id": projectID, "experiment_id": experimentID}
	if cursor != "" {
		filter["run_id"] = bson.M{"$gt": cursor}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "run_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return runstore.Page{}, err
	}
	defer cur.Close(ctx)

	var page runstore.Page
	for cur.Next(ctx) {
		var doc runDocument
		if err := cur.Decode(&doc); err != nil {
			return runstore.Page{}, err
		}
		page.Runs = append(page.Runs, fromRunDocument(&doc))
	}
	if err := cur.Err(); err != nil {
		return runstore.Page{}, err
	}
	if len(page.Runs) == limit {
		page.NextCursor = page.Runs[len(page.Runs)-1].RunID
	}
	return page, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func keyFilter(key runstore.Key) bson.M {
	filter := bson.M{"project_id": key.ProjectID, "run_id": key.RunID}
	if key.ExperimentID != "" {
		filter["experiment_id"] = key.ExperimentID
	}
	return filter
}

func ensureIndexes(ctx context.Context, coll collection) error {
	indexes := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "run_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "experiment_id", Value: 1}, {Key: "run_id", Value: 1}},
		},
	}
	for _, index := range indexes {
		if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
			return err
		}
	}
	return nil
}

func newClientWithCollection(mongoClient *mongodriver.Client, coll collection, timeout time.Duration) (*client, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &client{
		mongo:   mongoClient,
		coll:    coll,
		timeout: timeout,
	}, nil
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error)
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	return c.coll.Find(ctx, filter, opts...)
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
