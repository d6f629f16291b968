// Package mongo wires the runstore.Store interface to the MongoDB client.
package mongo

import (
	"context"
	"errors"

	clientsmongo "github.com/crucible-ai/crucible/features/runstore/mongo/clients/mongo"
	"github.com/crucible-ai/crucible/runtime/eval/runstore"
)

// Options configures the Store wrapper.
type Options struct {
	Client clientsmongo.Client
}

// Store implements runstore.Store by delegating to the Mongo client.
type Store struct {
	client clientsmongo.Client
}

// NewStore builds a Mongo-backed run store using the provided client.
func NewStore(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: opts.Client}, nil
}

// NewStoreFromMongo is a helper that instantiates the underlying client using
// the given options.
func NewStoreFromMongo(opts clientsmongo.Options) (*Store, error) {
	client, err := clientsmongo.New(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(Options{Client: client})
}

// Create registers the run document, a no-op when it already exists.
func (s *Store) Create(ctx context.Context, doc *runstore.Document) error {
	return s.client.Create(ctx, doc)
}

// UpsertResults merges a batch into the run document.
func (s *Store) UpsertResults(ctx context.Context, key runstore.Key, batch *runstore.Batch) error {
	if batch.Empty() {
		return nil
	}
	return s.client.UpsertResults(ctx, key, batch)
}

// MarkComplete records the terminal timestamp.
func (s *Store) MarkComplete(ctx context.Context, key runstore.Key, completion runstore.Completion) error {
	return s.client.MarkComplete(ctx, key, completion)
}

// GetByRunID returns the run document, or nil when absent.
func (s *Store) GetByRunID(ctx context.Context, projectID, runID string) (*runstore.Document, error) {
	return s.client.GetByRunID(ctx, projectID, runID)
}

// ListByExperiment pages through an experiment's runs ordered by run id.
func (s *Store) ListByExperiment(ctx context.Context, projectID, experimentID, cursor string, limit int) (runstore.Page, error) {
	return s.client.ListByExperiment(ctx, projectID, experimentID, cursor, limit)
}
