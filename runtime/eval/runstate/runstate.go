// Package runstate persists a compact, pollable snapshot of each run in the
// shared key-value store. Unlike the run-document store, which is the durable
// record, run state is a convenience for polling consumers and expires after
// a day.
package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crucible-ai/crucible/runtime/eval/event"
	"github.com/crucible-ai/crucible/runtime/eval/kv"
)

const (
	stateKeyPrefix = "state:"

	// stateTTL bounds how long a run snapshot stays pollable.
	stateTTL = 24 * time.Hour

	// maxRecentEvents bounds the ring of recent events kept on the state.
	maxRecentEvents = 50
)

// Status enumerates run lifecycle states.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// RecordedEvent is one entry of the recent-event ring: the event type, its
// JSON payload and the capture time in epoch milliseconds.
type RecordedEvent struct {
	Type    event.Type      `json:"type"`
	Payload json.RawMessage `json:"payload"`
	At      int64           `json:"at"`
}

// State is the pollable snapshot of one run.
type State struct {
	RunID        string `json:"runId"`
	ProjectID    string `json:"projectId"`
	ExperimentID string `json:"experimentId,omitempty"`

	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`

	// StartedAt and FinishedAt are epoch milliseconds.
	StartedAt  int64  `json:"startedAt"`
	FinishedAt *int64 `json:"finishedAt,omitempty"`

	Summary *event.Summary `json:"summary,omitempty"`
	Error   *string        `json:"error,omitempty"`

	// RecentEvents is a bounded ring of the latest events, newest last.
	RecentEvents []RecordedEvent `json:"recentEvents,omitempty"`
}

// RecordEvent appends an event to the ring, evicting the oldest entries past
// the bound. Events that fail to marshal are dropped.
func (s *State) RecordEvent(e event.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	s.RecentEvents = append(s.RecentEvents, RecordedEvent{
		Type:    e.Type(),
		Payload: payload,
		At:      time.Now().UnixMilli(),
	})
	if len(s.RecentEvents) > maxRecentEvents {
		s.RecentEvents = s.RecentEvents[len(s.RecentEvents)-maxRecentEvents:]
	}
}

// Store reads and writes run snapshots in the shared KV store.
type Store struct {
	store kv.Store
}

// NewStore builds a run state store over the given KV store.
func NewStore(store kv.Store) (*Store, error) {
	if store == nil {
		return nil, errors.New("kv store is required")
	}
	return &Store{store: store}, nil
}

// Save persists the snapshot under "state:{runId}" with the standard TTL.
func (s *Store) Save(ctx context.Context, state *State) error {
	if state == nil || state.RunID == "" {
		return errors.New("state with run id is required")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	return s.store.Set(ctx, stateKeyPrefix+state.RunID, string(raw), stateTTL)
}

// Load returns the snapshot for the run. The boolean reports whether a
// snapshot exists.
func (s *Store) Load(ctx context.Context, runID string) (*State, bool, error) {
	raw, ok, err := s.store.Get(ctx, stateKeyPrefix+runID)
	if err != nil || !ok {
		return nil, false, err
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, false, fmt.Errorf("unmarshal run state: %w", err)
	}
	return &state, true, nil
}

// Delete removes the snapshot for the run.
func (s *Store) Delete(ctx context.Context, runID string) error {
	return s.store.Del(ctx, stateKeyPrefix+runID)
}
