package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crucible-ai/crucible/runtime/eval/event"
)

type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	val, ok := f.values[key]
	return val, ok, nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestNewStoreRequiresKV(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	kv := newFakeKV()
	store, err := NewStore(kv)
	require.NoError(t, err)
	ctx := context.Background()

	state := &State{
		RunID:     "brave-blue-otter",
		ProjectID: "p-1",
		Status:    StatusRunning,
		Progress:  3,
		Total:     10,
		StartedAt: time.Now().UnixMilli(),
	}
	require.NoError(t, store.Save(ctx, state))
	require.Equal(t, stateTTL, kv.ttls["state:brave-blue-otter"])

	loaded, ok, err := store.Load(ctx, "brave-blue-otter")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, state.RunID, loaded.RunID)
	require.Equal(t, StatusRunning, loaded.Status)
	require.Equal(t, 3, loaded.Progress)
}

func TestLoadMissing(t *testing.T) {
	store, err := NewStore(newFakeKV())
	require.NoError(t, err)

	_, ok, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveRequiresRunID(t *testing.T) {
	store, err := NewStore(newFakeKV())
	require.NoError(t, err)
	require.Error(t, store.Save(context.Background(), nil))
	require.Error(t, store.Save(context.Background(), &State{}))
}

func TestDelete(t *testing.T) {
	kv := newFakeKV()
	store, err := NewStore(kv)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &State{RunID: "r-1"}))
	require.NoError(t, store.Delete(ctx, "r-1"))
	_, ok, err := store.Load(ctx, "r-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSavePropagatesKVErrors(t *testing.T) {
	kv := newFakeKV()
	kv.err = errors.New("redis down")
	store, err := NewStore(kv)
	require.NoError(t, err)
	require.Error(t, store.Save(context.Background(), &State{RunID: "r-1"}))
}

func TestRecordEventRingIsBounded(t *testing.T) {
	state := &State{RunID: "r-1"}
	for i := 0; i < maxRecentEvents+10; i++ {
		state.RecordEvent(&event.Progress{Completed: i, Total: 100})
	}
	require.Len(t, state.RecentEvents, maxRecentEvents)

	// Newest last; the oldest ten were evicted.
	var first event.Progress
	require.NoError(t, json.Unmarshal(state.RecentEvents[0].Payload, &first))
	require.Equal(t, 10, first.Completed)

	var last event.Progress
	require.NoError(t, json.Unmarshal(state.RecentEvents[len(state.RecentEvents)-1].Payload, &last))
	require.Equal(t, maxRecentEvents+9, last.Completed)
}

func TestRecordEventCapturesTypeAndPayload(t *testing.T) {
	state := &State{RunID: "r-1"}
	state.RecordEvent(&event.ExecutionStarted{RunID: "r-1", Total: 4})

	require.Len(t, state.RecentEvents, 1)
	rec := state.RecentEvents[0]
	require.Equal(t, event.TypeExecutionStarted, rec.Type)
	require.NotZero(t, rec.At)

	var started event.ExecutionStarted
	require.NoError(t, json.Unmarshal(rec.Payload, &started))
	require.Equal(t, 4, started.Total)
}

func TestStateSurvivesJSONRoundTripWithRing(t *testing.T) {
	state := &State{RunID: "r-1", Status: StatusCompleted}
	state.RecordEvent(&event.Done{Summary: event.Summary{RunID: "r-1", TotalCells: 2}})

	raw, err := json.Marshal(state)
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, StatusCompleted, decoded.Status)
	require.Len(t, decoded.RecentEvents, 1)
	require.Equal(t, event.TypeDone, decoded.RecentEvents[0].Type)
}
