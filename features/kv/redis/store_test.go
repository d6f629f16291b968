package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeCommands is an in-memory stand-in for the go-redis command subset.
type fakeCommands struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeCommands) Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewStatusResult("", f.err)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Get(ctx context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewStringResult("", f.err)
	}
	val, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(val, nil)
}

func (f *fakeCommands) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewIntResult(0, f.err)
	}
	var removed int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			removed++
		}
		delete(f.values, k)
		delete(f.ttls, k)
	}
	return goredis.NewIntResult(removed, nil)
}

func newTestStore(cmds commands) *Store {
	return &Store{redis: cmds, timeout: time.Second}
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestSetGetDel(t *testing.T) {
	cmds := newFakeCommands()
	store := newTestStore(cmds)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "abort:run-1", "1", time.Hour))
	require.Equal(t, time.Hour, cmds.ttls["abort:run-1"])

	val, ok, err := store.Get(ctx, "abort:run-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", val)

	require.NoError(t, store.Del(ctx, "abort:run-1"))
	_, ok, err = store.Get(ctx, "abort:run-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetMissingIsNotAnError(t *testing.T) {
	store := newTestStore(newFakeCommands())
	val, ok, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, val)
}

func TestDelIgnoresEmptyKeyList(t *testing.T) {
	cmds := newFakeCommands()
	cmds.err = errors.New("must not be called")
	store := newTestStore(cmds)
	require.NoError(t, store.Del(context.Background()))
}

func TestErrorsPropagate(t *testing.T) {
	cmds := newFakeCommands()
	cmds.err = errors.New("connection refused")
	store := newTestStore(cmds)
	ctx := context.Background()

	require.Error(t, store.Set(ctx, "k", "v", 0))
	_, _, err := store.Get(ctx, "k")
	require.Error(t, err)
	require.Error(t, store.Del(ctx, "k"))
}

func TestName(t *testing.T) {
	store := newTestStore(newFakeCommands())
	require.Equal(t, clientName, store.Name())
}
