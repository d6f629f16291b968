// Package abort coordinates cooperative run cancellation through the shared
// key-value store. Abort requests are sticky until cleared, survive
// orchestrator crashes (the TTL eventually sweeps them), and are observed by
// polling between cells and between sub-steps of a cell.
package abort

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/crucible-ai/crucible/runtime/eval/kv"
	"github.com/crucible-ai/crucible/runtime/eval/telemetry"
)

const (
	abortKeyPrefix   = "abort:"
	runningKeyPrefix = "running:"

	// keyTTL bounds the lifetime of abort and running keys so crashed runs
	// do not leak them.
	keyTTL = time.Hour
)

// Coordinator publishes and observes per-run abort flags and liveness
// markers. A nil or unavailable KV store degrades gracefully: writes become
// logged no-ops and IsAborted reports false.
type Coordinator struct {
	store  kv.Store
	logger telemetry.Logger
}

// Options configures the coordinator.
type Options struct {
	// Store is the shared KV store. Required.
	Store kv.Store
	// Logger receives KV failure logs. Defaults to a no-op logger.
	Logger telemetry.Logger
}

// New builds a coordinator over the given KV store.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, errors.New("kv store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Coordinator{store: opts.Store, logger: logger}, nil
}

// RequestAbort marks the run for cancellation. Idempotent; repeated calls are
// no-ops. KV failures are logged and swallowed.
func (c *Coordinator) RequestAbort(ctx context.Context, runID string) {
	if err := c.store.Set(ctx, abortKeyPrefix+runID, "1", keyTTL); err != nil {
		c.logger.Warn(ctx, "abort request not persisted", "run_id", runID, "err", err)
	}
}

// IsAborted reports whether an abort has been requested for the run. Returns
// false when the KV store is unavailable.
func (c *Coordinator) IsAborted(ctx context.Context, runID string) bool {
	val, ok, err := c.store.Get(ctx, abortKeyPrefix+runID)
	if err != nil {
		c.logger.Warn(ctx, "abort flag read failed", "run_id", runID, "err", err)
		return false
	}
	return ok && val == "1"
}

// ClearAbort removes the run's abort flag.
func (c *Coordinator) ClearAbort(ctx context.Context, runID string) {
	if err := c.store.Del(ctx, abortKeyPrefix+runID); err != nil {
		c.logger.Warn(ctx, "abort flag not cleared", "run_id", runID, "err", err)
	}
}

// SetRunning marks the run as live; the value is the current millisecond
// timestamp.
func (c *Coordinator) SetRunning(ctx context.Context, runID string) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := c.store.Set(ctx, runningKeyPrefix+runID, now, keyTTL); err != nil {
		c.logger.Warn(ctx, "running marker not persisted", "run_id", runID, "err", err)
	}
}

// ClearRunning removes the run's liveness marker.
func (c *Coordinator) ClearRunning(ctx context.Context, runID string) {
	if err := c.store.Del(ctx, runningKeyPrefix+runID); err != nil {
		c.logger.Warn(ctx, "running marker not cleared", "run_id", runID, "err", err)
	}
}

// Clear removes both the abort flag and the liveness marker in one call. The
// orchestrator invokes it on every exit path.
func (c *Coordinator) Clear(ctx context.Context, runID string) {
	if err := c.store.Del(ctx, abortKeyPrefix+runID, runningKeyPrefix+runID); err != nil {
		c.logger.Warn(ctx, "run keys not cleared", "run_id", runID, "err", err)
	}
}
