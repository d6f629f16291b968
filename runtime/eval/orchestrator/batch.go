package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/crucible-ai/crucible/runtime/eval/config"
	"github.com/crucible-ai/crucible/runtime/eval/event"
	"github.com/crucible-ai/crucible/runtime/eval/runstore"
	"github.com/crucible-ai/crucible/runtime/eval/telemetry"
)

const (
	// flushThreshold is the pending item count that forces a flush.
	flushThreshold = 10
	// flushInterval is the maximum age of pending items before a flush.
	flushInterval = 5 * time.Second
)

// storeBatcher accumulates run-store writes and flushes them when enough
// items are pending or enough time has passed. Store failures are logged and
// never surface in the event stream. It is driven exclusively by the run's
// forwarder goroutine so it needs no locking.
type storeBatcher struct {
	store  runstore.Store
	key    runstore.Key
	logger telemetry.Logger

	// entries maps "{rowIndex}:{targetId}" to the cell's dataset entry so
	// persisted records carry the originating row.
	entries map[string]config.Row
	// names maps evaluator config ids to display names.
	names map[string]string

	pending   runstore.Batch
	lastFlush time.Time
}

func newStoreBatcher(store runstore.Store, key runstore.Key, req *Request, cells []*config.Cell, logger telemetry.Logger) *storeBatcher {
	entries := make(map[string]config.Row, len(cells))
	for _, c := range cells {
		entries[entryKey(c.RowIndex, c.Target.ID)] = c.Entry
	}
	return &storeBatcher{
		store:     store,
		key:       key,
		logger:    logger,
		entries:   entries,
		names:     evaluatorNames(req),
		lastFlush: time.Now(),
	}
}

func entryKey(rowIndex int, targetID string) string {
	return fmt.Sprintf("%d:%s", rowIndex, targetID)
}

// observe records the store-relevant part of one public event and flushes
// when thresholds are reached.
func (b *storeBatcher) observe(ctx context.Context, e event.Event) {
	switch ev := e.(type) {
	case *event.TargetResult:
		entry := runstore.DatasetEntry{
			Index:    ev.RowIndex,
			TargetID: ev.TargetID,
			Entry:    b.entries[entryKey(ev.RowIndex, ev.TargetID)],
		}
		// Predicted is present whenever the target produced any output;
		// falsy outputs such as false are still stored.
		if ev.Output != nil {
			entry.Predicted = map[string]any{"output": ev.Output}
		}
		if ev.Cost != nil {
			entry.Cost = &ev.Cost.Amount
		}
		entry.Duration = ev.DurationMS
		if ev.Error != "" {
			msg := ev.Error
			entry.Error = &msg
		}
		if ev.TraceID != "" {
			traceID := ev.TraceID
			entry.TraceID = &traceID
		}
		b.pending.Dataset = append(b.pending.Dataset, entry)

	case *event.EvaluatorResult:
		res := ev.Result
		eval := runstore.Evaluation{
			Evaluator: ev.EvaluatorID,
			Name:      b.names[ev.EvaluatorID],
			TargetID:  ev.TargetID,
			Index:     ev.RowIndex,
			Status:    string(res.Status),
			Score:     res.Score,
			Label:     res.Label,
			Passed:    res.Passed,
			Details:   res.Details,
		}
		if res.Cost != nil {
			eval.Cost = &res.Cost.Amount
		}
		b.pending.Evaluations = append(b.pending.Evaluations, eval)

	case *event.Error:
		if ev.RowIndex == nil || ev.TargetID == "" {
			return
		}
		msg := ev.Message
		b.pending.Dataset = append(b.pending.Dataset, runstore.DatasetEntry{
			Index:    *ev.RowIndex,
			TargetID: ev.TargetID,
			Entry:    b.entries[entryKey(*ev.RowIndex, ev.TargetID)],
			Error:    &msg,
		})

	case *event.Progress:
		// Coalesced: only the latest progress rides along with a flush.
		b.pending.Progress = &runstore.Progress{Completed: ev.Completed, Total: ev.Total}

	default:
		return
	}

	if b.pending.Size() >= flushThreshold || time.Since(b.lastFlush) >= flushInterval {
		b.flush(ctx)
	}
}

// flush writes the pending batch. Failures are logged; the batch is dropped
// either way so one poisoned batch cannot wedge the run.
func (b *storeBatcher) flush(ctx context.Context) {
	if b.pending.Empty() {
		b.lastFlush = time.Now()
		return
	}
	batch := b.pending
	b.pending = runstore.Batch{}
	b.lastFlush = time.Now()
	if err := b.store.UpsertResults(ctx, b.key, &batch); err != nil {
		b.logger.Error(ctx, "run store upsert failed", "run_id", b.key.RunID, "err", err)
	}
}

// complete performs the final flush and records the terminal timestamp.
func (b *storeBatcher) complete(ctx context.Context, completion runstore.Completion) {
	b.flush(ctx)
	if err := b.store.MarkComplete(ctx, b.key, completion); err != nil {
		b.logger.Error(ctx, "run store completion failed", "run_id", b.key.RunID, "err", err)
	}
}
