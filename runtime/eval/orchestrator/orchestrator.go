// Package orchestrator drives grids of (dataset row, target) cells against
// the remote execution backend: it generates cells for the requested scope,
// executes them in parallel under a bounded semaphore, watches the abort
// coordinator, translates backend events into the public stream, and
// incrementally upserts results into the run store.
//
// The public output of Run is a buffered channel carrying the ordered event
// sequence; the orchestrator closes it on termination. Exactly one
// ExecutionStarted opens the stream and exactly one of Done or Stopped closes
// it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/crucible-ai/crucible/runtime/eval/abort"
	"github.com/crucible-ai/crucible/runtime/eval/backend"
	"github.com/crucible-ai/crucible/runtime/eval/config"
	"github.com/crucible-ai/crucible/runtime/eval/event"
	"github.com/crucible-ai/crucible/runtime/eval/results"
	"github.com/crucible-ai/crucible/runtime/eval/runstate"
	"github.com/crucible-ai/crucible/runtime/eval/runstore"
	"github.com/crucible-ai/crucible/runtime/eval/semaphore"
	"github.com/crucible-ai/crucible/runtime/eval/telemetry"
	"github.com/crucible-ai/crucible/runtime/eval/workflow"
)

// defaultConcurrency bounds concurrent cells when Options.Concurrency is
// unset.
const defaultConcurrency = 5

// Options configures an Orchestrator.
type Options struct {
	// Backend executes components. Required.
	Backend backend.Client
	// Abort coordinates cooperative cancellation. Optional; without it runs
	// cannot be aborted.
	Abort *abort.Coordinator
	// Store persists run documents. Nil disables persistence.
	Store runstore.Store
	// States persists pollable run snapshots. Optional.
	States *runstate.Store
	// Sinks receive every public event in stream order, best effort.
	Sinks []event.Sink
	// Logger, Metrics and Tracer default to no-ops.
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
	// Concurrency caps concurrently executing cells. Defaults to 5.
	Concurrency int
}

// Orchestrator executes evaluation runs. Safe for concurrent use; each Run
// owns its own state.
type Orchestrator struct {
	backend     backend.Client
	abort       *abort.Coordinator
	store       runstore.Store
	states      *runstate.Store
	sinks       []event.Sink
	logger      telemetry.Logger
	metrics     telemetry.Metrics
	tracer      telemetry.Tracer
	concurrency int
}

// Request describes one evaluation run. The caller resolves all references
// (prompts, agents, evaluators) and normalizes dataset column ids to names
// before submitting.
type Request struct {
	ProjectID    string
	ExperimentID string
	// RunID is used verbatim when set; otherwise a three-word slug is
	// generated.
	RunID string

	Scope      config.Scope
	Targets    []config.TargetConfig
	Evaluators []config.EvaluatorConfig
	Dataset    config.Dataset
	References *config.References
}

// New validates the options and builds an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Backend == nil {
		return nil, errors.New("backend client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Orchestrator{
		backend:     opts.Backend,
		abort:       opts.Abort,
		store:       opts.Store,
		states:      opts.States,
		sinks:       opts.Sinks,
		logger:      logger,
		metrics:     metrics,
		tracer:      tracer,
		concurrency: concurrency,
	}, nil
}

// Run starts the evaluation and returns the ordered public event stream. The
// channel is closed when the run terminates; the caller must drain it.
// Request validation errors are returned before any event is emitted.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (<-chan event.Event, error) {
	if req == nil {
		return nil, errors.New("request is required")
	}
	if req.ProjectID == "" {
		return nil, errors.New("project id is required")
	}
	if len(req.Targets) == 0 {
		return nil, errors.New("at least one target is required")
	}
	for i := range req.Targets {
		if id := req.Targets[i].ID; results.ParseNodeID(id).EvaluatorID != "" {
			return nil, fmt.Errorf("target id %q must not contain a dot", id)
		}
	}

	cells, err := generateCells(req)
	if err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = newRunID()
	}

	r := &run{
		orc:       o,
		req:       req,
		runID:     runID,
		cells:     cells,
		total:     len(cells),
		queue:     newEventQueue(),
		assembler: workflow.NewAssembler(req.References),
		mapper:    results.NewMapper(targetNodeIDs(req), results.StripSet(req.Evaluators, req.References)),
	}
	if o.store != nil {
		key := runstore.Key{ProjectID: req.ProjectID, ExperimentID: req.ExperimentID, RunID: runID}
		r.batcher = newStoreBatcher(o.store, key, req, cells, o.logger)
	}

	out := make(chan event.Event, 64)
	go r.forward(ctx, out)
	go r.drive(ctx)
	return out, nil
}

// targetNodeIDs lists the node ids the mapper routes to target results.
func targetNodeIDs(req *Request) []string {
	ids := make([]string, 0, len(req.Targets))
	for i := range req.Targets {
		ids = append(ids, req.Targets[i].ID)
	}
	return ids
}

// run owns all in-flight state of one orchestration.
type run struct {
	orc   *Orchestrator
	req   *Request
	runID string

	cells []*config.Cell
	total int

	queue     *eventQueue
	assembler *workflow.Assembler
	mapper    *results.Mapper
	batcher   *storeBatcher

	mu             sync.Mutex
	completedCells int
	failedCells    int

	startedAt time.Time
}

// drive is the main loop: startup bookkeeping, parallel cell execution under
// the semaphore, termination and cleanup. It closes the event queue on every
// exit path; remaining events drain through the forwarder first.
func (r *run) drive(ctx context.Context) {
	o := r.orc
	r.startedAt = time.Now()

	defer func() {
		if o.abort != nil {
			o.abort.Clear(ctx, r.runID)
		}
		r.queue.close()
	}()

	if o.abort != nil {
		o.abort.SetRunning(ctx, r.runID)
	}
	if o.store != nil {
		doc := &runstore.Document{
			Key:       runstore.Key{ProjectID: r.req.ProjectID, ExperimentID: r.req.ExperimentID, RunID: r.runID},
			Targets:   targetMetadata(r.req),
			Total:     r.total,
			CreatedAt: r.startedAt.UnixMilli(),
		}
		if err := o.store.Create(ctx, doc); err != nil {
			o.logger.Error(ctx, "run document creation failed", "run_id", r.runID, "err", err)
		}
	}

	r.queue.push(&event.ExecutionStarted{RunID: r.runID, Total: r.total})

	sem := semaphore.New(o.concurrency)
	var wg sync.WaitGroup
	aborted := false
	for _, cell := range r.cells {
		if r.isAborted(ctx) {
			aborted = true
			break
		}
		sem.Acquire()
		if r.isAborted(ctx) {
			sem.Release()
			aborted = true
			break
		}
		wg.Add(1)
		go func(c *config.Cell) {
			defer wg.Done()
			defer sem.Release()
			r.executeCell(ctx, c)
		}(cell)
	}
	wg.Wait()

	// An abort raised after the loop dispatched its last cell still
	// terminates the run as stopped.
	if !aborted && r.isAborted(ctx) {
		aborted = true
	}

	if aborted {
		r.queue.push(&event.Stopped{Reason: event.StopUser})
		return
	}
	finished := time.Now()
	r.mu.Lock()
	summary := event.Summary{
		RunID:          r.runID,
		TotalCells:     r.total,
		CompletedCells: r.completedCells,
		FailedCells:    r.failedCells,
		DurationMS:     finished.Sub(r.startedAt).Milliseconds(),
		StartedAt:      r.startedAt.UnixMilli(),
		FinishedAt:     finished.UnixMilli(),
	}
	r.mu.Unlock()
	r.queue.push(&event.Done{Summary: summary})
}

// forward is the single consumer of the hand-off queue. It preserves arrival
// order while fanning each event to the batcher, the run state snapshot, the
// auxiliary sinks and finally the public channel. After the queue drains it
// finalizes the run store document and closes the channel.
func (r *run) forward(ctx context.Context, out chan<- event.Event) {
	o := r.orc
	state := r.newState()

	var completion runstore.Completion
	for {
		e, ok := r.queue.pop()
		if !ok {
			break
		}
		if r.batcher != nil {
			r.batcher.observe(ctx, e)
		}
		if state != nil {
			r.updateState(ctx, state, e)
		}
		for _, sink := range o.sinks {
			if err := sink.Send(ctx, r.runID, e); err != nil {
				o.logger.Warn(ctx, "event sink delivery failed", "run_id", r.runID, "type", e.Type(), "err", err)
			}
		}
		switch te := e.(type) {
		case *event.Done:
			finishedAt := te.Summary.FinishedAt
			completion.FinishedAt = &finishedAt
		case *event.Stopped:
			stoppedAt := time.Now().UnixMilli()
			completion.StoppedAt = &stoppedAt
		}
		out <- e
	}

	if r.batcher != nil {
		r.batcher.complete(ctx, completion)
	}
	close(out)
}

func (r *run) newState() *runstate.State {
	if r.orc.states == nil {
		return nil
	}
	return &runstate.State{
		RunID:        r.runID,
		ProjectID:    r.req.ProjectID,
		ExperimentID: r.req.ExperimentID,
		Status:       runstate.StatusRunning,
		Total:        r.total,
		StartedAt:    time.Now().UnixMilli(),
	}
}

// updateState folds one event into the pollable snapshot and persists it at
// the checkpoints that matter: run start, progress, and termination.
func (r *run) updateState(ctx context.Context, state *runstate.State, e event.Event) {
	state.RecordEvent(e)
	save := false
	switch te := e.(type) {
	case *event.ExecutionStarted:
		save = true
	case *event.Progress:
		state.Progress = te.Completed
		save = true
	case *event.Error:
		if te.RowIndex == nil {
			msg := te.Message
			state.Error = &msg
		}
	case *event.Done:
		state.Status = runstate.StatusCompleted
		state.Summary = &te.Summary
		finishedAt := te.Summary.FinishedAt
		state.FinishedAt = &finishedAt
		save = true
	case *event.Stopped:
		state.Status = runstate.StatusStopped
		stoppedAt := time.Now().UnixMilli()
		state.FinishedAt = &stoppedAt
		save = true
	}
	if !save {
		return
	}
	if err := r.orc.states.Save(ctx, state); err != nil {
		r.orc.logger.Warn(ctx, "run state save failed", "run_id", r.runID, "err", err)
	}
}

func (r *run) isAborted(ctx context.Context) bool {
	if r.orc.abort == nil {
		return false
	}
	return r.orc.abort.IsAborted(ctx, r.runID)
}

// executeCell runs one cell end to end and accounts for it. Cells that abort
// mid-stream are not counted; everything else increments exactly one of the
// completed or failed counters and emits the cell's progress event after its
// final sub-event.
func (r *run) executeCell(ctx context.Context, cell *config.Cell) {
	o := r.orc
	ctx, span := o.tracer.Start(ctx, "eval.cell", trace.WithAttributes(
		attribute.Int("row_index", cell.RowIndex),
		attribute.String("target_id", cell.Target.ID),
	))
	defer span.End()
	start := time.Now()

	failed, finished := r.runCell(ctx, cell)
	if !finished {
		return
	}

	r.mu.Lock()
	if failed {
		r.failedCells++
	} else {
		r.completedCells++
	}
	completed := r.completedCells + r.failedCells
	r.mu.Unlock()

	r.queue.push(&event.Progress{Completed: completed, Total: r.total})

	outcome := "completed"
	if failed {
		outcome = "failed"
	}
	o.metrics.IncCounter("eval.cells", 1, "outcome", outcome)
	o.metrics.RecordTimer("eval.cell.duration", time.Since(start))
}

// runCell performs the cell's sub-steps. The first return reports whether the
// cell failed; the second whether its event loop finished (false when the
// cell stopped on an abort check).
func (r *run) runCell(ctx context.Context, cell *config.Cell) (failed, finished bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.pushCellError(cell, fmt.Errorf("cell panicked: %v", rec))
			failed, finished = true, true
		}
	}()

	r.queue.push(&event.CellStarted{RowIndex: cell.RowIndex, TargetID: cell.Target.ID})

	assembly, err := r.assembler.Assemble(cell)
	if err != nil {
		r.pushCellError(cell, err)
		return true, true
	}

	traceID := cell.TraceID
	if traceID == "" {
		traceID = newTraceID()
	}

	var targetOutput map[string]any
	targetFailed := false

	if cell.SkipTarget && cell.PrecomputedOutput != nil {
		// Evaluator rerun: the provided output stands in for the target and
		// no target_result is emitted.
		targetOutput = wrapPrecomputedOutput(cell)
	} else {
		targetOutput, targetFailed, finished = r.runTarget(ctx, cell, assembly, traceID)
		if !finished {
			return targetFailed, false
		}
	}

	if r.isAborted(ctx) {
		return targetFailed, false
	}

	if !targetFailed && targetOutput != nil {
		for i := range cell.Evaluators {
			if r.isAborted(ctx) {
				return targetFailed, false
			}
			if ok := r.runEvaluator(ctx, cell, assembly, &cell.Evaluators[i], targetOutput, traceID); !ok {
				return targetFailed, false
			}
		}
	}

	return targetFailed, true
}

// runTarget submits the target node and collects its stream. It returns the
// raw success outputs (feeding evaluator input resolution), whether the
// target failed, and whether the loop finished without hitting an abort.
func (r *run) runTarget(ctx context.Context, cell *config.Cell, assembly *workflow.Assembly, traceID string) (outputs map[string]any, targetFailed, finished bool) {
	stream, err := r.orc.backend.ExecuteComponent(ctx, &backend.ExecuteRequest{
		TraceID:  traceID,
		Workflow: assembly.Workflow,
		NodeID:   assembly.TargetNodeID,
		Inputs:   targetInputs(cell),
	}, r.abortedFn(ctx))
	if err != nil {
		r.queue.push(&event.TargetResult{
			RowIndex: cell.RowIndex,
			TargetID: cell.Target.ID,
			TraceID:  traceID,
			Error:    err.Error(),
		})
		return nil, true, true
	}

	for be := range stream {
		if mapped := r.mapper.Map(cell.RowIndex, be); mapped != nil {
			r.queue.push(mapped)
		}
		if state := be.Payload.ExecutionState; state != nil && be.Payload.ComponentID == assembly.TargetNodeID {
			switch state.Status {
			case backend.StatusSuccess:
				outputs = state.Outputs
			case backend.StatusError:
				targetFailed = true
			}
		}
		if r.isAborted(ctx) {
			return outputs, targetFailed, false
		}
	}
	return outputs, targetFailed, true
}

// runEvaluator submits one evaluator node on the cell's trace. Submission
// failures synthesize an error verdict and do not stop the remaining
// evaluators. The return is false only when an abort interrupted the stream.
func (r *run) runEvaluator(ctx context.Context, cell *config.Cell, assembly *workflow.Assembly, ev *config.EvaluatorConfig, targetOutput map[string]any, traceID string) bool {
	ctx, span := r.orc.tracer.Start(ctx, "eval.evaluator", trace.WithAttributes(
		attribute.String("evaluator_id", ev.ID),
	))
	defer span.End()

	stream, err := r.orc.backend.ExecuteComponent(ctx, &backend.ExecuteRequest{
		TraceID:  traceID,
		Workflow: assembly.Workflow,
		NodeID:   cell.Target.ID + "." + ev.ID,
		Inputs:   evaluatorInputs(cell, ev, targetOutput),
	}, r.abortedFn(ctx))
	if err != nil {
		r.queue.push(&event.EvaluatorResult{
			RowIndex:    cell.RowIndex,
			TargetID:    cell.Target.ID,
			EvaluatorID: ev.ID,
			Result:      event.ErrorResult("EvaluatorError", err.Error()),
		})
		return true
	}

	for be := range stream {
		if mapped := r.mapper.Map(cell.RowIndex, be); mapped != nil {
			r.queue.push(mapped)
		}
		if r.isAborted(ctx) {
			return false
		}
	}
	return true
}

// abortedFn is the cancellation callback handed to the backend so it can stop
// streaming early.
func (r *run) abortedFn(ctx context.Context) func() bool {
	return func() bool { return r.isAborted(ctx) }
}

func (r *run) pushCellError(cell *config.Cell, err error) {
	rowIndex := cell.RowIndex
	r.queue.push(&event.Error{
		Message:  err.Error(),
		RowIndex: &rowIndex,
		TargetID: cell.Target.ID,
	})
}
