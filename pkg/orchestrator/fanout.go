package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mediapulse/patternlab/pkg/models"
	"github.com/mediapulse/patternlab/pkg/tool"
)

// plannedCall is one tool invocation a turn wants dispatched.
type plannedCall struct {
	name   string
	params map[string]any
}

// callOutcome is the joined result of one planned call.
type callOutcome struct {
	call plannedCall
	// record is nil for cache hits, which leave no trace in the tool-call
	// log and consume no budget.
	record *models.ToolCallRecord
	resp   *models.ToolResponse
	// discarded marks a result that arrived after the session deadline.
	// Its budget consumption is recorded but its data never reaches state.
	discarded bool
}

// succeeded reports whether this outcome carries usable data.
func (c callOutcome) succeeded() bool {
	return !c.discarded && c.resp != nil && c.resp.Success
}

// dispatch executes a turn's planned calls and joins all results before
// returning. Calls are fanned out concurrently when the configuration allows
// it and every tool involved is parallel-safe; otherwise they run serially.
// The concurrency ceiling is the remaining tool-call budget: calls beyond it
// are marked skipped without executing.
func (o *Orchestrator) dispatch(
	ctx context.Context,
	r *run,
	decision models.RoutingDecision,
	calls []plannedCall,
) []callOutcome {
	if len(calls) == 0 {
		return nil
	}
	callCtx := tool.CallContext{
		RequestID: r.sess.ID,
		Mode:      r.cfg.Mode,
		Tier:      decision.Tier,
	}
	if r.cfg.ParallelExecution && len(calls) > 1 && o.allParallelSafe(calls) {
		return o.dispatchParallel(ctx, r, callCtx, calls)
	}
	return o.dispatchSerial(ctx, r, callCtx, calls)
}

func (o *Orchestrator) allParallelSafe(calls []plannedCall) bool {
	for _, call := range calls {
		def, ok := o.registry.Get(call.name)
		if !ok || !def.ParallelSafe {
			return false
		}
	}
	return true
}

// dispatchSerial runs calls one at a time on the session's control flow.
func (o *Orchestrator) dispatchSerial(
	ctx context.Context,
	r *run,
	callCtx tool.CallContext,
	calls []plannedCall,
) []callOutcome {
	outcomes := make([]callOutcome, 0, len(calls))
	for _, call := range calls {
		def, admitted := o.admit(r, call)
		if !admitted {
			outcomes = append(outcomes, skippedOutcome(call))
			continue
		}
		resp := o.wrapped(r, def)(ctx, call.params, callCtx)
		outcomes = append(outcomes, o.settle(r, call, def, resp, time.Now()))
	}
	return outcomes
}

// dispatchParallel fans calls out concurrently and performs a join barrier:
// no result is merged until every admitted call has completed or the session
// deadline has passed. Late results are drained in the background so their
// budget consumption is still recorded, but their data is discarded.
func (o *Orchestrator) dispatchParallel(
	ctx context.Context,
	r *run,
	callCtx tool.CallContext,
	calls []plannedCall,
) []callOutcome {
	outcomes := make([]callOutcome, len(calls))
	ceiling := r.tracker.Remaining().ToolCalls

	var inflight []launchedCall
	results := make(chan fanoutCompletion, len(calls))
	for i, call := range calls {
		def, admitted := o.admit(r, call)
		if !admitted || len(inflight) >= ceiling {
			outcomes[i] = skippedOutcome(call)
			continue
		}
		l := launchedCall{idx: i, call: call, def: def, started: time.Now()}
		inflight = append(inflight, l)
		handler := o.wrapped(r, def)
		go func() {
			results <- fanoutCompletion{idx: l.idx, resp: handler(ctx, l.call.params, callCtx)}
		}()
	}

	byIdx := make(map[int]launchedCall, len(inflight))
	for _, l := range inflight {
		byIdx[l.idx] = l
	}

	remaining := len(inflight)
	for remaining > 0 {
		select {
		case done := <-results:
			l := byIdx[done.idx]
			outcomes[done.idx] = o.settle(r, l.call, l.def, done.resp, l.started)
			delete(byIdx, done.idx)
			remaining--
		case <-ctx.Done():
			// Deadline: stop waiting. In-flight calls are not killed; their
			// eventual results are drained for budget accounting only.
			for idx, l := range byIdx {
				outcomes[idx] = callOutcome{call: l.call, discarded: true}
			}
			o.drainLate(r, byIdx, results)
			return outcomes
		}
	}
	return outcomes
}

// launchedCall tracks one in-flight fan-out call.
type launchedCall struct {
	idx     int
	call    plannedCall
	def     tool.Definition
	started time.Time
}

// fanoutCompletion is one joined fan-out result.
type fanoutCompletion struct {
	idx  int
	resp *models.ToolResponse
}

// drainLate consumes results that arrive after the deadline, recording their
// budget consumption without letting the data near session state.
func (o *Orchestrator) drainLate(r *run, pending map[int]launchedCall, results chan fanoutCompletion) {
	remaining := len(pending)
	if remaining == 0 {
		return
	}
	go func() {
		for i := 0; i < remaining; i++ {
			done := <-results
			l := pending[done.idx]
			if done.resp != nil && !done.resp.Metadata.Cached {
				r.tracker.RecordToolCall(l.def.Name, l.def.EstimatedTokens, l.def.EstimatedCost)
			}
			r.logger.Debug("late fan-out result discarded", "tool", l.def.Name)
		}
	}()
}

// admit resolves the definition and runs the pre-dispatch admission check.
func (o *Orchestrator) admit(r *run, call plannedCall) (tool.Definition, bool) {
	def, ok := o.registry.Get(call.name)
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", call.name)
		return tool.Definition{}, false
	}
	if !r.tracker.CanExecute(def.Name, def.EstimatedTokens) {
		r.logger.Info("tool call skipped, budget admission denied", "tool", def.Name)
		return def, false
	}
	return def, true
}

// settle turns a wrapped-handler response into an outcome, recording budget
// consumption for executed (non-cached) calls.
func (o *Orchestrator) settle(
	r *run,
	call plannedCall,
	def tool.Definition,
	resp *models.ToolResponse,
	started time.Time,
) callOutcome {
	if resp != nil && resp.Metadata.Cached {
		return callOutcome{call: call, resp: resp}
	}

	r.tracker.RecordToolCall(def.Name, def.EstimatedTokens, def.EstimatedCost)

	ended := time.Now()
	record := &models.ToolCallRecord{
		ID:         uuid.New().String(),
		ToolName:   def.Name,
		Params:     call.params,
		StartedAt:  started,
		EndedAt:    &ended,
		TokensUsed: def.EstimatedTokens,
	}
	if resp != nil && resp.Success {
		record.Status = models.ToolCallSuccess
	} else {
		record.Status = models.ToolCallError
		if resp != nil {
			record.Error = resp.Error
		}
	}
	return callOutcome{call: call, record: record, resp: resp}
}

// skippedOutcome records an admission-denied call. Skipped records never
// count against the tool-call budget.
func skippedOutcome(call plannedCall) callOutcome {
	now := time.Now()
	return callOutcome{
		call: call,
		record: &models.ToolCallRecord{
			ID:        uuid.New().String(),
			ToolName:  call.name,
			Params:    call.params,
			Status:    models.ToolCallSkipped,
			StartedAt: now,
			EndedAt:   &now,
		},
	}
}

// wrapped builds the guarded handler for one definition with this session's
// budget, cache, and retry settings.
func (o *Orchestrator) wrapped(r *run, def tool.Definition) tool.WrappedHandler {
	var cache *tool.Cache
	if r.cfg.CacheResults {
		cache = o.cache
	}
	return tool.Wrap(tool.WrapConfig{
		Def:        def,
		Budget:     r.tracker,
		Cache:      cache,
		Timeout:    r.cfg.ToolTimeout,
		MaxRetries: r.cfg.RetryAttempts,
	})
}

// records collects the non-nil tool-call records from a joined batch.
func records(outcomes []callOutcome) []models.ToolCallRecord {
	var out []models.ToolCallRecord
	for _, o := range outcomes {
		if o.record != nil {
			out = append(out, *o.record)
		}
	}
	return out
}

// failureErrors converts failed outcomes into session error-log entries.
func failureErrors(turn models.TurnType, outcomes []callOutcome) []models.SessionError {
	var out []models.SessionError
	for _, o := range outcomes {
		if o.record == nil || o.record.Status != models.ToolCallError || o.record.Error == nil {
			continue
		}
		out = append(out, models.SessionError{
			Turn:       turn,
			Code:       o.record.Error.Code,
			Message:    o.record.ToolName + ": " + o.record.Error.Message,
			OccurredAt: time.Now(),
		})
	}
	return out
}
