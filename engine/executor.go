package engine

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/moizaamir12/vsync-workflow-sub000/engine/emit"
)

// Default per-block timeouts (§4.3). A public run gets the shorter budget so
// one misbehaving block can't tie up a shared worker for a full minute.
const (
	DefaultServerBlockTimeout = 60 * time.Second
	DefaultPublicBlockTimeout = 10 * time.Second
)

// Executor runs a single Block against a WorkflowContext: it resolves the
// handler from the registry, enforces a timeout, drives the block's retry
// policy (if any), classifies the terminal error, and seals a Step record.
// This is the Block Executor (C3) in the data flow: Interpreter -> Executor
// -> Handler -> Executor -> Interpreter.
type Executor struct {
	registry *Registry
	emitter  emit.Emitter
	rng      *rand.Rand
}

// NewExecutor builds an Executor. emitter may be emit.NewNullEmitter() if the
// caller doesn't want observability events.
func NewExecutor(registry *Registry, emitter emit.Emitter, rng *rand.Rand) *Executor {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Executor{registry: registry, emitter: emitter, rng: rng}
}

// Execute runs block once to completion (including any configured retries),
// returning the sealed Step and the handler's final BlockResult. It never
// returns a raw error for a handler failure — the failure is captured in
// Step.Error and also returned so the interpreter can apply on_error policy
// without re-deriving it from Step.
func (x *Executor) Execute(ctx context.Context, block Block, wctx *WorkflowContext, stepID string, order int, timeout time.Duration) (Step, BlockResult, error) {
	step := Step{
		StepID:         stepID,
		BlockID:        block.ID,
		BlockType:      block.Type,
		BlockName:      block.Name,
		Status:         StepRunning,
		ExecutionOrder: order,
		StartedAt:      time.Now(),
	}

	x.emitter.Emit(emit.Event{
		RunID:     wctx.Run.ID,
		StepID:    stepID,
		BlockID:   block.ID,
		Msg:       "step.started",
		Timestamp: step.StartedAt,
		Meta:      map[string]any{"block_type": string(block.Type)},
	})

	handler, err := x.registry.Resolve(block.Type)
	if err != nil {
		return x.fail(step, BlockResult{}, err, wctx.Run.ID)
	}

	result, err := x.runWithRetry(ctx, handler, block, wctx, timeout)
	if err != nil {
		return x.fail(step, result, err, wctx.Run.ID)
	}

	step.Status = StepCompleted
	step.DurationMs = time.Since(step.StartedAt).Milliseconds()
	x.emitter.Emit(emit.Event{
		RunID:     wctx.Run.ID,
		StepID:    stepID,
		BlockID:   block.ID,
		Msg:       "step.finished",
		Timestamp: time.Now(),
		Meta:      map[string]any{"status": string(step.Status), "duration_ms": step.DurationMs},
	})
	return step, result, nil
}

func (x *Executor) fail(step Step, result BlockResult, err error, runID string) (Step, BlockResult, error) {
	be := ClassifyError(err)
	step.Status = StepFailed
	step.DurationMs = time.Since(step.StartedAt).Milliseconds()
	step.Error = &StepError{Code: be.Code, Message: be.Error()}
	x.emitter.Emit(emit.Event{
		RunID:     runID,
		StepID:    step.StepID,
		BlockID:   step.BlockID,
		Msg:       "step.finished",
		Timestamp: time.Now(),
		Meta: map[string]any{
			"status":      string(step.Status),
			"duration_ms": step.DurationMs,
			"error":       step.Error.Message,
			"error_code":  string(step.Error.Code),
		},
	})
	return step, result, be
}

// runWithRetry enforces timeout per attempt and retries per block.Retry
// (default: a single attempt, no retry). Handlers for fetch/agent implement
// their own internal upstream retry and generally leave block.Retry unset.
func (x *Executor) runWithRetry(ctx context.Context, handler Handler, block Block, wctx *WorkflowContext, timeout time.Duration) (BlockResult, error) {
	policy := block.Retry
	maxAttempts := 1
	if policy != nil {
		if err := policy.Validate(); err != nil {
			return BlockResult{}, err
		}
		maxAttempts = policy.MaxAttempts
	}

	var lastErr error
	var lastResult BlockResult
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := computeBackoff(attempt-1, policy.InitialMs, policy.MaxDelayMs, x.rng)
			if delay > 0 {
				t := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					t.Stop()
					return BlockResult{}, NewBlockError(ErrCodeCancelled, "cancelled during retry backoff", ctx.Err())
				case <-t.C:
				}
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		result, err := x.runOnce(attemptCtx, handler, block, wctx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		lastErr, lastResult = err, result

		if errors.Is(ctx.Err(), context.Canceled) {
			return lastResult, NewBlockError(ErrCodeCancelled, "run cancelled", ctx.Err())
		}
		if attemptCtx.Err() != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			lastErr = NewBlockError(ErrCodeTimeout, "block exceeded timeout", attemptCtx.Err())
		}
		if policy == nil || !policy.shouldRetry(lastErr) {
			break
		}
	}
	return lastResult, lastErr
}

// runOnce invokes handler.Handle and recovers a panicking handler into an
// INTERNAL_ERROR rather than letting it take the whole run down.
func (x *Executor) runOnce(ctx context.Context, handler Handler, block Block, wctx *WorkflowContext) (result BlockResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewBlockError(ErrCodeInternal, "handler panic", panicError(r))
		}
	}()
	return handler.Handle(ctx, block, wctx)
}

func panicError(r any) error {
	if e, ok := r.(error); ok {
		return e
	}
	return errors.New("panic: " + toJSONish(r))
}
