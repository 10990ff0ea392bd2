package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moizaamir12/vsync-workflow-sub000/engine/emit"
)

func newTestExecutor(registerFn func(*Registry)) *Executor {
	registry := NewRegistry()
	registerFn(registry)
	return NewExecutor(registry, emit.NewNullEmitter(), nil)
}

func TestExecutor_SuccessfulRunSealsACompletedStep(t *testing.T) {
	x := newTestExecutor(func(r *Registry) {
		r.Register(BlockObject, HandlerFunc(func(_ context.Context, _ Block, _ *WorkflowContext) (BlockResult, error) {
			return BlockResult{StateDelta: map[string]any{"ok": true}}, nil
		}))
	})
	wctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, nil, nil)
	block := Block{ID: "b1", Type: BlockObject}

	step, result, err := x.Execute(context.Background(), block, wctx, "step-1", 0, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Status != StepCompleted {
		t.Errorf("expected a completed step, got %v", step.Status)
	}
	if result.StateDelta["ok"] != true {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestExecutor_UnresolvableBlockTypeFails(t *testing.T) {
	x := newTestExecutor(func(r *Registry) {})
	wctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, nil, nil)
	block := Block{ID: "b1", Type: BlockObject}

	step, _, err := x.Execute(context.Background(), block, wctx, "step-1", 0, time.Second)
	if err == nil {
		t.Fatal("expected an error for an unregistered block type")
	}
	if step.Status != StepFailed {
		t.Errorf("expected a failed step, got %v", step.Status)
	}
}

func TestExecutor_HandlerPanicIsRecoveredAsInternalError(t *testing.T) {
	x := newTestExecutor(func(r *Registry) {
		r.Register(BlockObject, HandlerFunc(func(_ context.Context, _ Block, _ *WorkflowContext) (BlockResult, error) {
			panic("boom")
		}))
	})
	wctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, nil, nil)
	block := Block{ID: "b1", Type: BlockObject}

	step, _, err := x.Execute(context.Background(), block, wctx, "step-1", 0, time.Second)
	if err == nil {
		t.Fatal("expected the panic to surface as an error")
	}
	var be *BlockError
	if !asEngineBlockError(err, &be) || be.Code != ErrCodeInternal {
		t.Fatalf("expected an internal error, got %v", err)
	}
	if step.Status != StepFailed {
		t.Errorf("expected a failed step, got %v", step.Status)
	}
}

func TestExecutor_TimeoutIsClassifiedAsTimeoutError(t *testing.T) {
	x := newTestExecutor(func(r *Registry) {
		r.Register(BlockSleep, HandlerFunc(func(ctx context.Context, _ Block, _ *WorkflowContext) (BlockResult, error) {
			<-ctx.Done()
			return BlockResult{}, ctx.Err()
		}))
	})
	wctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, nil, nil)
	block := Block{ID: "b1", Type: BlockSleep}

	_, _, err := x.Execute(context.Background(), block, wctx, "step-1", 0, 5*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	var be *BlockError
	if !asEngineBlockError(err, &be) || be.Code != ErrCodeTimeout {
		t.Fatalf("expected a timeout error, got %v", err)
	}
}

func TestExecutor_RetriesUpToMaxAttempts(t *testing.T) {
	attempts := 0
	x := newTestExecutor(func(r *Registry) {
		r.Register(BlockObject, HandlerFunc(func(_ context.Context, _ Block, _ *WorkflowContext) (BlockResult, error) {
			attempts++
			if attempts < 3 {
				return BlockResult{}, errors.New("transient")
			}
			return BlockResult{StateDelta: map[string]any{"ok": true}}, nil
		}))
	})
	wctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, nil, nil)
	block := Block{ID: "b1", Type: BlockObject, Retry: &RetryPolicy{
		MaxAttempts: 3, InitialMs: 1, MaxDelayMs: 2,
		Retryable: func(err error) bool { return err != nil },
	}}

	step, _, err := x.Execute(context.Background(), block, wctx, "step-1", 0, time.Second)
	if err != nil {
		t.Fatalf("expected the third attempt to succeed, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
	if step.Status != StepCompleted {
		t.Errorf("expected a completed step, got %v", step.Status)
	}
}

func TestExecutor_StopsRetryingWhenRetryableReturnsFalse(t *testing.T) {
	attempts := 0
	x := newTestExecutor(func(r *Registry) {
		r.Register(BlockObject, HandlerFunc(func(_ context.Context, _ Block, _ *WorkflowContext) (BlockResult, error) {
			attempts++
			return BlockResult{}, errors.New("permanent")
		}))
	})
	wctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, nil, nil)
	block := Block{ID: "b1", Type: BlockObject, Retry: &RetryPolicy{
		MaxAttempts: 5, InitialMs: 1, MaxDelayMs: 2,
		Retryable: func(err error) bool { return false },
	}}

	_, _, err := x.Execute(context.Background(), block, wctx, "step-1", 0, time.Second)
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 1 {
		t.Errorf("expected no retries once Retryable returns false, got %d attempts", attempts)
	}
}
