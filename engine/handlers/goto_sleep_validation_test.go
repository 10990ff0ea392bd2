package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

func TestGotoHandler(t *testing.T) {
	t.Run("missing target is a validation error", func(t *testing.T) {
		block := engine.Block{ID: "b1", Type: engine.BlockGoto}
		_, err := GotoHandler(context.Background(), block, newTestContext(nil))
		var be *engine.BlockError
		if !asBlockError(err, &be) || be.Code != engine.ErrCodeValidation {
			t.Fatalf("expected a validation error, got %v", err)
		}
	})

	t.Run("builds a control signal from logic", func(t *testing.T) {
		block := engine.Block{
			ID:   "b1",
			Type: engine.BlockGoto,
			Logic: map[string]any{
				"goto_target":         "b3",
				"goto_defer":          true,
				"goto_max_concurrent": 5,
				"goto_loop_name":      "retry_loop",
			},
		}
		result, err := GotoHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.ControlSignal == nil || result.ControlSignal.Goto == nil {
			t.Fatal("expected a goto control signal")
		}
		gs := result.ControlSignal.Goto
		if gs.Target != "b3" || !gs.Defer || gs.MaxConcurrent != 5 || gs.LoopName != "retry_loop" {
			t.Errorf("unexpected goto signal: %+v", gs)
		}
	})

	t.Run("defaults max concurrent to 10", func(t *testing.T) {
		block := engine.Block{ID: "b1", Type: engine.BlockGoto, Logic: map[string]any{"goto_target": "b2"}}
		result, _ := GotoHandler(context.Background(), block, newTestContext(nil))
		if result.ControlSignal.Goto.MaxConcurrent != 10 {
			t.Errorf("expected default max concurrent 10, got %d", result.ControlSignal.Goto.MaxConcurrent)
		}
	})
}

func TestSleepHandler(t *testing.T) {
	t.Run("sleeps for the requested duration", func(t *testing.T) {
		block := engine.Block{ID: "b1", Type: engine.BlockSleep, Logic: map[string]any{"sleep_duration_ms": 5}}
		start := time.Now()
		_, err := SleepHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if time.Since(start) < 5*time.Millisecond {
			t.Error("expected the handler to actually wait")
		}
	})

	t.Run("clamps to the max sleep duration", func(t *testing.T) {
		block := engine.Block{ID: "b1", Type: engine.BlockSleep, Logic: map[string]any{"sleep_duration_ms": MaxSleepDurationMs * 10}}
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		_, err := SleepHandler(ctx, block, newTestContext(nil))
		var be *engine.BlockError
		if !asBlockError(err, &be) || be.Code != engine.ErrCodeCancelled {
			t.Fatalf("expected cancellation once the context deadline passes, got %v", err)
		}
	})

	t.Run("cancellation interrupts the sleep", func(t *testing.T) {
		block := engine.Block{ID: "b1", Type: engine.BlockSleep, Logic: map[string]any{"sleep_duration_ms": 60_000}}
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(2 * time.Millisecond)
			cancel()
		}()
		_, err := SleepHandler(ctx, block, newTestContext(nil))
		var be *engine.BlockError
		if !asBlockError(err, &be) || be.Code != engine.ErrCodeCancelled {
			t.Fatalf("expected cancellation, got %v", err)
		}
	})
}

func TestValidationHandler(t *testing.T) {
	t.Run("passes a well-formed scalar", func(t *testing.T) {
		block := engine.Block{
			ID: "b1", Type: engine.BlockValidation,
			Logic: map[string]any{"validation_value": "ava@example.com", "validation_rule": "required,email"},
		}
		result, err := ValidationHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.StateDelta["validation_passed"] != true {
			t.Errorf("expected validation_passed=true, got %v", result.StateDelta)
		}
	})

	t.Run("fails an invalid scalar", func(t *testing.T) {
		block := engine.Block{
			ID: "b1", Type: engine.BlockValidation,
			Logic: map[string]any{"validation_value": "not-an-email", "validation_rule": "required,email"},
		}
		_, err := ValidationHandler(context.Background(), block, newTestContext(nil))
		var be *engine.BlockError
		if !asBlockError(err, &be) || be.Code != engine.ErrCodeValidation {
			t.Fatalf("expected a validation error, got %v", err)
		}
	})

	t.Run("validates an object against a shape", func(t *testing.T) {
		block := engine.Block{
			ID: "b1", Type: engine.BlockValidation,
			Logic: map[string]any{
				"validation_value": map[string]any{"email": "ava@example.com", "age": 30},
				"validation_shape": map[string]any{"email": "required,email", "age": "gte=18"},
			},
		}
		result, err := ValidationHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.StateDelta["validation_passed"] != true {
			t.Errorf("expected validation_passed=true, got %v", result.StateDelta)
		}
	})

	t.Run("reports every failing field in a shape", func(t *testing.T) {
		block := engine.Block{
			ID: "b1", Type: engine.BlockValidation,
			Logic: map[string]any{
				"validation_value": map[string]any{"email": "nope", "age": 10},
				"validation_shape": map[string]any{"email": "required,email", "age": "gte=18"},
			},
		}
		_, err := ValidationHandler(context.Background(), block, newTestContext(nil))
		if err == nil {
			t.Fatal("expected a validation error")
		}
	})

	t.Run("missing rule and shape is a validation error", func(t *testing.T) {
		block := engine.Block{ID: "b1", Type: engine.BlockValidation, Logic: map[string]any{"validation_value": "x"}}
		_, err := ValidationHandler(context.Background(), block, newTestContext(nil))
		var be *engine.BlockError
		if !asBlockError(err, &be) || be.Code != engine.ErrCodeValidation {
			t.Fatalf("expected a validation error, got %v", err)
		}
	})
}
