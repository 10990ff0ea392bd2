package handlers

import (
	"context"
	"time"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

// MaxSleepDurationMs is the hard clamp on any sleep block (§4.4).
const MaxSleepDurationMs = 300_000

// SleepHandler resolves sleep_duration_ms, clamps it to [0,
// MaxSleepDurationMs], and blocks cooperatively: cancellation wakes it
// immediately and fails the step CANCELLED.
func SleepHandler(ctx context.Context, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	ms := logicInt(block, wctx, "sleep_duration_ms", 0)
	if ms < 0 {
		ms = 0
	}
	if ms > MaxSleepDurationMs {
		ms = MaxSleepDurationMs
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return engine.BlockResult{}, nil
	case <-ctx.Done():
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCancelled, "sleep interrupted", ctx.Err())
	}
}
