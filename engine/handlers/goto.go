package handlers

import (
	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

// GotoHandler returns a ControlSignal carrying the target, defer, and
// max-concurrency options; the interpreter (not this handler) does the
// actual branching.
func GotoHandler(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	target := logicString(block, wctx, "goto_target", "")
	if target == "" {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "goto_target is required", nil)
	}
	defer_ := logicBool(block, wctx, "goto_defer", false)
	maxConcurrent := logicInt(block, wctx, "goto_max_concurrent", 10)
	loopName := logicString(block, wctx, "goto_loop_name", "")

	return engine.BlockResult{
		ControlSignal: &engine.ControlSignal{
			Goto: &engine.GotoSignal{
				Target:        target,
				Defer:         defer_,
				MaxConcurrent: maxConcurrent,
				LoopName:      loopName,
			},
		},
	}, nil
}
