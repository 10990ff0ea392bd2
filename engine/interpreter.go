package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RunStatus is the terminal (or suspended) status an Interpreter invocation
// produces.
type RunStatus string

const (
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusAwaitingAction RunStatus = "awaiting_action"
	RunStatusCancelled      RunStatus = "cancelled"
)

// RunConfig is the immutable input to a run (§3). Blocks must already be in
// ascending Order; the interpreter indexes them positionally.
type RunConfig struct {
	RunID       string
	OrgID       string
	DeviceID    string
	WorkflowID  string
	VersionID   string
	Platform    string
	TriggerType string
	Blocks      []Block
	Event       map[string]any

	InitialState map[string]any
	Secrets      map[string]any // nil/empty for public runs
	Public       bool
}

// PausedRunState carries enough to reconstruct a WorkflowContext on resume.
type PausedRunState struct {
	CurrentBlockIndex int
	ContextSnapshot   ContextSnapshot
	PausedBlockID     string
	PausedUIConfig    map[string]any
}

// RunResult is what executeRun/resumeRun return to the Execution Service.
type RunResult struct {
	Status  RunStatus
	Steps   []Step
	Context *WorkflowContext
	Error   *BlockError
	Paused  *PausedRunState
}

// CancelChecker reports whether runID has a pending cancellation request.
// The execution service backs this with its process-wide runId->bool flag
// map; the interpreter only ever reads it.
type CancelChecker func(runID string) bool

// Interpreter is the Interpreter (C4): sequences blocks, consumes
// control-flow deltas, enforces run budgets.
type Interpreter struct {
	executor    *Executor
	conditions  *ConditionEvaluator
	cfg         interpreterConfig
	isCancelled CancelChecker
}

// NewInterpreter builds an Interpreter. isCancelled may be nil, in which
// case the run is never cooperatively cancelled by flag (only by ctx or
// run-timeout).
func NewInterpreter(executor *Executor, isCancelled CancelChecker, opts ...Option) *Interpreter {
	cfg := defaultInterpreterConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if isCancelled == nil {
		isCancelled = func(string) bool { return false }
	}
	return &Interpreter{
		executor:    executor,
		conditions:  NewConditionEvaluator(),
		cfg:         cfg,
		isCancelled: isCancelled,
	}
}

// ExecuteRun is a fresh run entry point.
func (ip *Interpreter) ExecuteRun(ctx context.Context, cfg RunConfig) RunResult {
	if cfg.Public || ip.cfg.public {
		for _, b := range cfg.Blocks {
			if !AllowedForPublicRun(b.Type) {
				return RunResult{Status: RunStatusFailed, Error: NewBlockError(ErrCodeRestrictedBlockType, string(b.Type), nil)}
			}
		}
	}
	run := RunMeta{
		ID: cfg.RunID, WorkflowID: cfg.WorkflowID, VersionID: cfg.VersionID,
		Status: "running", TriggerType: cfg.TriggerType, StartedAt: time.Now().UnixMilli(),
		Platform: cfg.Platform, DeviceID: cfg.DeviceID,
	}
	wctx := NewWorkflowContext(run, cfg.Event, cfg.InitialState, cfg.Secrets)
	return ip.run(ctx, cfg, wctx, 0, 0)
}

// ResumeRun continues a previously paused run from fromBlockIndex, the first
// block to execute, using a rehydrated context. Callers pass the paused
// block's index plus one so the step that paused is not re-run. fromOrder seeds
// the step-numbering counter so resumed steps continue the strictly
// monotonic ExecutionOrder sequence the paused run already persisted —
// callers pass the count of steps already recorded for this run.
func (ip *Interpreter) ResumeRun(ctx context.Context, cfg RunConfig, fromBlockIndex int, snap ContextSnapshot, fromOrder int) RunResult {
	run := RunMeta{
		ID: cfg.RunID, WorkflowID: cfg.WorkflowID, VersionID: cfg.VersionID,
		Status: "running", TriggerType: cfg.TriggerType, StartedAt: time.Now().UnixMilli(),
		Platform: cfg.Platform, DeviceID: cfg.DeviceID,
	}
	wctx := Rehydrate(snap, run, cfg.Secrets)
	return ip.run(ctx, cfg, wctx, fromBlockIndex, fromOrder)
}

// blockTimeoutFor returns the per-block timeout for a run: the configured
// timeout, capped at DefaultPublicBlockTimeout for a public run.
func (ip *Interpreter) blockTimeoutFor(cfg RunConfig) time.Duration {
	if (cfg.Public || ip.cfg.public) && ip.cfg.blockTimeout > DefaultPublicBlockTimeout {
		return DefaultPublicBlockTimeout
	}
	return ip.cfg.blockTimeout
}

type deferredBranch struct {
	startIdx int
	signal   GotoSignal
}

func (ip *Interpreter) run(ctx context.Context, cfg RunConfig, wctx *WorkflowContext, startIdx, startOrder int) RunResult {
	runCtx, cancel := context.WithTimeout(ctx, ip.cfg.runTimeout)
	defer cancel()
	stopWatch := ip.watchCancellation(runCtx, cancel, cfg.RunID)
	defer stopWatch()

	blockIndex := indexBlocks(cfg.Blocks)

	var steps []Step
	var deferred []deferredBranch
	i := startIdx
	n := len(cfg.Blocks)
	stepsExecuted := 0

	for i < n {
		if ip.isCancelled(cfg.RunID) || runCtx.Err() != nil {
			return RunResult{Status: RunStatusCancelled, Steps: steps, Context: wctx, Error: NewBlockError(ErrCodeCancelled, "run cancelled", nil)}
		}

		stepsExecuted++
		if ip.cfg.maxSteps > 0 && stepsExecuted > ip.cfg.maxSteps {
			return RunResult{Status: RunStatusFailed, Steps: steps, Context: wctx, Error: NewBlockError(ErrCodeInternal, "exceeded max steps", nil)}
		}

		block := cfg.Blocks[i]

		if !ip.conditions.Eval(block.Conditions, wctx) {
			steps = append(steps, skippedStep(block, startOrder+len(steps)))
			i++
			continue
		}

		if IsUIBlockType(block.Type) {
			steps = append(steps, runningStep(block, startOrder+len(steps)))
			return RunResult{
				Status:  RunStatusAwaitingAction,
				Steps:   steps,
				Context: wctx,
				Paused: &PausedRunState{
					CurrentBlockIndex: i,
					ContextSnapshot:   wctx.Snapshot(),
					PausedBlockID:     block.ID,
					PausedUIConfig:    block.Logic,
				},
			}
		}

		step, result, err := ip.executor.Execute(runCtx, block, wctx, uuid.NewString(), startOrder+len(steps), ip.blockTimeoutFor(cfg))
		steps = append(steps, step)

		if err != nil {
			be := ClassifyError(err)
			if be.Code == ErrCodeCancelled || ip.isCancelled(cfg.RunID) {
				return RunResult{Status: RunStatusCancelled, Steps: steps, Context: wctx, Error: be}
			}
			next, failErr := ip.resolveFailure(block, be, blockIndex, i)
			if next < 0 {
				return RunResult{Status: RunStatusFailed, Steps: steps, Context: wctx, Error: failErr}
			}
			i = next
			continue
		}

		applyDelta(wctx, result.StateDelta)
		wctx.Artifacts = append(wctx.Artifacts, result.Artifacts...)

		if result.ControlSignal != nil && result.ControlSignal.Goto != nil {
			gs := *result.ControlSignal.Goto
			target, ok := blockIndex[gs.Target]
			if !ok {
				return RunResult{Status: RunStatusFailed, Steps: steps, Context: wctx, Error: NewBlockError(ErrCodeGotoTargetNotFound, gs.Target, nil)}
			}
			if gs.LoopName != "" {
				if limitErr := ip.bumpLoop(wctx, block, gs.LoopName); limitErr != nil {
					return RunResult{Status: RunStatusFailed, Steps: steps, Context: wctx, Error: limitErr}
				}
			}
			if gs.Defer {
				deferred = append(deferred, deferredBranch{startIdx: target, signal: gs})
				i++
				continue
			}
			i = target
			continue
		}

		i++
	}

	if len(deferred) > 0 {
		ip.runDeferred(runCtx, cfg, wctx, deferred, &steps)
	}

	return RunResult{Status: RunStatusCompleted, Steps: steps, Context: wctx}
}

// resolveFailure applies a block's on_error policy to a classified failure.
// It returns the next block index to continue at, or -1 if the run must
// terminate as failed (in which case the second return is the error to
// surface).
func (ip *Interpreter) resolveFailure(block Block, be *BlockError, blockIndex map[string]int, current int) (int, *BlockError) {
	action := block.onErrorAction()
	if be.Code.IsFatal() || action == OnErrorFailRun {
		return -1, be
	}
	if action == OnErrorContinue {
		return current + 1, nil
	}
	if action == OnErrorGoto {
		if target, ok := blockIndex[block.OnErrorTarget]; ok {
			return target, nil
		}
		return -1, NewBlockError(ErrCodeGotoTargetNotFound, block.OnErrorTarget, nil)
	}
	return current + 1, nil
}

func (ip *Interpreter) bumpLoop(wctx *WorkflowContext, block Block, loopName string) *BlockError {
	ls, exists := wctx.Loops[loopName]
	if !exists {
		ls = &LoopState{}
		wctx.Loops[loopName] = ls
	}
	ls.Index++
	limit := ip.loopCap(block)
	if limit > 0 && ls.Index > limit {
		return NewBlockError(ErrCodeLoopLimitExceeded, loopName, nil)
	}
	return nil
}

// loopCap reads block.Logic["loop_max_iterations"] (Open Question 2's chosen
// name), falling back to the interpreter-wide default when the block doesn't
// set one.
func (ip *Interpreter) loopCap(block Block) int {
	switch v := block.Logic["loop_max_iterations"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return ip.cfg.loopMaxIterations
}

// watchCancellation polls isCancelled on a short tick and cancels cancel the
// first time it observes true, bridging the spec's polled-flag model onto
// Go's context cancellation so sleep/fetch suspension points react promptly
// without each having to poll the flag themselves.
func (ip *Interpreter) watchCancellation(ctx context.Context, cancel context.CancelFunc, runID string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(25 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ip.isCancelled(runID) {
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// runDeferred dispatches all deferred-goto branches concurrently, bounded by
// maxConcurrent, sharing a single context snapshot taken at join-queue time,
// and merges results back into wctx in dispatch order (not completion
// order) so last-writer-wins is deterministic per the design note.
func (ip *Interpreter) runDeferred(ctx context.Context, cfg RunConfig, wctx *WorkflowContext, branches []deferredBranch, steps *[]Step) {
	limit := ip.cfg.maxGotoConcurrent
	if branches[0].signal.MaxConcurrent > 0 {
		limit = branches[0].signal.MaxConcurrent
	}
	if limit <= 0 {
		limit = 10
	}

	baseSnap := wctx.Snapshot()
	deltas := make([]map[string]any, len(branches))
	branchSteps := make([][]Step, len(branches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	for idx, b := range branches {
		idx, b := idx, b
		g.Go(func() error {
			branchCtx := Rehydrate(baseSnap, wctx.Run, wctx.Secrets)
			delta, bsteps := ip.runBranch(gctx, cfg, branchCtx, b.startIdx)
			mu.Lock()
			deltas[idx] = delta
			branchSteps[idx] = bsteps
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for idx := range branches {
		applyDelta(wctx, deltas[idx])
		*steps = append(*steps, branchSteps[idx]...)
	}
}

// runBranch executes a single deferred-goto branch from startIdx through the
// end of the sequence. A UI block inside a branch fails only the branch
// (Open Question 1's resolution): the main run is unaffected.
func (ip *Interpreter) runBranch(ctx context.Context, cfg RunConfig, bctx *WorkflowContext, startIdx int) (map[string]any, []Step) {
	blockIndex := indexBlocks(cfg.Blocks)
	var steps []Step
	i := startIdx
	n := len(cfg.Blocks)

	for i < n {
		block := cfg.Blocks[i]

		if !ip.conditions.Eval(block.Conditions, bctx) {
			steps = append(steps, skippedStep(block, len(steps)))
			i++
			continue
		}

		if IsUIBlockType(block.Type) {
			steps = append(steps, Step{
				StepID: uuid.NewString(), BlockID: block.ID, BlockType: block.Type, BlockName: block.Name,
				Status: StepFailed, ExecutionOrder: len(steps), StartedAt: time.Now(),
				Error: &StepError{Code: ErrCodeValidation, Message: "deferred branch cannot pause on a ui_* block"},
			})
			return bctx.State, steps
		}

		step, result, err := ip.executor.Execute(ctx, block, bctx, uuid.NewString(), len(steps), ip.blockTimeoutFor(cfg))
		steps = append(steps, step)

		if err != nil {
			next, _ := ip.resolveFailure(block, ClassifyError(err), blockIndex, i)
			if next < 0 {
				return bctx.State, steps
			}
			i = next
			continue
		}

		applyDelta(bctx, result.StateDelta)
		bctx.Artifacts = append(bctx.Artifacts, result.Artifacts...)

		if result.ControlSignal != nil && result.ControlSignal.Goto != nil {
			gs := result.ControlSignal.Goto
			target, ok := blockIndex[gs.Target]
			if !ok {
				return bctx.State, steps
			}
			i = target
			continue
		}

		i++
	}
	return bctx.State, steps
}

func indexBlocks(blocks []Block) map[string]int {
	idx := make(map[string]int, len(blocks))
	for i, b := range blocks {
		idx[b.ID] = i
	}
	return idx
}

func skippedStep(block Block, order int) Step {
	return Step{
		StepID: uuid.NewString(), BlockID: block.ID, BlockType: block.Type, BlockName: block.Name,
		Status: StepSkipped, ExecutionOrder: order, StartedAt: time.Now(),
	}
}

func runningStep(block Block, order int) Step {
	return Step{
		StepID: uuid.NewString(), BlockID: block.ID, BlockType: block.Type, BlockName: block.Name,
		Status: StepRunning, ExecutionOrder: order, StartedAt: time.Now(),
	}
}
