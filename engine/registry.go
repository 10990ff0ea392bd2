package engine

import (
	"context"
)

// Handler executes a single block against ctx and returns state/artifact
// deltas (and, for goto, a ControlSignal.Goto) for the interpreter to apply.
// A handler cannot suspend a run: the interpreter pauses on UI block types
// before dispatch and does not read ControlSignal.Pause.
type Handler interface {
	Handle(ctx context.Context, block Block, wctx *WorkflowContext) (BlockResult, error)
}

// HandlerFunc adapts a plain function to the Handler interface, the same
// convenience the teacher offers via NodeFunc.
type HandlerFunc func(ctx context.Context, block Block, wctx *WorkflowContext) (BlockResult, error)

func (f HandlerFunc) Handle(ctx context.Context, block Block, wctx *WorkflowContext) (BlockResult, error) {
	return f(ctx, block, wctx)
}

// Capabilities declares what a platform adapter can actually do. The
// registry uses it only to decide, at registration time, whether to install
// a real handler, an unsupported-stub, or a passthrough — dispatch itself
// stays a flat map lookup.
type Capabilities struct {
	HasCamera     bool
	HasFilesystem bool
	HasFTP        bool
	HasUI         bool
	HasVideo      bool
	HasLocation   bool
}

// Registry maps BlockType to Handler. It is populated once by a platform
// adapter's RegisterBlocks and is read-only for the remainder of a run.
type Registry struct {
	handlers map[BlockType]Handler
}

// NewRegistry returns an empty registry; adapters populate it via Register.
func NewRegistry() *Registry {
	return &Registry{handlers: map[BlockType]Handler{}}
}

// Register installs h for t, overwriting any previous registration — the
// last adapter call for a given type wins, which lets an adapter register a
// default and then override select types.
func (r *Registry) Register(t BlockType, h Handler) {
	r.handlers[t] = h
}

// Resolve looks up the handler for t, failing UNKNOWN_BLOCK_TYPE when the
// adapter never registered anything for it.
func (r *Registry) Resolve(t BlockType) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, NewBlockError(ErrCodeUnknownBlockType, string(t), nil)
	}
	return h, nil
}

// UnsupportedStub returns a Handler that always fails CAPABILITY_UNAVAILABLE,
// naming the platform so the error is actionable. Adapters use this for
// block types their environment cannot service (e.g. filesystem on mobile).
func UnsupportedStub(platform string, t BlockType) Handler {
	return HandlerFunc(func(_ context.Context, _ Block, _ *WorkflowContext) (BlockResult, error) {
		return BlockResult{}, NewBlockError(
			ErrCodeCapabilityUnavail,
			string(t)+" is not supported on platform "+platform,
			nil,
		)
	})
}

// PassthroughHandler returns {} unconditionally. It's used for UI block
// types, whose real handling happens in the interpreter's pause path rather
// than via dispatch — the registry entry exists only so Resolve succeeds if
// something calls it directly. A deferred branch that reaches a UI block
// fails that branch before dispatch (see Open Question 1).
func PassthroughHandler() Handler {
	return HandlerFunc(func(_ context.Context, _ Block, _ *WorkflowContext) (BlockResult, error) {
		return BlockResult{}, nil
	})
}

// RequiredBlockTypes lists the block types every adapter must
// register per §4.2: the six data types, the six flow types, validation,
// and video.
var RequiredBlockTypes = []BlockType{
	BlockObject, BlockString, BlockArray, BlockMath, BlockDate, BlockNormalize,
	BlockFetch, BlockAgent, BlockGoto, BlockSleep, BlockLocation, BlockCode,
	BlockValidation, BlockVideo,
}
