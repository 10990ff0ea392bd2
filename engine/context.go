package engine

import (
	"strconv"
	"strings"
)

// RunMeta is the run-scoped metadata carried on WorkflowContext.run.
type RunMeta struct {
	ID          string
	WorkflowID  string
	VersionID   string
	Status      string
	TriggerType string
	StartedAt   int64 // unix millis; kept as int64 to stay trivially JSON-roundtrippable
	Platform    string
	DeviceID    string
}

// LoopState tracks a single named loop's iteration counter.
type LoopState struct {
	Index int
}

// WorkflowContext is the single mutable object threaded through a run. Only
// the Interpreter mutates it; handlers receive a read view and return
// BlockResult deltas instead (see BlockResult).
type WorkflowContext struct {
	State     map[string]any
	Cache     map[string]any
	Artifacts []Artifact
	Secrets   map[string]any
	Run       RunMeta
	Event     map[string]any
	Loops     map[string]*LoopState
	Paths     []string
}

// NewWorkflowContext builds an empty context ready for a fresh run.
func NewWorkflowContext(run RunMeta, event map[string]any, initialState map[string]any, secrets map[string]any) *WorkflowContext {
	state := make(map[string]any, len(initialState))
	for k, v := range initialState {
		state[k] = v
	}
	if event == nil {
		event = map[string]any{}
	}
	if secrets == nil {
		secrets = map[string]any{}
	}
	return &WorkflowContext{
		State:     state,
		Cache:     map[string]any{},
		Artifacts: nil,
		Secrets:   secrets,
		Run:       run,
		Event:     event,
		Loops:     map[string]*LoopState{},
		Paths:     nil,
	}
}

// ContextSnapshot is the serializable projection of WorkflowContext used by
// PausedRunState and by the Store's pause/resume round trip.
type ContextSnapshot struct {
	State         map[string]any         `json:"state"`
	CacheEntries  map[string]any         `json:"cache_entries"`
	Artifacts     []Artifact             `json:"artifacts"`
	Event         map[string]any         `json:"event"`
	Loops         map[string]*LoopState  `json:"loops"`
}

// Snapshot produces a serializable projection of the context. Secrets and
// run metadata are deliberately excluded: secrets never leave memory, and
// run metadata is reconstructed by the execution service on resume from the
// persisted Run row.
func (c *WorkflowContext) Snapshot() ContextSnapshot {
	return ContextSnapshot{
		State:        cloneMap(c.State),
		CacheEntries: cloneMap(c.Cache),
		Artifacts:    append([]Artifact(nil), c.Artifacts...),
		Event:        cloneMap(c.Event),
		Loops:        cloneLoops(c.Loops),
	}
}

// Rehydrate reconstructs a WorkflowContext from a snapshot plus the run
// metadata and secrets that the execution service resolves fresh on resume.
func Rehydrate(snap ContextSnapshot, run RunMeta, secrets map[string]any) *WorkflowContext {
	if secrets == nil {
		secrets = map[string]any{}
	}
	loops := cloneLoops(snap.Loops)
	if loops == nil {
		loops = map[string]*LoopState{}
	}
	return &WorkflowContext{
		State:     cloneMap(snap.State),
		Cache:     cloneMap(snap.CacheEntries),
		Artifacts: append([]Artifact(nil), snap.Artifacts...),
		Secrets:   secrets,
		Run:       run,
		Event:     cloneMap(snap.Event),
		Loops:     loops,
		Paths:     nil,
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneLoops(m map[string]*LoopState) map[string]*LoopState {
	if m == nil {
		return map[string]*LoopState{}
	}
	out := make(map[string]*LoopState, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		cp := *v
		out[k] = &cp
	}
	return out
}

// applyDelta shallow-merges a handler's stateDelta into ctx.State. Keys
// beginning with "__" are control signals, already extracted by the
// interpreter before this is called, and must never reach ctx.State.
func applyDelta(ctx *WorkflowContext, delta map[string]any) {
	for k, v := range delta {
		if strings.HasPrefix(k, "__") {
			continue
		}
		ctx.State[k] = v
	}
}

// resolveValue implements the reference grammar against ctx. It never
// errors: an unresolved path yields nil, and type coercion at use sites is
// the handler's responsibility.
func resolveValue(v any, ctx *WorkflowContext) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch {
	case strings.HasPrefix(s, "$state."):
		return lookupPath(ctx.State, strings.TrimPrefix(s, "$state."))
	case strings.HasPrefix(s, "$event."):
		return lookupPath(ctx.Event, strings.TrimPrefix(s, "$event."))
	case strings.HasPrefix(s, "$secrets."):
		return lookupPath(ctx.Secrets, strings.TrimPrefix(s, "$secrets."))
	case strings.Contains(s, "{{"):
		return resolveTemplate(s, ctx)
	default:
		return s
	}
}

// ResolveValue is the exported entry point used by block handlers.
func ResolveValue(v any, ctx *WorkflowContext) any { return resolveValue(v, ctx) }

// ResolveDynamic applies resolveValue recursively to maps and slices, which
// is what handlers call when their whole `logic` sub-tree may contain
// reference strings (e.g. an `object` block's nested template).
func ResolveDynamic(v any, ctx *WorkflowContext) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = ResolveDynamic(val, ctx)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = ResolveDynamic(val, ctx)
		}
		return out
	default:
		return resolveValue(v, ctx)
	}
}

func resolveTemplate(s string, ctx *WorkflowContext) string {
	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		rest = rest[start+2:]
		end := strings.Index(rest, "}}")
		if end == -1 {
			// Unterminated placeholder: emit the rest verbatim rather than
			// dropping data silently.
			b.WriteString("{{")
			b.WriteString(rest)
			break
		}
		ref := strings.TrimSpace(rest[:end])
		rest = rest[end+2:]
		b.WriteString(templateLookup(ref, ctx))
	}
	return b.String()
}

func templateLookup(ref string, ctx *WorkflowContext) string {
	var root map[string]any
	var path string
	switch {
	case strings.HasPrefix(ref, "state."):
		root, path = ctx.State, strings.TrimPrefix(ref, "state.")
	case strings.HasPrefix(ref, "event."):
		root, path = ctx.Event, strings.TrimPrefix(ref, "event.")
	case strings.HasPrefix(ref, "secrets."):
		root, path = ctx.Secrets, strings.TrimPrefix(ref, "secrets.")
	default:
		// bare identifier: try state first, the common case for
		// `{{counter}}`-style templates against top-level state keys.
		root, path = ctx.State, ref
	}
	v := lookupPath(root, path)
	return stringify(v)
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return toJSONish(v)
}

// lookupPath dot-walks a value, descending into maps by key and into slices
// by numeric index. A missing segment at any point yields nil rather than
// panicking or erroring — reference resolution never throws.
func lookupPath(root any, path string) any {
	if path == "" {
		return root
	}
	cur := root
	for _, seg := range strings.Split(path, ".") {
		if cur == nil {
			return nil
		}
		switch c := cur.(type) {
		case map[string]any:
			cur = c[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil
			}
			cur = c[idx]
		default:
			return nil
		}
	}
	return cur
}
