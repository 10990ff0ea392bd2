// Package handlers implements the concrete block handlers an adapter
// registers into an engine.Registry: the data blocks (object, string,
// array, math, date, normalize), the flow blocks (fetch, agent, goto,
// sleep, code), and the platform I/O blocks (location, image, filesystem,
// ftp, video, validation, ui_*).
package handlers

import (
	"context"
	"strconv"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

// engineCtx aliases context.Context purely to keep handler signatures on
// one line across this package's many small handler functions.
type engineCtx = context.Context

// logicString resolves logic[key] against wctx and returns it when it is a
// string. Missing keys, and values that resolve to nil or a non-string,
// yield def.
func logicString(block engine.Block, wctx *engine.WorkflowContext, key, def string) string {
	v, ok := block.Logic[key]
	if !ok {
		return def
	}
	resolved := engine.ResolveValue(v, wctx)
	if resolved == nil {
		return def
	}
	if s, ok := resolved.(string); ok {
		return s
	}
	return def
}

func logicInt(block engine.Block, wctx *engine.WorkflowContext, key string, def int) int {
	v, ok := block.Logic[key]
	if !ok {
		return def
	}
	resolved := engine.ResolveValue(v, wctx)
	switch n := resolved.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return def
}

func logicBool(block engine.Block, wctx *engine.WorkflowContext, key string, def bool) bool {
	v, ok := block.Logic[key]
	if !ok {
		return def
	}
	resolved := engine.ResolveValue(v, wctx)
	if b, ok := resolved.(bool); ok {
		return b
	}
	return def
}

func logicAny(block engine.Block, wctx *engine.WorkflowContext, key string) (any, bool) {
	v, ok := block.Logic[key]
	if !ok {
		return nil, false
	}
	return engine.ResolveDynamic(v, wctx), true
}

// bind packages value under bind_to (default "$state."+fallback) into a
// BlockResult's StateDelta, implementing the engine-wide bind_to contract.
func bind(block engine.Block, fallbackKey string, value any) map[string]any {
	bindTo := ""
	if v, ok := block.Logic["bind_to"].(string); ok {
		bindTo = v
	}
	delta := map[string]any{}
	if bindTo == "" {
		delta[fallbackKey] = value
		return delta
	}
	engine.BindTo(delta, bindTo, value)
	return delta
}
