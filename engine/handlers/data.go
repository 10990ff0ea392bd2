package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/gojq"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

// ObjectHandler builds or transforms a JSON-like object. logic.object_value
// is a literal/template map (resolved recursively); logic.object_query, if
// present, is a gojq expression run against it first, letting a block
// reshape an upstream payload instead of constructing one from scratch.
func ObjectHandler(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	value, _ := logicAny(block, wctx, "object_value")
	if value == nil {
		value = map[string]any{}
	}

	if query := logicString(block, wctx, "object_query", ""); query != "" {
		out, err := runGojq(query, value)
		if err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "object_query: "+err.Error(), err)
		}
		value = out
	}

	return engine.BlockResult{StateDelta: bind(block, "data", value)}, nil
}

// StringHandler renders logic.string_template ({{...}} placeholders) into
// logic.bind_to (default state key "string").
func StringHandler(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	template := logicString(block, wctx, "string_template", "")
	rendered := engine.ResolveValue(template, wctx)
	s, _ := rendered.(string)

	outputKey := logicString(block, wctx, "string_outputKey", "")
	delta := map[string]any{}
	if outputKey != "" {
		delta[outputKey] = s
	} else {
		delta = bind(block, "string", s)
	}
	return engine.BlockResult{StateDelta: delta}, nil
}

// ArrayHandler applies a gojq transform (logic.array_query, default ".")
// over logic.array_value (or $state/$event reference) and binds the result.
func ArrayHandler(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	value, _ := logicAny(block, wctx, "array_value")
	if value == nil {
		value = []any{}
	}
	query := logicString(block, wctx, "array_query", ".")
	out, err := runGojq(query, value)
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "array_query: "+err.Error(), err)
	}
	return engine.BlockResult{StateDelta: bind(block, "array", out)}, nil
}

func runGojq(query string, input any) (any, error) {
	q, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	iter := q.Run(input)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, ok := v.(error); ok {
		return nil, err
	}
	return v, nil
}

// MathHandler evaluates a small set of binary operators over resolved
// operands; logic.math_op in {add, sub, mul, div, mod}.
func MathHandler(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	left := toFloat(mustResolve(block, wctx, "math_left"))
	right := toFloat(mustResolve(block, wctx, "math_right"))
	op := logicString(block, wctx, "math_op", "add")

	var result float64
	switch op {
	case "add":
		result = left + right
	case "sub":
		result = left - right
	case "mul":
		result = left * right
	case "div":
		if right == 0 {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "math: division by zero", nil)
		}
		result = left / right
	case "mod":
		if right == 0 {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "math: modulo by zero", nil)
		}
		result = float64(int64(left) % int64(right))
	default:
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "math: unknown op "+op, nil)
	}
	return engine.BlockResult{StateDelta: bind(block, "result", result)}, nil
}

func mustResolve(block engine.Block, wctx *engine.WorkflowContext, key string) any {
	v, _ := logicAny(block, wctx, key)
	return v
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

// DateHandler produces a formatted timestamp. logic.date_op in {now, add,
// format}; logic.date_format is a Go reference-time layout (default RFC3339).
func DateHandler(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	op := logicString(block, wctx, "date_op", "now")
	format := logicString(block, wctx, "date_format", time.RFC3339)

	base := time.Now().UTC()
	if input := logicString(block, wctx, "date_input", ""); input != "" {
		parsed, err := time.Parse(time.RFC3339, input)
		if err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "date_input: "+err.Error(), err)
		}
		base = parsed
	}

	switch op {
	case "now", "format":
		// base already set.
	case "add":
		amount := logicInt(block, wctx, "date_amount", 0)
		unit := logicString(block, wctx, "date_unit", "seconds")
		base = addDateUnit(base, amount, unit)
	default:
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "date: unknown op "+op, nil)
	}

	return engine.BlockResult{StateDelta: bind(block, "date", base.Format(format))}, nil
}

func addDateUnit(base time.Time, amount int, unit string) time.Time {
	switch strings.ToLower(unit) {
	case "seconds", "second":
		return base.Add(time.Duration(amount) * time.Second)
	case "minutes", "minute":
		return base.Add(time.Duration(amount) * time.Minute)
	case "hours", "hour":
		return base.Add(time.Duration(amount) * time.Hour)
	case "days", "day":
		return base.AddDate(0, 0, amount)
	case "months", "month":
		return base.AddDate(0, amount, 0)
	case "years", "year":
		return base.AddDate(amount, 0, 0)
	default:
		return base
	}
}
