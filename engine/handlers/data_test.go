package handlers

import (
	"context"
	"testing"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

func newTestContext(state map[string]any) *engine.WorkflowContext {
	return engine.NewWorkflowContext(engine.RunMeta{ID: "run-1"}, nil, state, nil)
}

func TestObjectHandler(t *testing.T) {
	t.Run("defaults to an empty object", func(t *testing.T) {
		block := engine.Block{ID: "b1", Type: engine.BlockObject}
		result, err := ObjectHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := result.StateDelta["data"].(map[string]any); !ok {
			t.Errorf("expected an empty object bound to data, got %v", result.StateDelta)
		}
	})

	t.Run("applies object_query", func(t *testing.T) {
		block := engine.Block{
			ID:   "b1",
			Type: engine.BlockObject,
			Logic: map[string]any{
				"object_value": map[string]any{"name": "ava", "age": 30},
				"object_query": ".name",
			},
		}
		result, err := ObjectHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.StateDelta["data"] != "ava" {
			t.Errorf("expected object_query to project .name, got %v", result.StateDelta["data"])
		}
	})

	t.Run("invalid query is a validation error", func(t *testing.T) {
		block := engine.Block{
			ID:   "b1",
			Type: engine.BlockObject,
			Logic: map[string]any{
				"object_value": map[string]any{},
				"object_query": "(",
			},
		}
		_, err := ObjectHandler(context.Background(), block, newTestContext(nil))
		var be *engine.BlockError
		if !asBlockError(err, &be) || be.Code != engine.ErrCodeValidation {
			t.Fatalf("expected a validation BlockError, got %v", err)
		}
	})
}

func TestStringHandler(t *testing.T) {
	t.Run("renders a template against state", func(t *testing.T) {
		block := engine.Block{
			ID:   "b1",
			Type: engine.BlockString,
			Logic: map[string]any{
				"string_template": "hello {{state.name}}",
			},
		}
		result, err := StringHandler(context.Background(), block, newTestContext(map[string]any{"name": "ava"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.StateDelta["string"] != "hello ava" {
			t.Errorf("expected rendered template, got %v", result.StateDelta["string"])
		}
	})

	t.Run("honors string_outputKey over bind_to", func(t *testing.T) {
		block := engine.Block{
			ID:   "b1",
			Type: engine.BlockString,
			Logic: map[string]any{
				"string_template": "fixed",
				"string_outputKey": "custom_key",
				"bind_to": "$state.ignored",
			},
		}
		result, err := StringHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.StateDelta["custom_key"] != "fixed" {
			t.Errorf("expected custom_key to be set, got %v", result.StateDelta)
		}
	})
}

func TestArrayHandler(t *testing.T) {
	block := engine.Block{
		ID:   "b1",
		Type: engine.BlockArray,
		Logic: map[string]any{
			"array_value": []any{1, 2, 3},
			"array_query": "map(. * 2)",
		},
	}
	result, err := ArrayHandler(context.Background(), block, newTestContext(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := result.StateDelta["array"].([]any)
	if !ok || len(got) != 3 {
		t.Fatalf("expected a 3-element array, got %v", result.StateDelta["array"])
	}
}

func TestMathHandler(t *testing.T) {
	cases := []struct {
		op   string
		l, r float64
		want float64
	}{
		{"add", 2, 3, 5},
		{"sub", 5, 2, 3},
		{"mul", 4, 3, 12},
		{"div", 10, 2, 5},
		{"mod", 10, 3, 1},
	}
	for _, c := range cases {
		t.Run(c.op, func(t *testing.T) {
			block := engine.Block{
				ID:   "b1",
				Type: engine.BlockMath,
				Logic: map[string]any{
					"math_left": c.l, "math_right": c.r, "math_op": c.op,
				},
			}
			result, err := MathHandler(context.Background(), block, newTestContext(nil))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.StateDelta["result"] != c.want {
				t.Errorf("%s(%v,%v): expected %v, got %v", c.op, c.l, c.r, c.want, result.StateDelta["result"])
			}
		})
	}

	t.Run("division by zero is a validation error", func(t *testing.T) {
		block := engine.Block{
			ID:   "b1",
			Type: engine.BlockMath,
			Logic: map[string]any{
				"math_left": 1.0, "math_right": 0.0, "math_op": "div",
			},
		}
		_, err := MathHandler(context.Background(), block, newTestContext(nil))
		var be *engine.BlockError
		if !asBlockError(err, &be) || be.Code != engine.ErrCodeValidation {
			t.Fatalf("expected a validation BlockError, got %v", err)
		}
	})

	t.Run("unknown op is a validation error", func(t *testing.T) {
		block := engine.Block{
			ID:   "b1",
			Type: engine.BlockMath,
			Logic: map[string]any{
				"math_left": 1.0, "math_right": 1.0, "math_op": "pow",
			},
		}
		_, err := MathHandler(context.Background(), block, newTestContext(nil))
		if err == nil {
			t.Fatal("expected an error for an unsupported op")
		}
	})
}

func TestDateHandler(t *testing.T) {
	t.Run("add seconds", func(t *testing.T) {
		block := engine.Block{
			ID:   "b1",
			Type: engine.BlockDate,
			Logic: map[string]any{
				"date_op":     "add",
				"date_input":  "2024-01-01T00:00:00Z",
				"date_amount": 30,
				"date_unit":   "seconds",
				"date_format": "2006-01-02T15:04:05Z07:00",
			},
		}
		result, err := DateHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.StateDelta["date"] != "2024-01-01T00:00:30Z" {
			t.Errorf("expected date advanced by 30s, got %v", result.StateDelta["date"])
		}
	})

	t.Run("invalid date_input is a validation error", func(t *testing.T) {
		block := engine.Block{
			ID:   "b1",
			Type: engine.BlockDate,
			Logic: map[string]any{
				"date_input": "not-a-date",
			},
		}
		_, err := DateHandler(context.Background(), block, newTestContext(nil))
		var be *engine.BlockError
		if !asBlockError(err, &be) || be.Code != engine.ErrCodeValidation {
			t.Fatalf("expected a validation BlockError, got %v", err)
		}
	})
}

func asBlockError(err error, target **engine.BlockError) bool {
	be, ok := err.(*engine.BlockError)
	if !ok {
		return false
	}
	*target = be
	return true
}
