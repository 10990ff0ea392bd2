package handlers

import (
	"context"
	"testing"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

func TestNormalizeHandler_JQDefaultMode(t *testing.T) {
	block := engine.Block{
		ID: "b1", Type: engine.BlockNormalize,
		Logic: map[string]any{
			"normalize_value": map[string]any{"name": "Ava", "age": 30.0},
			"normalize_query": ".name",
		},
	}
	result, err := NormalizeHandler(context.Background(), block, newTestContext(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StateDelta["normalized"] != "Ava" {
		t.Errorf("expected normalized = Ava, got %v", result.StateDelta)
	}
}

func TestNormalizeHandler_JQInvalidQuery(t *testing.T) {
	block := engine.Block{
		ID: "b1", Type: engine.BlockNormalize,
		Logic: map[string]any{"normalize_value": "x", "normalize_query": "("},
	}
	_, err := NormalizeHandler(context.Background(), block, newTestContext(nil))
	var be *engine.BlockError
	if !asBlockError(err, &be) || be.Code != engine.ErrCodeValidation {
		t.Fatalf("expected a validation error for a malformed query, got %v", err)
	}
}

func TestNormalizeHandler_TrimMode(t *testing.T) {
	t.Run("default cutset trims whitespace", func(t *testing.T) {
		block := engine.Block{
			ID: "b1", Type: engine.BlockNormalize,
			Logic: map[string]any{"mode": "trim", "normalize_value": "  hello  "},
		}
		result, err := NormalizeHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.StateDelta["normalized"] != "hello" {
			t.Errorf("expected trimmed value, got %v", result.StateDelta)
		}
	})

	t.Run("explicit cutset trims the given characters", func(t *testing.T) {
		block := engine.Block{
			ID: "b1", Type: engine.BlockNormalize,
			Logic: map[string]any{"mode": "trim", "normalize_value": "***hello***", "trim_chars": "*"},
		}
		result, err := NormalizeHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.StateDelta["normalized"] != "hello" {
			t.Errorf("expected trimmed value, got %v", result.StateDelta)
		}
	})
}

func TestNormalizeHandler_HTMLMode(t *testing.T) {
	t.Run("missing html is a validation error", func(t *testing.T) {
		block := engine.Block{ID: "b1", Type: engine.BlockNormalize, Logic: map[string]any{"mode": "html"}}
		_, err := NormalizeHandler(context.Background(), block, newTestContext(nil))
		var be *engine.BlockError
		if !asBlockError(err, &be) || be.Code != engine.ErrCodeValidation {
			t.Fatalf("expected a validation error, got %v", err)
		}
	})

	t.Run("extracts readable text from an article", func(t *testing.T) {
		html := `<html><body><article><h1>Title</h1><p>` +
			`This is a long enough paragraph of article text to satisfy the readability heuristics ` +
			`that decide what counts as the main content of the page versus surrounding chrome.</p></article></body></html>`
		block := engine.Block{
			ID: "b1", Type: engine.BlockNormalize,
			Logic: map[string]any{"mode": "html", "normalize_html": html},
		}
		result, err := NormalizeHandler(context.Background(), block, newTestContext(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out, ok := result.StateDelta["normalized"].(map[string]any)
		if !ok {
			t.Fatalf("expected a normalized object, got %v", result.StateDelta)
		}
		if out["text"] == "" {
			t.Error("expected extracted article text to be non-empty")
		}
	})
}
