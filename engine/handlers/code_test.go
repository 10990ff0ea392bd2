package handlers

import (
	"context"
	"testing"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

// Exercising a real run of codeHandle needs a live Docker daemon, which this
// suite doesn't assume is present. The validation short-circuit happens
// before the docker client is touched, so it's the one path tested here.
func TestCodeHandle_MissingSourceIsValidationError(t *testing.T) {
	h := NewCodeHandler(CodeSandbox{})
	block := engine.Block{ID: "b1", Type: engine.BlockCode, Logic: map[string]any{}}
	_, err := h.Handle(context.Background(), block, newTestContext(nil))
	var be *engine.BlockError
	if !asBlockError(err, &be) || be.Code != engine.ErrCodeValidation {
		t.Fatalf("expected a validation error for a missing code_source, got %v", err)
	}
}

func TestNewCodeHandler_AcceptsZeroValueSandbox(t *testing.T) {
	sandbox := CodeSandbox{}
	if sandbox.Image != "" || sandbox.DefaultMemMB != 0 || sandbox.DefaultTimeoutSec != 0 {
		t.Fatal("precondition: expected a zero-value sandbox")
	}
	// NewCodeHandler fills in defaults on its own copy. The defaults are not
	// observable from here (the validation path returns before the image,
	// memory or timeout is used); this only checks that a handler built from
	// a zero-value sandbox still reports the validation error.
	h := NewCodeHandler(sandbox)
	block := engine.Block{ID: "b1", Type: engine.BlockCode, Logic: map[string]any{}}
	if _, err := h.Handle(context.Background(), block, newTestContext(nil)); err == nil {
		t.Fatal("expected a validation error")
	}
}
