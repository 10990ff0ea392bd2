package engine

import "testing"

func newConditionWorkflowContext(state, event map[string]any, loops map[string]*LoopState) *WorkflowContext {
	wctx := NewWorkflowContext(RunMeta{ID: "run-1"}, event, state, nil)
	if loops != nil {
		wctx.Loops = loops
	}
	return wctx
}

func TestConditionEvaluator_NilOrEmptyIsAlwaysTrue(t *testing.T) {
	ce := NewConditionEvaluator()
	wctx := newConditionWorkflowContext(nil, nil, nil)

	if !ce.Eval(nil, wctx) {
		t.Error("expected a nil Conditions to evaluate true")
	}
	if !ce.Eval(&Conditions{}, wctx) {
		t.Error("expected an empty expression to evaluate true")
	}
}

func TestConditionEvaluator_EvaluatesAgainstState(t *testing.T) {
	ce := NewConditionEvaluator()
	wctx := newConditionWorkflowContext(map[string]any{"age": 30}, nil, nil)

	if !ce.Eval(&Conditions{Expr: "State.age >= 18"}, wctx) {
		t.Error("expected the condition to evaluate true for age 30")
	}
	if ce.Eval(&Conditions{Expr: "State.age < 18"}, wctx) {
		t.Error("expected the condition to evaluate false for age 30")
	}
}

func TestConditionEvaluator_EvaluatesAgainstEvent(t *testing.T) {
	ce := NewConditionEvaluator()
	wctx := newConditionWorkflowContext(nil, map[string]any{"type": "click"}, nil)

	if !ce.Eval(&Conditions{Expr: `Event.type == "click"`}, wctx) {
		t.Error("expected the condition to match the event type")
	}
}

func TestConditionEvaluator_EvaluatesAgainstLoopCounters(t *testing.T) {
	ce := NewConditionEvaluator()
	wctx := newConditionWorkflowContext(nil, nil, map[string]*LoopState{"retry": {Index: 3}})

	if !ce.Eval(&Conditions{Expr: "Loops.retry < 5"}, wctx) {
		t.Error("expected the loop counter condition to evaluate true")
	}
}

func TestConditionEvaluator_CompileErrorIsFalse(t *testing.T) {
	ce := NewConditionEvaluator()
	wctx := newConditionWorkflowContext(nil, nil, nil)

	if ce.Eval(&Conditions{Expr: "this is not ) valid expr"}, wctx) {
		t.Error("expected a malformed expression to evaluate false, not error")
	}
}

func TestConditionEvaluator_NonBooleanResultIsFalse(t *testing.T) {
	ce := NewConditionEvaluator()
	wctx := newConditionWorkflowContext(map[string]any{"name": "ava"}, nil, nil)

	if ce.Eval(&Conditions{Expr: "State.name"}, wctx) {
		t.Error("expected a non-boolean result to evaluate false")
	}
}

func TestConditionEvaluator_CachesCompiledPrograms(t *testing.T) {
	ce := NewConditionEvaluator()
	wctx := newConditionWorkflowContext(map[string]any{"age": 21}, nil, nil)

	cond := &Conditions{Expr: "State.age >= 18"}
	ce.Eval(cond, wctx)
	if len(ce.compiled) != 1 {
		t.Fatalf("expected one compiled program cached, got %d", len(ce.compiled))
	}
	ce.Eval(cond, wctx)
	if len(ce.compiled) != 1 {
		t.Errorf("expected the second evaluation to reuse the cached program, got %d entries", len(ce.compiled))
	}
}
