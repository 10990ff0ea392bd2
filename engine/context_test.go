package engine

import (
	"reflect"
	"testing"
)

func TestResolveValue(t *testing.T) {
	ctx := NewWorkflowContext(RunMeta{ID: "run-1"}, map[string]any{"type": "click"}, map[string]any{"name": "ava", "address": map[string]any{"city": "nyc"}}, map[string]any{"token": "secret"})

	cases := []struct {
		name string
		in   any
		want any
	}{
		{"state reference", "$state.name", "ava"},
		{"nested state reference", "$state.address.city", "nyc"},
		{"event reference", "$event.type", "click"},
		{"secrets reference", "$secrets.token", "secret"},
		{"plain string passes through", "hello", "hello"},
		{"non-string passes through", 42, 42},
		{"unresolved path is nil", "$state.missing", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := resolveValue(c.in, ctx)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("resolveValue(%v) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestResolveValue_TemplateSubstitution(t *testing.T) {
	ctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, map[string]any{"name": "ava", "count": 3}, nil)
	got := resolveValue("hello {{state.name}}, you are number {{state.count}}", ctx)
	if got != "hello ava, you are number 3" {
		t.Errorf("unexpected template result: %v", got)
	}
}

func TestResolveValue_BareIdentifierTemplateDefaultsToState(t *testing.T) {
	ctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, map[string]any{"count": 5}, nil)
	got := resolveValue("total: {{count}}", ctx)
	if got != "total: 5" {
		t.Errorf("unexpected result: %v", got)
	}
}

func TestResolveValue_UnterminatedPlaceholderEmitsVerbatim(t *testing.T) {
	ctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, nil, nil)
	got := resolveValue("broken {{state.x", ctx)
	if got != "broken {{state.x" {
		t.Errorf("expected the unterminated placeholder preserved, got %v", got)
	}
}

func TestResolveDynamic_RecursesThroughMapsAndSlices(t *testing.T) {
	ctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, map[string]any{"name": "ava"}, nil)
	in := map[string]any{
		"greeting": "$state.name",
		"list":     []any{"$state.name", "static"},
	}
	out := ResolveDynamic(in, ctx).(map[string]any)
	if out["greeting"] != "ava" {
		t.Errorf("expected nested map value resolved, got %v", out["greeting"])
	}
	list := out["list"].([]any)
	if list[0] != "ava" || list[1] != "static" {
		t.Errorf("expected nested slice values resolved, got %v", list)
	}
}

func TestApplyDelta_SkipsControlSignalKeys(t *testing.T) {
	ctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, nil, nil)
	applyDelta(ctx, map[string]any{"visible": "yes", "__control": "goto"})
	if ctx.State["visible"] != "yes" {
		t.Error("expected a normal key to be applied")
	}
	if _, ok := ctx.State["__control"]; ok {
		t.Error("expected a __-prefixed key to be skipped")
	}
}

func TestSnapshotAndRehydrate_RoundTrips(t *testing.T) {
	ctx := NewWorkflowContext(RunMeta{ID: "run-1"}, map[string]any{"e": 1}, map[string]any{"s": 1}, map[string]any{"secret": "x"})
	ctx.Loops["retry"] = &LoopState{Index: 2}

	snap := ctx.Snapshot()
	rehydrated := Rehydrate(snap, RunMeta{ID: "run-1"}, map[string]any{"secret": "x"})

	if rehydrated.State["s"] != 1 || rehydrated.Event["e"] != 1 {
		t.Errorf("expected state and event to round-trip, got state=%v event=%v", rehydrated.State, rehydrated.Event)
	}
	if rehydrated.Loops["retry"] == nil || rehydrated.Loops["retry"].Index != 2 {
		t.Errorf("expected loop counters to round-trip, got %v", rehydrated.Loops)
	}
}

func TestSnapshot_DoesNotAliasState(t *testing.T) {
	ctx := NewWorkflowContext(RunMeta{ID: "run-1"}, nil, map[string]any{"s": 1}, nil)
	snap := ctx.Snapshot()
	snap.State["s"] = 2
	if ctx.State["s"] != 1 {
		t.Error("expected Snapshot to copy state, not alias it")
	}
}

func TestLookupPath(t *testing.T) {
	root := map[string]any{
		"items": []any{
			map[string]any{"name": "first"},
			map[string]any{"name": "second"},
		},
	}
	if got := lookupPath(root, "items.1.name"); got != "second" {
		t.Errorf("expected second, got %v", got)
	}
	if got := lookupPath(root, "items.5.name"); got != nil {
		t.Errorf("expected nil for an out-of-range index, got %v", got)
	}
	if got := lookupPath(root, "items.not-a-number.name"); got != nil {
		t.Errorf("expected nil for a non-numeric slice index, got %v", got)
	}
	if got := lookupPath(nil, "a.b"); got != nil {
		t.Errorf("expected nil when root is nil, got %v", got)
	}
}
