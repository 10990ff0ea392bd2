package engine

import (
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ConditionEvaluator compiles each Block.Conditions.Expr exactly once (on
// first use) and caches the program, since a workflow's conditions are
// evaluated once per block per run and recompiling an expr.Program per
// invocation would dominate the cost of a cheap guard.
type ConditionEvaluator struct {
	mu       sync.Mutex
	compiled map[string]*vm.Program
}

// NewConditionEvaluator returns a ready-to-use evaluator.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{compiled: map[string]*vm.Program{}}
}

// conditionEnv is the variable namespace exposed to an expr program: state,
// event, and the loop-counter map, matching the reference grammar's roots.
type conditionEnv struct {
	State map[string]any
	Event map[string]any
	Loops map[string]int
}

// Eval reports whether block should run. A nil or empty Conditions always
// evaluates true. A compile or runtime error is treated as "condition not
// satisfied" rather than failing the run — conditions are a guard, not a
// correctness-critical computation, and the spec gives the interpreter no
// error code for a bad expression.
func (c *ConditionEvaluator) Eval(cond *Conditions, wctx *WorkflowContext) bool {
	if cond == nil || cond.Expr == "" {
		return true
	}

	program, err := c.programFor(cond.Expr)
	if err != nil {
		return false
	}

	loops := make(map[string]int, len(wctx.Loops))
	for name, ls := range wctx.Loops {
		if ls != nil {
			loops[name] = ls.Index
		}
	}
	env := conditionEnv{State: wctx.State, Event: wctx.Event, Loops: loops}

	out, err := expr.Run(program, env)
	if err != nil {
		return false
	}
	truth, ok := out.(bool)
	return ok && truth
}

func (c *ConditionEvaluator) programFor(exprStr string) (*vm.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.compiled[exprStr]; ok {
		return p, nil
	}
	p, err := expr.Compile(exprStr, expr.Env(conditionEnv{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	c.compiled[exprStr] = p
	return p, nil
}
