package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidationHandler checks logic.validation_value against the tag string in
// logic.validation_rule (go-playground/validator "required,email"-style
// syntax applied field-by-field for maps, or directly for scalars) or a
// shape declared in logic.validation_shape ({field: rule}).
func ValidationHandler(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	value, _ := logicAny(block, wctx, "validation_value")

	if shape, ok := logicAny(block, wctx, "validation_shape"); ok {
		rules, ok := shape.(map[string]any)
		if !ok {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "validation_shape must be an object of field->rule", nil)
		}
		fields, ok := value.(map[string]any)
		if !ok {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "validation_value must be an object when validation_shape is set", nil)
		}
		var failures []string
		for field, ruleAny := range rules {
			rule, _ := ruleAny.(string)
			if rule == "" {
				continue
			}
			if err := structValidator.Var(fields[field], rule); err != nil {
				failures = append(failures, fmt.Sprintf("%s: %s", field, err.Error()))
			}
		}
		if len(failures) > 0 {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, fmt.Sprintf("validation failed: %v", failures), nil)
		}
		return engine.BlockResult{StateDelta: bind(block, "validation_passed", true)}, nil
	}

	rule := logicString(block, wctx, "validation_rule", "")
	if rule == "" {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "validation_rule or validation_shape is required", nil)
	}
	if err := structValidator.Var(value, rule); err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "validation: "+err.Error(), err)
	}
	return engine.BlockResult{StateDelta: bind(block, "validation_passed", true)}, nil
}
