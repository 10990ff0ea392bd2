package engine

import (
	"encoding/json"
	"fmt"
)

// toJSONish renders a non-string value for inline template substitution.
// Numbers and bools use their natural %v form; composite values fall back to
// compact JSON so a templated object doesn't collapse into Go's verbose
// struct-printer syntax.
func toJSONish(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}
