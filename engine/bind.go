package engine

import "strings"

// BindTo applies a handler's bind_to option, stripping the leading
// "$state." prefix and assigning into delta under the remaining key. Handler
// logic may omit the prefix entirely; both forms are accepted since authors
// routinely write "$state.foo" and "foo" interchangeably in block logic.
func BindTo(delta map[string]any, bindTo string, value any) {
	key := strings.TrimPrefix(bindTo, "$state.")
	if key == "" {
		return
	}
	delta[key] = value
}
