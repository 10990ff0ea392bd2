package engine

import "testing"

func TestToJSONish(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{42, "42"},
		{true, "true"},
		{"hello", "hello"},
		{map[string]any{"a": 1}, `{"a":1}`},
		{[]any{1, 2}, `[1,2]`},
	}
	for _, c := range cases {
		if got := toJSONish(c.in); got != c.want {
			t.Errorf("toJSONish(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
