package doctree

import (
	"maps"
	"strconv"
)

// Attrs is the open attribute bag carried by every node.
type Attrs map[string]any

// String returns the attribute as a string, or "" when absent.
func (a Attrs) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return ""
	}
}

// Int returns the attribute as an int. JSON-decoded numbers arrive as
// float64 and are accepted.
func (a Attrs) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// Bool returns the attribute as a bool.
func (a Attrs) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Clone copies the bag. Nested slices of strings and maps are copied one
// level deep; anything else is treated as immutable.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		switch tv := v.(type) {
		case []string:
			out[k] = append([]string(nil), tv...)
		case []any:
			out[k] = append([]any(nil), tv...)
		case map[string]any:
			out[k] = maps.Clone(tv)
		case Attrs:
			out[k] = tv.Clone()
		default:
			out[k] = v
		}
	}
	return out
}
