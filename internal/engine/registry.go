package engine

import (
	"maps"
	"slices"
)

// Overlay returns base ∪ overrides as a new map. Later tables win on key
// collisions; none of the inputs is modified.
func Overlay[K comparable, V any, M ~map[K]V](base M, overrides ...M) M {
	size := len(base)
	for _, o := range overrides {
		size += len(o)
	}
	out := make(M, size)
	maps.Copy(out, base)
	for _, o := range overrides {
		maps.Copy(out, o)
	}
	return out
}

// Kinds lists the keys of a handler table in sorted order.
func Kinds[K ~string, V any, M ~map[K]V](table M) []K {
	keys := slices.Collect(maps.Keys(table))
	slices.Sort(keys)
	return keys
}
