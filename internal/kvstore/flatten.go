package kvstore

import (
	"maps"
	"slices"
	"strings"
)

// Flatten collapses nested maps into dotted keys: {"a": {"b": 1}} becomes
// {"a.b": 1}. Non-map values, including slices, are kept as leaves.
func Flatten(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	flattenInto(out, "", rec)
	return out
}

func flattenInto(out map[string]any, prefix string, rec map[string]any) {
	for k, v := range rec {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok && len(child) > 0 {
			flattenInto(out, key, child)
			continue
		}
		out[key] = v
	}
}

// Nest expands dotted keys into nested maps: {"a.b": 1} becomes
// {"a": {"b": 1}}. Keys are processed in sorted order; a key whose path
// crosses an existing leaf is kept under its full dotted key.
func Nest(rec map[string]any) map[string]any {
	keys := slices.Sorted(maps.Keys(rec))
	out := make(map[string]any, len(rec))
	created := map[string]bool{}

	for _, k := range keys {
		parts := strings.Split(k, ".")
		node := out
		path := ""
		ok := true
		for _, p := range parts[:len(parts)-1] {
			if path != "" {
				path += "."
			}
			path += p
			if next, exists := node[p]; exists {
				child, isMap := next.(map[string]any)
				if !isMap || !created[path] {
					ok = false
					break
				}
				node = child
				continue
			}
			child := map[string]any{}
			node[p] = child
			created[path] = true
			node = child
		}
		leaf := parts[len(parts)-1]
		if _, taken := node[leaf]; !ok || taken {
			out[k] = rec[k]
			continue
		}
		node[leaf] = rec[k]
	}
	return out
}
