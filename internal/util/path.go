package util

import "strings"

// Lookup resolves a dotted field path (e.g. "status.phase") against a nested
// map, descending through map[string]any values. The boolean reports whether
// every path segment was present. This lives in internal to avoid committing
// to public API stability prematurely.
func Lookup(content map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = content
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
