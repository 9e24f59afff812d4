package util

// CloneMap returns a deep copy of a JSON-object style map. Nested
// map[string]any and []any values are copied recursively; every other value
// is copied by assignment. Nil input yields nil so optional maps stay absent
// after cloning.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// CloneSlice deep copies a []any the same way CloneMap copies maps.
func CloneSlice(s []any) []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		return CloneSlice(t)
	default:
		return v
	}
}
