// Package merge implements recursive map merging for configuration overlays.
//
// The config layer represents defaults and per-entry overrides as generic
// YAML mappings; merge combines them so that override values win and nested
// mappings are merged key-by-key rather than replaced wholesale.
package merge

// Maps deep-merges src over dst and returns the result.
//
// Neither input is modified. Scalar and slice values from src replace values
// in dst; when both sides hold a map for the same key, the maps are merged
// recursively. A nil src returns a clone of dst.
func Maps(dst, src map[string]any) map[string]any {
	out := Clone(dst)
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := out[k].(map[string]any); ok {
				out[k] = Maps(dm, sm)
				continue
			}
			out[k] = Clone(sm)
			continue
		}
		out[k] = sv
	}
	return out
}

// Flat shallow-merges src over dst and returns the result.
//
// Every key from src replaces the corresponding key in dst, including map
// values. Neither input is modified.
func Flat(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of m. Nested map[string]any values are copied
// recursively; all other values are copied by assignment.
func Clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if mv, ok := v.(map[string]any); ok {
			out[k] = Clone(mv)
			continue
		}
		out[k] = v
	}
	return out
}
