package schools

import "sort"

// MaxFlattenDepth bounds recursion into nested mappings. A mapping reached at
// this depth is stored as compact JSON instead of being expanded.
const MaxFlattenDepth = 32

// Flatten converts nested mappings into dotted-key leaves. Sequences are kept
// whole as compact JSON. A non-mapping value is stored under prefix, or under
// "value" when prefix is empty.
//
// Members are visited in sorted key order and the first value written under a
// dotted key is kept, so {"a":{"b":1},"a.b":2} always yields a.b = 1.
func Flatten(value any, prefix string) map[string]any {
	out := make(map[string]any)

	m, ok := value.(map[string]any)
	if !ok {
		key := prefix
		if key == "" {
			key = "value"
		}

		out[key] = value

		return out
	}

	flattenInto(out, m, prefix, 1)

	return out
}

func flattenInto(out map[string]any, m map[string]any, prefix string, depth int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]

		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		if _, taken := out[key]; taken {
			continue
		}

		switch t := v.(type) {
		case map[string]any:
			if depth >= MaxFlattenDepth {
				out[key] = CompactJSON(t)
				continue
			}

			flattenInto(out, t, key, depth+1)
		case []any:
			out[key] = CompactJSON(t)
		default:
			out[key] = v
		}
	}
}
