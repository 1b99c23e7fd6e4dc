package schools

import "sort"

// containerKeys are checked in order when the payload root is a mapping.
var containerKeys = []string{"data", "items", "results", "schools", "rows"}

// ExtractRecords locates the record list inside an arbitrarily shaped JSON root.
// It never fails; an empty result is for the caller to interpret.
func ExtractRecords(root any) []any {
	switch v := root.(type) {
	case nil:
		return []any{}
	case []any:
		return v
	case *Object:
		return extractFromMapping(v.Values, v.Keys)
	case map[string]any:
		return extractFromMapping(v, sortedKeys(v))
	default:
		// A lone scalar is kept as a one-element batch; it carries no declared
		// fields, so every declared column of that row is empty.
		return []any{root}
	}
}

// extractFromMapping emits dict-of-records values in the given key order.
func extractFromMapping(root map[string]any, order []string) []any {
	for _, key := range containerKeys {
		val, ok := root[key]
		if !ok {
			continue
		}

		switch inner := val.(type) {
		case []any:
			return inner
		case map[string]any:
			return []any{inner}
		}
	}

	if len(root) == 0 {
		return []any{root}
	}

	for _, val := range root {
		if _, ok := val.(map[string]any); !ok {
			return []any{root}
		}
	}

	records := make([]any, 0, len(order))
	for _, k := range order {
		records = append(records, root[k])
	}

	return records
}

// sortedKeys orders a plain map that lost its document order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
