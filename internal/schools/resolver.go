package schools

import (
	"encoding/json"
	"strconv"
	"strings"
)

// imageTokenKeys are searched in order when imageToken resolves to a mapping.
var imageTokenKeys = []string{"token", "fileName", "file", "name", "imageToken"}

// Resolver resolves declared columns from a record using a candidate path table.
type Resolver struct {
	table *PathTable
}

// NewResolver creates a resolver over table. A nil table selects the default.
func NewResolver(table *PathTable) *Resolver {
	if table == nil {
		table = DefaultPathTable()
	}

	return &Resolver{table: table}
}

// Table returns the candidate path table in use.
func (r *Resolver) Table() *PathTable {
	return r.table
}

// Resolve returns the coerced value of field for record. It never fails:
// unresolved fields and contacts-derived fields yield an empty string.
func (r *Resolver) Resolve(record any, field string) any {
	if strings.HasPrefix(field, ColContacts) {
		return ""
	}

	for _, path := range r.table.Paths(field) {
		val, ok := Lookup(record, path)
		if !ok {
			continue
		}

		return coerce(field, val)
	}

	return ""
}

// RawContacts returns the unprocessed contacts value of record, trying the
// contacts candidate paths first and then a top-level "contacts" key.
func (r *Resolver) RawContacts(record any) any {
	for _, path := range r.table.Paths(ColContacts) {
		if val, ok := Lookup(record, path); ok {
			return val
		}
	}

	if m, ok := record.(map[string]any); ok {
		return m[ColContacts]
	}

	return nil
}

func coerce(field string, val any) any {
	switch field {
	case "imageToken":
		if m, ok := val.(map[string]any); ok {
			return imageToken(m)
		}
	case "lat", "lng":
		if f, ok := parseCoordinate(val); ok {
			return f
		}
	case "hasJurnal", "hasMeeting":
		if b, ok := parseFlag(val); ok {
			return b
		}
	}

	if isContainer(val) {
		return CompactJSON(val)
	}

	return val
}

func imageToken(m map[string]any) any {
	for _, k := range imageTokenKeys {
		if v, ok := m[k]; ok && truthy(v) {
			if isContainer(v) {
				return CompactJSON(v)
			}

			return v
		}
	}

	return CompactJSON(m)
}

// parseCoordinate accepts both "40.39" and "40,39".
func parseCoordinate(val any) (float64, bool) {
	if isContainer(val) {
		return 0, false
	}

	s := strings.TrimSpace(Stringify(val))
	s = strings.ReplaceAll(s, ",", ".")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return f, true
}

func parseFlag(val any) (bool, bool) {
	if b, ok := val.(bool); ok {
		return b, true
	}

	var s string

	switch t := val.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return false, false
	}

	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no", "":
		return false, true
	}

	return false, false
}
