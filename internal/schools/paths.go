package schools

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed candidate_paths.yaml
var defaultPathTableYAML []byte

// ErrInvalidPathTable is returned when a candidate path table fails validation.
var ErrInvalidPathTable = errors.New("invalid candidate path table")

// PathTable maps a canonical field name to its ordered candidate dotted paths.
// A table is read-only once constructed.
type PathTable struct {
	paths map[string][]string
}

// DefaultPathTable returns the table shipped with the binary.
func DefaultPathTable() *PathTable {
	t, err := ParsePathTable(defaultPathTableYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded candidate paths: %v", err))
	}

	return t
}

// LoadPathTable reads a candidate path table from a YAML file.
func LoadPathTable(path string) (*PathTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate paths: %w", err)
	}

	return ParsePathTable(data)
}

// ParsePathTable decodes and validates a YAML candidate path table.
func ParsePathTable(data []byte) (*PathTable, error) {
	raw := map[string][]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse candidate paths: %w", err)
	}

	return NewPathTable(raw)
}

// NewPathTable copies raw into a validated table.
func NewPathTable(raw map[string][]string) (*PathTable, error) {
	t := &PathTable{paths: make(map[string][]string, len(raw))}

	for field, paths := range raw {
		if field == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidPathTable)
		}

		if len(paths) == 0 {
			return nil, fmt.Errorf("%w: %s has no paths", ErrInvalidPathTable, field)
		}

		for _, p := range paths {
			for _, seg := range strings.Split(p, ".") {
				if seg == "" {
					return nil, fmt.Errorf("%w: %s has malformed path %q", ErrInvalidPathTable, field, p)
				}
			}
		}

		t.paths[field] = append([]string(nil), paths...)
	}

	for _, col := range declaredColumns {
		if IsContactsColumn(col) && col != ColContacts {
			if _, ok := t.paths[col]; ok {
				return nil, fmt.Errorf("%w: %s is derived and cannot have paths", ErrInvalidPathTable, col)
			}
		}
	}

	return t, nil
}

// Paths returns the ordered candidates for field. Fields missing from the
// table fall back to a single path equal to the field name.
func (t *PathTable) Paths(field string) []string {
	if p, ok := t.paths[field]; ok {
		return p
	}

	return []string{field}
}

// MarshalYAML renders the table in the same shape it is loaded from.
func (t *PathTable) MarshalYAML() (interface{}, error) {
	return t.paths, nil
}

// Lookup walks path through nested mappings. It reports false when a segment
// is missing, an intermediate value is not a mapping, or the final value is null.
func Lookup(record any, path string) (any, bool) {
	node := record

	for _, seg := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}

		node, ok = m[seg]
		if !ok {
			return nil, false
		}
	}

	if node == nil {
		return nil, false
	}

	return node, true
}
