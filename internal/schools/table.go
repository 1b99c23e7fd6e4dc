package schools

import "errors"

// ErrEmptyRecordSet reports that extraction produced no records. It is not
// fatal: callers decide whether an empty batch is an error.
var ErrEmptyRecordSet = errors.New("no records found")

// Row maps a column name to its value. Declared columns are always present.
type Row map[string]any

// Table is the assembled output: the final column order plus one row per record.
type Table struct {
	Columns []string
	Rows    []Row
}

// ExtraColumns returns the columns after the declared ones.
func (t *Table) ExtraColumns() []string {
	if len(t.Columns) <= len(declaredColumns) {
		return nil
	}

	return t.Columns[len(declaredColumns):]
}

// Cell returns the value for column in row i and whether the row has it.
func (t *Table) Cell(i int, column string) (any, bool) {
	v, ok := t.Rows[i][column]
	return v, ok
}

// Values returns row i in column order; absent extra keys are nil.
func (t *Table) Values(i int) []any {
	out := make([]any, len(t.Columns))
	for j, col := range t.Columns {
		out[j] = t.Rows[i][col]
	}

	return out
}
