// Package report renders console views of an assembled table.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"schoolsync/internal/export"
	"schoolsync/internal/schools"
	"schoolsync/pkg/utils"
)

// SampleJSONLimit bounds contacts_json in the contacts sample.
const SampleJSONLimit = 200

// MaxCellWidth bounds preview cells in display columns.
const MaxCellWidth = 40

// ContactsSample is the first row's contacts columns, printed for a visual check.
type ContactsSample struct {
	Contacts       string `json:"contacts"`
	ContactsPhones string `json:"contacts_phones"`
	ContactsEmails string `json:"contacts_emails"`
	ContactsJSON   string `json:"contacts_json"`
}

// SampleContacts builds the sample from the first row of table.
func SampleContacts(table *schools.Table) (ContactsSample, bool) {
	if table == nil || len(table.Rows) == 0 {
		return ContactsSample{}, false
	}

	row := table.Rows[0]
	text := func(col string) string { return export.TextCell(row[col]) }

	return ContactsSample{
		Contacts:       text(schools.ColContacts),
		ContactsPhones: text(schools.ColContactsPhones),
		ContactsEmails: text(schools.ColContactsEmails),
		ContactsJSON:   utils.NewStringHelper().TruncateString(text(schools.ColContactsJSON), SampleJSONLimit),
	}, true
}

// WriteContactsSample prints the sample as indented JSON. Nothing is written
// for an empty table.
func WriteContactsSample(w io.Writer, table *schools.Table) error {
	sample, ok := SampleContacts(table)
	if !ok {
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	return enc.Encode(sample)
}

// WritePreview prints the first n rows of the given columns as an aligned
// markdown table. Unknown columns are skipped; no columns means all declared ones.
func WritePreview(w io.Writer, table *schools.Table, columns []string, n int) error {
	if table == nil || n <= 0 || len(table.Rows) == 0 {
		return nil
	}

	cols := pickColumns(table, columns)
	if len(cols) == 0 {
		return nil
	}

	if n > len(table.Rows) {
		n = len(table.Rows)
	}

	rows := make([][]string, 0, n+1)
	rows = append(rows, cols)

	for i := 0; i < n; i++ {
		cells := make([]string, len(cols))
		for j, c := range cols {
			cells[j] = previewCell(table.Rows[i][c])
		}

		rows = append(rows, cells)
	}

	for _, line := range MarkdownTable(rows) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

func pickColumns(table *schools.Table, requested []string) []string {
	if len(requested) == 0 {
		return schools.DeclaredColumns()
	}

	known := make(map[string]bool, len(table.Columns))
	for _, c := range table.Columns {
		known[c] = true
	}

	var out []string

	for _, c := range requested {
		if known[c] {
			out = append(out, c)
		}
	}

	return out
}

func previewCell(v any) string {
	s := export.TextCell(v)
	s = utils.NewStringHelper().NormalizeWhitespace(s)
	s = strings.ReplaceAll(s, "|", `\|`)

	return runewidth.Truncate(s, MaxCellWidth, "…")
}

// MarkdownTable aligns rows[0] as the header and the rest as body rows,
// padding by display width so wide characters line up.
func MarkdownTable(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}

	colCount := 0
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	colWidths := make([]int, colCount)

	for _, row := range rows {
		for i, cell := range row {
			if width := runewidth.StringWidth(cell); width > colWidths[i] {
				colWidths[i] = width
			}
		}
	}

	// Separator needs at least "---".
	for i := range colWidths {
		if colWidths[i] < 3 {
			colWidths[i] = 3
		}
	}

	result := make([]string, 0, len(rows)+1)

	for i, row := range rows {
		result = append(result, formatRow(row, colWidths))

		if i == 0 {
			sep := make([]string, colCount)
			for j, width := range colWidths {
				sep[j] = strings.Repeat("-", width)
			}

			result = append(result, formatRow(sep, colWidths))
		}
	}

	return result
}

func formatRow(row []string, colWidths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, width := range colWidths {
		content := ""
		if j < len(row) {
			content = row[j]
		}

		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(content, width))
		sb.WriteString(" |")
	}

	return sb.String()
}
