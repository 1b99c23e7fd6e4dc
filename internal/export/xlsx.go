package export

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"

	"schoolsync/internal/schools"
)

// SheetName is the worksheet holding the table.
const SheetName = "schools"

// XLSXSink writes schools.xlsx with a single worksheet.
type XLSXSink struct {
	path string
}

// NewXLSXSink creates a spreadsheet sink.
func NewXLSXSink(path string) *XLSXSink {
	return &XLSXSink{path: path}
}

func (s *XLSXSink) Name() string { return "xlsx" }
func (s *XLSXSink) Path() string { return s.path }

func (s *XLSXSink) Write(ctx context.Context, table *schools.Table) (err error) {
	if err := checkTable(table); err != nil {
		return err
	}

	if err := ensureDir(s.path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", closeErr)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	header := make([]any, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c
	}

	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range table.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		values := table.Values(i)
		cells := make([]any, len(values))

		for j, v := range values {
			cells[j] = sheetCell(v)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}

	return nil
}

// sheetCell keeps numbers and booleans typed so spreadsheets can compute on them.
func sheetCell(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, float64, int, int64:
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}

		if f, err := t.Float64(); err == nil {
			return f
		}

		return t.String()
	default:
		return TextCell(v)
	}
}
