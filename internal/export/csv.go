package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"schoolsync/internal/schools"
)

// BOM is the UTF-8 byte order mark Excel needs to detect the encoding.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer wraps csv.Writer for exporting tables as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteTable writes the header followed by every row in column order.
func (w *Writer) WriteTable(ctx context.Context, table *schools.Table) error {
	if err := checkTable(table); err != nil {
		return err
	}

	if err := w.csv.Write(table.Columns); err != nil {
		return err
	}

	record := make([]string, len(table.Columns))

	for i := range table.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		for j, v := range table.Values(i) {
			record[j] = TextCell(v)
		}

		if err := w.csv.Write(record); err != nil {
			return err
		}
	}

	w.csv.Flush()

	return w.csv.Error()
}

// CSVSink writes schools.csv.
type CSVSink struct {
	path string
	bom  bool
}

// NewCSVSink creates a CSV sink. bom prefixes the file with a UTF-8 BOM.
func NewCSVSink(path string, bom bool) *CSVSink {
	return &CSVSink{path: path, bom: bom}
}

func (s *CSVSink) Name() string { return "csv" }
func (s *CSVSink) Path() string { return s.path }

func (s *CSVSink) Write(ctx context.Context, table *schools.Table) error {
	if err := checkTable(table); err != nil {
		return err
	}

	if err := ensureDir(s.path); err != nil {
		return err
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}

	if s.bom {
		if _, err := f.Write(BOM); err != nil {
			_ = f.Close()
			return fmt.Errorf("write bom: %w", err)
		}
	}

	if err := NewWriter(f).WriteTable(ctx, table); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv: %w", err)
	}

	return f.Close()
}
