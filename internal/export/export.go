// Package export writes an assembled schools table to its output artifacts.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"schoolsync/internal/schools"
)

// ErrNoColumns is returned when asked to write a table without columns.
var ErrNoColumns = errors.New("table has no columns")

// Sink writes a table to one artifact.
type Sink interface {
	// Name is a short label used in logs and the run manifest.
	Name() string
	// Path is the artifact location.
	Path() string
	Write(ctx context.Context, table *schools.Table) error
}

// TextCell renders a value for text formats. Booleans follow the
// True/False spelling used by the spreadsheet tooling the files feed.
func TextCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "True"
		}

		return "False"
	default:
		return schools.Stringify(v)
	}
}

func checkTable(table *schools.Table) error {
	if table == nil || len(table.Columns) == 0 {
		return ErrNoColumns
	}

	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	return nil
}

// WriteRawJSON dumps the decoded payload with 2-space indentation and
// without HTML escaping.
func WriteRawJSON(path string, v any) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode raw json: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}
