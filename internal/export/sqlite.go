package export

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"schoolsync/internal/schools"
)

// DefaultTable is the SQLite table the rows are written to.
const DefaultTable = "schools"

// SQLiteSink replaces a table in a local SQLite database with the rows.
type SQLiteSink struct {
	path  string
	table string
}

// NewSQLiteSink creates a SQLite sink writing to table (DefaultTable when empty).
func NewSQLiteSink(path, table string) *SQLiteSink {
	if table == "" {
		table = DefaultTable
	}

	return &SQLiteSink{path: path, table: table}
}

func (s *SQLiteSink) Name() string { return "sqlite" }
func (s *SQLiteSink) Path() string { return s.path }

func (s *SQLiteSink) Write(ctx context.Context, table *schools.Table) error {
	if err := checkTable(table); err != nil {
		return err
	}

	if err := ensureDir(s.path); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", s.path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	names := ColumnNames(table.Columns)
	quoted := make([]string, len(names))
	defs := make([]string, len(names))

	for i, n := range names {
		quoted[i] = quoteIdent(n)
		defs[i] = quoted[i] + " TEXT"
	}

	stmts := []string{
		"DROP TABLE IF EXISTS " + quoteIdent(s.table),
		fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(s.table), strings.Join(defs, ", ")),
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("prepare table: %w", err)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(s.table), strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	args := make([]any, len(names))

	for i := range table.Rows {
		for j, v := range table.Values(i) {
			if v == nil {
				args[j] = nil
				continue
			}

			args[j] = TextCell(v)
		}

		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// ColumnNames makes column names unique under SQLite's case-insensitive
// identifier rules by suffixing later duplicates with _2, _3, ...
func ColumnNames(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, len(columns))

	for i, c := range columns {
		name := c
		for n := 2; seen[strings.ToLower(name)]; n++ {
			name = c + "_" + strconv.Itoa(n)
		}

		seen[strings.ToLower(name)] = true
		out[i] = name
	}

	return out
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
