package schools

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Assembler turns raw records into rows and computes the batch column order.
type Assembler struct {
	resolver *Resolver
	workers  int
}

// NewAssembler creates an assembler. workers <= 1 processes records sequentially.
func NewAssembler(resolver *Resolver, workers int) *Assembler {
	if resolver == nil {
		resolver = NewResolver(nil)
	}

	if workers < 1 {
		workers = 1
	}

	return &Assembler{resolver: resolver, workers: workers}
}

// Assemble builds one row per record, preserving record order. An empty batch
// returns a table with only the declared columns together with ErrEmptyRecordSet.
func (a *Assembler) Assemble(ctx context.Context, records []any) (*Table, error) {
	table := &Table{Columns: DeclaredColumns()}
	if len(records) == 0 {
		table.Rows = []Row{}
		return table, ErrEmptyRecordSet
	}

	rows := make([]Row, len(records))
	extras := make([][]string, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rows[i], extras[i] = a.BuildRow(rec)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	table.Rows = rows
	table.Columns = append(table.Columns, unionSorted(extras)...)

	return table, nil
}

// BuildRow assembles a single record and returns the row with the extra
// (non-declared) keys it introduced.
func (a *Assembler) BuildRow(record any) (Row, []string) {
	row := make(Row, len(declaredColumns))

	for _, col := range declaredColumns {
		if IsContactsColumn(col) {
			row[col] = ""
			continue
		}

		row[col] = a.resolver.Resolve(record, col)
	}

	contacts := NormalizeContacts(a.resolver.RawContacts(record))
	row[ColContacts] = contacts.All
	row[ColContactsPhones] = contacts.Phones
	row[ColContactsEmails] = contacts.Emails
	row[ColContactsJSON] = contacts.JSON

	var extra []string

	for k, v := range Flatten(record, "") {
		if _, exists := row[k]; exists {
			continue
		}

		row[k] = v
		extra = append(extra, k)
	}

	return row, extra
}

func unionSorted(sets [][]string) []string {
	seen := make(map[string]struct{})

	var out []string

	for _, set := range sets {
		for _, k := range set {
			if _, ok := seen[k]; ok || isDeclared(k) {
				continue
			}

			seen[k] = struct{}{}
			out = append(out, k)
		}
	}

	sort.Strings(out)

	return out
}
