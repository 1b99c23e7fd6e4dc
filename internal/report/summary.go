package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"schoolsync/internal/export"
	"schoolsync/internal/schools"
)

// BreakdownColumns are the categorical columns counted by Summarize.
var BreakdownColumns = []string{"regionName", "schoolType", "schoolKind", "subjection"}

// Count is one value of a breakdown and how many rows carry it.
type Count struct {
	Value string
	N     int
}

// Breakdown counts the distinct values of a column, most frequent first.
type Breakdown struct {
	Column string
	Counts []Count
}

// Summary aggregates a table for the stats view.
type Summary struct {
	Total      int
	Breakdowns []Breakdown

	HasJurnal   int
	HasMeeting  int
	BothDigital int
	NoDigital   int

	WithCoordinates int

	HasEmail       int
	HasPhone       int
	HasWebsite     int
	HasAllContacts int
	MissingContact int
}

// Summarize computes breakdowns, digital adoption, coordinate availability
// and contact completeness over all rows.
func Summarize(table *schools.Table) *Summary {
	s := &Summary{}
	if table == nil {
		return s
	}

	s.Total = len(table.Rows)

	for _, col := range BreakdownColumns {
		s.Breakdowns = append(s.Breakdowns, breakdown(table.Rows, col))
	}

	for _, row := range table.Rows {
		jurnal := row["hasJurnal"] == true
		meeting := row["hasMeeting"] == true

		if jurnal {
			s.HasJurnal++
		}

		if meeting {
			s.HasMeeting++
		}

		switch {
		case jurnal && meeting:
			s.BothDigital++
		case row["hasJurnal"] == false && row["hasMeeting"] == false:
			s.NoDigital++
		}

		if nonZeroCoordinate(row["lat"]) && nonZeroCoordinate(row["lng"]) {
			s.WithCoordinates++
		}

		email := present(row[schools.ColContactsEmails])
		phone := present(row[schools.ColContactsPhones])
		site := present(row["siteUrl"])

		if email {
			s.HasEmail++
		}

		if phone {
			s.HasPhone++
		}

		if site {
			s.HasWebsite++
		}

		if email && phone && site {
			s.HasAllContacts++
		}

		if !email || !phone {
			s.MissingContact++
		}
	}

	return s
}

// Distinct returns the number of distinct values counted for column.
func (s *Summary) Distinct(column string) int {
	for _, b := range s.Breakdowns {
		if b.Column == column {
			return len(b.Counts)
		}
	}

	return 0
}

func breakdown(rows []schools.Row, column string) Breakdown {
	counts := make(map[string]int)

	for _, row := range rows {
		if v := export.TextCell(row[column]); v != "" {
			counts[v]++
		}
	}

	b := Breakdown{Column: column, Counts: make([]Count, 0, len(counts))}
	for v, n := range counts {
		b.Counts = append(b.Counts, Count{Value: v, N: n})
	}

	sort.Slice(b.Counts, func(i, j int) bool {
		if b.Counts[i].N != b.Counts[j].N {
			return b.Counts[i].N > b.Counts[j].N
		}

		return b.Counts[i].Value < b.Counts[j].Value
	})

	return b
}

func nonZeroCoordinate(v any) bool {
	f, ok := v.(float64)
	return ok && f != 0
}

func present(v any) bool {
	return strings.TrimSpace(export.TextCell(v)) != ""
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}

	return float64(n) / float64(total) * 100
}

// WriteSummary prints the summary. top limits each breakdown; 0 prints all values.
func WriteSummary(w io.Writer, s *Summary, top int) error {
	var sb strings.Builder

	line := func(label string, n int) {
		fmt.Fprintf(&sb, "  - %s: %d schools (%.1f%%)\n", label, n, percent(n, s.Total))
	}

	fmt.Fprintf(&sb, "Total number of schools: %d\n", s.Total)
	fmt.Fprintf(&sb, "Number of regions: %d\n", s.Distinct("regionName"))
	fmt.Fprintf(&sb, "Number of unique school types: %d\n", s.Distinct("schoolType"))
	fmt.Fprintf(&sb, "Number of unique school kinds: %d\n", s.Distinct("schoolKind"))

	for _, b := range s.Breakdowns {
		fmt.Fprintf(&sb, "\n%s breakdown:\n", b.Column)

		counts := b.Counts
		if top > 0 && len(counts) > top {
			counts = counts[:top]
		}

		for _, c := range counts {
			line(c.Value, c.N)
		}
	}

	sb.WriteString("\nDigital adoption rates:\n")
	line("E-Journal system", s.HasJurnal)
	line("Online meetings", s.HasMeeting)
	line("Both features", s.BothDigital)
	line("No digital features", s.NoDigital)

	sb.WriteString("\nGeographic data availability:\n")
	line("Schools with coordinates", s.WithCoordinates)
	line("Schools without coordinates", s.Total-s.WithCoordinates)

	sb.WriteString("\nContact information statistics:\n")
	line("Has Email", s.HasEmail)
	line("Has Phone", s.HasPhone)
	line("Has Website", s.HasWebsite)
	line("Has All Contact Info", s.HasAllContacts)
	line("Missing Contact Info", s.MissingContact)

	_, err := io.WriteString(w, sb.String())

	return err
}
