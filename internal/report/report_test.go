package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolsync/internal/schools"
)

func TestMarkdownTable(t *testing.T) {
	got := MarkdownTable([][]string{
		{"id", "name"},
		{"1", "Bakı"},
		{"22", "学校"},
	})

	want := []string{
		"| id  | name |",
		"| --- | ---- |",
		"| 1   | Bakı |",
		"| 22  | 学校 |",
	}
	assert.Equal(t, want, got)
	assert.Nil(t, MarkdownTable(nil))
}

func TestWritePreview(t *testing.T) {
	table := &schools.Table{
		Columns: []string{"id", "name", "hasJurnal"},
		Rows: []schools.Row{
			{"id": json.Number("1"), "name": "A | B", "hasJurnal": true},
			{"id": json.Number("2"), "name": strings.Repeat("x", 60), "hasJurnal": false},
			{"id": json.Number("3"), "name": "C", "hasJurnal": false},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePreview(&buf, table, []string{"id", "name", "missing"}, 2))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "| id  | name")
	assert.Contains(t, lines[2], `A \| B`)
	assert.Contains(t, lines[3], "…")
	assert.NotContains(t, buf.String(), "missing")

	buf.Reset()
	require.NoError(t, WritePreview(&buf, table, nil, 0))
	assert.Zero(t, buf.Len())
}

func TestWritePreview_CollapsesWhitespace(t *testing.T) {
	table := &schools.Table{
		Columns: []string{"name"},
		Rows:    []schools.Row{{"name": "Bakı\n  1 nömrəli\tməktəb"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePreview(&buf, table, []string{"name"}, 1))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "| Bakı 1 nömrəli məktəb |")
}

func TestWriteContactsSample(t *testing.T) {
	long := "[" + strings.Repeat(`"x",`, 100) + `"x"]`
	table := &schools.Table{
		Columns: schools.DeclaredColumns(),
		Rows: []schools.Row{{
			schools.ColContacts:       "a@b.az;+994 12 555 00 00",
			schools.ColContactsPhones: "+994 12 555 00 00",
			schools.ColContactsEmails: "a@b.az",
			schools.ColContactsJSON:   long,
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteContactsSample(&buf, table))

	var sample ContactsSample
	require.NoError(t, json.Unmarshal(buf.Bytes(), &sample))
	assert.Equal(t, "a@b.az", sample.ContactsEmails)
	assert.Equal(t, long[:SampleJSONLimit]+"...", sample.ContactsJSON)
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \"contacts\""))

	buf.Reset()
	require.NoError(t, WriteContactsSample(&buf, &schools.Table{}))
	assert.Zero(t, buf.Len())
}

func TestSummarize(t *testing.T) {
	table := &schools.Table{
		Columns: schools.DeclaredColumns(),
		Rows: []schools.Row{
			{"regionName": "Bakı", "schoolType": "Orta", "hasJurnal": true, "hasMeeting": true, "lat": 40.4, "lng": 49.8,
				"contacts_emails": "a@b.az", "contacts_phones": "12345", "siteUrl": "http://s1"},
			{"regionName": "Bakı", "schoolType": "Tam", "hasJurnal": true, "hasMeeting": false, "lat": 0.0, "lng": 49.8,
				"contacts_emails": "", "contacts_phones": "12345", "siteUrl": ""},
			{"regionName": "Gəncə", "schoolType": "Orta", "hasJurnal": false, "hasMeeting": false, "lat": "", "lng": "",
				"contacts_emails": "c@d.az", "contacts_phones": "", "siteUrl": ""},
		},
	}

	s := Summarize(table)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Distinct("regionName"))
	assert.Equal(t, []Count{{"Bakı", 2}, {"Gəncə", 1}}, s.Breakdowns[0].Counts)
	assert.Equal(t, 2, s.HasJurnal)
	assert.Equal(t, 1, s.HasMeeting)
	assert.Equal(t, 1, s.BothDigital)
	assert.Equal(t, 1, s.NoDigital)
	assert.Equal(t, 1, s.WithCoordinates)
	assert.Equal(t, 2, s.HasEmail)
	assert.Equal(t, 2, s.HasPhone)
	assert.Equal(t, 1, s.HasWebsite)
	assert.Equal(t, 1, s.HasAllContacts)
	assert.Equal(t, 2, s.MissingContact)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, s, 1))

	out := buf.String()
	assert.Contains(t, out, "Total number of schools: 3")
	assert.Contains(t, out, "  - Bakı: 2 schools (66.7%)")
	assert.NotContains(t, out, "Gəncə")
	assert.Contains(t, out, "  - Schools without coordinates: 2 schools (66.7%)")
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(&schools.Table{Columns: schools.DeclaredColumns(), Rows: []schools.Row{}})
	assert.Zero(t, s.Total)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, s, 0))
	assert.Contains(t, buf.String(), "(0.0%)")
}
