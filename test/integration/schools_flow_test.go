package integration

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"schoolsync/internal/config"
	"schoolsync/internal/pipeline"
	"schoolsync/internal/schools"
	"schoolsync/pkg/metadata"
)

func runFixture(t *testing.T, workers int) (*pipeline.Result, string) {
	t.Helper()

	fixturePath := filepath.Join("..", "fixtures", "schools_payload.json")

	cfg := config.Default()
	cfg.Source.File = fixturePath
	cfg.Output.Dir = t.TempDir()
	cfg.Output.SQLite = "schools.db"
	cfg.Assemble.Workers = workers

	var console bytes.Buffer

	runner, err := pipeline.NewRunner(cfg, nil, pipeline.WithConsole(&console))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	return res, cfg.Output.Dir
}

func TestSchoolsFlow_MixedShapes(t *testing.T) {
	res, outDir := runFixture(t, 1)

	// Dict of records at the root, emitted in document order: b-2, a-1, c-3.
	if res.Records != 3 {
		t.Fatalf("Expected 3 records, got %d", res.Records)
	}

	table := res.Table

	first := table.Rows[1]
	if schools.Stringify(first["id"]) != "101" {
		t.Errorf("Expected second row id 101, got %v", first["id"])
	}

	if first["lat"] != 40.4093 {
		t.Errorf("Expected lat 40.4093, got %v", first["lat"])
	}

	if first["hasMeeting"] != false {
		t.Errorf("Expected hasMeeting false, got %v", first["hasMeeting"])
	}

	if first["schoolType"] != `{"id":2,"name":"Tam orta"}` {
		t.Errorf("Expected schoolType as compact JSON, got %v", first["schoolType"])
	}

	if first["contacts_phones"] != "+994 12 555 01 01|012-555-01-02" {
		t.Errorf("Unexpected phones: %v", first["contacts_phones"])
	}

	if first["contacts_emails"] != "info@school101.edu.az" {
		t.Errorf("Unexpected emails: %v", first["contacts_emails"])
	}

	if first["contacts"] != "+994 12 555 01 01;info@school101.edu.az;fb.com/school101;012-555-01-02" {
		t.Errorf("Unexpected contacts: %v", first["contacts"])
	}

	second := table.Rows[0]
	if schools.Stringify(second["id"]) != "102" {
		t.Errorf("Expected first row id from schoolId, got %v", second["id"])
	}

	if second["lat"] != 40.6828 || second["lng"] != 46.3606 {
		t.Errorf("Expected comma-decimal coordinates, got %v/%v", second["lat"], second["lng"])
	}

	if second["hasJurnal"] != true || second["hasMeeting"] != false {
		t.Errorf("Unexpected flags: %v/%v", second["hasJurnal"], second["hasMeeting"])
	}

	if second["imageToken"] != "school-102.png" {
		t.Errorf("Expected nested image token, got %v", second["imageToken"])
	}

	if second["regionName"] != "Gəncə" {
		t.Errorf("Expected regionName via region.name, got %v", second["regionName"])
	}

	// Plain-string contacts land in the email bucket whatever they look like.
	if second["contacts_emails"] != "info@school102.edu.az;022 256 00 00" || second["contacts_phones"] != "" {
		t.Errorf("Unexpected plain contacts: %v / %v", second["contacts_emails"], second["contacts_phones"])
	}

	third := table.Rows[2]
	if third["regionName"] != "Şəki" {
		t.Errorf("Expected null regionName to fall through to region, got %v", third["regionName"])
	}

	if third["lat"] != "n/a" {
		t.Errorf("Expected unparseable lat kept as-is, got %v", third["lat"])
	}

	if third["contacts_emails"] != "seki@edu.az" {
		t.Errorf("Expected JSON-string contacts parsed, got %v", third["contacts_emails"])
	}

	wantExtras := []string{"director.fullName", "director.since", "has_journal", "has_meeting", "image.fileName",
		"latitude", "longitude", "region", "region.id", "region.name", "schoolId", "schoolName",
		"schoolType.id", "schoolType.name", "tags"}

	extras := table.ExtraColumns()
	if len(extras) != len(wantExtras) {
		t.Fatalf("Expected extras %v, got %v", wantExtras, extras)
	}

	for i := range wantExtras {
		if extras[i] != wantExtras[i] {
			t.Errorf("Extra column %d: expected %s, got %s", i, wantExtras[i], extras[i])
		}
	}

	f, err := os.Open(filepath.Join(outDir, "schools.csv"))
	if err != nil {
		t.Fatalf("Failed to open CSV: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}

	if len(rows) != 4 || len(rows[0]) != len(table.Columns) {
		t.Fatalf("Unexpected CSV shape: %d rows, %d columns", len(rows), len(rows[0]))
	}

	idCol := -1

	for i, name := range rows[0] {
		if name == "id" {
			idCol = i
		}
	}

	if idCol < 0 {
		t.Fatalf("CSV header has no id column: %v", rows[0])
	}

	for i, want := range []string{"102", "101", "103"} {
		if got := rows[i+1][idCol]; got != want {
			t.Errorf("CSV row %d: expected id %s, got %s", i+1, want, got)
		}
	}

	m, err := metadata.Read(res.Manifest)
	if err != nil {
		t.Fatalf("Failed to read manifest: %v", err)
	}

	if err := m.Verify(); err != nil {
		t.Errorf("Manifest verification failed: %v", err)
	}
}

func TestSchoolsFlow_ParallelMatchesSequential(t *testing.T) {
	seq, _ := runFixture(t, 1)
	par, _ := runFixture(t, 4)

	if len(seq.Table.Columns) != len(par.Table.Columns) {
		t.Fatalf("Column count differs: %d vs %d", len(seq.Table.Columns), len(par.Table.Columns))
	}

	for i := range seq.Table.Rows {
		for _, col := range seq.Table.Columns {
			a, b := seq.Table.Rows[i][col], par.Table.Rows[i][col]
			if schools.Stringify(a) != schools.Stringify(b) {
				t.Errorf("Row %d column %s differs: %v vs %v", i, col, a, b)
			}
		}
	}
}
