package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"schoolsync/internal/schools"
)

func sampleTable() *schools.Table {
	return &schools.Table{
		Columns: []string{"id", "name", "hasJurnal", "lat", "meta.tags", "ID"},
		Rows: []schools.Row{
			{"id": json.Number("1"), "name": "Məktəb <1>", "hasJurnal": true, "lat": 40.5, "meta.tags": `["a"]`, "ID": "x"},
			{"id": json.Number("2"), "name": "School 2", "hasJurnal": false, "lat": ""},
		},
	}
}

func TestTextCell(t *testing.T) {
	assert.Equal(t, "", TextCell(nil))
	assert.Equal(t, "True", TextCell(true))
	assert.Equal(t, "False", TextCell(false))
	assert.Equal(t, "40.5", TextCell(40.5))
	assert.Equal(t, "7", TextCell(json.Number("7")))
	assert.Equal(t, `{"a":1}`, TextCell(map[string]any{"a": json.Number("1")}))
}

func TestWriter_WriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteTable(context.Background(), sampleTable()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"id", "name", "hasJurnal", "lat", "meta.tags", "ID"}, rows[0])
	assert.Equal(t, []string{"1", "Məktəb <1>", "True", "40.5", `["a"]`, "x"}, rows[1])
	// Missing extra keys become empty cells.
	assert.Equal(t, []string{"2", "School 2", "False", "", "", ""}, rows[2])
}

func TestWriter_NoColumns(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, NewWriter(&buf).WriteTable(context.Background(), &schools.Table{}), ErrNoColumns)
}

func TestCSVSink_BOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "schools.csv")

	sink := NewCSVSink(path, true)
	require.NoError(t, sink.Write(context.Background(), sampleTable()))
	assert.Equal(t, "csv", sink.Name())
	assert.Equal(t, path, sink.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, BOM))

	noBOM := filepath.Join(t.TempDir(), "plain.csv")
	require.NoError(t, NewCSVSink(noBOM, false).Write(context.Background(), sampleTable()))

	data, err = os.ReadFile(noBOM)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("id,name")))
}

func TestXLSXSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schools.xlsx")
	require.NoError(t, NewXLSXSink(path).Write(context.Background(), sampleTable()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)

	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "meta.tags", rows[0][4])
	assert.Equal(t, "Məktəb <1>", rows[1][1])
	assert.Equal(t, "TRUE", rows[1][2])
	assert.Equal(t, "40.5", rows[1][3])
}

func TestSheetCell(t *testing.T) {
	assert.Equal(t, int64(12), sheetCell(json.Number("12")))
	assert.Equal(t, 1.25, sheetCell(json.Number("1.25")))
	assert.Equal(t, true, sheetCell(true))
	assert.Nil(t, sheetCell(nil))
	assert.Equal(t, `[1]`, sheetCell([]any{json.Number("1")}))
}

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schools.db")
	sink := NewSQLiteSink(path, "")

	// Writing twice replaces the table.
	require.NoError(t, sink.Write(context.Background(), sampleTable()))
	require.NoError(t, sink.Write(context.Background(), sampleTable()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "schools"`).Scan(&count))
	assert.Equal(t, 2, count)

	var name, flag string

	var tags sql.NullString
	require.NoError(t, db.QueryRow(`SELECT "name", "hasJurnal", "meta.tags" FROM "schools" WHERE "id" = '2'`).Scan(&name, &flag, &tags))
	assert.Equal(t, "School 2", name)
	assert.Equal(t, "False", flag)
	assert.False(t, tags.Valid)

	var dup string
	require.NoError(t, db.QueryRow(`SELECT "ID_2" FROM "schools" WHERE "id" = '1'`).Scan(&dup))
	assert.Equal(t, "x", dup)
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t,
		[]string{"id", "ID_2", "name", "Id_3", "id_2_2"},
		ColumnNames([]string{"id", "ID", "name", "Id", "id_2"}),
	)
}

func TestWriteRawJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw_response.json")
	payload := map[string]any{"data": []any{map[string]any{"name": "A&B", "id": json.Number("10")}}}

	require.NoError(t, WriteRawJSON(path, payload))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := "{\n  \"data\": [\n    {\n      \"id\": 10,\n      \"name\": \"A&B\"\n    }\n  ]\n}\n"
	assert.Equal(t, want, string(data))
}

func TestWriteRawJSON_KeepsRootOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw_response.json")

	root, err := schools.DecodeDocument([]byte(`{"2":{"n":"<b>"},"10":{"n":"a"}}`))
	require.NoError(t, err)
	require.NoError(t, WriteRawJSON(path, root))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := "{\n  \"2\": {\n    \"n\": \"<b>\"\n  },\n  \"10\": {\n    \"n\": \"a\"\n  }\n}\n"
	assert.Equal(t, want, string(data))
}
