package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolsync/internal/schools"
)

const rawPayload = `{"data": [
  {"id": 10, "name": "Məktəb 10", "regionName": "Bakı", "hasJurnal": true,
   "contacts": [{"typeId": 1, "value": "012 555 10 10"}]}
]}`

// execute runs the root command and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()

	return stdout.String(), stderr.String(), err
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitNoRecords, exitCode(fmt.Errorf("run: %w", schools.ErrEmptyRecordSet)))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
}

func TestConvertCmd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "input.json")
	require.NoError(t, os.WriteFile(src, []byte(rawPayload), 0o644))

	out := filepath.Join(dir, "out")

	stdout, _, err := execute(t, "convert", src, "--out", out, "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Saved 1 rows (22 columns)")
	assert.Contains(t, stdout, `"contacts_phones": "012 555 10 10"`)

	for _, name := range []string{"schools.csv", "schools.xlsx", "raw_response.json", "manifest.json"} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	stdout, _, err = execute(t, "verify", filepath.Join(out, "manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 artifact(s) verified")
}

func TestConvertCmd_NoRecords(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"data": []}`), 0o644))

	_, _, err := execute(t, "convert", src, "--out", dir, "--log-level", "error")
	assert.Equal(t, exitNoRecords, exitCode(err))
}

func TestStatsCmd(t *testing.T) {
	src := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(src, []byte(rawPayload), 0o644))

	stdout, _, err := execute(t, "stats", src, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Total number of schools: 1")
	assert.Contains(t, stdout, "  - Bakı: 1 schools (100.0%)")
}

func TestPathsCmd(t *testing.T) {
	stdout, _, err := execute(t, "paths")
	require.NoError(t, err)
	assert.Contains(t, stdout, "contacts:")
	assert.Contains(t, stdout, "- latitude")
}

func TestInitConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schoolsync.yaml")

	_, _, err := execute(t, "init-config", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "max_attempts: 4"))

	_, _, err = execute(t, "paths", "--config", path)
	assert.NoError(t, err)
}

func TestInvalidConfig(t *testing.T) {
	_, _, err := execute(t, "paths", "--log-format", "xml")
	assert.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
}

func TestRun_PrintsError(t *testing.T) {
	code := run([]string{"convert"})
	assert.Equal(t, exitFailure, code)
}
