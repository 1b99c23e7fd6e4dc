package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", CalculateHash([]byte("abc")))
}

func TestManifest_WriteReadVerify(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "schools.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id\n1\n"), 0o644))

	m := &Manifest{
		RunID:      "run-1",
		Source:     "raw.json",
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
		Records:    1,
		Rows:       1,
		Columns:    22,
	}
	require.NoError(t, m.AddArtifact("csv", csvPath))
	assert.Equal(t, int64(5), m.Artifacts[0].Bytes)

	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, Write(path, m))

	loaded, err := Read(path)
	require.NoError(t, err)
	require.NoError(t, loaded.Verify())
	assert.Equal(t, m.Hash, loaded.Hash)

	// Tampered artifact.
	require.NoError(t, os.WriteFile(csvPath, []byte("id\n2\n"), 0o644))
	assert.ErrorIs(t, loaded.Verify(), ErrArtifactMismatch)

	// Tampered manifest content.
	loaded.Rows = 99
	assert.ErrorIs(t, loaded.Verify(), ErrHashMismatch)

	loaded.Hash = ""
	assert.ErrorIs(t, loaded.Verify(), ErrNoHashFound)
}

func TestAddArtifact_Missing(t *testing.T) {
	m := &Manifest{}
	assert.ErrorIs(t, m.AddArtifact("csv", filepath.Join(t.TempDir(), "none.csv")), os.ErrNotExist)
}

func TestRead_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := Read(path)
	assert.Error(t, err)
}
