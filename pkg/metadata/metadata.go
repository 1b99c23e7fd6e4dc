// Package metadata records run manifests with checksums of every written artifact.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Manifest verification errors.
var (
	ErrNoHashFound      = errors.New("no hash found in manifest")
	ErrHashMismatch     = errors.New("hash mismatch")
	ErrArtifactMismatch = errors.New("artifact checksum mismatch")
)

// Artifact is one file written by a run.
type Artifact struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// Manifest describes a completed run.
type Manifest struct {
	RunID      string     `json:"run_id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Records    int        `json:"records"`
	Rows       int        `json:"rows"`
	Columns    int        `json:"columns"`
	Artifacts  []Artifact `json:"artifacts"`
	Hash       string     `json:"hash,omitempty"`
}

// CalculateHash computes the hex SHA-256 of data.
func CalculateHash(data []byte) string {
	hash := sha256.Sum256(data)

	return hex.EncodeToString(hash[:])
}

// FileHash streams path through SHA-256 and returns the digest and size.
func FileHash(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()

	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// AddArtifact checksums path and appends it to the manifest.
func (m *Manifest) AddArtifact(name, path string) error {
	sum, size, err := FileHash(path)
	if err != nil {
		return err
	}

	m.Artifacts = append(m.Artifacts, Artifact{Name: name, Path: path, Bytes: size, SHA256: sum})

	return nil
}

// contentHash hashes the manifest with the Hash field cleared.
func (m *Manifest) contentHash() (string, error) {
	clone := *m
	clone.Hash = ""

	data, err := json.Marshal(clone)
	if err != nil {
		return "", err
	}

	return CalculateHash(data), nil
}

// Sign sets Hash over the manifest content.
func (m *Manifest) Sign() error {
	hash, err := m.contentHash()
	if err != nil {
		return fmt.Errorf("sign manifest: %w", err)
	}

	m.Hash = hash

	return nil
}

// Verify checks the manifest hash and every artifact checksum on disk.
func (m *Manifest) Verify() error {
	if m.Hash == "" {
		return ErrNoHashFound
	}

	calculated, err := m.contentHash()
	if err != nil {
		return err
	}

	if calculated != m.Hash {
		return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, m.Hash, calculated)
	}

	for _, a := range m.Artifacts {
		sum, _, err := FileHash(a.Path)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrArtifactMismatch, a.Name, err)
		}

		if sum != a.SHA256 {
			return fmt.Errorf("%w: %s", ErrArtifactMismatch, a.Name)
		}
	}

	return nil
}

// Write signs the manifest and saves it as indented JSON.
func Write(path string, m *Manifest) error {
	if err := m.Sign(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Read loads a manifest from path.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	return &m, nil
}
