package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateDummyFile creates a file with the given content, ensuring parent
// directories exist. It uses require assertions for test setup.
func CreateDummyFile(t *testing.T, path string, content string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	dir := filepath.Dir(fullPath)
	err := os.MkdirAll(dir, 0755)
	require.NoError(t, err, "Failed to create directory %s for dummy file", dir)
	err = os.WriteFile(fullPath, []byte(content), 0644)
	require.NoError(t, err, "Failed to write dummy file %s", fullPath)
}

// CreateDummyDir ensures a directory exists at the given path, creating
// parents if needed.
func CreateDummyDir(t *testing.T, path string) {
	t.Helper()
	err := os.MkdirAll(filepath.Clean(path), 0755)
	require.NoError(t, err, "Failed to create dummy directory %s", path)
}

// WriteRecordFile marshals a list of records to JSON and writes it at the
// given path. Used to build fixture file groups in temp directories.
func WriteRecordFile(t *testing.T, path string, records []map[string]any) {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err, "Failed to marshal records for %s", path)
	CreateDummyFile(t, path, string(data))
}

// ReadRecordFile reads a JSON file containing a list of records back into
// memory for assertions.
func ReadRecordFile(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "Failed to read record file %s", path)
	var records []map[string]any
	err = json.Unmarshal(data, &records)
	require.NoError(t, err, "Failed to unmarshal record file %s", path)
	return records
}
