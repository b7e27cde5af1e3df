package treereplace_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	treereplace "github.com/clayflint/tree-replace"
)

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestPackExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a", "one.txt"), "first")
	writeFile(t, filepath.Join(src, "two.json"), `{"k":"v"}`)
	require.NoError(t, os.Mkdir(filepath.Join(src, "empty"), 0o755))

	var buf bytes.Buffer
	require.NoError(t, treereplace.Pack(context.Background(), src, &buf))

	dest := t.TempDir()
	require.NoError(t, treereplace.Extract(context.Background(), bytes.NewReader(buf.Bytes()), int64(buf.Len()), dest))

	one, err := os.ReadFile(filepath.Join(dest, "a", "one.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(one))

	two, err := os.ReadFile(filepath.Join(dest, "two.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"k":"v"}`, string(two))

	// Empty directories survive the round trip.
	assert.DirExists(t, filepath.Join(dest, "empty"))
}

func TestBackupNamingAndContents(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "tasks")
	writeFile(t, filepath.Join(root, "nested", "item.json"), `{"id":1}`)

	path, err := treereplace.Backup(context.Background(), root, "backup")
	require.NoError(t, err)

	assert.Regexp(t, `backup_tasks_\d{8}_\d{6}\.zip$`, filepath.Base(path))
	assert.Equal(t, parent, filepath.Dir(path))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	found := false
	for _, f := range zr.File {
		if f.Name == "tasks/nested/item.json" {
			found = true
			rc, err := f.Open()
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, `{"id":1}`, string(data))
		}
	}
	assert.True(t, found, "backup entries must be relative to the root's parent")
}

func TestExtractRejectsUnsafeEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{name: "ParentTraversal", entry: "../evil.txt"},
		{name: "NestedTraversal", entry: "a/../../evil.txt"},
		{name: "AbsolutePath", entry: "/abs.txt"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data := zipBytes(t, map[string]string{
				"ok.txt":   "fine",
				test.entry: "nope",
			})

			dest := t.TempDir()
			err := treereplace.Extract(context.Background(), bytes.NewReader(data), int64(len(data)), dest)
			require.Error(t, err)

			// Rejected before anything was written, including the safe entry.
			entries, err := os.ReadDir(dest)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestExtractRejectsCorruptArchive(t *testing.T) {
	data := []byte("this is not a zip file")
	err := treereplace.Extract(context.Background(), bytes.NewReader(data), int64(len(data)), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid archive")
}
