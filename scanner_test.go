package treereplace_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	treereplace "github.com/clayflint/tree-replace"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScannerClassification(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()

	writeFile(t, filepath.Join(tempDir, "foo_old.json"), `{"name":"old"}`)
	writeFile(t, filepath.Join(tempDir, "notes_old.txt"), "old content but txt is not allowed")
	writeFile(t, filepath.Join(tempDir, "plain.json"), `{"name":"unrelated"}`)
	writeFile(t, filepath.Join(tempDir, "old_dir", "inner.log"), "old line")

	scanner := treereplace.NewFilesystemScanner(treereplace.DefaultConfig())
	scan, err := scanner.Scan(ctx, tempDir, "old", "new")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(tempDir, "foo_old.json"),
		filepath.Join(tempDir, "old_dir", "inner.log"),
	}, scan.ContentFiles)

	assert.ElementsMatch(t, []treereplace.RenameCandidate{
		{Source: filepath.Join(tempDir, "foo_old.json"), Dest: filepath.Join(tempDir, "foo_new.json")},
		{Source: filepath.Join(tempDir, "notes_old.txt"), Dest: filepath.Join(tempDir, "notes_new.txt")},
	}, scan.FileRenames)

	assert.ElementsMatch(t, []treereplace.RenameCandidate{
		{Source: filepath.Join(tempDir, "old_dir"), Dest: filepath.Join(tempDir, "new_dir")},
	}, scan.FolderRenames)
}

func TestScannerNoMatches(t *testing.T) {
	tempDir := t.TempDir()

	writeFile(t, filepath.Join(tempDir, "a.json"), `{"name":"value"}`)
	writeFile(t, filepath.Join(tempDir, "sub", "b.log"), "nothing interesting")

	scanner := treereplace.NewFilesystemScanner(treereplace.DefaultConfig())
	scan, err := scanner.Scan(context.Background(), tempDir, "absent-substring", "new")
	require.NoError(t, err)

	assert.True(t, scan.Empty())
	assert.Empty(t, scan.ContentFiles)
	assert.Empty(t, scan.FileRenames)
	assert.Empty(t, scan.FolderRenames)
}

func TestScannerSkipsBinaryContent(t *testing.T) {
	tempDir := t.TempDir()

	// Allowed suffix, matching bytes, but not valid UTF-8. Binary files
	// are invisible to content scanning.
	binary := append([]byte{0xff, 0xfe, 0x00}, []byte("old")...)
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "data.json"), binary, 0o644))

	scanner := treereplace.NewFilesystemScanner(treereplace.DefaultConfig())
	scan, err := scanner.Scan(context.Background(), tempDir, "old", "new")
	require.NoError(t, err)

	assert.Empty(t, scan.ContentFiles)
}

func TestScannerMatchesBaseNameOnly(t *testing.T) {
	tempDir := t.TempDir()

	// The directory name matches but the file's base name does not: the
	// directory is a folder candidate, the file is not a file candidate.
	writeFile(t, filepath.Join(tempDir, "old_things", "plain.txt"), "x")

	scanner := treereplace.NewFilesystemScanner(treereplace.DefaultConfig())
	scan, err := scanner.Scan(context.Background(), tempDir, "old", "new")
	require.NoError(t, err)

	assert.Empty(t, scan.FileRenames)
	require.Len(t, scan.FolderRenames, 1)
	assert.Equal(t, filepath.Join(tempDir, "old_things"), scan.FolderRenames[0].Source)
}

func TestScannerExcludesConfiguredDirs(t *testing.T) {
	tempDir := t.TempDir()

	writeFile(t, filepath.Join(tempDir, ".git", "old_ref.json"), `{"ref":"old"}`)
	writeFile(t, filepath.Join(tempDir, "kept_old.json"), `{"name":"old"}`)

	scanner := treereplace.NewFilesystemScanner(treereplace.DefaultConfig())
	scan, err := scanner.Scan(context.Background(), tempDir, "old", "new")
	require.NoError(t, err)

	require.Len(t, scan.FileRenames, 1)
	assert.Equal(t, filepath.Join(tempDir, "kept_old.json"), scan.FileRenames[0].Source)
	assert.Equal(t, []string{filepath.Join(tempDir, "kept_old.json")}, scan.ContentFiles)
}

func TestScannerDestReplacesEveryOccurrence(t *testing.T) {
	tempDir := t.TempDir()

	writeFile(t, filepath.Join(tempDir, "a_old_b_old.txt"), "x")

	scanner := treereplace.NewFilesystemScanner(treereplace.DefaultConfig())
	scan, err := scanner.Scan(context.Background(), tempDir, "old", "new")
	require.NoError(t, err)

	require.Len(t, scan.FileRenames, 1)
	assert.Equal(t, filepath.Join(tempDir, "a_new_b_new.txt"), scan.FileRenames[0].Dest)
}

func TestScannerScanIsReadOnly(t *testing.T) {
	tempDir := t.TempDir()

	path := filepath.Join(tempDir, "foo_old.json")
	writeFile(t, path, `{"name":"old"}`)

	scanner := treereplace.NewFilesystemScanner(treereplace.DefaultConfig())
	for i := 0; i < 3; i++ {
		scan, err := scanner.Scan(context.Background(), tempDir, "old", "new")
		require.NoError(t, err)
		assert.Len(t, scan.FileRenames, 1)
	}

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"old"}`, string(content))
}
