package treereplace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

type Scanner interface {
	Scan(ctx context.Context, rootPath string, old, new string) (*ScanResult, error)
}

// FilesystemScanner performs the read-only candidate pass. It never
// mutates the tree and is safe to run repeatedly.
type FilesystemScanner struct {
	config *Config
}

func NewFilesystemScanner(config *Config) *FilesystemScanner {
	return &FilesystemScanner{
		config: config,
	}
}

// Scan walks the tree once and classifies every entry. Directory and file
// renames match on the base name only; content candidates must carry an
// allowed suffix, decode as UTF-8 and contain the search substring.
// Files that do not decode are skipped silently, so binary files with a
// matching suffix are invisible to content scanning.
func (s *FilesystemScanner) Scan(ctx context.Context, rootPath string, old, new string) (*ScanResult, error) {
	result := &ScanResult{
		ContentFiles:  []string{},
		FileRenames:   []RenameCandidate{},
		FolderRenames: []RenameCandidate{},
	}

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			return nil
		}

		if path == rootPath {
			return nil
		}

		relPath, _ := filepath.Rel(rootPath, path)
		for _, exclude := range s.config.ExcludeDirs {
			if strings.Contains(relPath, exclude) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		name := d.Name()

		if d.IsDir() {
			if strings.Contains(name, old) {
				result.FolderRenames = append(result.FolderRenames, renameCandidate(path, old, new))
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if strings.Contains(name, old) {
			result.FileRenames = append(result.FileRenames, renameCandidate(path, old, new))
		}

		if s.config.suffixAllowed(filepath.Ext(name)) {
			content, err := os.ReadFile(path)
			if err != nil || !utf8.Valid(content) {
				return nil
			}
			if strings.Contains(string(content), old) {
				result.ContentFiles = append(result.ContentFiles, path)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// renameCandidate derives the destination path: parent directory
// unchanged, every occurrence of old in the base name replaced by new.
func renameCandidate(path, old, new string) RenameCandidate {
	base := filepath.Base(path)
	return RenameCandidate{
		Source: path,
		Dest:   filepath.Join(filepath.Dir(path), strings.ReplaceAll(base, old, new)),
	}
}
