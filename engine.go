package treereplace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DefaultFilePermissions = 0644

type Engine interface {
	Scan(ctx context.Context, rootPath string, old, new string) (*ScanResult, error)
	Apply(ctx context.Context, rootPath string, params ReplaceParams) (*ApplyResult, error)
	ApplyScan(ctx context.Context, rootPath string, params ReplaceParams, scan *ScanResult) (*ApplyResult, error)
}

type DefaultEngine struct {
	scanner   Scanner
	validator Validator
	config    *Config
}

func NewDefaultEngine(config *Config) (*DefaultEngine, error) {
	validator := NewDefaultValidator(config)
	if err := validator.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &DefaultEngine{
		scanner:   NewFilesystemScanner(config),
		validator: validator,
		config:    config,
	}, nil
}

func (e *DefaultEngine) Scan(ctx context.Context, rootPath string, old, new string) (*ScanResult, error) {
	if err := e.validator.ValidatePath(rootPath); err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}
	if err := e.validator.ValidateParams(ReplaceParams{Old: old, New: new}); err != nil {
		return nil, err
	}

	return e.scanner.Scan(ctx, rootPath, old, new)
}

// Apply scans the tree and hands the full candidate set to ApplyScan.
func (e *DefaultEngine) Apply(ctx context.Context, rootPath string, params ReplaceParams) (*ApplyResult, error) {
	scan, err := e.Scan(ctx, rootPath, params.Old, params.New)
	if err != nil {
		return nil, err
	}

	return e.ApplyScan(ctx, rootPath, params, scan)
}

// ApplyScan executes the mutation protocol against a candidate set, which
// may be a user-filtered subset of a previous scan.
//
// Renames are ordered deepest path first: a nested entry is always moved
// before any ancestor folder rename can invalidate its path. File renames
// run before folder renames for the same reason. Content replacement runs
// last against a fresh scan, since folder renames have moved paths by
// then. Every attempted mutation appends one log line; a single item's
// failure never aborts the batch. The only whole-run aborts are the
// confirmation gate (which degrades to a dry run) and a failed backup.
func (e *DefaultEngine) ApplyScan(ctx context.Context, rootPath string, params ReplaceParams, scan *ScanResult) (*ApplyResult, error) {
	if err := e.validator.ValidatePath(rootPath); err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}
	if err := e.validator.ValidateParams(params); err != nil {
		return nil, err
	}

	result := &ApplyResult{Log: []string{}}

	if !params.Authorized() {
		result.DryRun = true
		result.Log = append(result.Log, "DRY RUN - no files will be modified")
		for _, c := range sortDeepestFirst(scan.FileRenames) {
			result.Log = append(result.Log, fmt.Sprintf("RENAME FILE: %s -> %s", c.Source, c.Dest))
		}
		for _, c := range sortDeepestFirst(scan.FolderRenames) {
			result.Log = append(result.Log, fmt.Sprintf("RENAME FOLDER: %s -> %s", c.Source, c.Dest))
		}
		for _, path := range scan.ContentFiles {
			result.Log = append(result.Log, fmt.Sprintf("UPDATE CONTENT: %s", path))
		}
		return result, nil
	}

	if params.CreateBackup {
		backupPath, err := Backup(ctx, rootPath, e.config.BackupPrefix)
		if err != nil {
			return nil, fmt.Errorf("backup failed: %w", err)
		}
		result.BackupPath = backupPath
		result.Log = append(result.Log, fmt.Sprintf("BACKUP CREATED: %s", backupPath))
	}

	for _, c := range sortDeepestFirst(scan.FileRenames) {
		if ctx.Err() != nil {
			break
		}
		e.rename(result, "RENAME FILE", c, &result.RenamedFiles)
	}

	for _, c := range sortDeepestFirst(scan.FolderRenames) {
		if ctx.Err() != nil {
			break
		}
		e.rename(result, "RENAME FOLDER", c, &result.RenamedFolders)
	}

	// Folder renames have moved paths, so the content pass works from a
	// fresh scan rather than the pre-rename candidate list.
	fresh, err := e.scanner.Scan(ctx, rootPath, params.Old, params.New)
	if err != nil {
		result.ErrorCount++
		result.Log = append(result.Log, fmt.Sprintf("ERROR rescanning %s: %v", rootPath, err))
		fresh = &ScanResult{}
	}

	for _, path := range fresh.ContentFiles {
		if ctx.Err() != nil {
			break
		}
		if err := e.rewriteContent(path, params.Old, params.New); err != nil {
			result.ErrorCount++
			result.Log = append(result.Log, fmt.Sprintf("ERROR updating %s: %v", path, err))
			continue
		}
		result.ContentUpdated++
		result.Log = append(result.Log, fmt.Sprintf("UPDATED CONTENT: %s", path))
	}

	result.Log = append(result.Log, fmt.Sprintf("TOTAL content files updated: %d", result.ContentUpdated))

	return result, nil
}

func (e *DefaultEngine) rename(result *ApplyResult, action string, c RenameCandidate, renamed *int) {
	entry := fmt.Sprintf("%s: %s -> %s", action, c.Source, c.Dest)

	if _, err := os.Lstat(c.Dest); err == nil {
		result.SkippedRenames++
		result.Log = append(result.Log, entry+"  SKIP (target exists)")
		return
	}

	if err := os.Rename(c.Source, c.Dest); err != nil {
		result.ErrorCount++
		result.Log = append(result.Log, entry+fmt.Sprintf("  ERROR: %v", err))
		return
	}

	*renamed++
	result.Log = append(result.Log, entry+"  OK")
}

// rewriteContent replaces all occurrences in the decoded text and writes
// the whole file back through a temp file in the same directory, so a
// failed write never leaves a partially written file behind.
func (e *DefaultEngine) rewriteContent(path, old, new string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	mode := os.FileMode(DefaultFilePermissions)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	replaced := strings.ReplaceAll(string(content), old, new)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".replace-*.tmp")
	if err != nil {
		return err
	}

	_, err = tmp.WriteString(replaced)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), mode)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return nil
}

// sortDeepestFirst orders candidates by descending source path length, a
// proxy for depth. The sort is stable, so scan order breaks ties.
func sortDeepestFirst(candidates []RenameCandidate) []RenameCandidate {
	sorted := make([]RenameCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Source) > len(sorted[j].Source)
	})
	return sorted
}
