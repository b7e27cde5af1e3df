package treereplace

// RenameCandidate pairs a filesystem entry with the path it would be
// renamed to. Dest keeps the parent directory and replaces every
// non-overlapping occurrence of the search substring in the base name.
type RenameCandidate struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// ScanResult holds the three independent candidate lists produced by a
// single read-only traversal. A path may appear in more than one list.
type ScanResult struct {
	ContentFiles  []string          `json:"content_files"`
	FileRenames   []RenameCandidate `json:"file_renames"`
	FolderRenames []RenameCandidate `json:"folder_renames"`
}

// Empty reports whether the scan found nothing to change.
func (r *ScanResult) Empty() bool {
	return len(r.ContentFiles) == 0 && len(r.FileRenames) == 0 && len(r.FolderRenames) == 0
}

// ConfirmToken is the literal a caller must supply, exactly and
// case-sensitively, before any destructive operation is performed.
const ConfirmToken = "APPLY"

type ReplaceParams struct {
	Old          string `json:"old"`
	New          string `json:"new"`
	CreateBackup bool   `json:"create_backup"`
	Confirm      string `json:"confirm"`
}

// Authorized reports whether the confirmation gate passes.
func (p ReplaceParams) Authorized() bool {
	return p.Confirm == ConfirmToken
}

// ApplyResult is the value returned from one apply run. The log is an
// ordered record of every attempted mutation and is never shared between
// runs.
type ApplyResult struct {
	DryRun         bool     `json:"dry_run"`
	BackupPath     string   `json:"backup_path,omitempty"`
	Log            []string `json:"log"`
	RenamedFiles   int      `json:"renamed_files"`
	RenamedFolders int      `json:"renamed_folders"`
	SkippedRenames int      `json:"skipped_renames"`
	ContentUpdated int      `json:"content_updated"`
	ErrorCount     int      `json:"error_count"`
}
