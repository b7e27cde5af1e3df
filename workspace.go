package treereplace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
)

// Workspace holds one upload run's temporary directories. The uploaded
// archive is extracted once into a pristine reference copy; all mutation
// happens in an independent working copy, so the extracted tree stays
// untouched for comparison after an apply. Close removes everything.
type Workspace struct {
	dir          string
	ExtractedDir string
	WorkDir      string
}

// NewWorkspace extracts the uploaded archive and duplicates it into the
// working copy. On any failure the temp directory is removed before the
// error is returned.
func NewWorkspace(ctx context.Context, archive io.ReaderAt, size int64) (*Workspace, error) {
	dir, err := os.MkdirTemp("", "tree-replace-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	ws := &Workspace{
		dir:          dir,
		ExtractedDir: filepath.Join(dir, "extracted"),
		WorkDir:      filepath.Join(dir, "work"),
	}

	if err := os.Mkdir(ws.ExtractedDir, 0o755); err != nil {
		ws.Close()
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	if err := Extract(ctx, archive, size, ws.ExtractedDir); err != nil {
		ws.Close()
		return nil, err
	}

	if err := cp.Copy(ws.ExtractedDir, ws.WorkDir); err != nil {
		ws.Close()
		return nil, fmt.Errorf("create working copy: %w", err)
	}

	return ws, nil
}

func (w *Workspace) Close() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir)
		w.dir = ""
	}
}
