package treereplace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Server exposes the engine over HTTP for the upload delivery mode: the
// caller posts a zip archive, the tree is processed in an isolated
// workspace and the mutated copy is streamed back as a new archive. One
// request is one complete run; no state is shared between requests.
type Server struct {
	config *Config
	engine Engine
	logger zerolog.Logger
}

func NewServer(config *Config, logger zerolog.Logger) (*Server, error) {
	engine, err := NewDefaultEngine(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return &Server{
		config: config,
		engine: engine,
		logger: logger,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scan", s.handleScan)
	mux.HandleFunc("POST /replace", s.handleReplace)
	return mux
}

func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("listening")
	server := &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: s.Handler(),
	}
	return server.ListenAndServe()
}

// handleScan previews an uploaded archive: extract, scan, report the
// candidate lists as JSON. Nothing is mutated.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	ws, params, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	defer ws.Close()

	scan, err := s.engine.Scan(r.Context(), ws.ExtractedDir, params.Old, params.New)
	if err != nil {
		s.logger.Error().Err(err).Msg("scan failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info().
		Str("old", params.Old).
		Int("content_files", len(scan.ContentFiles)).
		Int("file_renames", len(scan.FileRenames)).
		Int("folder_renames", len(scan.FolderRenames)).
		Msg("scan complete")

	writeJSON(w, relativizeScan(scan, ws.ExtractedDir))
}

// handleReplace runs a full apply against the working copy and streams
// the mutated tree back as a zip. With ?format=json the apply result is
// returned instead of the archive. The confirmation gate applies exactly
// as in local mode: without confirm=APPLY the run is a dry run and the
// returned archive is unchanged.
func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	ws, params, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	defer ws.Close()

	result, err := s.engine.Apply(r.Context(), ws.WorkDir, params)
	if err != nil {
		s.logger.Error().Err(err).Msg("apply failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result.Log = relativizeLog(result.Log, ws.WorkDir)

	s.logger.Info().
		Str("old", params.Old).
		Str("new", params.New).
		Bool("dry_run", result.DryRun).
		Int("renamed_files", result.RenamedFiles).
		Int("renamed_folders", result.RenamedFolders).
		Int("content_updated", result.ContentUpdated).
		Int("errors", result.ErrorCount).
		Msg("apply complete")

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, result)
		return
	}

	name := fmt.Sprintf("replaced_%s.zip", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Replace-Dry-Run", strconv.FormatBool(result.DryRun))
	w.Header().Set("X-Replace-Log-Lines", strconv.Itoa(len(result.Log)))

	if err := Pack(r.Context(), ws.WorkDir, w); err != nil {
		// Headers are already gone; all we can do is log.
		s.logger.Error().Err(err).Msg("streaming result archive failed")
	}
}

// openWorkspace reads the multipart upload, validates the form fields
// and extracts the archive into a fresh workspace. On failure it writes
// the HTTP error itself and returns ok=false.
func (s *Server) openWorkspace(w http.ResponseWriter, r *http.Request) (*Workspace, ReplaceParams, bool) {
	var params ReplaceParams

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	file, _, err := r.FormFile("archive")
	if err != nil {
		http.Error(w, "missing archive upload", http.StatusBadRequest)
		return nil, params, false
	}
	defer file.Close()

	params = ReplaceParams{
		Old:     r.FormValue("old"),
		New:     r.FormValue("new"),
		Confirm: r.FormValue("confirm"),
	}
	if params.Old == "" {
		http.Error(w, "old substring cannot be empty", http.StatusBadRequest)
		return nil, params, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "reading upload failed", http.StatusBadRequest)
		return nil, params, false
	}

	ws, err := NewWorkspace(r.Context(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		s.logger.Error().Err(err).Msg("workspace setup failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, params, false
	}

	return ws, params, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func relativizeScan(scan *ScanResult, root string) *ScanResult {
	out := &ScanResult{
		ContentFiles:  make([]string, len(scan.ContentFiles)),
		FileRenames:   make([]RenameCandidate, len(scan.FileRenames)),
		FolderRenames: make([]RenameCandidate, len(scan.FolderRenames)),
	}
	for i, p := range scan.ContentFiles {
		out.ContentFiles[i] = trimRoot(p, root)
	}
	for i, c := range scan.FileRenames {
		out.FileRenames[i] = RenameCandidate{Source: trimRoot(c.Source, root), Dest: trimRoot(c.Dest, root)}
	}
	for i, c := range scan.FolderRenames {
		out.FolderRenames[i] = RenameCandidate{Source: trimRoot(c.Source, root), Dest: trimRoot(c.Dest, root)}
	}
	return out
}

func relativizeLog(lines []string, root string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.ReplaceAll(line, root+string(filepath.Separator), "")
	}
	return out
}

func trimRoot(path, root string) string {
	return strings.TrimPrefix(path, root+string(filepath.Separator))
}
