// Package archive unpacks an EDINET document ZIP into an ephemeral
// workspace and classifies the data files it contains.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrBadArchive marks a payload that is not a valid ZIP stream.
var ErrBadArchive = errors.New("not a valid zip archive")

const (
	// macOS resource-fork directory shipped inside some archives.
	metadataDirName = "__MACOSX"
	// Auditor report files are excluded from classification.
	auditorReportPrefix = "jpaud"
	// Only tab-separated CSV exports are data candidates.
	dataFileExt = ".csv"
)

// Role tags a candidate file for downstream processing.
type Role int

const (
	// RoleDataFile is eligible for decoding and classification.
	RoleDataFile Role = iota
	// RoleAuditorReport is enumerated but never parsed.
	RoleAuditorReport
)

// CandidateFile is one extracted file plus its role. Role is derived once
// from the filename and never changes.
type CandidateFile struct {
	Path string // absolute path inside the workspace
	Name string // base name
	Role Role
}

// Workspace holds one document's extracted files. It must be released
// with Close on every exit path; callers defer Close immediately after
// Extract succeeds.
type Workspace struct {
	root  string
	files []CandidateFile
	log   *slog.Logger
}

// Extract unpacks a ZIP byte stream into a fresh temporary directory and
// enumerates the candidate files. On any error the directory is removed
// before returning, so a non-nil Workspace is the only thing that ever
// needs Close.
func Extract(payload []byte, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "archive"))

	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	root, err := os.MkdirTemp("", "edinet_unzip_")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	ws := &Workspace{root: root, log: logger}
	logger.Debug("created workspace", "dir", root)

	for _, entry := range reader.File {
		if err := ws.writeEntry(entry); err != nil {
			ws.Close()
			return nil, err
		}
	}

	ws.enumerate()
	return ws, nil
}

func (w *Workspace) writeEntry(entry *zip.File) error {
	if entry.FileInfo().IsDir() {
		return nil
	}
	// Reject traversal outside the workspace root.
	dest := filepath.Join(w.root, filepath.FromSlash(entry.Name))
	if !strings.HasPrefix(dest, filepath.Clean(w.root)+string(os.PathSeparator)) {
		return fmt.Errorf("%w: entry %q escapes workspace", ErrBadArchive, entry.Name)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create entry directory: %w", err)
	}
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: cannot open entry %q: %v", ErrBadArchive, entry.Name, err)
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to write entry %q: %w", entry.Name, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("%w: cannot extract entry %q: %v", ErrBadArchive, entry.Name, err)
	}
	return nil
}

// enumerate walks the workspace and records every CSV file, excluding
// anything under the platform metadata directory. Files are ordered by
// name so classification is deterministic across runs.
func (w *Workspace) enumerate() {
	_ = filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		for _, segment := range strings.Split(rel, string(os.PathSeparator)) {
			if segment == metadataDirName {
				w.log.Debug("skipping platform metadata entry", "path", rel)
				return nil
			}
		}
		name := info.Name()
		if !strings.EqualFold(filepath.Ext(name), dataFileExt) {
			return nil
		}
		role := RoleDataFile
		if strings.HasPrefix(strings.ToLower(name), auditorReportPrefix) {
			role = RoleAuditorReport
		}
		w.files = append(w.files, CandidateFile{Path: path, Name: name, Role: role})
		return nil
	})
	sort.Slice(w.files, func(i, j int) bool { return w.files[i].Name < w.files[j].Name })
}

// Files returns every enumerated candidate, auditor reports included.
func (w *Workspace) Files() []CandidateFile { return w.files }

// DataFiles returns the candidates eligible for parsing.
func (w *Workspace) DataFiles() []CandidateFile {
	var out []CandidateFile
	for _, f := range w.files {
		if f.Role == RoleDataFile {
			out = append(out, f)
		}
	}
	return out
}

// Close removes the workspace directory and everything under it. It is
// idempotent and safe to call from a defer on every exit path.
func (w *Workspace) Close() error {
	if w.root == "" {
		return nil
	}
	err := os.RemoveAll(w.root)
	if err != nil {
		w.log.Warn("could not remove workspace", "dir", w.root, "error", err)
	} else {
		w.log.Debug("removed workspace", "dir", w.root)
	}
	w.root = ""
	return err
}
