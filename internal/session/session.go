// Package session lays out where a conversation's state lives on disk: a
// per-work-directory bucket under the share directory, one sub-directory
// per session UUID holding its context file, and the share-wide metadata
// document every front-end consults to list recent work directories.
package session

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/soulwire/soulwire/internal/runtime"
)

// ShareDir returns the root directory every session, share-metadata
// document, and cross-session index lives under: `$HOME/.soulwire`.
func ShareDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("session: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".soulwire"), nil
}

// hostNamespace optionally prefixes the work-dir hash so two machines
// sharing a network share directory don't collide on the same path.
// Empty unless SOULWIRE_HOST_NAMESPACE is set — purely local setups never
// need it.
func hostNamespace() string {
	return os.Getenv("SOULWIRE_HOST_NAMESPACE")
}

// WorkDirHash is the directory-safe identity of a canonical working
// directory: its MD5 hex digest, optionally prefixed by the host
// namespace.
func WorkDirHash(canonicalWorkDir string) string {
	sum := md5.Sum([]byte(canonicalWorkDir))
	hash := hex.EncodeToString(sum[:])
	if ns := hostNamespace(); ns != "" {
		return ns + "-" + hash
	}
	return hash
}

// SessionsDir returns `<share_dir>/sessions/<hash>` for the given
// canonical work directory.
func SessionsDir(shareDir, canonicalWorkDir string) string {
	return filepath.Join(shareDir, "sessions", WorkDirHash(canonicalWorkDir))
}

// ContextFilePath returns where one session's primary context file lives:
// `<sessions_dir>/<session_id>/context.jsonl`.
func ContextFilePath(sessionsDir, sessionID string) string {
	return filepath.Join(sessionsDir, sessionID, "context.jsonl")
}

// New allocates a fresh session for workDir: canonicalizes the path,
// creates `<sessions_dir>/<uuid>/`, and returns the runtime.Session whose
// ContextFile callers pass to contextstore.New.
func New(shareDir, workDir, title string) (runtime.Session, error) {
	canonical, err := filepath.Abs(workDir)
	if err != nil {
		return runtime.Session{}, fmt.Errorf("session: canonicalize %s: %w", workDir, err)
	}

	id := uuid.NewString()
	dir := filepath.Join(SessionsDir(shareDir, canonical), id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return runtime.Session{}, fmt.Errorf("session: create session directory: %w", err)
	}

	now := time.Now()
	return runtime.Session{
		ID:          id,
		WorkDir:     canonical,
		ContextFile: filepath.Join(dir, "context.jsonl"),
		Title:       title,
		UpdatedAt:   now,
	}, nil
}

// WorkDirEntry is one entry in the share metadata's work_dirs list.
type WorkDirEntry struct {
	Path          string `json:"path"`
	Kaos          string `json:"kaos,omitempty"`
	LastSessionID string `json:"last_session_id,omitempty"`
}

// ShareMetadata is the `<share_dir>/kimi.json` document: the work
// directories this installation has ever run in, and whether extended
// thinking is enabled by default.
type ShareMetadata struct {
	WorkDirs []WorkDirEntry `json:"work_dirs"`
	Thinking bool           `json:"thinking"`
}

func metadataPath(shareDir string) string {
	return filepath.Join(shareDir, "kimi.json")
}

// LoadShareMetadata reads the share metadata document, returning an empty
// ShareMetadata if it doesn't exist yet.
func LoadShareMetadata(shareDir string) (ShareMetadata, error) {
	data, err := os.ReadFile(metadataPath(shareDir))
	if os.IsNotExist(err) {
		return ShareMetadata{}, nil
	}
	if err != nil {
		return ShareMetadata{}, fmt.Errorf("session: read share metadata: %w", err)
	}
	var meta ShareMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return ShareMetadata{}, fmt.Errorf("session: parse share metadata: %w", err)
	}
	return meta, nil
}

// SaveShareMetadata writes the share metadata document atomically (write
// to a temp file in the same directory, then rename).
func SaveShareMetadata(shareDir string, meta ShareMetadata) error {
	if err := os.MkdirAll(shareDir, 0o755); err != nil {
		return fmt.Errorf("session: create share directory: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode share metadata: %w", err)
	}

	tmp, err := os.CreateTemp(shareDir, "kimi-*.json.tmp")
	if err != nil {
		return fmt.Errorf("session: create temp share metadata file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("session: write share metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("session: close share metadata: %w", err)
	}
	if err := os.Rename(tmpPath, metadataPath(shareDir)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("session: publish share metadata: %w", err)
	}
	return nil
}

// TouchWorkDir records canonicalWorkDir as the most recently used work
// directory for sessionID, adding it to the list if new or updating its
// LastSessionID in place.
func TouchWorkDir(shareDir, canonicalWorkDir, sessionID string) error {
	meta, err := LoadShareMetadata(shareDir)
	if err != nil {
		return err
	}
	for i, entry := range meta.WorkDirs {
		if entry.Path == canonicalWorkDir {
			meta.WorkDirs[i].LastSessionID = sessionID
			return SaveShareMetadata(shareDir, meta)
		}
	}
	meta.WorkDirs = append(meta.WorkDirs, WorkDirEntry{Path: canonicalWorkDir, LastSessionID: sessionID})
	return SaveShareMetadata(shareDir, meta)
}
