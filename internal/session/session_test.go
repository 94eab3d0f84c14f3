package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWorkDirHashIsStableAndHexEncoded(t *testing.T) {
	a := WorkDirHash("/home/user/project")
	b := WorkDirHash("/home/user/project")
	if a != b {
		t.Fatalf("expected a stable hash, got %q then %q", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected a 32-char md5 hex digest, got %q", a)
	}
}

func TestWorkDirHashDiffersByPath(t *testing.T) {
	a := WorkDirHash("/home/user/project-a")
	b := WorkDirHash("/home/user/project-b")
	if a == b {
		t.Fatal("expected different work dirs to hash differently")
	}
}

func TestWorkDirHashPrefixedByHostNamespace(t *testing.T) {
	os.Setenv("SOULWIRE_HOST_NAMESPACE", "laptop1")
	defer os.Unsetenv("SOULWIRE_HOST_NAMESPACE")

	hash := WorkDirHash("/home/user/project")
	if !strings.HasPrefix(hash, "laptop1-") {
		t.Fatalf("expected a namespace-prefixed hash, got %q", hash)
	}
}

func TestSessionsDirLayout(t *testing.T) {
	dir := SessionsDir("/share", "/work/project")
	want := filepath.Join("/share", "sessions", WorkDirHash("/work/project"))
	if dir != want {
		t.Fatalf("got %q want %q", dir, want)
	}
}

func TestContextFilePathLayout(t *testing.T) {
	path := ContextFilePath("/share/sessions/abc", "session-1")
	want := filepath.Join("/share/sessions/abc", "session-1", "context.jsonl")
	if path != want {
		t.Fatalf("got %q want %q", path, want)
	}
}

func TestNewCreatesSessionDirectoryAndCanonicalizesWorkDir(t *testing.T) {
	shareDir := t.TempDir()
	workDir := t.TempDir()

	s, err := New(shareDir, workDir, "first conversation")
	if err != nil {
		t.Fatal(err)
	}
	if s.ID == "" {
		t.Fatal("expected a generated session id")
	}
	if s.WorkDir != workDir {
		t.Fatalf("got %q want canonical %q", s.WorkDir, workDir)
	}
	if s.Title != "first conversation" {
		t.Fatalf("unexpected title %q", s.Title)
	}
	if filepath.Base(s.ContextFile) != "context.jsonl" {
		t.Fatalf("unexpected context file %q", s.ContextFile)
	}

	if _, err := os.Stat(filepath.Dir(s.ContextFile)); err != nil {
		t.Fatalf("expected session directory to exist: %v", err)
	}
}

func TestNewAllocatesDistinctSessionsPerCall(t *testing.T) {
	shareDir := t.TempDir()
	workDir := t.TempDir()

	first, err := New(shareDir, workDir, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := New(shareDir, workDir, "")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct session ids")
	}
	if filepath.Dir(first.ContextFile) == filepath.Dir(second.ContextFile) {
		t.Fatal("expected distinct session directories")
	}
}

func TestLoadShareMetadataReturnsEmptyWhenAbsent(t *testing.T) {
	shareDir := t.TempDir()
	meta, err := LoadShareMetadata(shareDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.WorkDirs) != 0 || meta.Thinking {
		t.Fatalf("expected zero-value metadata, got %+v", meta)
	}
}

func TestSaveAndLoadShareMetadataRoundTrips(t *testing.T) {
	shareDir := t.TempDir()
	meta := ShareMetadata{
		WorkDirs: []WorkDirEntry{
			{Path: "/work/a", LastSessionID: "s1"},
			{Path: "/work/b", Kaos: "chaotic-good"},
		},
		Thinking: true,
	}

	if err := SaveShareMetadata(shareDir, meta); err != nil {
		t.Fatal(err)
	}

	got, err := LoadShareMetadata(shareDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.WorkDirs) != 2 || got.WorkDirs[0].LastSessionID != "s1" || got.WorkDirs[1].Kaos != "chaotic-good" {
		t.Fatalf("got %+v", got)
	}
	if !got.Thinking {
		t.Fatal("expected thinking to round-trip true")
	}

	if entries, err := os.ReadDir(shareDir); err != nil {
		t.Fatal(err)
	} else {
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".tmp") {
				t.Fatalf("expected the temp file to be renamed away, found %q", e.Name())
			}
		}
	}
}

func TestTouchWorkDirAddsNewEntry(t *testing.T) {
	shareDir := t.TempDir()

	if err := TouchWorkDir(shareDir, "/work/project", "session-1"); err != nil {
		t.Fatal(err)
	}

	meta, err := LoadShareMetadata(shareDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.WorkDirs) != 1 || meta.WorkDirs[0].Path != "/work/project" || meta.WorkDirs[0].LastSessionID != "session-1" {
		t.Fatalf("got %+v", meta.WorkDirs)
	}
}

func TestTouchWorkDirUpdatesExistingEntryInPlace(t *testing.T) {
	shareDir := t.TempDir()

	if err := TouchWorkDir(shareDir, "/work/project", "session-1"); err != nil {
		t.Fatal(err)
	}
	if err := TouchWorkDir(shareDir, "/work/project", "session-2"); err != nil {
		t.Fatal(err)
	}

	meta, err := LoadShareMetadata(shareDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.WorkDirs) != 1 {
		t.Fatalf("expected the entry to be updated in place, not duplicated: %+v", meta.WorkDirs)
	}
	if meta.WorkDirs[0].LastSessionID != "session-2" {
		t.Fatalf("expected the latest session id, got %q", meta.WorkDirs[0].LastSessionID)
	}
}
