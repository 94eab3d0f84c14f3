package runtime

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAgentSpecWithoutExtend(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "coder.yaml", `
version: 1
agent:
  name: coder
  system_prompt_path: coder.md
  tools: [shell, edit_file]
  subagents:
    researcher:
      path: researcher.yaml
      description: looks things up
`)
	spec, err := LoadAgentSpec(path)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Name != "coder" {
		t.Fatalf("got name %q", spec.Name)
	}
	if len(spec.Tools) != 2 || spec.Tools[0] != "shell" {
		t.Fatalf("got tools %v", spec.Tools)
	}
	if spec.Subagents["researcher"].Description != "looks things up" {
		t.Fatalf("got subagents %v", spec.Subagents)
	}
}

func TestLoadAgentSpecExtendMergesDictsReplacesListsOverridesScalars(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
version: 1
agent:
  name: base
  system_prompt_path: base.md
  tools: [shell]
  system_prompt_args:
    role: generalist
    verbosity: low
`)
	childPath := writeFile(t, dir, "child.yaml", `
version: 1
agent:
  extend: base.yaml
  name: child
  tools: [shell, edit_file]
  system_prompt_args:
    verbosity: high
`)

	spec, err := LoadAgentSpec(childPath)
	if err != nil {
		t.Fatal(err)
	}

	if spec.Name != "child" {
		t.Fatalf("expected child's scalar to override base, got %q", spec.Name)
	}
	if spec.SystemPromptPath != "base.md" {
		t.Fatalf("expected an unset scalar to inherit from base, got %q", spec.SystemPromptPath)
	}
	if len(spec.Tools) != 2 {
		t.Fatalf("expected child's list to replace base's wholesale, got %v", spec.Tools)
	}
	if spec.SystemPromptArgs["role"] != "generalist" {
		t.Fatalf("expected base's dict entry to survive the merge, got %v", spec.SystemPromptArgs)
	}
	if spec.SystemPromptArgs["verbosity"] != "high" {
		t.Fatalf("expected child's dict entry to win on collision, got %v", spec.SystemPromptArgs)
	}
}

func TestLoadAgentSpecDetectsExtendCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", `
version: 1
agent:
  extend: b.yaml
  name: a
`)
	bPath := writeFile(t, dir, "b.yaml", `
version: 1
agent:
  extend: a.yaml
  name: b
`)

	if _, err := LoadAgentSpec(bPath); err == nil {
		t.Fatal("expected a cycle error")
	}
}

func TestLoadAgentSpecRequiresName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nameless.yaml", `
version: 1
agent:
  system_prompt_path: x.md
`)
	if _, err := LoadAgentSpec(path); err == nil {
		t.Fatal("expected a missing-name error")
	}
}

func TestLoadAgentSpecRejectsUnsupportedVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "v2.yaml", `
version: 2
agent:
  name: x
`)
	if _, err := LoadAgentSpec(path); err == nil {
		t.Fatal("expected an unsupported-version error")
	}
}
