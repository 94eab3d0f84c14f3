package runtime

import (
	"os"
	"testing"
	"time"
)

func TestRenderSystemPromptLayersSpecArgsOverBuiltins(t *testing.T) {
	builtin := NewBuiltinArgs("/work/dir", Environment{OSKind: "linux", ShellName: "bash"}, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	spec := AgentSpec{
		SystemPromptPath: "prompt.md",
		SystemPromptArgs: map[string]string{"os_kind": "overridden", "role": "coder"},
	}

	loadFile := func(path string) (string, error) {
		if path != "prompt.md" {
			t.Fatalf("unexpected path %q", path)
		}
		return "Working in {{.work_dir}} on {{.date}} as a {{.role}} on {{.os_kind}}.", nil
	}

	rendered, err := RenderSystemPrompt(spec, builtin, loadFile)
	if err != nil {
		t.Fatal(err)
	}
	want := "Working in /work/dir on 2026-07-30 as a coder on overridden."
	if rendered != want {
		t.Fatalf("got %q, want %q", rendered, want)
	}
}

func TestRenderSystemPromptPropagatesLoadError(t *testing.T) {
	_, err := RenderSystemPrompt(AgentSpec{SystemPromptPath: "missing.md"}, BuiltinArgs{}, func(string) (string, error) {
		return "", os.ErrNotExist
	})
	if err == nil {
		t.Fatal("expected an error")
	}
}
