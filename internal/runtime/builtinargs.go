package runtime

import (
	"fmt"
	"time"

	"github.com/soulwire/soulwire/internal/templates"
)

// BuiltinArgs are the template variables every system prompt renders with
// regardless of what an AgentSpec's own system_prompt_args declare — the
// "ambient" facts about where and when the turn is running. An AgentSpec's
// own args are layered on top and win on key collision.
type BuiltinArgs struct {
	WorkDir   string
	Date      string
	OSKind    string
	ShellName string
}

// NewBuiltinArgs captures the ambient facts for one Runtime: the working
// directory it was started in, today's date, and the detected Environment.
func NewBuiltinArgs(workDir string, env Environment, now time.Time) BuiltinArgs {
	return BuiltinArgs{
		WorkDir:   workDir,
		Date:      now.Format("2006-01-02"),
		OSKind:    env.OSKind,
		ShellName: env.ShellName,
	}
}

func (b BuiltinArgs) asTemplateVars() map[string]any {
	return map[string]any{
		"work_dir":   b.WorkDir,
		"date":       b.Date,
		"os_kind":    b.OSKind,
		"shell_name": b.ShellName,
	}
}

// RenderSystemPrompt loads the system prompt file an AgentSpec names and
// expands it as a template, with spec.SystemPromptArgs layered over the
// Runtime's BuiltinArgs (the spec's own args win on collision).
func RenderSystemPrompt(spec AgentSpec, builtin BuiltinArgs, loadFile func(path string) (string, error)) (string, error) {
	content, err := loadFile(spec.SystemPromptPath)
	if err != nil {
		return "", fmt.Errorf("runtime: load system prompt %s: %w", spec.SystemPromptPath, err)
	}

	vars := builtin.asTemplateVars()
	for k, v := range spec.SystemPromptArgs {
		vars[k] = v
	}

	engine := templates.NewVariableEngine()
	rendered, err := engine.Process(content, vars)
	if err != nil {
		return "", fmt.Errorf("runtime: render system prompt %s: %w", spec.SystemPromptPath, err)
	}
	return rendered, nil
}
