package runtime

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SubagentRef names a sub-agent available to an AgentSpec: where its own
// spec file lives and a short description surfaced to the Task tool.
type SubagentRef struct {
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
}

// AgentSpec is the declarative shape of one agent-spec file: its system
// prompt, the tools it carries, and the sub-agents it can delegate to.
// Resolved fully — extend chains already flattened — by the time callers
// see it.
type AgentSpec struct {
	Name             string
	SystemPromptPath string
	SystemPromptArgs map[string]string
	Tools            []string
	ExcludeTools     []string
	Subagents        map[string]SubagentRef
}

// rawAgentSpec mirrors the on-disk shape. version/agent nest per spec §6's
// file format ("top-level version: 1, under agent: ..."); extend is
// resolved before decoding into AgentSpec.
type rawAgentSpec struct {
	Version int            `yaml:"version"`
	Agent   map[string]any `yaml:"agent"`
}

// LoadAgentSpec reads path and every file it transitively extends,
// resolving the merge per field (scalars overwrite, lists replace, dicts
// merge with the child winning on key collision), and returns the
// flattened result. Relative tool/subagent paths inside the file are left
// as written — callers resolve them relative to the file that declared
// them.
func LoadAgentSpec(path string) (AgentSpec, error) {
	merged, err := loadAgentSpecRaw(path, map[string]bool{})
	if err != nil {
		return AgentSpec{}, err
	}
	return decodeAgentSpec(merged)
}

func loadAgentSpecRaw(path string, seen map[string]bool) (map[string]any, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("agentspec: resolve %s: %w", path, err)
	}
	if seen[absPath] {
		return nil, fmt.Errorf("agentspec: extend cycle detected at %s", absPath)
	}
	seen[absPath] = true
	defer delete(seen, absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("agentspec: read %s: %w", absPath, err)
	}

	var raw rawAgentSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("agentspec: parse %s: %w", absPath, err)
	}
	if raw.Version != 1 {
		return nil, fmt.Errorf("agentspec: %s: unsupported version %d, want 1", absPath, raw.Version)
	}
	if raw.Agent == nil {
		raw.Agent = map[string]any{}
	}

	extendVal, hasExtend := raw.Agent["extend"]
	delete(raw.Agent, "extend")

	if !hasExtend {
		return raw.Agent, nil
	}
	extendPath, ok := extendVal.(string)
	if !ok || strings.TrimSpace(extendPath) == "" {
		return nil, fmt.Errorf("agentspec: %s: extend must be a non-empty string path", absPath)
	}
	if !filepath.IsAbs(extendPath) {
		extendPath = filepath.Join(filepath.Dir(absPath), extendPath)
	}

	parent, err := loadAgentSpecRaw(extendPath, seen)
	if err != nil {
		return nil, err
	}
	return mergeAgentFields(parent, raw.Agent), nil
}

// mergeAgentFields resolves child over parent per field: a map value
// merges recursively (child keys win), anything else (scalar or list) is
// replaced wholesale by the child's value when the child sets the key at
// all — a key the child never mentions inherits the parent's value
// untouched.
func mergeAgentFields(parent, child map[string]any) map[string]any {
	merged := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		merged[k] = v
	}
	for k, v := range child {
		if childMap, ok := v.(map[string]any); ok {
			if parentMap, ok := merged[k].(map[string]any); ok {
				merged[k] = mergeAgentFields(parentMap, childMap)
				continue
			}
		}
		merged[k] = v
	}
	return merged
}

func decodeAgentSpec(fields map[string]any) (AgentSpec, error) {
	payload, err := yaml.Marshal(fields)
	if err != nil {
		return AgentSpec{}, fmt.Errorf("agentspec: re-serialize resolved fields: %w", err)
	}

	var typed struct {
		Name             string                 `yaml:"name"`
		SystemPromptPath string                 `yaml:"system_prompt_path"`
		SystemPromptArgs map[string]string       `yaml:"system_prompt_args"`
		Tools            []string               `yaml:"tools"`
		ExcludeTools     []string               `yaml:"exclude_tools"`
		Subagents        map[string]SubagentRef `yaml:"subagents"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&typed); err != nil && err != io.EOF {
		return AgentSpec{}, fmt.Errorf("agentspec: decode resolved fields: %w", err)
	}

	if strings.TrimSpace(typed.Name) == "" {
		return AgentSpec{}, fmt.Errorf("agentspec: name is required")
	}

	return AgentSpec{
		Name:             typed.Name,
		SystemPromptPath: typed.SystemPromptPath,
		SystemPromptArgs: typed.SystemPromptArgs,
		Tools:            typed.Tools,
		ExcludeTools:     typed.ExcludeTools,
		Subagents:        typed.Subagents,
	}, nil
}
