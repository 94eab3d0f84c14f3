package google

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/pkg/message"
)

func convertMessages(msgs []message.Message) ([]*genai.Content, error) {
	var out []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			// pulled into GenerateContentConfig.SystemInstruction by the caller
			continue
		case message.RoleUser:
			parts, err := convertParts(m.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: parts})
		case message.RoleAssistant:
			parts, err := convertAssistantParts(m)
			if err != nil {
				return nil, err
			}
			out = append(out, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case message.RoleTool:
			text := message.FlattenToSingleText(m.Content)
			out = append(out, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     m.Name,
						Response: map[string]any{"result": text.Text},
					},
				}},
			})
		}
	}
	return out, nil
}

func convertParts(parts []message.ContentPart) ([]*genai.Part, error) {
	var out []*genai.Part
	for _, part := range parts {
		switch p := part.(type) {
		case *message.TextPart:
			out = append(out, &genai.Part{Text: p.Text})
		case *message.ImageURLPart:
			out = append(out, &genai.Part{FileData: &genai.FileData{FileURI: p.URL}})
		default:
			return nil, fmt.Errorf("google: unsupported content part %T", part)
		}
	}
	return out, nil
}

func convertAssistantParts(m message.Message) ([]*genai.Part, error) {
	var out []*genai.Part
	for _, part := range m.Content {
		switch p := part.(type) {
		case *message.TextPart:
			out = append(out, &genai.Part{Text: p.Text})
		case *message.ThinkPart:
			out = append(out, &genai.Part{Text: p.Think, Thought: true})
		}
	}
	for _, tc := range m.ToolCalls {
		var args map[string]any
		if len(tc.ArgumentsJSON) > 0 {
			if err := json.Unmarshal([]byte(tc.ArgumentsJSON), &args); err != nil {
				return nil, fmt.Errorf("google: tool call %s arguments: %w", tc.ID, err)
			}
		}
		out = append(out, &genai.Part{FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args}})
	}
	return out, nil
}

func convertTools(defs []llm.ToolDef) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		if len(d.Schema) > 0 {
			_ = json.Unmarshal(d.Schema, &schema)
		}
		decl := &genai.FunctionDeclaration{Name: d.Name, Description: d.Description}
		if props, ok := schema["properties"]; ok {
			decl.Parameters = &genai.Schema{Type: genai.TypeObject, Properties: toSchemaMap(props)}
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toSchemaMap(v any) map[string]*genai.Schema {
	props, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]*genai.Schema, len(props))
	for name := range props {
		out[name] = &genai.Schema{Type: genai.TypeString}
	}
	return out
}

func buildConfig(req llm.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		config.Tools = convertTools(req.Tools)
	}
	return config
}
