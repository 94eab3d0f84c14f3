package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/pkg/message"
)

func convertMessages(msgs []message.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case message.RoleUser:
			blocks, err := convertContentBlocks(m)
			if err != nil {
				return nil, err
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case message.RoleAssistant:
			blocks, err := convertAssistantBlocks(m)
			if err != nil {
				return nil, err
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case message.RoleTool:
			text := message.FlattenToSingleText(m.Content)
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, text.Text, false),
			))
		case message.RoleSystem:
			// Anthropic carries system as a top-level param, not a message;
			// the caller is expected to have pulled it into Request.System.
			continue
		}
	}
	return out, nil
}

func convertContentBlocks(m message.Message) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range m.Content {
		switch p := part.(type) {
		case *message.TextPart:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		case *message.ImageURLPart:
			blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: p.URL}))
		default:
			return nil, fmt.Errorf("anthropic: unsupported user content part %T", part)
		}
	}
	return blocks, nil
}

func convertAssistantBlocks(m message.Message) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range m.Content {
		switch p := part.(type) {
		case *message.TextPart:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		case *message.ThinkPart:
			signature := ""
			if p.Encrypted != nil {
				signature = *p.Encrypted
			}
			blocks = append(blocks, anthropic.NewThinkingBlock(signature, p.Think))
		}
	}
	for _, tc := range m.ToolCalls {
		var input any
		if len(tc.ArgumentsJSON) > 0 {
			if err := json.Unmarshal([]byte(tc.ArgumentsJSON), &input); err != nil {
				return nil, fmt.Errorf("anthropic: tool call %s arguments: %w", tc.ID, err)
			}
		}
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
	}
	return blocks, nil
}

func convertTools(defs []llm.ToolDef) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		var schema anthropic.ToolInputSchemaParam
		if len(d.Schema) > 0 {
			var decoded map[string]any
			if err := json.Unmarshal(d.Schema, &decoded); err != nil {
				return nil, fmt.Errorf("anthropic: tool %s schema: %w", d.Name, err)
			}
			if props, ok := decoded["properties"]; ok {
				schema.Properties = props
			}
		}
		out = append(out, anthropic.ToolUnionParamOfTool(schema, d.Name))
	}
	return out, nil
}
