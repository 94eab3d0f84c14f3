// Package openai adapts the legacy Chat Completions streaming API to the
// llm.Provider contract.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/pkg/message"
)

// Provider implements llm.Provider against OpenAI's Chat Completions API.
type Provider struct {
	client     *openai.Client
	maxRetries int
	retryDelay time.Duration
	models     map[string]llm.ModelInfo
}

// New constructs a Provider. An empty apiKey yields a Provider whose
// Stream calls fail immediately, mirroring how the rest of the runtime
// treats an unconfigured provider as present-but-inert rather than nil.
func New(apiKey string) *Provider {
	var client *openai.Client
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	return &Provider{
		client:     client,
		maxRetries: 3,
		retryDelay: time.Second,
		models:     defaultModels(),
	}
}

func defaultModels() map[string]llm.ModelInfo {
	caps := map[llm.Capability]bool{
		llm.CapabilityImageIn:   true,
		llm.CapabilityToolUse:   true,
		llm.CapabilityStreaming: true,
	}
	return map[string]llm.ModelInfo{
		"gpt-4o":      {Name: "gpt-4o", ContextWindow: 128_000, MaxOutputTokens: 16_384, Capabilities: caps},
		"gpt-4-turbo": {Name: "gpt-4-turbo", ContextWindow: 128_000, MaxOutputTokens: 4_096, Capabilities: caps},
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Model(name string) (llm.ModelInfo, bool) {
	info, ok := p.models[name]
	return info, ok
}

// Stream issues req against CreateChatCompletionStream, retrying
// connection-class failures with linear backoff.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	if p.client == nil {
		return nil, errors.New("openai: API key not configured")
	}

	messages, err := convertMessages(req.Messages, req.System)
	if err != nil {
		return nil, fmt.Errorf("openai: convert messages: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
		}
		stream, lastErr = p.client.CreateChatCompletionStream(ctx, chatReq)
		if lastErr == nil {
			break
		}
		e := llm.NewError("openai", req.Model, lastErr)
		if !e.Reason.Retryable() {
			return nil, e
		}
	}
	if lastErr != nil {
		return nil, llm.NewError("openai", req.Model, lastErr)
	}

	out := make(chan llm.StreamEvent)
	go processStream(stream, out, req.Model)
	return out, nil
}

func processStream(stream *openai.ChatCompletionStream, out chan<- llm.StreamEvent, model string) {
	defer close(out)
	defer stream.Close()

	toolCalls := make(map[int]*message.ToolCall)
	announced := make(map[int]bool)
	var usage llm.Usage

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				out <- llm.StreamEvent{Usage: &usage}
				return
			}
			out <- llm.StreamEvent{Err: llm.NewError("openai", model, err)}
			return
		}

		if resp.Usage != nil {
			usage.InputOther = resp.Usage.PromptTokens
			usage.Output = resp.Usage.CompletionTokens
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			out <- llm.StreamEvent{Part: &message.TextPart{Text: delta.Content}}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := toolCalls[idx]
			if !ok {
				call = &message.ToolCall{}
				toolCalls[idx] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Name = tc.Function.Name
			}
			if !announced[idx] && call.ID != "" && call.Name != "" {
				out <- llm.StreamEvent{Part: &message.ToolCall{ID: call.ID, Name: call.Name}}
				announced[idx] = true
			}
			if tc.Function.Arguments != "" {
				call.ArgumentsJSON += tc.Function.Arguments
				if announced[idx] {
					out <- llm.StreamEvent{Part: &message.ToolCallPart{
						ToolCallID:    call.ID,
						ArgumentsPart: tc.Function.Arguments,
					}}
				}
			}
		}
	}
}

func convertMessages(msgs []message.Message, system string) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		switch m.Role {
		case message.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.ExtractText("\n")})
		case message.RoleAssistant:
			cm := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.ExtractText("\n")}
			for _, tc := range m.ToolCalls {
				cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.ArgumentsJSON,
					},
				})
			}
			out = append(out, cm)
		case message.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    message.FlattenToSingleText(m.Content).Text,
				ToolCallID: m.ToolCallID,
			})
		case message.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.ExtractText("\n")})
		}
	}
	return out, nil
}

func convertTools(defs []llm.ToolDef) []openai.Tool {
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		var params map[string]any
		if len(d.Schema) > 0 {
			_ = json.Unmarshal(d.Schema, &params)
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
