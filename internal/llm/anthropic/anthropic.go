// Package anthropic adapts Anthropic's Messages API to the llm.Provider
// contract: request conversion, SSE event processing into
// message.ContentPart stream events, and error classification.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/pkg/message"
)

// Config holds the parameters needed to construct a Provider.
type Config struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// Provider implements llm.Provider against Anthropic's Claude API.
type Provider struct {
	client       anthropic.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
	models       map[string]llm.ModelInfo
}

// New constructs a Provider, applying the same defaults the config
// accepts none of: 3 retries, a 1-second base backoff, and
// claude-sonnet-4-20250514 as the fallback model.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client:       anthropic.NewClient(opts...),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
		models:       defaultModels(),
	}, nil
}

func defaultModels() map[string]llm.ModelInfo {
	caps := map[llm.Capability]bool{
		llm.CapabilityImageIn:   true,
		llm.CapabilityThinking:  true,
		llm.CapabilityToolUse:   true,
		llm.CapabilityStreaming: true,
	}
	return map[string]llm.ModelInfo{
		"claude-sonnet-4-20250514": {Name: "claude-sonnet-4-20250514", ContextWindow: 200_000, MaxOutputTokens: 64_000, Capabilities: caps},
		"claude-opus-4-20250514":   {Name: "claude-opus-4-20250514", ContextWindow: 200_000, MaxOutputTokens: 32_000, Capabilities: caps},
	}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Model(name string) (llm.ModelInfo, bool) {
	info, ok := p.models[name]
	return info, ok
}

func (p *Provider) modelOrDefault(name string) string {
	if name == "" {
		return p.defaultModel
	}
	return name
}

// Stream issues req against the Messages streaming endpoint, retrying
// transient failures with exponential backoff, and converts each SSE
// event into one llm.StreamEvent carrying a message.ContentPart.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	out := make(chan llm.StreamEvent)
	model := p.modelOrDefault(req.Model)

	go func() {
		defer close(out)

		params, err := p.buildParams(req, model)
		if err != nil {
			out <- llm.StreamEvent{Err: err}
			return
		}

		var streamErr error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			if ctx.Err() != nil {
				out <- llm.StreamEvent{Err: ctx.Err()}
				return
			}

			stream := p.client.Messages.NewStreaming(ctx, params)
			streamErr = p.processStream(stream, out, model)
			if streamErr == nil {
				return
			}
			if !p.isRetryable(streamErr) || attempt >= p.maxRetries {
				break
			}

			backoff := p.retryDelay * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				out <- llm.StreamEvent{Err: ctx.Err()}
				return
			case <-time.After(backoff):
			}
		}
		out <- llm.StreamEvent{Err: streamErr}
	}()

	return out, nil
}

func (p *Provider) buildParams(req llm.Request, model string) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: convert messages: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: convert tools: %w", err)
		}
		params.Tools = tools
	}
	if req.EnableThinking {
		budget := int64(req.ThinkingBudget)
		if budget < 1024 {
			budget = 10000
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	return params, nil
}

func (p *Provider) isRetryable(err error) bool {
	var llmErr *llm.Error
	if llm.As(err, &llmErr) {
		return llmErr.Reason.Retryable()
	}
	return false
}
