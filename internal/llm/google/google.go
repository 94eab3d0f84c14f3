// Package google adapts the Gemini Go SDK's content-streaming API to the
// llm.Provider contract, consuming its Go 1.23 iter.Seq2 stream shape.
package google

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/genai"

	"github.com/soulwire/soulwire/internal/llm"
)

// Config holds the parameters needed to construct a Provider.
type Config struct {
	APIKey       string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// Provider implements llm.Provider against the Gemini API.
type Provider struct {
	client       *genai.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
	models       map[string]llm.ModelInfo
}

// New constructs a Provider against the Gemini backend.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: new client: %w", err)
	}

	return &Provider{
		client:       client,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
		models:       defaultModels(),
	}, nil
}

func defaultModels() map[string]llm.ModelInfo {
	caps := map[llm.Capability]bool{
		llm.CapabilityImageIn:   true,
		llm.CapabilityToolUse:   true,
		llm.CapabilityStreaming: true,
	}
	return map[string]llm.ModelInfo{
		"gemini-2.0-flash": {Name: "gemini-2.0-flash", ContextWindow: 1_000_000, MaxOutputTokens: 8_192, Capabilities: caps},
		"gemini-2.5-pro":   {Name: "gemini-2.5-pro", ContextWindow: 2_000_000, MaxOutputTokens: 8_192, Capabilities: caps},
	}
}

func (p *Provider) Name() string { return "google" }

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

// Stream issues req against GenerateContentStream, retrying transient
// failures with exponential backoff across whole stream attempts.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	model := p.modelOrDefault(req.Model)

	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("google: convert messages: %w", err)
	}
	config := buildConfig(req)

	out := make(chan llm.StreamEvent)

	go func() {
		defer close(out)

		var streamErr error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			if ctx.Err() != nil {
				out <- llm.StreamEvent{Err: ctx.Err()}
				return
			}

			streamIter := p.client.Models.GenerateContentStream(ctx, model, contents, config)
			streamErr = processStream(ctx, streamIter, out, model)
			if streamErr == nil {
				return
			}
			if !p.isRetryable(streamErr) || attempt >= p.maxRetries {
				break
			}

			backoff := p.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
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

func (p *Provider) isRetryable(err error) bool {
	var llmErr *llm.Error
	if llm.As(err, &llmErr) {
		return llmErr.Reason.Retryable()
	}
	return false
}
