// Package bedrock adapts AWS Bedrock's Converse streaming API to the
// llm.Provider contract, covering Claude, Titan, Llama, and other
// foundation models hosted behind the same Converse surface.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/soulwire/soulwire/internal/llm"
)

// Config holds the parameters needed to construct a Provider.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	MaxRetries      int
	RetryDelay      time.Duration
}

// Provider implements llm.Provider against AWS Bedrock's Converse API.
type Provider struct {
	client       *bedrockruntime.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
	models       map[string]llm.ModelInfo
}

// New constructs a Provider, resolving AWS credentials from the explicit
// fields if given or the default credential chain otherwise.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	return &Provider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		models:       defaultModels(),
	}, nil
}

func defaultModels() map[string]llm.ModelInfo {
	claudeCaps := map[llm.Capability]bool{
		llm.CapabilityImageIn:   true,
		llm.CapabilityToolUse:   true,
		llm.CapabilityStreaming: true,
	}
	plainCaps := map[llm.Capability]bool{llm.CapabilityStreaming: true}
	return map[string]llm.ModelInfo{
		"anthropic.claude-3-opus-20240229-v1:0":   {Name: "anthropic.claude-3-opus-20240229-v1:0", ContextWindow: 200_000, Capabilities: claudeCaps},
		"anthropic.claude-3-sonnet-20240229-v1:0": {Name: "anthropic.claude-3-sonnet-20240229-v1:0", ContextWindow: 200_000, Capabilities: claudeCaps},
		"meta.llama3-70b-instruct-v1:0":           {Name: "meta.llama3-70b-instruct-v1:0", ContextWindow: 8_192, Capabilities: plainCaps},
	}
}

func (p *Provider) Name() string { return "bedrock" }

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

// Stream issues req against ConverseStream, retrying transient AWS
// failures (throttling, 5xx, timeouts) with exponential backoff.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	if p.client == nil {
		return nil, errors.New("bedrock: client not initialized")
	}
	model := p.modelOrDefault(req.Model)

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("bedrock: convert messages: %w", err)
	}

	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.MaxTokens > 0 {
		converseReq.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(req.MaxTokens)),
		}
	}
	if len(req.Tools) > 0 {
		toolConfig, err := convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("bedrock: convert tools: %w", err)
		}
		converseReq.ToolConfig = toolConfig
	}

	out := make(chan llm.StreamEvent)

	go func() {
		defer close(out)

		var stream *bedrockruntime.ConverseStreamOutput
		var streamErr error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			if ctx.Err() != nil {
				out <- llm.StreamEvent{Err: ctx.Err()}
				return
			}
			stream, streamErr = p.client.ConverseStream(ctx, converseReq)
			if streamErr == nil {
				break
			}
			wrapped := llm.NewError("bedrock", model, streamErr)
			retryable := wrapped.Reason.Retryable() || isAWSThrottle(streamErr.Error())
			if !retryable || attempt >= p.maxRetries {
				out <- llm.StreamEvent{Err: wrapped}
				return
			}
			backoff := p.retryDelay * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				out <- llm.StreamEvent{Err: ctx.Err()}
				return
			case <-time.After(backoff):
			}
		}

		if err := processStream(ctx, stream, out, model); err != nil {
			out <- llm.StreamEvent{Err: err}
		}
	}()

	return out, nil
}

func isAWSThrottle(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "throttlingexception") ||
		strings.Contains(lower, "toomanyrequestsexception") ||
		strings.Contains(lower, "serviceunavailableexception")
}
