package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/pkg/message"
)

// processStream walks one SSE stream to completion, emitting one
// llm.StreamEvent per content delta and a final usage event. It returns a
// non-nil error only for transport-level failures (the stream itself
// erroring mid-iteration); a clean stream with no content is not an error
// here — the caller that sees zero Part events decides whether that is an
// llm.EmptyResponse.
func (p *Provider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- llm.StreamEvent, model string) error {
	var currentToolCall *message.ToolCall
	var usage llm.Usage

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			usage.InputOther = int(start.Message.Usage.InputTokens)
			usage.InputCacheRead = int(start.Message.Usage.CacheReadInputTokens)
			usage.InputCacheCreation = int(start.Message.Usage.CacheCreationInputTokens)

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				currentToolCall = &message.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				out <- llm.StreamEvent{Part: &message.ToolCall{ID: currentToolCall.ID, Name: currentToolCall.Name}}
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- llm.StreamEvent{Part: &message.TextPart{Text: delta.Text}}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					out <- llm.StreamEvent{Part: &message.ThinkPart{Think: delta.Thinking}}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" && currentToolCall != nil {
					out <- llm.StreamEvent{Part: &message.ToolCallPart{
						ToolCallID:    currentToolCall.ID,
						ArgumentsPart: delta.PartialJSON,
					}}
				}
			}

		case "content_block_stop":
			currentToolCall = nil

		case "message_delta":
			delta := event.AsMessageDelta()
			usage.Output = int(delta.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		return llm.NewError("anthropic", model, err)
	}

	out <- llm.StreamEvent{Usage: &usage}
	return nil
}
