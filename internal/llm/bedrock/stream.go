package bedrock

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/pkg/message"
)

// processStream drains one Converse event stream, emitting one
// llm.StreamEvent per delta and a final usage event. A tool-use content
// block is only fully known at content_block_stop (its argument JSON
// arrives as incremental string fragments with no id/name repeated), so
// unlike the Anthropic adapter the ToolCall is announced complete there
// rather than as an empty call at content_block_start.
func processStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, out chan<- llm.StreamEvent, model string) error {
	eventStream := stream.GetStream()
	defer eventStream.Close()

	var currentToolCall *message.ToolCall
	var toolInput strings.Builder
	var usage llm.Usage

	eventChan := eventStream.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-eventChan:
			if !ok {
				if err := eventStream.Err(); err != nil {
					return llm.NewError("bedrock", model, err)
				}
				out <- llm.StreamEvent{Usage: &usage}
				return nil
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					currentToolCall = &message.ToolCall{
						ID:   aws.ToString(toolUse.Value.ToolUseId),
						Name: aws.ToString(toolUse.Value.Name),
					}
					toolInput.Reset()
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						out <- llm.StreamEvent{Part: &message.TextPart{Text: delta.Value}}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						toolInput.WriteString(*delta.Value.Input)
					}
				}

			case *types.ConverseStreamOutputMemberContentBlockStop:
				if currentToolCall != nil && currentToolCall.ID != "" {
					args := toolInput.String()
					if args == "" {
						args = "{}"
					}
					currentToolCall.ArgumentsJSON = args
					out <- llm.StreamEvent{Part: currentToolCall}
					currentToolCall = nil
					toolInput.Reset()
				}

			case *types.ConverseStreamOutputMemberMetadata:
				if ev.Value.Usage != nil {
					usage.InputOther = int(aws.ToInt32(ev.Value.Usage.InputTokens))
					usage.Output = int(aws.ToInt32(ev.Value.Usage.OutputTokens))
				}

			case *types.ConverseStreamOutputMemberMessageStop:
				out <- llm.StreamEvent{Usage: &usage}
				return nil
			}
		}
	}
}
