package google

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync/atomic"

	"google.golang.org/genai"

	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/pkg/message"
)

var toolCallSeq int64

func nextToolCallID(name string) string {
	n := atomic.AddInt64(&toolCallSeq, 1)
	return fmt.Sprintf("%s-%d", name, n)
}

// processStream drains a Gemini iter.Seq2 stream, emitting one
// llm.StreamEvent per text chunk or function call and a final usage event.
// Gemini never splits a function call's arguments across chunks the way
// Anthropic and OpenAI do, so each FunctionCall part is announced complete
// in a single event rather than an initial call plus continuation parts.
func processStream(ctx context.Context, streamIter iter.Seq2[*genai.GenerateContentResponse, error], out chan<- llm.StreamEvent, model string) error {
	var usage llm.Usage

	for resp, err := range streamIter {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return llm.NewError("google", model, err)
		}
		if resp == nil {
			continue
		}

		if resp.UsageMetadata != nil {
			usage.InputOther = int(resp.UsageMetadata.PromptTokenCount)
			usage.Output = int(resp.UsageMetadata.CandidatesTokenCount)
			usage.InputCacheRead = int(resp.UsageMetadata.CachedContentTokenCount)
		}

		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					if part.Thought {
						out <- llm.StreamEvent{Part: &message.ThinkPart{Think: part.Text}}
					} else {
						out <- llm.StreamEvent{Part: &message.TextPart{Text: part.Text}}
					}
				}
				if part.FunctionCall != nil {
					argsJSON, jsonErr := json.Marshal(part.FunctionCall.Args)
					if jsonErr != nil {
						argsJSON = []byte("{}")
					}
					out <- llm.StreamEvent{Part: &message.ToolCall{
						ID:            nextToolCallID(part.FunctionCall.Name),
						Name:          part.FunctionCall.Name,
						ArgumentsJSON: string(argsJSON),
					}}
				}
			}
		}
	}

	out <- llm.StreamEvent{Usage: &usage}
	return nil
}
