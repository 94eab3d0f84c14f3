// Package compaction implements the single-call context compaction
// strategy: everything but the last few user/assistant turns is folded
// into one synthetic message, summarized by a single zero-tool LLM call,
// and replaced by a labeled banner carrying the model's response.
package compaction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/pkg/message"
)

// CompactionBanner prefixes the summarized replacement message so a
// reader of the persisted history can tell where compaction happened.
const CompactionBanner = "Previous context has been compacted. Here is the compaction output:"

// compactionInstructions is appended to the synthesized compaction
// message, instructing the model on the shape of the summary it owes.
const compactionInstructions = `Summarize the conversation above. Preserve any decisions, open
questions, file paths, and commands that later turns may depend on. Be
concise; omit pleasantries and restated instructions.`

// Compactor compacts a message history once it grows too large to keep
// verbatim, preserving the most recent turns untouched.
type Compactor struct {
	// MaxPreservedMessages is how many of the most recent user/assistant
	// messages are kept verbatim, uncompacted. Must be positive.
	MaxPreservedMessages int

	// Provider issues the single zero-tool completion used to summarize
	// the compacted prefix.
	Provider llm.Provider

	// Model is passed through to the summarization request.
	Model string

	Logger *slog.Logger
}

// NewCompactor constructs a Compactor with the standard K=2 preserved
// window.
func NewCompactor(provider llm.Provider, model string) *Compactor {
	return &Compactor{
		MaxPreservedMessages: 2,
		Provider:             provider,
		Model:                model,
		Logger:               slog.Default(),
	}
}

// Compact returns a new message slice with everything before the
// preserved window folded into one labeled summary message. If there
// aren't enough user/assistant messages to preserve a window and still
// have something left to compact, messages is returned unchanged.
func (c *Compactor) Compact(ctx context.Context, messages []message.Message) ([]message.Message, error) {
	toCompact, toPreserve := c.prepare(messages)
	if toCompact == nil {
		return toPreserve, nil
	}

	compactMessage := c.buildCompactionRequest(toCompact)

	if c.Logger != nil {
		c.Logger.Debug("compacting context", "messages_compacted", len(toCompact), "messages_preserved", len(toPreserve))
	}

	resp, usage, err := c.summarize(ctx, compactMessage)
	if err != nil {
		return nil, fmt.Errorf("compaction: summarize: %w", err)
	}
	if c.Logger != nil && usage != nil {
		c.Logger.Debug("compaction completed", "input_tokens", usage.Total()-usage.Output, "output_tokens", usage.Output)
	}

	banner := message.Message{
		Role: message.RoleUser,
		Content: append(
			[]message.ContentPart{&message.TextPart{Text: CompactionBanner}},
			message.StripThinkParts(resp.Content)...,
		),
	}

	out := make([]message.Message, 0, 1+len(toPreserve))
	out = append(out, banner)
	out = append(out, toPreserve...)
	return out, nil
}

// prepare splits messages into a prefix to compact and a suffix to
// preserve verbatim. It walks backward counting user/assistant
// messages; once MaxPreservedMessages of them have been seen, the
// preserved window starts there. If the window can't be filled, or
// nothing is left before it, compaction is a no-op (nil, messages).
func (c *Compactor) prepare(messages []message.Message) ([]message.Message, []message.Message) {
	if len(messages) == 0 || c.MaxPreservedMessages <= 0 {
		return nil, messages
	}

	preserveStart := len(messages)
	preserved := 0
	for i := len(messages) - 1; i >= 0; i-- {
		role := messages[i].Role
		if role == message.RoleUser || role == message.RoleAssistant {
			preserved++
			if preserved == c.MaxPreservedMessages {
				preserveStart = i
				break
			}
		}
	}
	if preserved < c.MaxPreservedMessages {
		return nil, messages
	}

	toCompact := messages[:preserveStart]
	toPreserve := messages[preserveStart:]
	if len(toCompact) == 0 {
		return nil, toPreserve
	}
	return toCompact, toPreserve
}

// buildCompactionRequest renders the messages to compact into a single
// user-role message: one TextPart header per source message ("## Message
// N\nRole: ...") followed by that message's own content (think parts
// stripped), then a trailing instruction block.
func (c *Compactor) buildCompactionRequest(toCompact []message.Message) message.Message {
	var content []message.ContentPart
	for i, m := range toCompact {
		content = append(content, &message.TextPart{
			Text: fmt.Sprintf("## Message %d\nRole: %s\nContent:\n", i+1, m.Role),
		})
		content = append(content, message.StripThinkParts(m.Content)...)
	}
	content = append(content, &message.TextPart{Text: "\n" + compactionInstructions})
	return message.Message{Role: message.RoleUser, Content: content}
}

// summarize issues the single, non-persisted, zero-tool completion
// request and reassembles its streamed parts into one Message.
func (c *Compactor) summarize(ctx context.Context, compactMessage message.Message) (message.Message, *llm.Usage, error) {
	req := llm.Request{
		Model:  c.Model,
		System: "You are a helpful assistant that compacts conversation context.",
		Messages: []message.Message{
			{Role: message.RoleSystem, Content: []message.ContentPart{&message.TextPart{Text: "You are a helpful assistant that compacts conversation context."}}},
			compactMessage,
		},
	}

	events, err := c.Provider.Stream(ctx, req)
	if err != nil {
		return message.Message{}, nil, err
	}

	result := message.Message{Role: message.RoleAssistant}
	var usage *llm.Usage
	for ev := range events {
		if ev.Err != nil {
			return message.Message{}, nil, ev.Err
		}
		if ev.Usage != nil {
			usage = ev.Usage
		}
		if ev.Part == nil {
			continue
		}
		appendPart(&result, ev.Part)
	}

	if len(result.Content) == 0 {
		return message.Message{}, usage, llm.EmptyResponse{Model: req.Model}
	}
	return result, usage, nil
}

// appendPart mirrors the Wire's merge-buffer behavior for the
// single-message case this compactor needs: merge into the last part
// when possible, otherwise append a new one.
func appendPart(m *message.Message, part message.ContentPart) {
	if len(m.Content) > 0 {
		last := m.Content[len(m.Content)-1]
		if last.MergeInPlace(part) {
			return
		}
	}
	m.Content = append(m.Content, part)
}
