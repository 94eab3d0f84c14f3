// Package frontend holds the text rendering shared by every pluggable
// front-end (shell, print, rpc, discord, slack, telegram): turning a Wire
// message into something a human or a chat client can display.
package frontend

import (
	"fmt"

	"github.com/soulwire/soulwire/internal/wire"
	"github.com/soulwire/soulwire/pkg/message"
)

// Render converts a merged-view WireMessage into display text and reports
// whether it produced anything at all — lifecycle events like StepBegin
// carry no text of their own and are left to a front-end's own status line.
func Render(msg wire.WireMessage) (string, bool) {
	switch v := msg.(type) {
	case *message.TextPart:
		return v.Text, v.Text != ""
	case *message.ThinkPart:
		return v.Think, v.Think != ""
	case *message.ImageURLPart:
		return fmt.Sprintf("[image: %s]", v.URL), true
	case *message.AudioURLPart:
		return fmt.Sprintf("[audio: %s]", v.URL), true
	case *message.ToolCall:
		return fmt.Sprintf("[tool call: %s]", v.Name), true
	case wire.ToolResult:
		if v.IsError {
			return fmt.Sprintf("[tool error] %s", v.Content), true
		}
		return "", false
	case wire.StepInterrupted:
		return "[interrupted]", true
	default:
		return "", false
	}
}

// StatusLine renders a StatusUpdate into a short context-usage indicator,
// or the empty string when usage is undefined.
func StatusLine(s wire.StatusUpdate) string {
	if s.ContextUsage == nil {
		return ""
	}
	return fmt.Sprintf("[context: %.0f%%]", *s.ContextUsage*100)
}
