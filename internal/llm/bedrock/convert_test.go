package bedrock

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/soulwire/soulwire/pkg/message"
)

func TestConvertMessagesSkipsSystemRole(t *testing.T) {
	msgs := []message.Message{
		{Role: message.RoleSystem, Content: []message.ContentPart{&message.TextPart{Text: "be terse"}}},
		{Role: message.RoleUser, Content: []message.ContentPart{&message.TextPart{Text: "hi"}}},
	}
	out, err := convertMessages(msgs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Role != types.ConversationRoleUser {
		t.Fatalf("got %+v", out)
	}
}

func TestConvertMessagesToolRoleBecomesToolResult(t *testing.T) {
	msgs := []message.Message{
		{Role: message.RoleTool, ToolCallID: "tu1", Content: []message.ContentPart{&message.TextPart{Text: "42"}}},
	}
	out, err := convertMessages(msgs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || len(out[0].Content) != 1 {
		t.Fatalf("got %+v", out)
	}
	if _, ok := out[0].Content[0].(*types.ContentBlockMemberToolResult); !ok {
		t.Fatalf("got %T", out[0].Content[0])
	}
}

func TestIsAWSThrottleDetectsKnownExceptions(t *testing.T) {
	if !isAWSThrottle("ThrottlingException: rate exceeded") {
		t.Fatal("expected throttle detection")
	}
	if isAWSThrottle("ValidationException: bad input") {
		t.Fatal("expected non-throttle error to not match")
	}
}
