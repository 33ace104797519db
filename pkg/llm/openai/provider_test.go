package openai

import (
	"testing"

	"iso-risk-agent-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

func TestToMessageContentRoles(t *testing.T) {
	got := toMessageContent([]llm.Message{
		{Role: "system", Content: "rules"},
		{Role: "user", Content: "q"},
		{Role: "model", Content: "a"},
		{Role: "tool", Content: "?"},
	})

	roles := make([]schema.ChatMessageType, len(got))
	for i, m := range got {
		roles[i] = m.Role
	}
	assert.Equal(t, []schema.ChatMessageType{
		schema.ChatMessageTypeSystem,
		schema.ChatMessageTypeHuman,
		schema.ChatMessageTypeAI,
		schema.ChatMessageTypeHuman,
	}, roles)
	assert.Equal(t, llms.TextPart("rules"), got[0].Parts[0])
}
